package web

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/facet/internal/service"
	"github.com/vbonduro/facet/internal/state"
)

type Server struct {
	service     *service.CompareService
	hub         *hub
	unsubscribe func()
	mux         *http.ServeMux
	logger      *slog.Logger
}

func NewServer(svc *service.CompareService, logger *slog.Logger) *Server {
	s := &Server{
		service: svc,
		hub:     newHub(logger),
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.unsubscribe = svc.Session().Subscribe(func(snap state.Snapshot) {
		s.hub.publish(newStateView(snap))
	})
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /state", s.handleGetState)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("PUT /keys", s.handleSetKeys)
	s.mux.HandleFunc("PUT /settings", s.handleSetSettings)

	s.mux.HandleFunc("POST /input/image", s.handleUploadImage)
	s.mux.HandleFunc("DELETE /input/image", s.handleClearImage)
	s.mux.HandleFunc("PUT /input/text", s.handleSetInputText)
	s.mux.HandleFunc("POST /input/mode", s.handleToggleInputMode)

	s.mux.HandleFunc("PUT /frames/{id}/prompt", s.handleSetPrompt)
	s.mux.HandleFunc("POST /frames/{id}/flip", s.handleFlip)
	s.mux.HandleFunc("POST /frames/{id}/reset", s.handleResetFrame)
	s.mux.HandleFunc("POST /reset", s.handleResetAll)

	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /frames/{id}/image", s.handleGenerateImage)
	s.mux.HandleFunc("GET /frames/{id}/paragraph", s.handleParagraph)
	s.mux.HandleFunc("GET /frames/{id}/copy", s.handleCopyText)
	s.mux.HandleFunc("GET /frames/{id}/download", s.handleDownload)
	s.mux.HandleFunc("GET /export.zip", s.handleExport)

	s.mux.HandleFunc("GET /library", s.handleListLibrary)
	s.mux.HandleFunc("POST /library", s.handleAddLibrary)
	s.mux.HandleFunc("POST /library/from-frame/{id}", s.handleSaveFrame)
	s.mux.HandleFunc("POST /library/{itemID}/load/{frameID}", s.handleLoadLibrary)
	s.mux.HandleFunc("DELETE /library/{itemID}", s.handleRemoveLibrary)
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

const requestIDHeader = "X-Request-ID"

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// Close stops pushing state to websocket clients.
func (s *Server) Close() {
	s.unsubscribe()
	s.hub.closeAll()
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}
