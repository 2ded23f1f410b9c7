package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string

	LibraryBackend string
	DBPath         string
	DatabaseURL    string

	VisionBackend string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	ClaudeAPIKey  string
	ClaudeModel   string
	OllamaHost    string
	OllamaModel   string
	FrameTimeout  time.Duration

	WavespeedAPIKey  string
	WavespeedURL     string
	GoogleImageURL   string
	GoogleImageModel string

	ImageBackend   string
	ImageLocalPath string
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first; variables already set win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		LibraryBackend: getEnv("LIBRARY_BACKEND", "sqlite"),
		DBPath:         getEnv("DB_PATH", "/data/facet.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		VisionBackend: getEnv("VISION_BACKEND", "gemini"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),
		ClaudeAPIKey:  getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:   getEnv("CLAUDE_MODEL", "claude-opus-4-6"),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llava"),
		FrameTimeout:  getDuration("FRAME_TIMEOUT", 60*time.Second),

		WavespeedAPIKey:  getEnv("WAVESPEED_API_KEY", ""),
		WavespeedURL:     getEnv("WAVESPEED_URL", "https://api.wavespeed.ai/api/v3/google/nano-banana-pro/text-to-image"),
		GoogleImageURL:   getEnv("GOOGLE_IMAGE_URL", "https://generativelanguage.googleapis.com"),
		GoogleImageModel: getEnv("GOOGLE_IMAGE_MODEL", "gemini-3-pro-image-preview"),

		ImageBackend:   getEnv("IMAGE_BACKEND", "local"),
		ImageLocalPath: getEnv("IMAGE_LOCAL_PATH", "/data/images"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3Bucket:       getEnv("S3_BUCKET", "facet-images"),
		S3UseSSL:       getBool("S3_USE_SSL", true),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
