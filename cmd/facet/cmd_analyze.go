package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vbonduro/facet/internal/datauri"
	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/service"
	"github.com/vbonduro/facet/internal/state"
)

type analyzeOptions struct {
	image       string
	text        string
	prompts     []string
	promptFiles []string
	mode        string
	provider    string
	aspectRatio string
	resolution  string
	outDir      string
}

type frameReport struct {
	Frame      domain.FrameID  `json:"frame"`
	Title      string          `json:"title"`
	Status     domain.Status   `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Image      string          `json:"image,omitempty"`
	ImageError string          `json:"image_error,omitempty"`
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one input with up to four instructions and print the results",
		Example: `  facet analyze --image photo.jpg --prompt-file critic.txt --prompt "You are a painter"
  facet analyze --text "a harbour at dawn" --prompt "Expand into a scene" --mode image --out ./out`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return runAnalyze(cmd, a.svc, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.image, "image", "", "input image file")
	f.StringVar(&opts.text, "text", "", "input text, used instead of an image")
	f.StringArrayVar(&opts.prompts, "prompt", nil, "instruction for the next frame (repeatable)")
	f.StringArrayVar(&opts.promptFiles, "prompt-file", nil, "file holding an instruction for the next frame (repeatable)")
	f.StringVar(&opts.mode, "mode", string(domain.GenerationPrompt), "generation mode: prompt or image")
	f.StringVar(&opts.provider, "provider", string(domain.ProviderGoogle), "image provider: google or wavespeed")
	f.StringVar(&opts.aspectRatio, "aspect-ratio", "9:16", "aspect ratio of generated images")
	f.StringVar(&opts.resolution, "resolution", string(domain.Resolution2K), "resolution of generated images: 2k or 4k")
	f.StringVar(&opts.outDir, "out", "", "directory to write generated images to")
	cmd.MarkFlagsMutuallyExclusive("image", "text")
	return cmd
}

func runAnalyze(cmd *cobra.Command, svc *service.CompareService, opts analyzeOptions) error {
	sess := svc.Session()

	if err := loadInput(sess, opts); err != nil {
		return err
	}

	prompts, err := collectPrompts(opts)
	if err != nil {
		return err
	}
	for i, p := range prompts {
		if err := sess.SetPrompt(domain.FrameID(i+1), p); err != nil {
			return err
		}
	}

	count := len(prompts)
	mode := domain.GenerationMode(opts.mode)
	provider := domain.Provider(opts.provider)
	resolution := domain.Resolution(opts.resolution)
	if err := sess.ApplySettings(state.SettingsPatch{
		GenerationMode:   &mode,
		ImageProvider:    &provider,
		AspectRatio:      &opts.aspectRatio,
		Resolution:       &resolution,
		ActiveFrameCount: &count,
	}); err != nil {
		return err
	}

	if err := svc.Analyze(cmd.Context()); err != nil {
		return err
	}
	svc.WaitForImages()

	reports, err := buildReports(cmd, svc, count, opts.outDir)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func loadInput(sess *state.Session, opts analyzeOptions) error {
	if opts.text != "" {
		sess.ToggleInputMode()
		sess.SetInputText(opts.text)
		return nil
	}
	if opts.image == "" {
		return errors.New("one of --image or --text is required")
	}
	data, err := os.ReadFile(opts.image)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	sess.SetInputImage(datauri.Encode(http.DetectContentType(data), data))
	return nil
}

func collectPrompts(opts analyzeOptions) ([]string, error) {
	prompts := append([]string(nil), opts.prompts...)
	for _, path := range opts.promptFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file: %w", err)
		}
		prompts = append(prompts, strings.TrimSpace(string(data)))
	}
	if len(prompts) == 0 {
		return nil, service.ErrNoPrompt
	}
	if len(prompts) > domain.MaxOutputFrames {
		return nil, fmt.Errorf("at most %d prompts are supported, got %d", domain.MaxOutputFrames, len(prompts))
	}
	return prompts, nil
}

func buildReports(cmd *cobra.Command, svc *service.CompareService, count int, outDir string) ([]frameReport, error) {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	snap := svc.Session().Snapshot()
	var reports []frameReport
	for id := domain.FrameID(1); int(id) <= count; id++ {
		f, _ := snap.Frame(id)
		r := frameReport{
			Frame:      id,
			Title:      service.FrameTitle(f.Content.Prompt),
			Status:     f.Status,
			ImageError: f.Content.ImageError,
		}
		if f.Content.Result != nil {
			r.Result = json.RawMessage(*f.Content.Result)
		}
		if f.Content.OutputImage != "" && outDir != "" {
			data, _, name, err := svc.FrameImage(cmd.Context(), id)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(outDir, name)
			if err := os.WriteFile(path, data, 0644); err != nil {
				return nil, fmt.Errorf("failed to write image: %w", err)
			}
			r.Image = path
		}
		reports = append(reports, r)
	}
	return reports, nil
}
