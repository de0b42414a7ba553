package main

// Analyze a local file with one provider and print the result as JSON:
//   go run ./cmd/analyze -file policy.pdf -provider openai -type security-review

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docsec-backend/internal/analyses"
	"docsec-backend/internal/bootstrap"
	"docsec-backend/internal/documents"
	"docsec-backend/internal/extract"
	"docsec-backend/internal/llm"
	"docsec-backend/internal/shared/apperror"
	"docsec-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to the document (pdf, doc, docx, txt, md)")
	mimeType := flag.String("mime", "", "Declared mime type (defaults to the file extension)")
	provider := flag.String("provider", cfg.DefaultProvider, "Provider: claude, openai or gemini")
	analysisType := flag.String("type", llm.AnalysisGeneral, "Analysis type: "+strings.Join(llm.AnalysisTypes(), ", "))
	customPrompt := flag.String("prompt", "", "Custom instruction (overrides -type)")
	timeout := flag.Duration("timeout", cfg.LLMTimeout, "Provider call timeout")
	outPath := flag.String("out", "", "Write JSON output to this path instead of stdout")
	extractOnly := flag.Bool("extract-only", false, "Print the extracted text and skip the provider call")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		exitErr(fmt.Errorf("-file is required"))
	}
	if len([]rune(*customPrompt)) > analyses.MaxCustomPromptLength {
		exitErr(fmt.Errorf("-prompt must be at most %d characters", analyses.MaxCustomPromptLength))
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Errorf("read file: %w", err))
	}
	fileName := filepath.Base(*filePath)
	ctx := context.Background()

	text, err := extract.Extract(ctx, extract.RawDocument{
		Data:      data,
		MimeType:  documents.ResolveMimeType(*mimeType, fileName),
		FileName:  fileName,
		SizeBytes: int64(len(data)),
	})
	if err != nil {
		exitErr(err)
	}
	if *extractOnly {
		writeJSON(*outPath, text)
		return
	}

	p, err := llm.ParseProvider(*provider)
	if err != nil {
		exitErr(err)
	}
	svc := analyses.NewService(analyses.NewMemoryRepo(), *timeout, clientsFor(cfg, *timeout)...)

	start := time.Now()
	result, err := svc.Run(ctx, analyses.Request{
		Content:      text,
		Provider:     p,
		AnalysisType: *analysisType,
		CustomPrompt: *customPrompt,
	})
	if err != nil {
		exitErr(err)
	}
	fmt.Fprintf(os.Stderr, "analysis finished in %s (%d chars, %d tokens)\n", time.Since(start).Round(time.Millisecond), text.CharacterCount, result.TokensUsed)
	writeJSON(*outPath, result)
}

// clientsFor builds the provider adapters with -timeout as their per-call bound.
func clientsFor(cfg config.Config, timeout time.Duration) []llm.Client {
	cfg.LLMTimeout = timeout
	return bootstrap.BuildClients(cfg)
}

func writeJSON(path string, v any) {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			exitErr(fmt.Errorf("create output: %w", err))
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitErr(fmt.Errorf("write output: %w", err))
	}
}

func exitErr(err error) {
	if kind, ok := apperror.KindOf(err); ok {
		fmt.Fprintf(os.Stderr, "error [%s retryable=%t]: %v\n", kind, kind.Retryable(), err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}
