package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"curestat/internal/config"
	"curestat/internal/ocr"
)

// loadConfig reads the environment configuration.
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, err
	}
	return cfg, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// validateInputFile checks if the file exists, is a regular file and is within the size limit
func validateInputFile(path string, maxSize int64, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", path).
				Msg("Input file not found")
			return nil, fmt.Errorf("file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", path).
				Msg("Permission denied accessing input file")
			return nil, fmt.Errorf("permission denied accessing file: %s", path)
		}
		return nil, fmt.Errorf("error accessing file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", path).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}

	if maxSize > 0 && fileInfo.Size() > maxSize {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", maxSize).
			Msg("Input file exceeds maximum size limit")
		return nil, fmt.Errorf("file too large (%d bytes). Maximum size is %d bytes",
			fileInfo.Size(), maxSize)
	}

	return fileInfo, nil
}

// createOCRService creates the OCR backend selected by OCR_PROVIDER
func createOCRService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.Service, error) {
	ocrService, err := ocr.NewService(ctx, cfg.OCRProvider, cfg.DocumentAI())
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			log.Error().
				Err(err).
				Msg("Google Cloud credentials not configured")
			return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
				"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
				"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
				"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
				"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
				"3. Use Application Default Credentials (if gcloud is configured):\n" +
				"   gcloud auth application-default login")
		case errors.Is(err, ocr.ErrInvalidConfiguration):
			log.Error().Err(err).Str("provider", cfg.OCRProvider).Msg("Invalid OCR configuration")
			return nil, fmt.Errorf("invalid OCR configuration: %w", err)
		default:
			log.Error().
				Err(err).
				Msg("Failed to create OCR service")
			return nil, fmt.Errorf("failed to create OCR service: %w", err)
		}
	}

	log.Debug().Str("provider", cfg.OCRProvider).Msg("OCR service created successfully")
	return ocrService, nil
}

// writeJSON writes v as indented JSON to outputPath, or to w when outputPath is empty
func writeJSON(w io.Writer, v any, outputPath string, log zerolog.Logger) error {
	outputData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("Results written to file")
		return nil
	}

	if _, err := fmt.Fprintln(w, string(outputData)); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// isAuthError reports whether err looks like a Google Cloud authentication or permission failure
func isAuthError(err error) bool {
	errStr := err.Error()
	for _, marker := range []string{
		"Unauthenticated", "invalid_grant", "invalid_rapt", "auth:",
		"transport: per-RPC creds failed", "PERMISSION_DENIED",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
