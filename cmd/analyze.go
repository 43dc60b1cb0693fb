package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"curestat/internal/analysis"
	"curestat/internal/config"
	"curestat/internal/logger"
	"curestat/internal/ocr"
	"curestat/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [report-file]",
	Short: "Extract diseases and medications from a scanned medical report",
	Long: `Run OCR over a scanned report image (PNG, JPEG or GIF, up to 20MB) and
analyze the extracted text.

The analysis lists the known diseases mentioned anywhere in the report and
every numbered medication line ("1. Metformin") together with the dosage and
frequency found on the lines below it.

With --text the file is read as already-extracted text and no OCR is done.

Required environment variables (image input):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  OCR_PROVIDER - vision (default) or documentai
  GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID - Document AI only`,
	Example: `  # Analyze a scanned prescription
  curestat analyze prescription.png

  # Include the OCR text and save to a file
  curestat analyze lab-report.jpg --raw -o result.json

  # Analyze text that was extracted elsewhere
  curestat analyze notes.txt --text

  # Use a custom keyword vocabulary
  curestat analyze report.png --vocabulary vocab.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().Bool("text", false, "Treat the input as extracted text and skip OCR")
	analyzeCmd.Flags().Bool("raw", false, "Include the extracted text in the output")
	analyzeCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
	analyzeCmd.Flags().String("vocabulary", "", "YAML vocabulary file (default: VOCABULARY_FILE or built-in)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("analyze")

	outputPath, _ := cmd.Flags().GetString("output")
	textInput, _ := cmd.Flags().GetBool("text")
	includeRaw, _ := cmd.Flags().GetBool("raw")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	vocabularyPath, _ := cmd.Flags().GetString("vocabulary")

	inputPath := args[0]

	log.Info().
		Str("file", inputPath).
		Str("output", outputPath).
		Bool("text", textInput).
		Int("timeout", timeoutSecs).
		Msg("Starting report analysis")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if vocabularyPath != "" {
		cfg.VocabularyFile = vocabularyPath
	}

	engine, err := newEngine(cfg.VocabularyFile, cfg.Vocabulary, log)
	if err != nil {
		return err
	}

	maxSize := int64(ocr.MaxImageSizeBytes)
	fileInfo, err := validateInputFile(inputPath, maxSize, log)
	if err != nil {
		return err
	}

	var result *report.Result
	if textInput {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("failed to read text file: %w", err)
		}
		result = report.NewService(nil, engine).AnalyzeText(string(data))
	} else {
		ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
		defer cancel()

		result, err = analyzeImage(ctx, cfg, engine, inputPath, log)
		if err != nil {
			return err
		}
	}

	log.Info().
		Int64("size", fileInfo.Size()).
		Int("diseases", len(result.Analysis.Diseases)).
		Int("medications", len(result.Analysis.Medications)).
		Msg("Report analysis completed")

	if includeRaw {
		return writeJSON(cmd.OutOrStdout(), result, outputPath, log)
	}
	return writeJSON(cmd.OutOrStdout(), result.Analysis, outputPath, log)
}

func newEngine(path string, load func() (analysis.Vocabulary, error), log zerolog.Logger) (*analysis.Engine, error) {
	vocab, err := load()
	if err != nil {
		log.Error().Err(err).Str("vocabulary", path).Msg("Failed to load vocabulary")
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	engine, err := analysis.NewEngine(vocab)
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary: %w", err)
	}

	if path != "" {
		log.Info().
			Str("vocabulary", path).
			Int("keywords", len(vocab.Diseases)).
			Msg("Loaded custom vocabulary")
	}
	return engine, nil
}

func analyzeImage(ctx context.Context, cfg *config.Config, engine *analysis.Engine, path string, log zerolog.Logger) (*report.Result, error) {
	ocrService, err := createOCRService(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := ocrService.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR client")
		}
	}()

	file, err := os.Open(path)
	if err != nil {
		log.Error().
			Err(err).
			Str("file", path).
			Msg("Failed to open report file")
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close report file")
		}
	}()

	result, err := report.NewService(ocrService, engine).Analyze(ctx, file)
	if err != nil {
		return nil, handleAnalyzeError(err, log)
	}
	return result, nil
}

// handleAnalyzeError provides user-friendly error messages for analysis failures
func handleAnalyzeError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Report analysis failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("text extraction timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("report analysis was canceled")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB). Try a lower resolution scan")
	case errors.Is(err, ocr.ErrUnsupportedImage):
		return fmt.Errorf("unsupported or corrupted image. Use PNG, JPEG or GIF, or pass --text for text files")
	case errors.Is(err, ocr.ErrEmptyImage):
		return fmt.Errorf("the report file is empty")
	case isAuthError(err):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS and make sure the service account may use the OCR API.\n\nOriginal error: %v", err)
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("report analysis failed: %w", err)
	}
}
