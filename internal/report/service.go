// Package report connects the OCR boundary to the analysis engine.
//
// A report is a scanned image. Its text is extracted by an ocr.OCRService and
// passed unchanged to an analysis.Engine; the caller receives both the raw
// text and the structured analysis, which is the body served by the
// /api/analyze-report endpoint.
package report

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"curestat/internal/analysis"
	"curestat/internal/logger"
	"curestat/internal/metrics"
	"curestat/internal/ocr"
)

// Result is the outcome of analyzing one report.
type Result struct {
	RawText  string            `json:"raw_text"`
	Analysis analysis.Analysis `json:"analysis"`
}

// Service extracts report text and analyzes it.
type Service struct {
	ocr    ocr.OCRService
	engine *analysis.Engine
	log    zerolog.Logger
}

// NewService creates a report service. A nil engine uses the default vocabulary.
func NewService(ocrService ocr.OCRService, engine *analysis.Engine) *Service {
	if engine == nil {
		engine = analysis.MustNewEngine(analysis.DefaultVocabulary())
	}
	return &Service{
		ocr:    ocrService,
		engine: engine,
		log:    logger.WithComponent("report"),
	}
}

// Analyze runs OCR over image and analyzes the extracted text.
func (s *Service) Analyze(ctx context.Context, image io.Reader) (*Result, error) {
	if s.ocr == nil {
		metrics.ReportAnalysesTotal.WithLabelValues("ocr_error").Inc()
		return nil, ocr.NewOCRError("Analyze", ocr.ErrInvalidConfiguration, "no OCR backend configured")
	}

	start := time.Now()
	text, err := s.ocr.ExtractText(ctx, image)
	if err != nil {
		metrics.ReportAnalysesTotal.WithLabelValues(outcome(err)).Inc()
		s.log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Text extraction failed")
		return nil, err
	}

	s.log.Debug().
		Int("chars", len(text)).
		Dur("ocr_duration", time.Since(start)).
		Msg("Extracted report text")

	return s.AnalyzeText(text), nil
}

// AnalyzeText analyzes already extracted text.
func (s *Service) AnalyzeText(text string) *Result {
	result := &Result{
		RawText:  text,
		Analysis: s.engine.Analyze(text),
	}

	metrics.ReportAnalysesTotal.WithLabelValues("ok").Inc()
	for _, disease := range result.Analysis.Diseases {
		metrics.DiseasesDetectedTotal.WithLabelValues(disease).Inc()
	}
	metrics.MedicationsParsedTotal.Add(float64(len(result.Analysis.Medications)))

	s.log.Info().
		Int("diseases", len(result.Analysis.Diseases)).
		Int("medications", len(result.Analysis.Medications)).
		Msg("Report analyzed")

	return result
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ocr.ErrUnsupportedImage), errors.Is(err, ocr.ErrEmptyImage):
		return "unsupported_image"
	case errors.Is(err, ocr.ErrImageTooLarge):
		return "too_large"
	default:
		return "ocr_error"
	}
}
