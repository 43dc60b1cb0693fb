package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curestat/internal/analysis"
	"curestat/internal/metrics"
	"curestat/internal/ocr"
)

type fakeOCR struct {
	text string
	err  error
	got  string
}

func (f *fakeOCR) ExtractText(ctx context.Context, image io.Reader) (string, error) {
	data, _ := io.ReadAll(image)
	f.got = string(data)
	return f.text, f.err
}

func (f *fakeOCR) ExtractTextWithMetadata(ctx context.Context, image io.Reader) (*ocr.OCRResult, error) {
	text, err := f.ExtractText(ctx, image)
	if err != nil {
		return nil, err
	}
	return &ocr.OCRResult{Text: text}, nil
}

const prescription = "Diagnosis: Diabetes, Hypertension\n1. Metformin\nDosage: 500mg\nFrequency: twice daily\n"

func TestService_Analyze(t *testing.T) {
	fake := &fakeOCR{text: prescription}
	svc := NewService(fake, nil)

	result, err := svc.Analyze(context.Background(), strings.NewReader("image-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "image-bytes", fake.got)
	assert.Equal(t, prescription, result.RawText)
	assert.Equal(t, []string{"Diabetes", "Hypertension"}, result.Analysis.Diseases)
	assert.Equal(t, []analysis.MedicationEntry{
		{Name: "Metformin", Dosage: "500mg", Frequency: "twice daily"},
	}, result.Analysis.Medications)
}

func TestService_AnalyzeEmptyText(t *testing.T) {
	svc := NewService(&fakeOCR{}, nil)

	result, err := svc.Analyze(context.Background(), strings.NewReader("blank scan"))
	require.NoError(t, err)

	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw_text":"","analysis":{"diseases":[],"medications":[]}}`, string(body))
}

func TestService_AnalyzePropagatesOCRErrors(t *testing.T) {
	before := testutil.ToFloat64(metrics.ReportAnalysesTotal.WithLabelValues("unsupported_image"))
	unsupported := ocr.NewOCRError("ExtractText", ocr.ErrUnsupportedImage, "")
	svc := NewService(&fakeOCR{err: unsupported}, nil)

	_, err := svc.Analyze(context.Background(), strings.NewReader("%PDF"))

	assert.ErrorIs(t, err, ocr.ErrUnsupportedImage)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ReportAnalysesTotal.WithLabelValues("unsupported_image")))
}

func TestService_AnalyzeWithoutBackend(t *testing.T) {
	svc := NewService(nil, nil)

	_, err := svc.Analyze(context.Background(), strings.NewReader("x"))

	assert.ErrorIs(t, err, ocr.ErrInvalidConfiguration)
}

func TestService_AnalyzeTextUsesEngineVocabulary(t *testing.T) {
	vocab := analysis.DefaultVocabulary()
	vocab.Diseases = []string{"malaria"}
	svc := NewService(nil, analysis.MustNewEngine(vocab))

	result := svc.AnalyzeText("Suspected MALARIA, fever")

	assert.Equal(t, []string{"Malaria"}, result.Analysis.Diseases)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "too_large", outcome(ocr.NewOCRError("op", ocr.ErrImageTooLarge, "")))
	assert.Equal(t, "unsupported_image", outcome(ocr.ErrEmptyImage))
	assert.Equal(t, "ocr_error", outcome(errors.New("boom")))
}
