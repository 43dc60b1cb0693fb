package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curestat/internal/analysis"
	"curestat/internal/ocr"
	"curestat/internal/trends"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"OCR_PROVIDER", "VOCABULARY_FILE", "TRENDS_API_KEY", "TRENDS_TIE_BREAK", "GOOGLE_SHEET_URL"} {
		t.Setenv(key, "")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand_TextInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	report := "Complaints: Headache and COUGH\n1. Ibuprofen\nDosage: 400 mg\nFrequency: as needed\n2. Cetirizine\n"
	require.NoError(t, os.WriteFile(path, []byte(report), 0o600))

	out, err := execute(t, "analyze", path, "--text")
	require.NoError(t, err)

	var got analysis.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"Cough", "Headache"}, got.Diseases)
	assert.Equal(t, []analysis.MedicationEntry{
		{Name: "Ibuprofen", Dosage: "400 mg", Frequency: "as needed"},
		{Name: "Cetirizine"},
	}, got.Medications)
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "analyze", filepath.Join(t.TempDir(), "nope.png"), "--text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestTrendsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[
			{"disease_disease_condition":"Malaria","nos_of_outbreaks":"3"},
			{"disease_disease_condition":"Dengue","nos_of_outbreaks":"4"},
			{"disease_disease_condition":"Malaria","nos_of_outbreaks":2}
		]}`))
	}))
	defer srv.Close()
	t.Setenv("TRENDS_API_URL", srv.URL)

	out, err := execute(t, "trends", "--limit", "1")
	require.NoError(t, err)

	var got []trends.OutbreakRecord
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []trends.OutbreakRecord{{Disease: "Malaria", Outbreaks: 5}}, got)
}

func TestTrendsCommand_ExportNeedsSheet(t *testing.T) {
	_, err := execute(t, "trends", "--limit", "0", "--export")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_SHEET_URL")
}

func TestHandleTrendsError(t *testing.T) {
	log := zerolog.Nop()

	err := handleTrendsError(trends.WrapTrendError("Trends", &trends.CoercionError{Index: 4, Field: "nos_of_outbreaks", Value: "many"}, ""), log)
	assert.Contains(t, err.Error(), "record 4")
	assert.Contains(t, err.Error(), `"many"`)

	err = handleTrendsError(&trends.FieldError{Index: 1, Field: "disease"}, log)
	assert.Contains(t, err.Error(), "TRENDS_KEY_FIELD")

	err = handleTrendsError(trends.WrapTrendError("download", trends.ErrSourceUnavailable, "status 500"), log)
	assert.ErrorIs(t, err, trends.ErrSourceUnavailable)

	err = handleTrendsError(context.DeadlineExceeded, log)
	assert.Contains(t, err.Error(), "timed out")
}

func TestHandleAnalyzeError(t *testing.T) {
	log := zerolog.Nop()

	assert.Contains(t, handleAnalyzeError(ocr.NewOCRError("x", ocr.ErrUnsupportedImage, ""), log).Error(), "--text")
	assert.Contains(t, handleAnalyzeError(ocr.ErrImageTooLarge, log).Error(), "20MB")
	assert.Contains(t, handleAnalyzeError(errors.New("rpc error: code = Unauthenticated"), log).Error(), "authentication")
	assert.ErrorIs(t, handleAnalyzeError(ocr.NewOCRError("x", ocr.ErrOCRFailed, ""), log), ocr.ErrOCRFailed)
}

func TestWriteJSON_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, writeJSON(nil, map[string]int{"a": 1}, path, zerolog.Nop()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}
