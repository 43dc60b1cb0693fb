package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"curestat/internal/trends"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-xyz_09/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-xyz_09", id)

	_, err = extractSpreadsheetID("https://example.com/not-a-sheet")
	assert.Error(t, err)
}

func TestTrendRows(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	rows := trendRows([]trends.OutbreakRecord{{Disease: "Dengue", Outbreaks: 5}, {Disease: "Malaria", Outbreaks: 2}}, at)

	assert.Equal(t, [][]interface{}{
		{"Dengue", float64(5), "2024-03-01 09:30:00"},
		{"Malaria", float64(2), "2024-03-01 09:30:00"},
	}, rows)
}

// fakeSheetsAPI records the calls the exporter makes against the Sheets REST API.
type fakeSheetsAPI struct {
	mu         sync.Mutex
	sheetTitle string
	hasHeaders bool
	calls      []string
	appended   [][]interface{}
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.calls = append(f.calls, "get")
		var sheetList []map[string]any
		if f.sheetTitle != "" {
			sheetList = append(sheetList, map[string]any{"properties": map[string]any{"title": f.sheetTitle, "sheetId": 7}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1", "sheets": sheetList})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "batchUpdate")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"replies": []map[string]any{{"addSheet": map[string]any{"properties": map[string]any{"sheetId": 9}}}},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append")
		var body sheets.ValueRange
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		f.appended = body.Values
		_ = json.NewEncoder(w).Encode(map[string]any{})
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "getHeaders")
		values := [][]string{}
		if f.hasHeaders {
			values = append(values, []string{"Disease", "Outbreaks", "Exported At"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": values})
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "updateHeaders")
		_ = json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newTestExporter(t *testing.T, api *fakeSheetsAPI) *TrendExporter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	exp := NewTrendExporterWithService(svc, "sheet-1")
	exp.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return exp
}

func TestWriteTrends_CreatesSheetAndHeaders(t *testing.T) {
	api := &fakeSheetsAPI{}
	exp := newTestExporter(t, api)

	err := exp.WriteTrends(context.Background(), []trends.OutbreakRecord{{Disease: "Cholera", Outbreaks: 3}}, "Trends")

	require.NoError(t, err)
	assert.Equal(t, []string{"get", "batchUpdate", "getHeaders", "updateHeaders", "batchUpdate", "append"}, api.calls)
	require.Len(t, api.appended, 1)
	assert.Equal(t, []interface{}{"Cholera", float64(3), "2024-03-01 09:30:00"}, api.appended[0])
}

func TestWriteTrends_ExistingSheet(t *testing.T) {
	api := &fakeSheetsAPI{sheetTitle: "Trends", hasHeaders: true}
	exp := newTestExporter(t, api)

	err := exp.WriteTrends(context.Background(), []trends.OutbreakRecord{{Disease: "Dengue", Outbreaks: 1}}, "Trends")

	require.NoError(t, err)
	assert.Equal(t, []string{"get", "getHeaders", "append"}, api.calls)
}

func TestWriteTrends_NoRecords(t *testing.T) {
	api := &fakeSheetsAPI{sheetTitle: "Trends", hasHeaders: true}
	exp := newTestExporter(t, api)

	require.NoError(t, exp.WriteTrends(context.Background(), nil, "Trends"))
	assert.NotContains(t, api.calls, "append")
}

func TestNewTrendExporter_RequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_CREDENTIALS", "")

	_, err := NewTrendExporter(context.Background(), "https://docs.google.com/spreadsheets/d/abc/edit")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_CREDENTIALS")
}
