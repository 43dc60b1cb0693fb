package trends

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource_FetchRecords(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		_, _ = w.Write([]byte(`{"total": 2, "records": [
			{"disease_disease_condition": "Malaria", "nos_of_outbreaks": "3"},
			{"disease_disease_condition": "Dengue", "nos_of_outbreaks": 5}
		]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.Client(), srv.URL, WithAPIKey("secret"), WithLimit(50))

	recs, err := src.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Malaria", recs[0]["disease_disease_condition"])
	assert.Equal(t, "3", recs[0]["nos_of_outbreaks"])

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"secret"}, q["api-key"])
	assert.Equal(t, []string{"json"}, q["format"])
	assert.Equal(t, []string{"50"}, q["limit"])

	got, err := DefaultAggregator().Aggregate(recs)
	require.NoError(t, err)
	assert.Equal(t, []OutbreakRecord{{"Dengue", 5}, {"Malaria", 3}}, got)
}

func TestHTTPSource_EmptySource(t *testing.T) {
	for _, body := range []string{`{}`, `{"records": []}`, `{"records": null}`} {
		srv := serveJSON(t, http.StatusOK, body)

		recs, err := NewHTTPSource(srv.Client(), srv.URL).FetchRecords(context.Background())

		require.NoError(t, err, body)
		assert.Empty(t, recs, body)
	}
}

func TestHTTPSource_StatusErrorIsUnavailable(t *testing.T) {
	srv := serveJSON(t, http.StatusServiceUnavailable, `{"error":"down"}`)

	_, err := NewHTTPSource(srv.Client(), srv.URL, WithAPIKey("secret")).FetchRecords(context.Background())

	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "503")
	assert.NotContains(t, err.Error(), "secret")
}

func TestHTTPSource_TransportErrorIsUnavailable(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{}`)
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPSource(&http.Client{Timeout: time.Second}, addr).FetchRecords(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestHTTPSource_MalformedPayload(t *testing.T) {
	bodies := []string{
		`not json`,
		`[1, 2, 3]`,
		`{"records": "nope"}`,
		`{"records": [1]}`,
	}

	for _, body := range bodies {
		srv := serveJSON(t, http.StatusOK, body)

		_, err := NewHTTPSource(srv.Client(), srv.URL).FetchRecords(context.Background())

		assert.ErrorIs(t, err, ErrMalformedPayload, body)
		assert.False(t, errors.Is(err, ErrSourceUnavailable), body)
	}
}

func TestHTTPSource_BreakerOpensWithoutRetrying(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.Client(), srv.URL, WithBreaker(NewBreaker("test", 2, time.Minute)))

	for i := 0; i < 2; i++ {
		_, err := src.FetchRecords(context.Background())
		require.ErrorIs(t, err, ErrSourceUnavailable)
	}
	assert.Equal(t, int32(2), hits.Load())

	_, err := src.FetchRecords(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker")
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPSource_InvalidURL(t *testing.T) {
	_, err := NewHTTPSource(nil, "://bad").FetchRecords(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
