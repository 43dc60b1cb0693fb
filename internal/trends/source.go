package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultSourceURL is the data.gov.in resource listing disease outbreaks by state.
	DefaultSourceURL = "https://api.data.gov.in/resource/96973b30-3829-46c4-912b-ab7ec65aff1b"

	// DefaultLimit is the number of records requested from the source.
	DefaultLimit = 1000

	// MaxPayloadBytes caps the size of a source response body.
	MaxPayloadBytes = 32 * 1024 * 1024
)

// Source provides the raw outbreak records.
type Source interface {
	FetchRecords(ctx context.Context) ([]Record, error)
}

// HTTPSource fetches records from a JSON endpoint shaped like {"records": [...]}.
type HTTPSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limit   int
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// SourceOption configures an HTTPSource.
type SourceOption func(*HTTPSource)

// WithAPIKey sends the key as the "api-key" query parameter.
func WithAPIKey(key string) SourceOption {
	return func(s *HTTPSource) { s.apiKey = key }
}

// WithLimit sets the "limit" query parameter. Zero leaves it unset.
func WithLimit(limit int) SourceOption {
	return func(s *HTTPSource) { s.limit = limit }
}

// WithBreaker guards fetches with a circuit breaker. While the breaker is open,
// fetches fail immediately with ErrSourceUnavailable.
func WithBreaker(cb *gobreaker.CircuitBreaker[[]byte]) SourceOption {
	return func(s *HTTPSource) { s.breaker = cb }
}

// NewBreaker returns a breaker that opens after consecutive failures and probes
// the source again after cooldown.
func NewBreaker(name string, consecutiveFailures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	})
}

// NewHTTPSource creates a source using the given client. The client is owned by
// the caller; pass one with a timeout.
func NewHTTPSource(client *http.Client, baseURL string, opts ...SourceOption) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	s := &HTTPSource{
		client:  client,
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchRecords downloads and decodes the records. A payload without a "records"
// key, or with an empty array, yields no records and no error.
func (s *HTTPSource) FetchRecords(ctx context.Context) ([]Record, error) {
	const op = "FetchRecords"

	endpoint, err := s.requestURL()
	if err != nil {
		return nil, WrapTrendError(op, ErrSourceUnavailable, err.Error())
	}

	var body []byte
	if s.breaker != nil {
		body, err = s.breaker.Execute(func() ([]byte, error) {
			return s.download(ctx, endpoint)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, WrapTrendError(op, ErrSourceUnavailable, fmt.Sprintf("circuit breaker: %v", err))
		}
	} else {
		body, err = s.download(ctx, endpoint)
	}
	if err != nil {
		return nil, WrapTrendError(op, err, "")
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, WrapTrendError(op, err, "")
	}
	return records, nil
}

func (s *HTTPSource) requestURL() (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid source URL %q: %w", s.baseURL, err)
	}

	q := u.Query()
	if s.apiKey != "" {
		q.Set("api-key", s.apiKey)
	}
	if q.Get("format") == "" {
		q.Set("format", "json")
	}
	if s.limit > 0 {
		q.Set("limit", strconv.Itoa(s.limit))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (s *HTTPSource) download(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TrendError{Op: "download", Err: ErrSourceUnavailable, Details: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TrendError{Op: "download", Err: ErrSourceUnavailable, Details: redact(err.Error(), s.apiKey)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TrendError{
			Op:      "download",
			Err:     ErrSourceUnavailable,
			Details: fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, redact(endpoint, s.apiKey)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPayloadBytes))
	if err != nil {
		return nil, &TrendError{Op: "download", Err: ErrSourceUnavailable, Details: fmt.Sprintf("failed to read body: %v", err)}
	}
	return body, nil
}

func decodeRecords(body []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, &TrendError{Op: "decode", Err: ErrMalformedPayload, Details: err.Error()}
	}

	raw, ok := payload["records"]
	if !ok || raw == nil {
		return []Record{}, nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, &TrendError{Op: "decode", Err: ErrMalformedPayload, Details: fmt.Sprintf("records is %T, not an array", raw)}
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &TrendError{Op: "decode", Err: ErrMalformedPayload, Details: fmt.Sprintf("record %d is %T, not an object", i, item)}
		}
		records = append(records, Record(obj))
	}
	return records, nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(secret), "REDACTED")
}
