// Package trends turns the government outbreak dataset into per-disease totals.
//
// Records are fetched from a JSON endpoint shaped like {"records": [...]},
// grouped by a disease label field and summed over an outbreak count field.
// The result is sorted by total, highest first.
//
// Failure kinds:
//   - ErrSourceUnavailable: transport error, non-2xx status or open breaker
//   - ErrMalformedPayload: body is not a JSON object of records
//   - ErrNumericCoercion: a count is not a number (see CoercionError)
//   - ErrMissingField: a record has no disease label (see FieldError)
//
// A source with no records is not an error; it yields an empty list. Nothing is
// retried.
package trends

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"curestat/internal/logger"
	"curestat/internal/metrics"
)

// Service fetches outbreak records and aggregates them.
type Service struct {
	source     Source
	aggregator Aggregator
	log        zerolog.Logger
}

// NewService creates a trend service.
func NewService(source Source, aggregator Aggregator) *Service {
	return &Service{
		source:     source,
		aggregator: aggregator,
		log:        logger.WithComponent("trends"),
	}
}

// Trends fetches the dataset and returns the per-disease totals.
func (s *Service) Trends(ctx context.Context) ([]OutbreakRecord, error) {
	const op = "Trends"
	start := time.Now()

	records, err := s.source.FetchRecords(ctx)
	if err != nil {
		metrics.TrendFetchesTotal.WithLabelValues("unavailable").Inc()
		s.log.Error().Err(err).Msg("Failed to fetch trend records")
		return nil, err
	}

	if len(records) == 0 {
		metrics.TrendFetchesTotal.WithLabelValues("empty").Inc()
		s.log.Info().Msg("Trend source returned no records")
		return []OutbreakRecord{}, nil
	}

	result, err := s.aggregator.Aggregate(records)
	if err != nil {
		metrics.TrendFetchesTotal.WithLabelValues("invalid").Inc()
		s.log.Error().
			Err(err).
			Int("records", len(records)).
			Msg("Failed to aggregate trend records")
		return nil, WrapTrendError(op, err, "")
	}

	metrics.TrendFetchesTotal.WithLabelValues("ok").Inc()
	s.log.Info().
		Int("records", len(records)).
		Int("diseases", len(result)).
		Dur("duration", time.Since(start)).
		Msg("Trend data aggregated")

	return result, nil
}
