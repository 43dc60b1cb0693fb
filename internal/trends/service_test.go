package trends

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu      sync.Mutex
	records []Record
	err     error
	calls   int
}

func (s *stubSource) FetchRecords(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.records, s.err
}

func (s *stubSource) set(records []Record, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records, s.err = records, err
}

func TestService_Trends(t *testing.T) {
	src := &stubSource{records: records("Malaria", "3", "Malaria", "2", "Dengue", "5")}
	svc := NewService(src, testAggregator(TieBreakKey))

	got, err := svc.Trends(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []OutbreakRecord{{"Dengue", 5}, {"Malaria", 5}}, got)
}

func TestService_EmptySource(t *testing.T) {
	svc := NewService(&stubSource{}, DefaultAggregator())

	got, err := svc.Trends(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestService_PropagatesFailures(t *testing.T) {
	unavailable := &TrendError{Op: "download", Err: ErrSourceUnavailable}
	svc := NewService(&stubSource{err: unavailable}, DefaultAggregator())

	_, err := svc.Trends(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	svc = NewService(&stubSource{records: records("Malaria", "many")}, testAggregator(TieBreakKey))
	got, err := svc.Trends(context.Background())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrNumericCoercion)

	var coercionErr *CoercionError
	require.True(t, errors.As(err, &coercionErr))
	assert.Equal(t, "many", coercionErr.Value)
}

func TestCache_RefreshAndSnapshot(t *testing.T) {
	src := &stubSource{records: records("Malaria", "3")}
	cache := NewCache(NewService(src, testAggregator(TieBreakKey)), time.Hour, time.Second)

	_, _, ok := cache.Snapshot()
	assert.False(t, ok)

	require.NoError(t, cache.Refresh(context.Background()))
	snap, updatedAt, ok := cache.Snapshot()
	require.True(t, ok)
	assert.False(t, updatedAt.IsZero())
	assert.Equal(t, []OutbreakRecord{{"Malaria", 3}}, snap)

	// A failed refresh keeps the previous snapshot.
	src.set(nil, &TrendError{Op: "download", Err: ErrSourceUnavailable})
	assert.ErrorIs(t, cache.Refresh(context.Background()), ErrSourceUnavailable)

	snap, _, ok = cache.Snapshot()
	require.True(t, ok)
	assert.Equal(t, []OutbreakRecord{{"Malaria", 3}}, snap)
}

func TestCache_SnapshotIsCopy(t *testing.T) {
	src := &stubSource{records: records("Malaria", "3")}
	cache := NewCache(NewService(src, testAggregator(TieBreakKey)), time.Hour, time.Second)
	require.NoError(t, cache.Refresh(context.Background()))

	snap, _, _ := cache.Snapshot()
	snap[0].Disease = "changed"

	again, _, _ := cache.Snapshot()
	assert.Equal(t, "Malaria", again[0].Disease)
}

func TestCache_StartRefreshesImmediately(t *testing.T) {
	src := &stubSource{records: records("Dengue", "2")}
	cache := NewCache(NewService(src, testAggregator(TieBreakKey)), time.Hour, time.Second)

	require.NoError(t, cache.Start())
	defer cache.Stop()

	snap, _, ok := cache.Snapshot()
	require.True(t, ok)
	assert.Equal(t, []OutbreakRecord{{"Dengue", 2}}, snap)
}

func TestCache_StartRejectsNonPositiveInterval(t *testing.T) {
	cache := NewCache(NewService(&stubSource{}, DefaultAggregator()), 0, time.Second)
	assert.Error(t, cache.Start())
}
