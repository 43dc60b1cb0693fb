package trends

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"curestat/internal/logger"
	"curestat/internal/metrics"
)

// Cache keeps the last successful aggregation in memory and refreshes it on a
// schedule. A failed refresh leaves the previous snapshot in place.
type Cache struct {
	service   *Service
	interval  time.Duration
	timeout   time.Duration
	scheduler *gocron.Scheduler
	log       zerolog.Logger

	mu        sync.RWMutex
	snapshot  []OutbreakRecord
	updatedAt time.Time
}

// NewCache creates a cache refreshed every interval. Each refresh is bounded by
// timeout.
func NewCache(service *Service, interval, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Cache{
		service:   service,
		interval:  interval,
		timeout:   timeout,
		scheduler: gocron.NewScheduler(time.UTC),
		log:       logger.WithComponent("trends-cache"),
	}
}

// Refresh fetches and aggregates the dataset and replaces the snapshot on success.
func (c *Cache) Refresh(ctx context.Context) error {
	result, err := c.service.Trends(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	c.mu.Lock()
	c.snapshot = result
	c.updatedAt = now
	c.mu.Unlock()

	metrics.TrendSnapshotTimestamp.Set(float64(now.Unix()))
	return nil
}

// Snapshot returns a copy of the cached totals and when they were computed. ok is
// false until the first successful refresh.
func (c *Cache) Snapshot() (records []OutbreakRecord, updatedAt time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.updatedAt.IsZero() {
		return nil, time.Time{}, false
	}

	records = make([]OutbreakRecord, len(c.snapshot))
	copy(records, c.snapshot)
	return records, c.updatedAt, true
}

// Start performs an initial refresh and schedules the periodic ones. A failed
// initial refresh is logged; requests then fall back to live fetches until a
// scheduled refresh succeeds.
func (c *Cache) Start() error {
	if c.interval <= 0 {
		return fmt.Errorf("trend refresh interval must be positive, got %s", c.interval)
	}

	c.refreshWithTimeout()

	_, err := c.scheduler.Every(c.interval).SingletonMode().WaitForSchedule().Do(c.refreshWithTimeout)
	if err != nil {
		return fmt.Errorf("failed to schedule trend refresh: %w", err)
	}

	c.scheduler.StartAsync()
	c.log.Info().Dur("interval", c.interval).Msg("Trend refresh scheduled")
	return nil
}

// Stop cancels the scheduled refreshes.
func (c *Cache) Stop() {
	c.scheduler.Stop()
}

func (c *Cache) refreshWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.Refresh(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Trend refresh failed, keeping previous snapshot")
		return
	}
	c.log.Debug().Msg("Trend snapshot refreshed")
}
