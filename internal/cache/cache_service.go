// Package cache provides Redis-based caching for diagnosis reports.
// When Redis is unavailable the service degrades gracefully: callers
// fall through to regenerating or re-reading from the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"market-doctor/config"
	"market-doctor/internal/engine"
)

// Key prefixes for the cache entries
const (
	PrefixReportBySymbol = "report:%s:%s" // symbol, timeframe
	PrefixReportByID     = "report:id:%s" // report uuid
)

// DefaultReportTTL bounds how long a cached diagnosis stays fresh
const DefaultReportTTL = 5 * time.Minute

// CacheService provides Redis-based report caching with graceful
// degradation behind a simple failure-count circuit breaker.
type CacheService struct {
	client       *redis.Client
	config       config.RedisConfig
	log          zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	// Circuit breaker settings
	maxFailures   int
	checkInterval time.Duration
	reportTTL     time.Duration
}

// NewCacheService creates a new CacheService with the provided
// configuration and verifies connectivity. A failed initial ping
// returns the service in degraded mode, not an error.
func NewCacheService(cfg config.RedisConfig, log zerolog.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:        client,
		config:        cfg,
		log:           log.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
		reportTTL:     DefaultReportTTL,
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		cs.log.Warn().Err(err).Msg("Initial Redis connection failed, starting degraded")
		return cs, nil
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	cs.log.Info().Str("address", cfg.Address).Msg("Redis connected")

	return cs, nil
}

// IsHealthy returns whether Redis is currently available
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

// recordFailure tracks a Redis operation failure for the circuit breaker
func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.log.Warn().Int("failures", cs.failureCount).Msg("Circuit breaker OPEN: Redis marked unhealthy")
		}
		cs.healthy = false
	}
}

// recordSuccess resets the failure counter on a successful operation
func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.log.Info().Msg("Circuit breaker CLOSED: Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth performs a background re-ping once the backoff elapses
func (cs *CacheService) checkHealth() {
	cs.mu.RLock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	cs.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := cs.client.Ping(pingCtx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// SetReport stores a report under both its symbol/timeframe key and its
// ID key so lookups by either path hit the same entry.
func (cs *CacheService) SetReport(ctx context.Context, report *engine.Report) error {
	if !cs.IsHealthy() {
		cs.checkHealth()
		return fmt.Errorf("cache unavailable")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	pipe := cs.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(PrefixReportBySymbol, report.Symbol, report.Timeframe), data, cs.reportTTL)
	pipe.Set(ctx, fmt.Sprintf(PrefixReportByID, report.ID), data, cs.reportTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		cs.recordFailure()
		return fmt.Errorf("cache report: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// GetReport fetches the freshest cached report for a symbol/timeframe.
// A miss returns (nil, nil).
func (cs *CacheService) GetReport(ctx context.Context, symbol, timeframe string) (*engine.Report, error) {
	return cs.get(ctx, fmt.Sprintf(PrefixReportBySymbol, symbol, timeframe))
}

// GetReportByID fetches a cached report by its ID. A miss returns (nil, nil).
func (cs *CacheService) GetReportByID(ctx context.Context, id string) (*engine.Report, error) {
	return cs.get(ctx, fmt.Sprintf(PrefixReportByID, id))
}

func (cs *CacheService) get(ctx context.Context, key string) (*engine.Report, error) {
	if !cs.IsHealthy() {
		cs.checkHealth()
		return nil, fmt.Errorf("cache unavailable")
	}

	data, err := cs.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		cs.recordSuccess()
		return nil, nil
	}
	if err != nil {
		cs.recordFailure()
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	var report engine.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal cached report: %w", err)
	}

	cs.recordSuccess()
	return &report, nil
}

// InvalidateReport drops the cached entry for a symbol/timeframe
func (cs *CacheService) InvalidateReport(ctx context.Context, symbol, timeframe string) error {
	if !cs.IsHealthy() {
		return fmt.Errorf("cache unavailable")
	}
	if err := cs.client.Del(ctx, fmt.Sprintf(PrefixReportBySymbol, symbol, timeframe)).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("invalidate report: %w", err)
	}
	cs.recordSuccess()
	return nil
}

// Close releases the Redis client
func (cs *CacheService) Close() error {
	return cs.client.Close()
}
