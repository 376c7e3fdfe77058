package repository

import (
	"context"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/pkg/cache"
)

const (
	DefaultSignalTTL  = 5 * time.Minute
	DefaultInsightTTL = 24 * time.Hour
)

// SignalKey is the cache key of a symbol's latest signal.
func SignalKey(symbol string) string { return "signal:" + symbol }

// InsightKey is the cache key of a batch reflection taken at ts.
func InsightKey(ts time.Time) string { return "insights:" + ts.UTC().Format(time.RFC3339) }

// CacheSignalStore mirrors signals and batch insights into a cache.Service.
type CacheSignalStore struct {
	cache      cache.Service
	signalTTL  time.Duration
	insightTTL time.Duration
}

var _ repository.SignalCache = (*CacheSignalStore)(nil)

func NewCacheSignalStore(c cache.Service, signalTTL, insightTTL time.Duration) *CacheSignalStore {
	if signalTTL <= 0 {
		signalTTL = DefaultSignalTTL
	}
	if insightTTL <= 0 {
		insightTTL = DefaultInsightTTL
	}
	return &CacheSignalStore{cache: c, signalTTL: signalTTL, insightTTL: insightTTL}
}

func (s *CacheSignalStore) PutSignal(ctx context.Context, sig models.MarketSignal) error {
	if err := s.cache.Set(ctx, SignalKey(sig.Symbol), sig, s.signalTTL); err != nil {
		return fmt.Errorf("cache signal %s: %w", sig.Symbol, err)
	}
	return nil
}

func (s *CacheSignalStore) PutInsights(ctx context.Context, b models.BatchReflection) error {
	if err := s.cache.Set(ctx, InsightKey(b.Timestamp), b, s.insightTTL); err != nil {
		return fmt.Errorf("cache insights %s: %w", b.BatchID, err)
	}
	return nil
}

// GetSignal reads back a cached signal.
func (s *CacheSignalStore) GetSignal(ctx context.Context, symbol string) (models.MarketSignal, error) {
	return cache.GetTyped[models.MarketSignal](ctx, s.cache, SignalKey(symbol))
}

func (s *CacheSignalStore) Name() string { return "redis" }

func (s *CacheSignalStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
