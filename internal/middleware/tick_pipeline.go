package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/pkg/logger"
	"FinFusion/pkg/util"
)

// Ingester is the downstream the pipeline feeds.
type Ingester interface {
	Ingest(ctx context.Context, tick models.MarketTick) error
}

var ErrThrottled = errors.New("tick throttled")

// TickPipeline sits between a live stream and the market data ingest path.
// It validates ticks, applies an optional transform and throttles each
// symbol with its own token bucket.
type TickPipeline struct {
	next    Ingester
	metrics domrepo.Metrics
	log     *logger.Logger

	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	transform func(models.MarketTick) models.MarketTick
	now       func() time.Time
}

type PipelineOption func(*TickPipeline)

// WithRate sets the sustained ticks per second and burst allowed per symbol.
// A non-positive rps disables throttling.
func WithRate(rps float64, burst int) PipelineOption {
	return func(p *TickPipeline) {
		if rps <= 0 {
			p.rps = rate.Inf
		} else {
			p.rps = rate.Limit(rps)
		}
		if burst > 0 {
			p.burst = burst
		}
	}
}

// WithTransform sets a hook that rewrites a tick before validation.
func WithTransform(fn func(models.MarketTick) models.MarketTick) PipelineOption {
	return func(p *TickPipeline) { p.transform = fn }
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *TickPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewTickPipeline(next Ingester, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		next:     next,
		metrics:  metrics,
		log:      logger.NewNop(),
		rps:      20,
		burst:    20,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process forwards tick downstream. Throttled ticks are dropped and
// reported with ErrThrottled.
func (p *TickPipeline) Process(ctx context.Context, tick models.MarketTick) error {
	if p.transform != nil {
		tick = p.transform(tick)
	}
	if err := validateTick(tick); err != nil {
		p.metrics.RecordError("ingest_invalid")
		return err
	}
	if !p.limiter(tick.Symbol).AllowN(p.now(), 1) {
		p.metrics.RecordError("throttled")
		return ErrThrottled
	}

	if err := p.next.Ingest(ctx, tick); err != nil {
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func (p *TickPipeline) limiter(symbol string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[symbol]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.limiters[symbol] = l
	}
	return l
}

func validateTick(t models.MarketTick) error {
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Price <= 0 {
		return fmt.Errorf("price %v not positive", t.Price)
	}
	if t.Quantity < 0 {
		return fmt.Errorf("negative quantity")
	}
	if _, ok := util.ParseTime(t.Timestamp); !ok {
		return fmt.Errorf("timestamp %q invalid", t.Timestamp)
	}
	return nil
}
