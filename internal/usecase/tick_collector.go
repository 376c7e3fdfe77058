package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	drepo "FinFusion/internal/domain/repository"
	mid "FinFusion/internal/middleware"
	"FinFusion/pkg/logger"
)

const maxReconnectDelay = time.Minute

// TickCollector feeds a live market stream through the tick pipeline into ingest.
type TickCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.TickPipeline
	metrics drepo.Metrics
	log     *logger.Logger

	reconnectDelay time.Duration
	sleep          func(ctx context.Context, d time.Duration) bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewTickCollector(stream drepo.MarketStream, pipe *mid.TickPipeline, metrics drepo.Metrics, log *logger.Logger, reconnectDelay time.Duration) *TickCollector {
	if log == nil {
		log = logger.NewNop()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &TickCollector{
		stream:         stream,
		pipe:           pipe,
		metrics:        metrics,
		log:            log.With(logger.String("component", "tick_collector")),
		reconnectDelay: reconnectDelay,
		sleep:          sleepCtx,
	}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}

	ctx, c.cancel = context.WithCancel(ctx)
	ticks, errs := c.stream.Read(ctx)
	c.wg.Add(1)
	go c.consume(ctx, ticks, errs)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, ticks <-chan *models.MarketTick, errs <-chan error) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			c.log.Error("market stream error", logger.Error(err))
			if !c.reconnect(ctx) {
				return
			}
		case t, ok := <-ticks:
			if !ok {
				return
			}
			if t == nil {
				continue
			}
			if err := c.pipe.Process(ctx, *t); err != nil && !errors.Is(err, mid.ErrThrottled) {
				c.log.Debug("tick dropped",
					logger.String("symbol", t.Symbol),
					logger.Error(err),
				)
			}
		}
	}
}

// reconnect retries with doubling delay until it succeeds or ctx ends.
func (c *TickCollector) reconnect(ctx context.Context) bool {
	delay := c.reconnectDelay
	for attempt := 1; ; attempt++ {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			c.log.Info("market stream reconnected", logger.Int("attempt", attempt))
			return true
		}
		c.metrics.RecordError("stream")
		c.log.Error("market stream reconnect failed",
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", delay),
			logger.Error(err),
		)
		if !c.sleep(ctx, delay) {
			return false
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// Shutdown stops consumption and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return c.stream.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
