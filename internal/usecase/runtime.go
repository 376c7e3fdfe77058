package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	"FinFusion/pkg/logger"
)

const defaultOutboxReplay = 100

// RuntimeConfig holds the loop cadences and bounds.
type RuntimeConfig struct {
	DecisionCycle      time.Duration
	ReflectionInterval time.Duration
	HealthInterval     time.Duration
	Freshness          time.Duration
	ReflectionBatch    int
	IOTimeout          time.Duration
	OutboxReplay       int
}

func (c *RuntimeConfig) setDefaults() {
	if c.DecisionCycle <= 0 {
		c.DecisionCycle = 100 * time.Millisecond
	}
	if c.ReflectionInterval <= 0 {
		c.ReflectionInterval = 5 * time.Minute
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 30 * time.Second
	}
	if c.Freshness <= 0 {
		c.Freshness = 60 * time.Second
	}
	if c.ReflectionBatch <= 0 {
		c.ReflectionBatch = 10
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = 2 * time.Second
	}
	if c.OutboxReplay <= 0 {
		c.OutboxReplay = defaultOutboxReplay
	}
}

// DependencyStatus is the result of one health check.
type DependencyStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HealthStatus is the outcome of the most recent health loop run.
type HealthStatus struct {
	Ready        bool               `json:"ready"`
	CheckedAt    time.Time          `json:"checked_at"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

type RuntimeOption func(*Runtime)

// WithOutbox parks failed publishes for replay by the health loop.
func WithOutbox(o domrepo.Outbox) RuntimeOption {
	return func(r *Runtime) { r.outbox = o }
}

func WithDecisionStore(s domrepo.DecisionStore) RuntimeOption {
	return func(r *Runtime) { r.store = s }
}

func WithSignalCache(c domrepo.SignalCache) RuntimeOption {
	return func(r *Runtime) { r.cache = c }
}

func WithHealthCheckers(checks ...domrepo.HealthChecker) RuntimeOption {
	return func(r *Runtime) { r.checks = append(r.checks, checks...) }
}

func WithRuntimeClock(now func() time.Time) RuntimeOption {
	return func(r *Runtime) { r.now = now }
}

// Runtime owns the signal table and runs the decision, reflection and
// health loops. Ingest runs in the Kafka consumer and only touches the table.
type Runtime struct {
	cfg       RuntimeConfig
	table     *SignalTable
	pipeline  *DecisionPipeline
	publisher domrepo.DecisionPublisher
	reflector service.Reflector
	history   *DecisionHistory
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	outbox domrepo.Outbox
	store  domrepo.DecisionStore
	cache  domrepo.SignalCache
	checks []domrepo.HealthChecker

	health atomic.Pointer[HealthStatus]
	latest atomic.Pointer[models.BatchReflection]

	cron     *cron.Cron
	runCtx   context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  atomic.Bool
}

func NewRuntime(
	cfg RuntimeConfig,
	table *SignalTable,
	pipeline *DecisionPipeline,
	publisher domrepo.DecisionPublisher,
	reflector service.Reflector,
	history *DecisionHistory,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...RuntimeOption,
) *Runtime {
	cfg.setDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	r := &Runtime{
		cfg:       cfg,
		table:     table,
		pipeline:  pipeline,
		publisher: publisher,
		reflector: reflector,
		history:   history,
		metrics:   metrics,
		log:       log.With(logger.String("component", "runtime")),
		now:       func() time.Time { return time.Now().UTC() },
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) Table() *SignalTable       { return r.table }
func (r *Runtime) History() *DecisionHistory { return r.history }

// DecisionCount is the number of decisions held in memory.
func (r *Runtime) DecisionCount() int { return r.history.Len() }

// Signals lists every symbol's snapshot with its readiness at call time.
func (r *Runtime) Signals() []models.SignalView {
	now := r.now()
	snaps := r.table.Snapshots()
	out := make([]models.SignalView, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, models.SignalView{MarketSignal: s, Ready: s.IsReady(now, r.cfg.Freshness)})
	}
	return out
}

func (r *Runtime) Signal(symbol string) (models.SignalView, bool) {
	s, ok := r.table.Snapshot(symbol)
	if !ok {
		return models.SignalView{}, false
	}
	return models.SignalView{MarketSignal: s, Ready: s.IsReady(r.now(), r.cfg.Freshness)}, true
}

// Start launches the loops. The loops outlive ctx cancellation until Stop
// so shutdown can let an in-flight cycle finish.
func (r *Runtime) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("runtime already started")
	}
	r.runCtx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

	r.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := r.cron.AddFunc(every(r.cfg.ReflectionInterval), r.job("reflection", func(ctx context.Context) { r.ReflectNow(ctx) })); err != nil {
		return fmt.Errorf("schedule reflection: %w", err)
	}
	if _, err := r.cron.AddFunc(every(r.cfg.HealthInterval), r.job("health", func(ctx context.Context) { r.CheckHealth(ctx) })); err != nil {
		return fmt.Errorf("schedule health: %w", err)
	}

	r.CheckHealth(r.runCtx)
	r.cron.Start()

	r.wg.Add(1)
	go r.decisionLoop()

	r.log.Info("runtime started",
		logger.Duration("decision_cycle", r.cfg.DecisionCycle),
		logger.Duration("reflection_interval", r.cfg.ReflectionInterval),
		logger.Duration("health_interval", r.cfg.HealthInterval),
	)
	return nil
}

// Stop ends the decision loop after its in-flight cycle, then waits for any
// running scheduled job.
func (r *Runtime) Stop(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}
	r.stopOnce.Do(func() { close(r.stopCh) })

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		<-r.cron.Stop().Done()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.log.Info("runtime stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		return fmt.Errorf("runtime stop: %w", ctx.Err())
	}
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

func (r *Runtime) job(name string, fn func(context.Context)) func() {
	return func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.metrics.RecordError(name)
				r.log.Error("scheduled job panicked",
					logger.String("job", name),
					logger.Any("panic", rec),
				)
			}
		}()
		fn(r.runCtx)
	}
}

func (r *Runtime) decisionLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.DecisionCycle)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunCycle(r.runCtx)
		}
	}
}

// RunCycle evaluates every ready symbol once and returns the decisions emitted.
func (r *Runtime) RunCycle(ctx context.Context) []*models.TradingDecision {
	now := r.now()
	var emitted []*models.TradingDecision
	for _, symbol := range r.table.Symbols() {
		if d := r.processSymbol(ctx, symbol, now); d != nil {
			emitted = append(emitted, d)
		}
	}
	return emitted
}

func (r *Runtime) processSymbol(ctx context.Context, symbol string, now time.Time) (d *models.TradingDecision) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.RecordError("risk_failure")
			r.log.Error("decision cycle panicked",
				logger.String("symbol", symbol),
				logger.Any("panic", rec),
			)
			d = nil
		}
	}()

	signal, ok := r.table.Snapshot(symbol)
	if !ok || !signal.IsReady(now, r.cfg.Freshness) {
		return nil
	}

	out, err := r.pipeline.Run(ctx, signal)
	if err != nil {
		r.metrics.RecordError("risk_failure")
		r.log.Error("decision cycle failed",
			logger.String("symbol", symbol),
			logger.Error(err),
		)
		return nil
	}

	d = out.Decision()
	if d == nil {
		return nil
	}
	r.emit(ctx, d)
	return d
}

// emit publishes d, falling back to the outbox, then records it locally.
func (r *Runtime) emit(ctx context.Context, d *models.TradingDecision) {
	if err := r.publish(ctx, d); err != nil {
		r.metrics.RecordError("publish")
		r.log.Error("publish decision failed",
			logger.String("decision_id", d.DecisionID),
			logger.String("symbol", d.Symbol),
			logger.Error(err),
		)
		r.park(ctx, d)
	} else {
		r.log.Info("published trading decision",
			logger.String("decision_id", d.DecisionID),
			logger.String("symbol", d.Symbol),
			logger.String("action", string(d.Action)),
		)
	}

	r.history.Append(d)
	r.metrics.SetActiveDecisions(r.history.Len())

	if r.store != nil {
		sctx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
		defer cancel()
		if err := r.store.Store(sctx, d); err != nil {
			r.metrics.RecordError("store")
			r.log.Error("store decision failed",
				logger.String("decision_id", d.DecisionID),
				logger.Error(err),
			)
		}
	}
}

func (r *Runtime) publish(ctx context.Context, d *models.TradingDecision) error {
	pctx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
	defer cancel()
	return r.publisher.Publish(pctx, d)
}

func (r *Runtime) park(ctx context.Context, d *models.TradingDecision) {
	if r.outbox == nil {
		return
	}
	octx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
	defer cancel()
	if err := r.outbox.Enqueue(octx, d); err != nil {
		r.metrics.RecordError("publish")
		r.log.Error("outbox enqueue failed, decision not delivered",
			logger.String("decision_id", d.DecisionID),
			logger.Error(err),
		)
	}
}

// ReflectNow batch-reflects over the trailing decision window. It reports
// false when no decision has been made yet.
func (r *Runtime) ReflectNow(ctx context.Context) (models.BatchReflection, bool) {
	recent := r.history.Last(r.cfg.ReflectionBatch)
	if len(recent) == 0 {
		return models.BatchReflection{}, false
	}

	batch := r.reflector.ReflectBatch(recent)
	r.metrics.RecordReflectionDepth(len(batch.PerformanceInsights))
	r.latest.Store(&batch)

	if r.cache != nil {
		cctx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
		defer cancel()
		if err := r.cache.PutInsights(cctx, batch); err != nil {
			r.metrics.RecordError("cache")
			r.log.Error("store insights failed",
				logger.String("batch_id", batch.BatchID),
				logger.Error(err),
			)
		}
	}

	r.log.Info("batch reflection complete",
		logger.String("batch_id", batch.BatchID),
		logger.Int("decisions", batch.DecisionCount),
		logger.Float64("average_confidence", batch.Patterns.AverageConfidence),
	)
	return batch, true
}

// LatestReflection returns the most recent batch reflection.
func (r *Runtime) LatestReflection() (models.BatchReflection, bool) {
	b := r.latest.Load()
	if b == nil {
		return models.BatchReflection{}, false
	}
	return *b, true
}

// CheckHealth pings every dependency, records the result and replays the
// outbox. Failures are logged and retried on the next run.
func (r *Runtime) CheckHealth(ctx context.Context) HealthStatus {
	status := HealthStatus{Ready: true, CheckedAt: r.now(), Dependencies: make([]DependencyStatus, 0, len(r.checks))}
	for _, c := range r.checks {
		dep := DependencyStatus{Name: c.Name(), Healthy: true}
		pctx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			dep.Healthy = false
			dep.Error = err.Error()
			status.Ready = false
			r.metrics.RecordError("health")
			r.log.Error("health check failed",
				logger.String("dependency", dep.Name),
				logger.Error(err),
			)
		}
		status.Dependencies = append(status.Dependencies, dep)
	}
	r.health.Store(&status)

	fields := []logger.Field{
		logger.Bool("ready", status.Ready),
		logger.Int("active_signals", r.table.Len()),
		logger.Int("decision_history", r.history.Len()),
	}
	if r.outbox != nil {
		if _, err := r.ReplayOutbox(ctx); err != nil {
			r.log.Error("outbox replay stopped", logger.Error(err))
		}
		lctx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
		if n, err := r.outbox.Len(lctx); err == nil {
			fields = append(fields, logger.Int64("outbox_pending", n))
		}
		cancel()
	}
	r.metrics.SetActiveSignals(r.table.Len())
	r.log.Info("health check", fields...)
	return status
}

// Health returns the last recorded health status. Before the first check
// the runtime is not ready.
func (r *Runtime) Health() HealthStatus {
	s := r.health.Load()
	if s == nil {
		return HealthStatus{}
	}
	return *s
}

// ReplayOutbox republishes parked decisions oldest first, stopping at the
// first failed publish.
func (r *Runtime) ReplayOutbox(ctx context.Context) (int, error) {
	if r.outbox == nil {
		return 0, nil
	}
	n, err := r.outbox.Drain(ctx, r.cfg.OutboxReplay, func(ctx context.Context, d *models.TradingDecision) error {
		return r.publish(ctx, d)
	})
	if n > 0 {
		r.log.Info("outbox replayed", logger.Int("published", n))
	}
	if err != nil {
		r.metrics.RecordError("publish")
		return n, fmt.Errorf("outbox replay: %w", err)
	}
	return n, nil
}

// RecentDecisions reads from the decision store when configured and falls
// back to the in-memory history.
func (r *Runtime) RecentDecisions(ctx context.Context, symbol string, limit int) ([]*models.TradingDecision, error) {
	if r.store != nil {
		qctx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
		defer cancel()
		ds, err := r.store.Recent(qctx, symbol, limit)
		if err == nil {
			return ds, nil
		}
		r.metrics.RecordError("store")
		r.log.Error("recent decisions from store failed, using history",
			logger.String("symbol", symbol),
			logger.Error(err),
		)
	}
	return r.history.Recent(symbol, limit), nil
}
