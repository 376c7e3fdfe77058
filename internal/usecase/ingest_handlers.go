package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	pkgkafka "FinFusion/pkg/kafka"
	"FinFusion/pkg/logger"
	"FinFusion/pkg/util"
)

// Data-quality errors. Handlers wrap them with kafka.Permanent so the
// consumer commits the offset instead of retrying.
var (
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidVolume    = errors.New("invalid volume")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrMissingSymbol    = errors.New("missing symbol")
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrInvalidSentiment = errors.New("invalid sentiment score")
	ErrEmptyActivity    = errors.New("empty on-chain activity")
)

const (
	defaultMaxTickAge   = time.Hour
	defaultMaxClockSkew = 60 * time.Second
)

// IngestDeps are shared by the three topic handlers. Zero MaxTickAge and
// MaxClockSkew fall back to 1h and 60s.
type IngestDeps struct {
	Table        *SignalTable
	Metrics      domrepo.Metrics
	Log          *logger.Logger
	MaxTickAge   time.Duration
	MaxClockSkew time.Duration
	Now          func() time.Time
}

func (d IngestDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// checkTimestamp rejects ticks older than MaxTickAge or stamped further
// than MaxClockSkew ahead of the local clock.
func (d IngestDeps) checkTimestamp(ts time.Time) error {
	maxAge, maxSkew := d.MaxTickAge, d.MaxClockSkew
	if maxAge <= 0 {
		maxAge = defaultMaxTickAge
	}
	if maxSkew <= 0 {
		maxSkew = defaultMaxClockSkew
	}
	age := d.now().Sub(ts)
	switch {
	case age > maxAge:
		return fmt.Errorf("%w: %s is older than %s", ErrInvalidTimestamp, ts.Format(time.RFC3339), maxAge)
	case -age > maxSkew:
		return fmt.Errorf("%w: %s is in the future", ErrInvalidTimestamp, ts.Format(time.RFC3339))
	}
	return nil
}

func (d IngestDeps) reject(topic string, err error) error {
	d.Metrics.RecordError("ingest_invalid")
	d.Log.Warn("ingest rejected",
		logger.String("topic", topic),
		logger.Error(err),
	)
	return pkgkafka.Permanent(err)
}

// MarketDataHandler merges normalized ticks into the signal table and feeds
// the technical engine's price/volume history.
type MarketDataHandler struct {
	IngestDeps
	topic     string
	fact      service.FactAnalyzer
	cache     domrepo.SignalCache
	ioTimeout time.Duration
}

var _ pkgkafka.MessageHandler = (*MarketDataHandler)(nil)

func NewMarketDataHandler(topic string, deps IngestDeps, fact service.FactAnalyzer, cache domrepo.SignalCache, ioTimeout time.Duration) *MarketDataHandler {
	if ioTimeout <= 0 {
		ioTimeout = 2 * time.Second
	}
	return &MarketDataHandler{IngestDeps: deps, topic: topic, fact: fact, cache: cache, ioTimeout: ioTimeout}
}

func (h *MarketDataHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, price, quantity, timestamp, exchange_id}
func (h *MarketDataHandler) Handle(ctx context.Context, b []byte) error {
	var tick models.MarketTick
	if err := json.Unmarshal(b, &tick); err != nil {
		return h.reject(h.topic, fmt.Errorf("decode tick: %w", err))
	}
	return h.Ingest(ctx, tick)
}

// Ingest validates one tick and applies it. It is also the entry point for
// the live stream collector.
func (h *MarketDataHandler) Ingest(ctx context.Context, tick models.MarketTick) error {
	signal, err := h.toSignal(tick)
	if err != nil {
		return h.reject(h.topic, err)
	}

	merged := h.Table.ApplyTick(signal)
	h.fact.Observe(signal.Symbol, signal.Price, signal.Volume, signal.Timestamp)
	h.Metrics.RecordLastPrice(signal.Symbol, signal.Price)
	h.Metrics.SetActiveSignals(h.Table.Len())

	if h.cache != nil {
		cctx, cancel := context.WithTimeout(ctx, h.ioTimeout)
		defer cancel()
		if err := h.cache.PutSignal(cctx, merged); err != nil {
			h.Metrics.RecordError("cache")
			h.Log.Error("cache signal failed",
				logger.String("symbol", signal.Symbol),
				logger.Error(err),
			)
		}
	}
	return nil
}

func (h *MarketDataHandler) toSignal(t models.MarketTick) (models.MarketSignal, error) {
	symbol := models.NormalizeSymbol(t.Symbol)
	if symbol == "" {
		return models.MarketSignal{}, ErrMissingSymbol
	}
	if !(t.Price > 0) || math.IsInf(t.Price, 0) {
		return models.MarketSignal{}, fmt.Errorf("%w: %v for %s", ErrInvalidPrice, t.Price, symbol)
	}
	if t.Quantity < 0 || math.IsNaN(t.Quantity) {
		return models.MarketSignal{}, fmt.Errorf("%w: %v for %s", ErrInvalidVolume, t.Quantity, symbol)
	}
	ts, ok := util.ParseTime(t.Timestamp)
	if !ok {
		return models.MarketSignal{}, fmt.Errorf("%w: %q for %s", ErrInvalidTimestamp, t.Timestamp, symbol)
	}
	if err := h.checkTimestamp(ts); err != nil {
		return models.MarketSignal{}, fmt.Errorf("%w for %s", err, symbol)
	}

	source := t.ExchangeID
	if source == "" {
		source = "unknown"
	}
	return models.MarketSignal{
		Symbol:    symbol,
		Price:     t.Price,
		Volume:    t.Quantity,
		Timestamp: ts,
		Source:    source,
	}, nil
}

// SentimentHandler sets the sentiment of symbols that already have a tick.
type SentimentHandler struct {
	IngestDeps
	topic string
	agent service.SubjectivityAgent
}

var _ pkgkafka.MessageHandler = (*SentimentHandler)(nil)

func NewSentimentHandler(topic string, deps IngestDeps, agent service.SubjectivityAgent) *SentimentHandler {
	return &SentimentHandler{IngestDeps: deps, topic: topic, agent: agent}
}

func (h *SentimentHandler) Topic() string { return h.topic }

func (h *SentimentHandler) Handle(_ context.Context, b []byte) error {
	var m struct {
		Symbol         string   `json:"symbol"`
		SentimentScore *float64 `json:"sentiment_score"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return h.reject(h.topic, fmt.Errorf("decode sentiment: %w", err))
	}
	m.Symbol = models.NormalizeSymbol(m.Symbol)
	if m.Symbol == "" {
		return h.reject(h.topic, ErrMissingSymbol)
	}
	if m.SentimentScore == nil || *m.SentimentScore < -1 || *m.SentimentScore > 1 {
		return h.reject(h.topic, fmt.Errorf("%w for %s", ErrInvalidSentiment, m.Symbol))
	}

	if _, ok := h.Table.ApplySentiment(m.Symbol, *m.SentimentScore); !ok {
		return h.reject(h.topic, fmt.Errorf("%w: sentiment for %s", ErrUnknownSymbol, m.Symbol))
	}
	h.agent.Observe(m.Symbol, *m.SentimentScore, h.now())
	return nil
}

// OnChainHandler replaces the on-chain activity of symbols that already have a tick.
type OnChainHandler struct {
	IngestDeps
	topic string
}

var _ pkgkafka.MessageHandler = (*OnChainHandler)(nil)

func NewOnChainHandler(topic string, deps IngestDeps) *OnChainHandler {
	return &OnChainHandler{IngestDeps: deps, topic: topic}
}

func (h *OnChainHandler) Topic() string { return h.topic }

func (h *OnChainHandler) Handle(_ context.Context, b []byte) error {
	var ev models.OnChainEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return h.reject(h.topic, fmt.Errorf("decode on-chain event: %w", err))
	}
	ev.Symbol = models.NormalizeSymbol(ev.Symbol)
	if ev.Symbol == "" {
		return h.reject(h.topic, ErrMissingSymbol)
	}

	activity := NumericActivity(ev.Activity)
	if len(activity) == 0 {
		return h.reject(h.topic, fmt.Errorf("%w for %s", ErrEmptyActivity, ev.Symbol))
	}
	if _, ok := h.Table.ApplyOnChain(ev.Symbol, activity); !ok {
		return h.reject(h.topic, fmt.Errorf("%w: on-chain for %s", ErrUnknownSymbol, ev.Symbol))
	}
	return nil
}

// NumericActivity keeps the finite numeric values of raw. Booleans count as 0/1.
func NumericActivity(raw map[string]interface{}) models.OnChainActivity {
	out := make(models.OnChainActivity, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case float64:
			if !math.IsNaN(x) && !math.IsInf(x, 0) {
				out[k] = x
			}
		case json.Number:
			if f, err := x.Float64(); err == nil {
				out[k] = f
			}
		case bool:
			if x {
				out[k] = 1
			} else {
				out[k] = 0
			}
		}
	}
	return out
}
