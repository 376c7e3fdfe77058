package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	"FinFusion/internal/handler/api"
	mid "FinFusion/internal/middleware"
	internalrepo "FinFusion/internal/repository"
	"FinFusion/internal/service/stream"
	"FinFusion/internal/services/analysis"
	"FinFusion/internal/services/fusion"
	"FinFusion/internal/services/reflection"
	"FinFusion/internal/services/risk"
	"FinFusion/internal/services/sentiment"
	"FinFusion/internal/usecase"
	"FinFusion/pkg/cache"
	pkgch "FinFusion/pkg/clickhouse"
	"FinFusion/pkg/config"
	xhttp "FinFusion/pkg/http"
	pkgkafka "FinFusion/pkg/kafka"
	"FinFusion/pkg/logger"
	"FinFusion/pkg/metrics"
	"FinFusion/pkg/queue"
	"FinFusion/pkg/server"
)

// outboxRetryLimit is how many replays a parked decision gets before it is
// moved to the dead-letter list.
const outboxRetryLimit = 5

// ProvideKafkaProducer creates the producer shared by decision publishing
// and the error log collector.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Processing.IOTimeout, cfg.Processing.IOTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the root logger. With the collector enabled, error
// lines are aggregated and shipped to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.Service,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideRegistry is the registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(metrics.WithRegisterer(reg))
}

func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, cfg.Processing.IOTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache puts an in-process L1 in front of Redis.
func ProvideCache(rc *cache.RedisCache, cfg *config.Config) cache.Service {
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Redis.L1Size))
}

func ProvideSignalCache(c cache.Service, cfg *config.Config) *internalrepo.CacheSignalStore {
	return internalrepo.NewCacheSignalStore(c, cfg.Redis.SignalTTL, cfg.Redis.InsightTTL)
}

// ProvideOutbox parks failed decision publishes on a Redis list that lives
// next to the cache keys.
func ProvideOutbox(rc *cache.RedisCache, cfg *config.Config, log *logger.Logger) *internalrepo.DecisionOutbox {
	q := queue.NewRedisQueue(
		log.With(logger.String("component", "outbox")),
		&queue.Config{RetryLimit: outboxRetryLimit},
		rc.Client(),
		queue.WithKeyPrefix(cfg.Redis.Prefix+":"+cfg.Redis.OutboxKey),
	)
	return internalrepo.NewDecisionOutbox(q)
}

// ProvideClickHouse returns nil when the audit store is disabled.
func ProvideClickHouse(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, false),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideDecisionStore creates the audit table. A nil client yields a nil
// store and decisions are kept in memory only.
func ProvideDecisionStore(ch *pkgch.Client, cfg *config.Config, log *logger.Logger) (repository.DecisionStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHDecisionStore(ch.DB(), ch, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClickHouse.DialTimeout+cfg.ClickHouse.WriteTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaDecisionPublisher {
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.Topics.Decisions)
}

// ProvideFactAnalyzer keeps PriceHistory points per symbol.
func ProvideFactAnalyzer(cfg *config.Config, log *logger.Logger) service.FactAnalyzer {
	return analysis.NewEngine(cfg.Processing.PriceHistory, log)
}

func ProvideSubjectivityAgent(cfg *config.Config, log *logger.Logger) (service.SubjectivityAgent, error) {
	return sentiment.New(cfg, log)
}

func ProvideFuser(cfg *config.Config, log *logger.Logger) service.SignalFuser {
	return fusion.NewVoter(cfg.Trading.FactWeight, cfg.Trading.SubjectivityWeight, log)
}

func ProvideRiskEvaluator(cfg *config.Config, m repository.Metrics, log *logger.Logger) service.RiskEvaluator {
	return risk.NewEngine(risk.ParamsFromConfig(cfg), log, risk.WithGateRecorder(m))
}

func ProvideReflector(cfg *config.Config, log *logger.Logger) service.Reflector {
	return reflection.NewEngine(log, reflection.WithBatchSize(cfg.Processing.ReflectionBatch))
}

func ProvideDecisionPipeline(
	fact service.FactAnalyzer,
	subj service.SubjectivityAgent,
	fuser service.SignalFuser,
	riskEval service.RiskEvaluator,
	reflector service.Reflector,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.DecisionPipeline {
	return usecase.NewDecisionPipeline(fact, subj, fuser, riskEval, reflector, m, log)
}

func ProvideIngestDeps(table *usecase.SignalTable, m repository.Metrics, cfg *config.Config, log *logger.Logger) usecase.IngestDeps {
	return usecase.IngestDeps{
		Table:        table,
		Metrics:      m,
		Log:          log.With(logger.String("component", "ingest")),
		MaxTickAge:   cfg.Processing.MaxTickAge,
		MaxClockSkew: cfg.Processing.MaxClockSkew,
	}
}

func ProvideMarketDataHandler(cfg *config.Config, deps usecase.IngestDeps, fact service.FactAnalyzer, sc *internalrepo.CacheSignalStore) *usecase.MarketDataHandler {
	return usecase.NewMarketDataHandler(cfg.Kafka.Topics.MarketData, deps, fact, sc, cfg.Processing.IOTimeout)
}

func ProvideSentimentHandler(cfg *config.Config, deps usecase.IngestDeps, agent service.SubjectivityAgent) *usecase.SentimentHandler {
	return usecase.NewSentimentHandler(cfg.Kafka.Topics.Sentiment, deps, agent)
}

func ProvideOnChainHandler(cfg *config.Config, deps usecase.IngestDeps) *usecase.OnChainHandler {
	return usecase.NewOnChainHandler(cfg.Kafka.Topics.OnChain, deps)
}

// ProvideMessageHandlers lists one handler per input topic.
func ProvideMessageHandlers(md *usecase.MarketDataHandler, s *usecase.SentimentHandler, oc *usecase.OnChainHandler) []pkgkafka.MessageHandler {
	return []pkgkafka.MessageHandler{md, s, oc}
}

// ProvideKafkaConsumer creates the consumer for the three input topics.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, m repository.Metrics, log *logger.Logger) (*pkgkafka.Consumer, error) {
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerStartOffset(c.StartOffset),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerLogger(log),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.HookFuncs{
			Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
				m.RecordError("consume")
				log.Warn("message handling failed",
					logger.String("topic", topic),
					logger.Int64("offset", km.Offset),
					logger.String("trace_id", pkgkafka.TraceID(ctx)),
					logger.Error(err),
				)
			},
		},
	))
	return consumer, nil
}

func ProvideRuntime(
	cfg *config.Config,
	table *usecase.SignalTable,
	pipeline *usecase.DecisionPipeline,
	publisher *internalrepo.KafkaDecisionPublisher,
	reflector service.Reflector,
	m repository.Metrics,
	outbox *internalrepo.DecisionOutbox,
	store repository.DecisionStore,
	sc *internalrepo.CacheSignalStore,
	log *logger.Logger,
) *usecase.Runtime {
	p := cfg.Processing
	checks := []repository.HealthChecker{publisher, sc}
	opts := []usecase.RuntimeOption{
		usecase.WithOutbox(outbox),
		usecase.WithSignalCache(sc),
	}
	if store != nil {
		opts = append(opts, usecase.WithDecisionStore(store))
		if hc, ok := store.(repository.HealthChecker); ok {
			checks = append(checks, hc)
		}
	}
	opts = append(opts, usecase.WithHealthCheckers(checks...))

	return usecase.NewRuntime(usecase.RuntimeConfig{
		DecisionCycle:      p.DecisionCycle,
		ReflectionInterval: p.ReflectionInterval,
		HealthInterval:     p.HealthInterval,
		Freshness:          p.Freshness,
		ReflectionBatch:    p.ReflectionBatch,
		IOTimeout:          p.IOTimeout,
	}, table, pipeline, publisher, reflector, usecase.NewDecisionHistory(p.DecisionHistory), m, log, opts...)
}

// ProvideTickCollector wires the optional live WebSocket feed into the
// market data path. It returns nil when the stream is disabled.
func ProvideTickCollector(cfg *config.Config, md *usecase.MarketDataHandler, m repository.Metrics, log *logger.Logger) *usecase.TickCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	s := cfg.Stream
	pipe := mid.NewTickPipeline(md, m,
		mid.WithRate(s.RatePerSecond, s.Burst),
		mid.WithTransform(normalizeTick),
		mid.WithPipelineLogger(log),
	)
	client := stream.New(s.URL, s.Symbols, s.PingInterval, log)
	return usecase.NewTickCollector(client, pipe, m, log, s.ReconnectDelay)
}

func ProvideHTTPServer(cfg *config.Config, rt *usecase.Runtime, reg *prometheus.Registry, log *logger.Logger) *xhttp.Server {
	h := api.NewHandler(log.With(logger.String("component", "api")), rt)
	return xhttp.NewServer(log, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsRegistry(reg),
	)
}

func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	rt *usecase.Runtime,
	collector *usecase.TickCollector,
	httpServer *xhttp.Server,
	publisher *internalrepo.KafkaDecisionPublisher,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, log, server.Components{
		Consumer:   consumer,
		Handlers:   handlers,
		Runtime:    rt,
		Collector:  collector,
		HTTPServer: httpServer,
		Publisher:  publisher,
		Cache:      c,
		ClickHouse: ch,
	})
}

func normalizeTick(t models.MarketTick) models.MarketTick {
	t.Symbol = models.NormalizeSymbol(t.Symbol)
	if t.ExchangeID == "" {
		t.ExchangeID = "stream"
	}
	return t
}
