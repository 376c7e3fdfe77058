package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/internal/usecase"
	"FinFusion/pkg/cache"
	pkgch "FinFusion/pkg/clickhouse"
	"FinFusion/pkg/config"
	xhttp "FinFusion/pkg/http"
	pkgkafka "FinFusion/pkg/kafka"
	"FinFusion/pkg/logger"
)

// App owns every long-lived component and their start/stop order.
type App struct {
	cfg  *config.Config
	root *logger.Logger
	log  *logger.Logger

	consumer  *pkgkafka.Consumer
	handlers  []pkgkafka.MessageHandler
	runtime   *usecase.Runtime
	collector *usecase.TickCollector // nil when the live stream is disabled

	httpServer *xhttp.Server
	publisher  domrepo.DecisionPublisher
	cache      cache.Service
	chClient   *pkgch.Client // nil when the audit store is disabled
}

// Components groups what DI hands to the App.
type Components struct {
	Consumer   *pkgkafka.Consumer
	Handlers   []pkgkafka.MessageHandler
	Runtime    *usecase.Runtime
	Collector  *usecase.TickCollector
	HTTPServer *xhttp.Server
	Publisher  domrepo.DecisionPublisher
	Cache      cache.Service
	ClickHouse *pkgch.Client
}

func New(cfg *config.Config, log *logger.Logger, c Components) *App {
	if log == nil {
		log = logger.NewNop()
	}
	return &App{
		cfg:        cfg,
		root:       log,
		log:        log.With(logger.String("component", "app")),
		consumer:   c.Consumer,
		handlers:   c.Handlers,
		runtime:    c.Runtime,
		collector:  c.Collector,
		httpServer: c.HTTPServer,
		publisher:  c.Publisher,
		cache:      c.Cache,
		chClient:   c.ClickHouse,
	}
}

// Run starts every component and blocks until SIGINT/SIGTERM or an HTTP
// server failure, then shuts down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-a.httpServer.Errors():
		if err != nil {
			a.log.Error("http server failed", logger.Error(err))
			runErr = err
		}
	}

	a.shutdown()
	return runErr
}

func (a *App) start(ctx context.Context) error {
	for _, h := range a.handlers {
		a.consumer.RegisterHandler(h)
	}
	if err := a.consumer.Start(); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	if err := a.runtime.Start(context.Background()); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}

	if a.collector != nil {
		// The collector keeps reconnecting on its own once started; a failed
		// first dial only disables the live feed.
		if err := a.collector.Start(context.Background()); err != nil {
			a.log.Warn("live stream unavailable", logger.Error(err))
		} else {
			a.log.Info("live stream started", logger.Strings("symbols", a.cfg.Stream.Symbols))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http: %w", err)
	}
	a.log.Info("finfusion started",
		logger.String("env", a.cfg.Environment),
		logger.String("addr", a.httpServer.Addr()),
		logger.Strings("topics", a.consumer.Topics()),
	)
	return ctx.Err()
}

// shutdown stops intake first so the final decision cycle sees no new
// signals, then releases infrastructure, then the HTTP surface.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stream: %w", err))
		}
	}
	if err := a.consumer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("consumer: %w", err))
	}
	if err := a.runtime.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", err))
	}

	// Flushes pending error lines while the producer is still open.
	a.root.RemoveCollector()

	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("producer: %w", err))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.log.Warn("shutdown completed with errors", logger.Error(err))
		return
	}
	a.log.Info("shutdown complete")
}
