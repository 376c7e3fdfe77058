//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinFusion/internal/usecase"
	"FinFusion/pkg/config"
	"FinFusion/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouse,

		// Repositories
		ProvideSignalCache,
		ProvideOutbox,
		ProvideDecisionStore,
		ProvideDecisionPublisher,

		// Agents
		ProvideFactAnalyzer,
		ProvideSubjectivityAgent,
		ProvideFuser,
		ProvideRiskEvaluator,
		ProvideReflector,

		// Use cases
		usecase.NewSignalTable,
		ProvideDecisionPipeline,
		ProvideIngestDeps,
		ProvideMarketDataHandler,
		ProvideSentimentHandler,
		ProvideOnChainHandler,
		ProvideMessageHandlers,
		ProvideKafkaConsumer,
		ProvideRuntime,
		ProvideTickCollector,

		// Transport
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
