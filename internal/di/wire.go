//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FactorPipe/pkg/config"
	"FactorPipe/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Storage
		ProvideClickHouseClient,
		ProvidePricingRepository,
		ProvidePricingStore,
		ProvideBarWriter,

		// Publishing
		ProvideKafkaProducer,
		ProvideResultPublisher,

		// Use cases
		ProvidePipelineEngine,
		ProvideResultCache,
		ProvidePipelineRunner,
		ProvidePipelineUseCase,
		ProvideBarsIngestHandler,

		// Transports
		ProvideRateLimiter,
		ProvidePipelineHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		ProvideMaintenanceTasks,
		ProvideResources,
		ProvideApp,
	)
	return &server.App{}, nil
}
