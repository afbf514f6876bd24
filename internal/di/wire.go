//go:build wireinject
// +build wireinject

package di

import (
	"MandiWatch/pkg/config"
	"MandiWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,
		ProvideCache,

		// Repositories
		ProvideEvidenceStore,
		ProvideAlertSink,
		ProvidePriceFeedStream,

		// Detection core
		ProvideValidator,
		ProvideAggregator,
		ProvideBaselineStore,
		ProvideDetector,
		ProvideTracker,
		ProvideScorer,
		ProvideBuilder,
		ProvideRegistry,

		// Alert delivery
		ProvideAlertJob,
		ProvideAlertQueue,
		ProvideDispatcher,

		// Use cases
		ProvidePipeline,
		ProvideQueryService,
		ProvideReportCollector,
		ProvideReportsHandler,
		ProvideInventoryHandler,
		ProvideKafkaConsumer,

		// HTTP API
		ProvideRateLimiter,
		ProvideIngestHandler,
		ProvideQueryHandler,
		ProvideAdminHandler,
		ProvideRouter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
