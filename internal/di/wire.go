//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RangePulse/pkg/config"
	"RangePulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgresClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideBytesCache,

		// Repositories
		ProvideCandleStore,
		ProvideParamStore,
		ProvideSignalPublisher,
		ProvideCandleSink,
		ProvideATRSource,
		ProvideCandleStream,

		// Use cases
		ProvideParamsUseCase,
		ProvideScanUseCase,
		ProvideCandlesUseCase,
		ProvideOptimizeUseCase,
		ProvideOptimizeJob,
		ProvideIngestUseCase,
		ProvideKafkaCandlesHandler,

		// Queue
		ProvideQueuePublisher,
		ProvideQueueConsumer,

		// HTTP and application
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
