//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketSignal/internal/handler/api"
	"MarketSignal/internal/usecase"
	"MarketSignal/pkg/config"
	"MarketSignal/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Metrics
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories and services
		ProvideClassifier,
		ProvideHeadlineSource,
		ProvidePriceTable,
		ProvideJournal,
		ProvideHistory,

		// Use cases
		ProvideDashboard,
		ProvideLiveHub,
		wire.Bind(new(usecase.Broadcaster), new(*api.LiveHub)),
		ProvideRefreshScheduler,
		ProvideKafkaConsumer,
		ProvideJournalHandler,

		// Transport
		ProvideDashboardHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
