//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinScore/pkg/config"
	"FinScore/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideSQLClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSQLTrainingSource,
		ProvideTrainingSource,
		ProvideHistorySource,
		ProvideArtifactStore,
		ProvideLifecyclePublisher,
		ProvideWSHub,

		// Services and use cases
		ProvideBundleCodec,
		ProvideFeatureBuilder,
		ProvideAugmentEngine,
		ProvideTrainingPipeline,
		ProvideLifecycleManager,
		ProvidePredictionEngine,
		ProvideRetrainLimiter,
		ProvideRetrainQueue,
		ProvideRetrainScheduler,
		ProvideTransactionEventsHandler,

		// Transport
		ProvideModelHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeTooling wires the training pipeline and artifact store for offline commands.
func InitializeTooling(cfg *config.Config) (*Tooling, error) {
	wire.Build(
		ProvideLogger,
		ProvideSQLClient,
		ProvideRedisClient,
		ProvideSQLTrainingSource,
		ProvideTrainingSource,
		ProvideArtifactStore,
		ProvideBundleCodec,
		ProvideAugmentEngine,
		ProvideTrainingPipeline,
		ProvideTooling,
	)
	return &Tooling{}, nil
}
