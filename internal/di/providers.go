package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "FinScore/internal/domain/repository"
	domsvc "FinScore/internal/domain/service"
	"FinScore/internal/handler/api"
	"FinScore/internal/handler/ws"
	internalrepo "FinScore/internal/repository"
	"FinScore/internal/service/cache"
	"FinScore/internal/service/ratelimit"
	"FinScore/internal/services/augment"
	"FinScore/internal/services/estimator"
	"FinScore/internal/services/features"
	"FinScore/internal/usecase"
	"FinScore/pkg/config"
	xhttp "FinScore/pkg/http"
	pkgkafka "FinScore/pkg/kafka"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/metrics"
	"FinScore/pkg/queue"
	"FinScore/pkg/server"
	"FinScore/pkg/sqlstore"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideSQLClient opens the relational transaction store.
func ProvideSQLClient(cfg *config.Config) (*sqlstore.Client, error) {
	db := cfg.Database
	client, err := sqlstore.NewClient(
		sqlstore.WithDriver(db.Driver),
		sqlstore.WithHost(db.Host),
		sqlstore.WithPort(db.Port),
		sqlstore.WithDatabase(db.Database),
		sqlstore.WithCredentials(db.User, db.Password),
		sqlstore.WithPath(db.Path),
		sqlstore.WithMaxConnections(10, 5),
		sqlstore.WithHTTP(db.UseHTTP),
		sqlstore.WithTimeouts(db.DialTimeout, db.ReadTimeout),
		sqlstore.WithMaxExecutionTime(db.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("sql client: %w", err)
	}
	return client, nil
}

// ProvideRedisClient returns nil when no Redis address is configured.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cli, nil
}

// ProvideSQLTrainingSource reads training and serving data from the relational store.
func ProvideSQLTrainingSource(client *sqlstore.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.SQLTrainingSource {
	t := cfg.Database.Tables
	src := internalrepo.NewSQLTrainingSource(client, internalrepo.Tables{
		Expenses:        t.Expenses,
		Incomes:         t.Incomes,
		Accounts:        t.Accounts,
		Reminders:       t.Reminders,
		LabeledFeatures: t.LabeledFeatures,
	})
	src.SetLogger(l)
	return src
}

func ProvideTrainingSource(src *internalrepo.SQLTrainingSource) domrepo.TrainingSource {
	return src
}

// ProvideHistorySource caches snapshots in Redis when available, in process otherwise.
func ProvideHistorySource(src *internalrepo.SQLTrainingSource, rc *redis.Client, cfg *config.Config, l *applogger.Logger) domrepo.HistorySource {
	if cfg.Serving.HistoryCacheTTL <= 0 {
		return src
	}
	var c cache.BytesCache
	if rc != nil {
		c = cache.NewRedisCache(rc, "finscore:history")
	} else {
		c = cache.NewTTLCache()
	}
	return internalrepo.NewCachedHistorySource(src, c, cfg.Serving.HistoryCacheTTL, l)
}

// ProvideArtifactStore selects the object storage REST backend or Redis.
func ProvideArtifactStore(cfg *config.Config, rc *redis.Client, l *applogger.Logger) (domrepo.ArtifactStore, error) {
	a := cfg.Artifacts
	switch a.Backend {
	case "http":
		client := xhttp.NewClient(xhttp.WithTimeout(a.Timeout))
		return internalrepo.NewHTTPArtifactStore(a.BaseURL, a.Bucket, a.APIKey, client, internalrepo.BreakerSettings{
			MaxRequests:  a.Breaker.MaxRequests,
			Interval:     a.Breaker.Interval,
			Timeout:      a.Breaker.Timeout,
			MinRequests:  a.Breaker.MinRequests,
			FailureRatio: a.Breaker.FailureRatio,
		}, l), nil
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("redis artifact backend needs redis.addr")
		}
		return internalrepo.NewRedisArtifactStore(rc, a.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", a.Backend)
	}
}

func ProvideBundleCodec() domsvc.BundleCodec {
	return estimator.NewCodec()
}

func ProvideFeatureBuilder(l *applogger.Logger) *features.Builder {
	return features.NewBuilder(features.WithLogger(l.With(applogger.String("component", "features"))))
}

// ProvideAugmentEngine builds the synthetic augmentation engine from the reviewed priors.
func ProvideAugmentEngine(cfg *config.Config) (*augment.Engine, error) {
	t := cfg.Training
	return augment.NewEngine(augment.Config{
		IncomeWeight:   t.IncomeWeight,
		SavingsWeight:  t.SavingsWeight,
		GridPoints:     t.GridPoints,
		IncomeMin:      t.IncomeMin,
		IncomeMax:      t.IncomeMax,
		SavingsMin:     t.SavingsMin,
		SavingsMax:     t.SavingsMax,
		MultiplierStep: t.MultiplierStep,
	})
}

// TrainingConfig maps the training section onto estimator settings.
func TrainingConfig(cfg *config.Config) usecase.TrainingConfig {
	t := cfg.Training
	tc := usecase.DefaultTrainingConfig()
	tc.MinPersonalRecords = t.MinPersonalRecords
	tc.PopulationFallback = t.PopulationFallback
	tc.MinLabeledExamples = t.MinLabeledExamples
	if t.Boosting.Rounds > 0 {
		tc.Boosting.Rounds = t.Boosting.Rounds
	}
	if t.Boosting.LearningRate > 0 {
		tc.Boosting.LearningRate = t.Boosting.LearningRate
	}
	if t.Boosting.MaxDepth > 0 {
		tc.Boosting.MaxDepth = t.Boosting.MaxDepth
	}
	if t.Forest.Trees > 0 {
		tc.Forest.Trees = t.Forest.Trees
	}
	if t.Forest.MaxDepth > 0 {
		tc.Forest.MaxDepth = t.Forest.MaxDepth
	}
	if t.Forest.MinSamplesSplit > 0 {
		tc.Forest.MinSamplesSplit = t.Forest.MinSamplesSplit
	}
	if t.Forest.MinSamplesLeaf > 0 {
		tc.Forest.MinSamplesLeaf = t.Forest.MinSamplesLeaf
	}
	if t.Forest.Seed != 0 {
		tc.Forest.Seed = t.Forest.Seed
	}
	return tc
}

func ProvideTrainingPipeline(src domrepo.TrainingSource, engine *augment.Engine, store domrepo.ArtifactStore, codec domsvc.BundleCodec, cfg *config.Config, l *applogger.Logger) *usecase.TrainingPipeline {
	return usecase.NewTrainingPipeline(src, engine, store, codec, TrainingConfig(cfg),
		usecase.WithTrainingLogger(l.With(applogger.String("component", "training"))))
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideWSHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideLifecyclePublisher fans lifecycle events out to websocket subscribers and, if enabled, Kafka.
func ProvideLifecyclePublisher(cfg *config.Config, producer *pkgkafka.Producer, hub *ws.Hub) domrepo.LifecyclePublisher {
	pubs := internalrepo.MultiPublisher{hub}
	if producer != nil && cfg.Kafka.Topics.LifecycleEvents != "" {
		pubs = append(pubs, internalrepo.NewKafkaLifecyclePublisher(producer, cfg.Kafka.Topics.LifecycleEvents))
	}
	return pubs
}

func ProvideLifecycleManager(store domrepo.ArtifactStore, codec domsvc.BundleCodec, builder *features.Builder, pipeline *usecase.TrainingPipeline, pub domrepo.LifecyclePublisher, m domrepo.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.ModelLifecycleManager {
	lc := usecase.DefaultLifecycleConfig()
	if cfg.Lifecycle.RetrainTimeout > 0 {
		lc.RetrainTimeout = cfg.Lifecycle.RetrainTimeout
	}
	if cfg.Lifecycle.ReloadTimeout > 0 {
		lc.ReloadTimeout = cfg.Lifecycle.ReloadTimeout
	}
	lc.LazyLoad = cfg.Lifecycle.LazyLoad
	if cfg.Lifecycle.LazyLoadBackoff > 0 {
		lc.LazyLoadBackoff = cfg.Lifecycle.LazyLoadBackoff
	}
	return usecase.NewModelLifecycleManager(store, codec, builder, pipeline, lc,
		usecase.WithLifecycleLogger(l.With(applogger.String("component", "lifecycle"))),
		usecase.WithLifecyclePublisher(pub),
		usecase.WithLifecycleMetrics(m),
	)
}

func ProvidePredictionEngine(lm *usecase.ModelLifecycleManager, builder *features.Builder, history domrepo.HistorySource, m domrepo.Metrics, l *applogger.Logger) *usecase.PredictionEngine {
	return usecase.NewPredictionEngine(lm, builder, history,
		usecase.WithEngineLogger(l.With(applogger.String("component", "prediction"))),
		usecase.WithEngineMetrics(m),
	)
}

// ProvideRetrainLimiter returns nil when no retrain rate is configured.
func ProvideRetrainLimiter(cfg *config.Config) *ratelimit.Limiter {
	r := cfg.Lifecycle.RetrainRate
	if r.Capacity <= 0 {
		return nil
	}
	return ratelimit.New(r.Capacity, r.RefillPerSec)
}

// ProvideRetrainQueue returns nil when the Redis job queue is disabled.
// Retries are fixed at 0: a failed retrain goes to the dead-letter list.
func ProvideRetrainQueue(cfg *config.Config, rc *redis.Client, lm *usecase.ModelLifecycleManager, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	ql := l.With(applogger.String("component", "retrain_queue"))
	return queue.NewRedisQueue(ql, queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: 0,
		JobTimeout: cfg.Lifecycle.RetrainTimeout,
	}, rc,
		queue.WithKeyPrefix(cfg.Queue.KeyPrefix),
		queue.WithConsumer(usecase.NewRetrainJob(lm, ql)),
	)
}

// ProvideRetrainScheduler routes retrains through the job queue when present, in process otherwise.
func ProvideRetrainScheduler(q *queue.RedisQueue, lm *usecase.ModelLifecycleManager, limiter *ratelimit.Limiter, m domrepo.Metrics, l *applogger.Logger) domsvc.RetrainScheduler {
	var next domsvc.RetrainScheduler
	if q != nil {
		next = usecase.NewQueueRetrainScheduler(q)
	} else {
		next = usecase.NewInProcessRetrainScheduler(lm, l.With(applogger.String("component", "retrain")))
	}
	if limiter == nil {
		return next
	}
	return usecase.NewRateLimitedScheduler(next, limiter, m)
}

// ProvideKafkaConsumer returns nil when Kafka or the transactions topic is not configured.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.Topics.Transactions == "" {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		// scheduling never retries; bad messages go straight to the DLQ
		pkgkafka.WithConsumerRetry(0, 0, 0),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideTransactionEventsHandler(cfg *config.Config, s domsvc.RetrainScheduler, m domrepo.Metrics, l *applogger.Logger) *usecase.TransactionEventsHandler {
	return usecase.NewTransactionEventsHandler(cfg.Kafka.Topics.Transactions, s, m,
		l.With(applogger.String("component", "transactions")))
}

func ProvideModelHandler(l *applogger.Logger, lm *usecase.ModelLifecycleManager, engine *usecase.PredictionEngine, limiter *ratelimit.Limiter) *api.ModelEchoHandler {
	return api.NewModelEchoHandler(l, lm, engine, limiter)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, mh *api.ModelEchoHandler, hub *ws.Hub) *xhttp.Server {
	return xhttp.NewServer([]xhttp.Handler{mh, ws.NewLifecycleStreamHandler(hub)},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowRequest),
		xhttp.WithLogger(l),
	)
}

// PreloadKeys lists the models loaded at startup.
func PreloadKeys(cfg *config.Config) []string {
	if cfg.Lifecycle.PreloadDecision {
		return []string{domrepo.DecisionModelKey}
	}
	return nil
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	lm *usecase.ModelLifecycleManager,
	sched domsvc.RetrainScheduler,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	th *usecase.TransactionEventsHandler,
	producer *pkgkafka.Producer,
	sqlClient *sqlstore.Client,
	rc *redis.Client,
	limiter *ratelimit.Limiter,
) *server.App {
	app := server.New(cfg, l, httpServer, hub, lm, PreloadKeys(cfg)...)
	app.SetScheduler(sched)
	if q != nil {
		app.SetQueue(q)
	}
	if consumer != nil {
		app.SetConsumer(consumer, th)
	}
	if limiter != nil {
		app.SetLimiter(limiter)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer.Close)
	}
	if rc != nil {
		app.AddCloser("redis", rc.Close)
	}
	app.AddCloser("sql store", sqlClient.Close)
	return app
}
