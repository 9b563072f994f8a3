package di

import (
	"errors"

	"github.com/redis/go-redis/v9"

	domrepo "FinScore/internal/domain/repository"
	domsvc "FinScore/internal/domain/service"
	"FinScore/internal/usecase"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/sqlstore"
)

// Tooling is the offline subset of the graph: training and artifact access without serving.
type Tooling struct {
	Pipeline *usecase.TrainingPipeline
	Store    domrepo.ArtifactStore
	Codec    domsvc.BundleCodec
	Log      *applogger.Logger

	sql   *sqlstore.Client
	redis *redis.Client
}

// Close releases the store clients.
func (t *Tooling) Close() error {
	var errs []error
	if t.sql != nil {
		errs = append(errs, t.sql.Close())
	}
	if t.redis != nil {
		errs = append(errs, t.redis.Close())
	}
	return errors.Join(errs...)
}

func ProvideTooling(p *usecase.TrainingPipeline, store domrepo.ArtifactStore, codec domsvc.BundleCodec, l *applogger.Logger, sqlClient *sqlstore.Client, rc *redis.Client) *Tooling {
	return &Tooling{Pipeline: p, Store: store, Codec: codec, Log: l, sql: sqlClient, redis: rc}
}
