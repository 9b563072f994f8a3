package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
)

// RedisArtifactStore keeps artifacts as plain Redis strings under a key prefix.
type RedisArtifactStore struct {
	cli    *redis.Client
	prefix string
}

var _ domrepo.ArtifactStore = (*RedisArtifactStore)(nil)

func NewRedisArtifactStore(cli *redis.Client, prefix string) *RedisArtifactStore {
	if prefix == "" {
		prefix = "finscore:artifacts"
	}
	return &RedisArtifactStore{cli: cli, prefix: prefix}
}

func (s *RedisArtifactStore) key(k string) string { return s.prefix + ":" + k }

func (s *RedisArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.cli.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", key, models.ErrArtifactNotFound)
		}
		return nil, &models.StoreUnavailableError{Op: "artifact get", Key: key, Err: err}
	}
	return b, nil
}

func (s *RedisArtifactStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.cli.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return &models.StoreUnavailableError{Op: "artifact put", Key: key, Err: err}
	}
	return nil
}
