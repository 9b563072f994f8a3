package repository

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	"FinScore/internal/service/cache"
	applogger "FinScore/pkg/logger"
)

// CachedHistorySource memoizes financial snapshots for a short TTL.
// UserActivity always goes to the underlying source.
type CachedHistorySource struct {
	next  domrepo.HistorySource
	cache cache.BytesCache
	ttl   time.Duration
	l     *applogger.Logger
}

var _ domrepo.HistorySource = (*CachedHistorySource)(nil)

func NewCachedHistorySource(next domrepo.HistorySource, c cache.BytesCache, ttl time.Duration, l *applogger.Logger) *CachedHistorySource {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CachedHistorySource{next: next, cache: c, ttl: ttl, l: l}
}

func snapshotKey(userID string, now time.Time) string {
	// month in the key so a cached value never crosses a month boundary
	return "snapshot:" + userID + ":" + now.UTC().Format("2006-01")
}

func (s *CachedHistorySource) FinancialSnapshot(ctx context.Context, userID string, now time.Time) (*models.FinancialSnapshot, error) {
	key := snapshotKey(userID, now)
	if b, ok, err := s.cache.GetBytes(ctx, key); err != nil {
		s.l.Warn("history cache read failed", applogger.String("key", key), applogger.Error(err))
	} else if ok {
		var snap models.FinancialSnapshot
		if err := json.Unmarshal(b, &snap); err == nil {
			return &snap, nil
		}
	}

	snap, err := s.next.FinancialSnapshot(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(snap); err == nil {
		if err := s.cache.SetBytes(ctx, key, b, s.ttl); err != nil {
			s.l.Warn("history cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return snap, nil
}

func (s *CachedHistorySource) UserActivity(ctx context.Context, userID string) (*models.UserActivity, error) {
	return s.next.UserActivity(ctx, userID)
}
