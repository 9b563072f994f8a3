package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	"FinScore/internal/service/cache"
)

type countingHistory struct {
	calls int
	err   error
}

func (c *countingHistory) FinancialSnapshot(_ context.Context, userID string, _ time.Time) (*models.FinancialSnapshot, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &models.FinancialSnapshot{UserID: userID, MonthlyIncome: 1000, CategoryCounts: map[string]int{"Ocio": 2}, TotalRecords: 2}, nil
}

func (c *countingHistory) UserActivity(_ context.Context, userID string) (*models.UserActivity, error) {
	return &models.UserActivity{UserID: userID}, nil
}

func TestCachedHistorySourceMemoizesSnapshots(t *testing.T) {
	next := &countingHistory{}
	s := NewCachedHistorySource(next, cache.NewTTLCache(), time.Minute, nil)
	ctx := context.Background()
	now := time.Date(2024, 5, 18, 0, 0, 0, 0, time.UTC)

	first, err := s.FinancialSnapshot(ctx, "u1", now)
	require.NoError(t, err)
	second, err := s.FinancialSnapshot(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)

	_, err = s.FinancialSnapshot(ctx, "u1", now.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedHistorySourceDoesNotCacheErrors(t *testing.T) {
	next := &countingHistory{err: errors.New("down")}
	s := NewCachedHistorySource(next, cache.NewTTLCache(), time.Minute, nil)
	_, err := s.FinancialSnapshot(context.Background(), "u1", time.Now())
	require.Error(t, err)
	_, err = s.FinancialSnapshot(context.Background(), "u1", time.Now())
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}
