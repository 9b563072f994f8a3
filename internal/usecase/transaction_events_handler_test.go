package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	"FinScore/internal/service/ratelimit"
)

func TestTransactionEventsRouteToTargets(t *testing.T) {
	q := &recPublisherQueue{}
	h := NewTransactionEventsHandler("finscore.transactions", NewQueueRetrainScheduler(q), newCountingMetrics(), nil)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, []byte(`{"user_id":"u1","kind":"expense"}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"user_id":"u1","kind":"income","at":1715000000000}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"user_id":"u9","kind":"feedback"}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"user_id":"u1","kind":"reminder"}`)))

	require.Len(t, q.msgs, 3)
	assert.Equal(t, userTarget, q.msgs[0].payload)
	assert.Equal(t, models.RetrainTarget{Kind: models.BundleDecisionClassifier}, q.msgs[2].payload)
	assert.Equal(t, "finscore.transactions", h.Topic())
}

func TestTransactionEventsRejectsBadMessages(t *testing.T) {
	m := newCountingMetrics()
	h := NewTransactionEventsHandler("tx", NewQueueRetrainScheduler(&recPublisherQueue{}), m, nil)
	assert.Error(t, h.Handle(context.Background(), []byte(`{`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"kind":"expense"}`)))
	assert.Equal(t, 1, m.errors["consumer_unmarshal"])
	assert.Equal(t, 1, m.errors["consumer_invalid"])
}

func TestTransactionEventsThrottledIsNotAnError(t *testing.T) {
	q := &recPublisherQueue{}
	m := newCountingMetrics()
	now := time.Now()
	lim := ratelimit.New(1, 0.01, ratelimit.WithClock(func() time.Time { return now }))
	h := NewTransactionEventsHandler("tx", NewRateLimitedScheduler(NewQueueRetrainScheduler(q), lim, m), m, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Handle(context.Background(), []byte(`{"user_id":"u1","kind":"expense"}`)))
	}
	assert.Len(t, q.msgs, 1)
	assert.Equal(t, 4, m.errors["retrain_rate_limited"])
}
