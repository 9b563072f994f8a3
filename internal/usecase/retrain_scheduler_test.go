package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	"FinScore/internal/service/ratelimit"
)

type recPublisherQueue struct {
	mu   sync.Mutex
	msgs []struct {
		typ     string
		payload interface{}
	}
}

func (q *recPublisherQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, struct {
		typ     string
		payload interface{}
	}{msgType, payload})
	return nil
}

type blockingRetrainer struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (b *blockingRetrainer) Retrain(ctx context.Context, t models.RetrainTarget) (*models.ModelBundle, error) {
	b.calls.Add(1)
	if b.release != nil {
		<-b.release
	}
	if b.err != nil {
		return nil, b.err
	}
	return &models.ModelBundle{Version: "v-" + t.UserID}, nil
}

func TestQueueRetrainSchedulerPublishes(t *testing.T) {
	q := &recPublisherQueue{}
	s := NewQueueRetrainScheduler(q)
	require.NoError(t, s.ScheduleRetrain(context.Background(), userTarget))
	require.Len(t, q.msgs, 1)
	assert.Equal(t, RetrainJobType, q.msgs[0].typ)
	assert.Equal(t, userTarget, q.msgs[0].payload)

	err := s.ScheduleRetrain(context.Background(), models.RetrainTarget{Kind: models.BundleExpenseRegressor})
	assert.Error(t, err)
}

func TestInProcessSchedulerCoalescesPerKey(t *testing.T) {
	r := &blockingRetrainer{release: make(chan struct{})}
	s := NewInProcessRetrainScheduler(r, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.ScheduleRetrain(ctx, userTarget))
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.ScheduleRetrain(ctx, userTarget))
	require.NoError(t, s.ScheduleRetrain(ctx, models.RetrainTarget{Kind: models.BundleDecisionClassifier}))
	cancel()

	close(r.release)
	s.Wait()
	assert.Equal(t, int32(2), r.calls.Load())

	require.NoError(t, s.ScheduleRetrain(context.Background(), userTarget))
	s.Wait()
	assert.Equal(t, int32(3), r.calls.Load())
}

func TestRateLimitedScheduler(t *testing.T) {
	q := &recPublisherQueue{}
	m := newCountingMetrics()
	now := time.Now()
	lim := ratelimit.New(1, 0.1, ratelimit.WithClock(func() time.Time { return now }))
	s := NewRateLimitedScheduler(NewQueueRetrainScheduler(q), lim, m)

	require.NoError(t, s.ScheduleRetrain(context.Background(), userTarget))
	err := s.ScheduleRetrain(context.Background(), userTarget)
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, 1, m.errors["retrain_rate_limited"])

	require.NoError(t, s.ScheduleRetrain(context.Background(), models.RetrainTarget{Kind: models.BundleDecisionClassifier}))
	now = now.Add(10 * time.Second)
	require.NoError(t, s.ScheduleRetrain(context.Background(), userTarget))
	assert.Len(t, q.msgs, 3)
}

func TestRetrainJobHandlesRawPayload(t *testing.T) {
	r := &blockingRetrainer{}
	job := NewRetrainJob(r, nil)
	assert.Equal(t, RetrainJobType, job.Type())

	raw, err := json.Marshal(userTarget)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), json.RawMessage(raw)))
	assert.Equal(t, int32(1), r.calls.Load())

	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"kind":"mystery"}`)))

	r.err = errors.New("fit failed")
	assert.Error(t, job.Handle(context.Background(), userTarget))
}
