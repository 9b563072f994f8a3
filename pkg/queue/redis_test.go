package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/pkg/logger"
)

type target struct {
	Kind   string `json:"kind"`
	UserID string `json:"user_id"`
}

type recordingJob struct {
	mu   sync.Mutex
	got  []target
	fail error
}

func (j *recordingJob) Name() string { return "record" }
func (j *recordingJob) Type() string { return "model.retrain" }

func (j *recordingJob) Handle(_ context.Context, payload interface{}) error {
	t, err := ParsePayload[target](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.got = append(j.got, *t)
	j.mu.Unlock()
	return j.fail
}

func (j *recordingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.got)
}

func newTestQueue(t *testing.T, job Job) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	q := NewRedisQueue(logger.NewNop(), QueueConfig{Workers: 1}, cli, WithKeyPrefix("test:queue"), WithConsumer(job))
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q, mr
}

func TestPublishAndConsume(t *testing.T) {
	job := &recordingJob{}
	q, _ := newTestQueue(t, job)

	require.NoError(t, q.PublishMessage(context.Background(), "model.retrain", target{Kind: "expense_regressor", UserID: "u1"}))

	require.Eventually(t, func() bool { return job.count() == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "u1", job.got[0].UserID)
}

func TestFailedJobGoesToDeadLetterWithoutRetry(t *testing.T) {
	job := &recordingJob{fail: errors.New("fit failed")}
	q, _ := newTestQueue(t, job)

	require.NoError(t, q.PublishMessage(context.Background(), "model.retrain", target{Kind: "decision_classifier"}))

	require.Eventually(t, func() bool {
		n, err := q.DeadLetters(context.Background())
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, job.count())
}

func TestPublishRejectsUnknownType(t *testing.T) {
	q, _ := newTestQueue(t, &recordingJob{})
	err := q.PublishMessage(context.Background(), "other", target{})
	require.Error(t, err)
}

func TestPublishRequiresRunningQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cli.Close()
	q := NewRedisQueue(logger.NewNop(), QueueConfig{}, cli)
	require.Error(t, q.PublishMessage(context.Background(), "model.retrain", target{}))
}

func TestParsePayloadForms(t *testing.T) {
	got, err := ParsePayload[target]([]byte(`{"kind":"k","user_id":"u"}`))
	require.NoError(t, err)
	assert.Equal(t, "u", got.UserID)

	got, err = ParsePayload[target](map[string]interface{}{"kind": "k2"})
	require.NoError(t, err)
	assert.Equal(t, "k2", got.Kind)

	got, err = ParsePayload[target](target{UserID: "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", got.UserID)

	_, err = ParsePayload[target](42)
	require.Error(t, err)
}
