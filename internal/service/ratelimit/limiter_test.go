package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterPerKeyBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 0.5, WithClock(func() time.Time { return now }))

	assert.True(t, l.Allow("user:1"))
	assert.True(t, l.Allow("user:1"))
	assert.False(t, l.Allow("user:1"))
	assert.True(t, l.Allow("user:2"))

	now = now.Add(2 * time.Second)
	assert.True(t, l.Allow("user:1"))
	assert.False(t, l.Allow("user:1"))
}

func TestLimiterPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 1, WithClock(func() time.Time { return now }))
	l.Allow("a")
	assert.Equal(t, 0, l.Prune())
	now = now.Add(time.Second)
	assert.Equal(t, 1, l.Prune())
}
