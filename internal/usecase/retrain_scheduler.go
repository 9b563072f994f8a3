package usecase

import (
	"context"
	"errors"
	"sync"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	domsvc "FinScore/internal/domain/service"
	"FinScore/internal/service/ratelimit"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/queue"
)

// QueueRetrainScheduler hands retrains to the Redis-backed job queue.
type QueueRetrainScheduler struct {
	pub queue.Publisher
}

var _ domsvc.RetrainScheduler = (*QueueRetrainScheduler)(nil)

func NewQueueRetrainScheduler(pub queue.Publisher) *QueueRetrainScheduler {
	return &QueueRetrainScheduler{pub: pub}
}

func (s *QueueRetrainScheduler) ScheduleRetrain(ctx context.Context, target models.RetrainTarget) error {
	if err := validTarget(target); err != nil {
		return err
	}
	return s.pub.PublishMessage(ctx, RetrainJobType, target)
}

// InProcessRetrainScheduler runs each retrain on its own goroutine.
// A request for a key whose retrain is still running is coalesced into it.
type InProcessRetrainScheduler struct {
	retrainer Retrainer
	log       *applogger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

var _ domsvc.RetrainScheduler = (*InProcessRetrainScheduler)(nil)

func NewInProcessRetrainScheduler(r Retrainer, log *applogger.Logger) *InProcessRetrainScheduler {
	if log == nil {
		log = applogger.NewNop()
	}
	return &InProcessRetrainScheduler{retrainer: r, log: log, inflight: make(map[string]struct{})}
}

func (s *InProcessRetrainScheduler) ScheduleRetrain(ctx context.Context, target models.RetrainTarget) error {
	if err := validTarget(target); err != nil {
		return err
	}
	key := domrepo.ModelKeyFor(target)
	s.mu.Lock()
	if _, busy := s.inflight[key]; busy {
		s.mu.Unlock()
		s.log.Debug("retrain already running", applogger.String("model_key", key))
		return nil
	}
	s.inflight[key] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
		}()
		// the request that triggered us is already answered
		if _, err := s.retrainer.Retrain(context.WithoutCancel(ctx), target); err != nil {
			s.log.Warn("background retrain failed", applogger.String("model_key", key), applogger.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every started retrain has returned.
func (s *InProcessRetrainScheduler) Wait() { s.wg.Wait() }

// RateLimitedScheduler drops retrains for a model key that arrive faster than the limiter allows.
type RateLimitedScheduler struct {
	next    domsvc.RetrainScheduler
	limiter *ratelimit.Limiter
	metrics domrepo.Metrics
}

var _ domsvc.RetrainScheduler = (*RateLimitedScheduler)(nil)

func NewRateLimitedScheduler(next domsvc.RetrainScheduler, limiter *ratelimit.Limiter, metrics domrepo.Metrics) *RateLimitedScheduler {
	return &RateLimitedScheduler{next: next, limiter: limiter, metrics: metrics}
}

func (s *RateLimitedScheduler) ScheduleRetrain(ctx context.Context, target models.RetrainTarget) error {
	key := domrepo.ModelKeyFor(target)
	if !s.limiter.Allow(key) {
		if s.metrics != nil {
			s.metrics.RecordError("retrain_rate_limited")
		}
		return &models.RateLimitedError{ModelKey: key}
	}
	return s.next.ScheduleRetrain(ctx, target)
}

// Wait blocks until the wrapped scheduler's in-flight retrains return, if it tracks any.
func (s *RateLimitedScheduler) Wait() {
	if w, ok := s.next.(interface{ Wait() }); ok {
		w.Wait()
	}
}

// IsRateLimited reports whether err came from a RateLimitedScheduler.
func IsRateLimited(err error) bool {
	var rl *models.RateLimitedError
	return errors.As(err, &rl)
}
