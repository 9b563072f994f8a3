package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	domsvc "FinScore/internal/domain/service"
	applogger "FinScore/pkg/logger"
)

// LifecycleConfig bounds reload and retrain work.
type LifecycleConfig struct {
	RetrainTimeout  time.Duration
	ReloadTimeout   time.Duration
	LazyLoad        bool
	LazyLoadBackoff time.Duration
}

// DefaultLifecycleConfig returns production timeouts.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		RetrainTimeout:  180 * time.Second,
		ReloadTimeout:   30 * time.Second,
		LazyLoad:        true,
		LazyLoadBackoff: time.Minute,
	}
}

// modelSlot holds the serving bundle of one model key. Reads never lock.
type modelSlot struct {
	bundle    atomic.Pointer[models.ModelBundle]
	inflight  atomic.Int32
	installMu sync.Mutex
	// unix nanos of the last lazy load that found no artifact
	missAt atomic.Int64
}

// ModelLifecycleManager owns every serving slot. Install is the only mutation path.
type ModelLifecycleManager struct {
	mu    sync.RWMutex
	slots map[string]*modelSlot

	store     domrepo.ArtifactStore
	codec     domsvc.BundleCodec
	validator domsvc.ColumnValidator
	trainer   domsvc.ModelTrainer
	publisher domrepo.LifecyclePublisher
	metrics   domrepo.Metrics
	log       *applogger.Logger
	cfg       LifecycleConfig
	now       func() time.Time
}

// LifecycleOption configures ModelLifecycleManager.
type LifecycleOption func(*ModelLifecycleManager)

func WithLifecycleLogger(l *applogger.Logger) LifecycleOption {
	return func(m *ModelLifecycleManager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithLifecyclePublisher(p domrepo.LifecyclePublisher) LifecycleOption {
	return func(m *ModelLifecycleManager) { m.publisher = p }
}

func WithLifecycleMetrics(r domrepo.Metrics) LifecycleOption {
	return func(m *ModelLifecycleManager) { m.metrics = r }
}

func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(m *ModelLifecycleManager) { m.now = now }
}

func NewModelLifecycleManager(store domrepo.ArtifactStore, codec domsvc.BundleCodec, validator domsvc.ColumnValidator, trainer domsvc.ModelTrainer, cfg LifecycleConfig, opts ...LifecycleOption) *ModelLifecycleManager {
	m := &ModelLifecycleManager{
		slots:     make(map[string]*modelSlot),
		store:     store,
		codec:     codec,
		validator: validator,
		trainer:   trainer,
		log:       applogger.NewNop(),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ModelLifecycleManager) slot(key string) *modelSlot {
	m.mu.RLock()
	s, ok := m.slots[key]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.slots[key]; !ok {
		s = &modelSlot{}
		m.slots[key] = s
	}
	return s
}

// Current returns the serving bundle for key, or nil when the slot is empty.
func (m *ModelLifecycleManager) Current(key string) *models.ModelBundle {
	m.mu.RLock()
	s, ok := m.slots[key]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.bundle.Load()
}

// State reports EMPTY, READY or RELOADING for key.
func (m *ModelLifecycleManager) State(key string) models.LifecycleState {
	m.mu.RLock()
	s, ok := m.slots[key]
	m.mu.RUnlock()
	if !ok {
		return models.StateEmpty
	}
	if s.bundle.Load() == nil {
		return models.StateEmpty
	}
	if s.inflight.Load() > 0 {
		return models.StateReloading
	}
	return models.StateReady
}

// Install validates candidate and atomically makes it the serving bundle for key.
// A rejected candidate leaves the slot untouched, as does one trained before the
// serving bundle (models.ErrStaleBundle).
func (m *ModelLifecycleManager) Install(ctx context.Context, key string, candidate *models.ModelBundle) error {
	if err := m.validate(key, candidate); err != nil {
		return atStage(StageValidate, err)
	}
	s := m.slot(key)
	s.installMu.Lock()
	if cur := s.bundle.Load(); cur != nil && candidate.TrainedAt.Before(cur.TrainedAt) {
		s.installMu.Unlock()
		return atStage(StageInstall, fmt.Errorf("%w: %s trained at %s, serving %s trained at %s",
			models.ErrStaleBundle, candidate.Version, candidate.TrainedAt.Format(time.RFC3339),
			cur.Version, cur.TrainedAt.Format(time.RFC3339)))
	}
	prev := s.bundle.Swap(candidate)
	s.missAt.Store(0)
	s.installMu.Unlock()

	m.refreshActive()
	fields := []applogger.Field{
		applogger.String("model_key", key),
		applogger.String("version", candidate.Version),
		applogger.Any("trained_at", candidate.TrainedAt),
	}
	if prev != nil {
		fields = append(fields, applogger.String("previous_version", prev.Version))
	}
	m.log.Info("model installed", fields...)
	m.publish(ctx, models.LifecycleEvent{
		Type:      models.EventModelInstalled,
		ModelKey:  key,
		Version:   candidate.Version,
		TrainedAt: candidate.TrainedAt,
	})
	return nil
}

func (m *ModelLifecycleManager) validate(key string, b *models.ModelBundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	target, err := domrepo.TargetFor(key)
	if err != nil {
		return err
	}
	if target.Kind != b.Kind {
		return fmt.Errorf("bundle %s is a %s, slot %s expects %s", b.Version, b.Kind, key, target.Kind)
	}
	if b.Kind == models.BundleExpenseRegressor && b.UserID != target.UserID {
		return fmt.Errorf("bundle %s belongs to user %q, slot is %s", b.Version, b.UserID, key)
	}
	if m.validator != nil {
		if err := m.validator.ValidateColumns(b.FeatureColumns); err != nil {
			return err
		}
	}
	return nil
}

// Reload fetches, decodes, validates and installs the persisted bundle for key.
// The prior bundle keeps serving until the swap and survives any failure.
func (m *ModelLifecycleManager) Reload(ctx context.Context, key string) (*models.ModelBundle, error) {
	return m.reload(ctx, key, false)
}

func (m *ModelLifecycleManager) reload(ctx context.Context, key string, lazy bool) (*models.ModelBundle, error) {
	s := m.slot(key)
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	start := m.now()
	b, err := m.load(ctx, key)
	kind := kindLabel(key)
	if err != nil {
		if lazy && errors.Is(err, models.ErrNotTrained) {
			m.log.Debug("no artifact to lazy load", applogger.String("model_key", key))
			return nil, err
		}
		m.recordReload(kind, "error")
		m.fail(ctx, models.EventReloadFailed, key, err, start)
		return nil, err
	}
	m.recordReload(kind, "ok")
	return b, nil
}

func (m *ModelLifecycleManager) load(ctx context.Context, key string) (*models.ModelBundle, error) {
	if m.cfg.ReloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ReloadTimeout)
		defer cancel()
	}
	artifact := domrepo.BundleArtifactKey(key)
	data, err := m.store.Get(ctx, artifact)
	if err != nil {
		if errors.Is(err, models.ErrArtifactNotFound) {
			return nil, atStage(StageLoad, fmt.Errorf("%w: %w", &models.NotTrainedError{ModelKey: key}, err))
		}
		return nil, atStage(StageLoad, err)
	}
	b, err := m.codec.Decode(data)
	if err != nil {
		var se *models.SerializationError
		if errors.As(err, &se) && se.Key == "" {
			se.Key = artifact
		}
		return nil, atStage(StageLoad, err)
	}
	if err := m.Install(ctx, key, b); err != nil {
		if errors.Is(err, models.ErrStaleBundle) {
			m.log.Info("kept newer serving bundle", applogger.String("model_key", key), applogger.Error(err))
			return m.Current(key), nil
		}
		return nil, err
	}
	return b, nil
}

// Retrain trains, persists and reloads the model for target, blocking until the swap
// or a failure. Nothing is retried.
func (m *ModelLifecycleManager) Retrain(ctx context.Context, target models.RetrainTarget) (*models.ModelBundle, error) {
	key := domrepo.ModelKeyFor(target)
	s := m.slot(key)
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if m.cfg.RetrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.RetrainTimeout)
		defer cancel()
	}

	start := m.now()
	kind := kindLabel(key)
	b, err := m.retrain(ctx, key, target)
	elapsed := m.now().Sub(start).Seconds()
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordTraining(kind, "error", elapsed)
		}
		m.fail(ctx, models.EventRetrainFailed, key, err, start)
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RecordTraining(kind, "ok", elapsed)
	}
	return b, nil
}

func (m *ModelLifecycleManager) retrain(ctx context.Context, key string, target models.RetrainTarget) (*models.ModelBundle, error) {
	if m.trainer == nil {
		return nil, atStage(StageFit, fmt.Errorf("no trainer configured"))
	}
	if _, err := m.trainer.Train(ctx, target); err != nil {
		return nil, atStage(StageFit, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, atStage(StageLoad, err)
	}
	return m.load(ctx, key)
}

// EnsureLoaded returns the serving bundle for key, lazily loading it on first use.
// A missing artifact leaves the slot EMPTY and yields *models.NotTrainedError.
func (m *ModelLifecycleManager) EnsureLoaded(ctx context.Context, key string) (*models.ModelBundle, error) {
	s := m.slot(key)
	if b := s.bundle.Load(); b != nil {
		return b, nil
	}
	if !m.cfg.LazyLoad {
		return nil, &models.NotTrainedError{ModelKey: key}
	}
	if miss := s.missAt.Load(); miss != 0 && m.now().Sub(time.Unix(0, miss)) < m.cfg.LazyLoadBackoff {
		return nil, &models.NotTrainedError{ModelKey: key}
	}

	b, err := m.reload(ctx, key, true)
	if err != nil {
		if errors.Is(err, models.ErrNotTrained) {
			s.missAt.Store(m.now().UnixNano())
			return nil, &models.NotTrainedError{ModelKey: key}
		}
		// a concurrent load may have succeeded
		if cur := s.bundle.Load(); cur != nil {
			return cur, nil
		}
		return nil, err
	}
	return b, nil
}

// Preload loads each key once, logging failures. Used at startup.
func (m *ModelLifecycleManager) Preload(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if _, err := m.reload(ctx, k, true); err != nil {
			m.log.Warn("preload skipped", applogger.String("model_key", k), applogger.Error(err))
		}
	}
}

// Status describes the slot for key.
func (m *ModelLifecycleManager) Status(key string) models.ModelStatus {
	st := models.ModelStatus{ModelKey: key, State: m.State(key)}
	b := m.Current(key)
	if b == nil {
		return st
	}
	at := b.TrainedAt
	st.Version = b.Version
	st.Kind = b.Kind
	st.TrainedAt = &at
	st.FeatureColumns = b.ColumnNames()
	st.Categories = b.Encoder.Labels()
	st.Metadata = b.Metadata
	return st
}

// ActiveModels counts slots that hold a bundle.
func (m *ModelLifecycleManager) ActiveModels() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.slots {
		if s.bundle.Load() != nil {
			n++
		}
	}
	return n
}

// Keys returns every known slot key in sorted order.
func (m *ModelLifecycleManager) Keys() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.slots))
	for k := range m.slots {
		out = append(out, k)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (m *ModelLifecycleManager) fail(ctx context.Context, typ, key string, err error, start time.Time) {
	stage := StageOf(err)
	m.log.Error("model lifecycle operation failed",
		applogger.String("event", typ),
		applogger.String("model_key", key),
		applogger.String("stage", stage),
		applogger.Duration("elapsed", m.now().Sub(start)),
		applogger.Error(err),
	)
	if m.metrics != nil {
		m.metrics.RecordError(typ)
	}
	m.publish(ctx, models.LifecycleEvent{Type: typ, ModelKey: key, Stage: stage, Error: err.Error()})
}

func (m *ModelLifecycleManager) publish(ctx context.Context, ev models.LifecycleEvent) {
	if m.publisher == nil {
		return
	}
	ev.At = m.now().UTC()
	// the operation's own deadline may already be spent
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.publisher.PublishLifecycleEvent(pctx, ev); err != nil {
		m.log.Warn("lifecycle event not published",
			applogger.String("type", ev.Type),
			applogger.String("model_key", ev.ModelKey),
			applogger.Error(err),
		)
	}
}

func (m *ModelLifecycleManager) refreshActive() {
	if m.metrics != nil {
		m.metrics.SetActiveModels(m.ActiveModels())
	}
}

func (m *ModelLifecycleManager) recordReload(kind, result string) {
	if m.metrics != nil {
		m.metrics.RecordReload(kind, result)
	}
}

func kindLabel(key string) string {
	if key == domrepo.DecisionModelKey {
		return string(models.BundleDecisionClassifier)
	}
	return string(models.BundleExpenseRegressor)
}
