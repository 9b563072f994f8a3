package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	"FinScore/internal/services/augment"
	"FinScore/internal/services/estimator"
)

type memStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	getErr error
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.blobs[key]
	if !ok {
		return nil, models.ErrArtifactNotFound
	}
	return b, nil
}

func (s *memStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

type fakeSource struct {
	expenses  []models.ExpenseRecord
	summaries map[string]models.FinancialSummary
	labeled   []models.LabeledFeatureRow
	err       error
}

func (f *fakeSource) ExpenseRecords(context.Context) ([]models.ExpenseRecord, error) {
	return f.expenses, f.err
}

func (f *fakeSource) FinancialSummaries(context.Context) (map[string]models.FinancialSummary, error) {
	return f.summaries, f.err
}

func (f *fakeSource) LabeledFeatures(context.Context) ([]models.LabeledFeatureRow, error) {
	return f.labeled, f.err
}

type fakeHistory struct {
	snap     *models.FinancialSnapshot
	activity *models.UserActivity
	err      error
}

func (f *fakeHistory) FinancialSnapshot(context.Context, string, time.Time) (*models.FinancialSnapshot, error) {
	return f.snap, f.err
}

func (f *fakeHistory) UserActivity(context.Context, string) (*models.UserActivity, error) {
	return f.activity, f.err
}

type recPublisher struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (p *recPublisher) PublishLifecycleEvent(_ context.Context, ev models.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	preds  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}, preds: map[string]int{}}
}

func (m *countingMetrics) RecordPrediction(kind, outcome string) {
	m.mu.Lock()
	m.preds[kind+"/"+outcome]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordTraining(string, string, float64) {}
func (m *countingMetrics) RecordReload(string, string)            {}
func (m *countingMetrics) SetActiveModels(int)                    {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordLatency(string, float64) {}

func testEngine(t *testing.T) *augment.Engine {
	t.Helper()
	e, err := augment.NewEngine(augment.Config{
		IncomeWeight:   0.20,
		SavingsWeight:  0.02,
		GridPoints:     6,
		IncomeMin:      300,
		IncomeMax:      20000,
		SavingsMin:     0,
		SavingsMax:     500000,
		MultiplierStep: 0.05,
	})
	require.NoError(t, err)
	return e
}

func testTrainingConfig() TrainingConfig {
	cfg := DefaultTrainingConfig()
	cfg.Boosting.Rounds = 30
	cfg.Forest.Trees = 15
	return cfg
}

func expenseSource() *fakeSource {
	return &fakeSource{
		expenses: []models.ExpenseRecord{
			{UserID: "u1", Category: "Alimentos", Amount: 220},
			{UserID: "u1", Category: "Alimentos", Amount: 180},
			{UserID: "u1", Category: "Transporte", Amount: 60},
			{UserID: "u2", Category: "Ocio", Amount: 90},
		},
		summaries: map[string]models.FinancialSummary{
			"u1": {Income: 1000, Savings: 500},
			"u2": {Income: 2500, Savings: 10000},
		},
	}
}

// labeledRows builds a separable decision table: necessity drives the label.
func labeledRows(n int) []models.LabeledFeatureRow {
	rows := make([]models.LabeledFeatureRow, 0, n)
	cats := []string{"Alimentos", "Ocio", ""}
	for i := 0; i < n; i++ {
		label := i%3 - 1
		rows = append(rows, models.LabeledFeatureRow{
			UserID:   fmt.Sprintf("u%d", i%4),
			Category: cats[i%3],
			Label:    label,
			Values: map[string]float64{
				"category_necessity_score": float64(50 + 40*label),
				"balance_at_time":          float64(1000 + 500*label),
				"amount_to_balance_ratio":  0.1,
				"day_of_month":             float64(1 + i%28),
			},
		})
	}
	return rows
}

func newPipeline(t *testing.T, src *fakeSource, store *memStore, now time.Time) *TrainingPipeline {
	t.Helper()
	return NewTrainingPipeline(src, testEngine(t), store, estimator.NewCodec(), testTrainingConfig(),
		WithClock(func() time.Time { return now }))
}
