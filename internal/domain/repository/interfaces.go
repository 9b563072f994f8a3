package repository

import (
	"context"
	"time"

	"FinScore/internal/domain/models"
)

// ArtifactStore is a key -> bytes blob namespace. Get returns models.ErrArtifactNotFound for a missing key.
type ArtifactStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// TrainingSource provides read-only access to raw transaction records and labeled features.
type TrainingSource interface {
	ExpenseRecords(ctx context.Context) ([]models.ExpenseRecord, error)
	FinancialSummaries(ctx context.Context) (map[string]models.FinancialSummary, error)
	LabeledFeatures(ctx context.Context) ([]models.LabeledFeatureRow, error)
}

// HistorySource provides per-user aggregates for serving.
type HistorySource interface {
	FinancialSnapshot(ctx context.Context, userID string, now time.Time) (*models.FinancialSnapshot, error)
	UserActivity(ctx context.Context, userID string) (*models.UserActivity, error)
}

// LifecyclePublisher fans lifecycle events out to observers.
type LifecyclePublisher interface {
	PublishLifecycleEvent(ctx context.Context, ev models.LifecycleEvent) error
}

type Metrics interface {
	RecordPrediction(kind, outcome string)
	RecordTraining(kind, result string, seconds float64)
	RecordReload(kind, result string)
	SetActiveModels(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
