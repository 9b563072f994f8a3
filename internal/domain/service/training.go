package service

import (
	"context"

	"FinScore/internal/domain/models"
)

// ModelTrainer fits a new bundle for a retrain target. It never installs the bundle.
type ModelTrainer interface {
	Train(ctx context.Context, target models.RetrainTarget) (*models.ModelBundle, error)
}

// BundleCodec serializes bundles into the self-describing artifact format.
type BundleCodec interface {
	Encode(b *models.ModelBundle) ([]byte, error)
	Decode(data []byte) (*models.ModelBundle, error)
}

// ColumnValidator checks that every declared column can be produced at serving time.
type ColumnValidator interface {
	ValidateColumns(cols []models.FeatureColumn) error
}

// RetrainScheduler accepts a retrain request for asynchronous execution.
type RetrainScheduler interface {
	ScheduleRetrain(ctx context.Context, target models.RetrainTarget) error
}
