package models

import "time"

// LifecycleState is the state of one model slot.
type LifecycleState string

const (
	StateEmpty     LifecycleState = "EMPTY"
	StateReady     LifecycleState = "READY"
	StateReloading LifecycleState = "RELOADING"
)

// ModelStatus describes a slot for status endpoints.
type ModelStatus struct {
	ModelKey       string            `json:"model_key"`
	State          LifecycleState    `json:"state"`
	Version        string            `json:"version,omitempty"`
	Kind           BundleKind        `json:"kind,omitempty"`
	TrainedAt      *time.Time        `json:"trained_at,omitempty"`
	FeatureColumns []string          `json:"feature_columns,omitempty"`
	Categories     []string          `json:"categories,omitempty"`
	Metadata       *TrainingMetadata `json:"metadata,omitempty"`
}

// Lifecycle event types.
const (
	EventModelInstalled  = "model.installed"
	EventRetrainFailed   = "model.retrain_failed"
	EventReloadFailed    = "model.reload_failed"
	EventRetrainAccepted = "model.retrain_scheduled"
)

// LifecycleEvent is published on every install and every failed retrain or reload.
type LifecycleEvent struct {
	Type      string    `json:"type"`
	ModelKey  string    `json:"model_key"`
	Version   string    `json:"version,omitempty"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// RetrainTarget identifies which model a retrain job rebuilds.
type RetrainTarget struct {
	Kind   BundleKind `json:"kind"`
	UserID string     `json:"user_id,omitempty"`
}
