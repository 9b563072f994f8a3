package estimator

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"FinScore/internal/domain/models"
	"FinScore/internal/domain/service"
)

// FormatVersion is bumped on any incompatible change to the bundle layout.
const FormatVersion = 1

type bundleEnvelope struct {
	FormatVersion  int                      `json:"format_version"`
	Version        string                   `json:"version"`
	Kind           models.BundleKind        `json:"kind"`
	UserID         string                   `json:"user_id,omitempty"`
	Estimator      estimatorEnvelope        `json:"estimator"`
	Categories     []string                 `json:"categories"`
	FeatureColumns []models.FeatureColumn   `json:"feature_columns"`
	LabelSemantics map[int]models.LabelInfo `json:"label_semantics,omitempty"`
	TrainedAt      time.Time                `json:"trained_at"`
	Metadata       *models.TrainingMetadata `json:"metadata,omitempty"`
}

type estimatorEnvelope struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// Codec is the JSON bundle codec. Every decode failure is a *models.SerializationError.
type Codec struct{}

var _ service.BundleCodec = (*Codec)(nil)

func NewCodec() *Codec { return &Codec{} }

// Encode serializes a valid bundle.
func (c *Codec) Encode(b *models.ModelBundle) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	switch b.Estimator.(type) {
	case *GradientBoostedRegressor, *RandomForestClassifier:
	default:
		return nil, fmt.Errorf("encode bundle: unsupported estimator %T", b.Estimator)
	}
	params, err := json.Marshal(b.Estimator)
	if err != nil {
		return nil, fmt.Errorf("encode estimator: %w", err)
	}
	env := bundleEnvelope{
		FormatVersion:  FormatVersion,
		Version:        b.Version,
		Kind:           b.Kind,
		UserID:         b.UserID,
		Estimator:      estimatorEnvelope{Type: b.Estimator.Kind(), Params: params},
		Categories:     b.Encoder.Labels(),
		FeatureColumns: b.FeatureColumns,
		LabelSemantics: b.LabelSemantics,
		TrainedAt:      b.TrainedAt.UTC(),
		Metadata:       b.Metadata,
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return out, nil
}

// Decode parses and structurally validates a bundle.
func (c *Codec) Decode(data []byte) (*models.ModelBundle, error) {
	var env bundleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, corrupt(fmt.Errorf("parse: %w", err))
	}
	if env.FormatVersion != FormatVersion {
		return nil, corrupt(fmt.Errorf("unsupported format_version %d", env.FormatVersion))
	}
	if env.Kind != models.BundleExpenseRegressor && env.Kind != models.BundleDecisionClassifier {
		return nil, corrupt(fmt.Errorf("unknown bundle kind %q", env.Kind))
	}

	est, err := decodeEstimator(env.Estimator, len(env.FeatureColumns))
	if err != nil {
		return nil, corrupt(err)
	}

	enc := models.NewCategoryEncoding(env.Categories)
	if enc.Len() != len(env.Categories) {
		return nil, corrupt(fmt.Errorf("category vocabulary has duplicates or empty labels"))
	}
	for i, l := range env.Categories {
		if code, _ := enc.Code(l); code != i {
			return nil, corrupt(fmt.Errorf("category vocabulary is not sorted"))
		}
	}

	b := &models.ModelBundle{
		Version:        env.Version,
		Kind:           env.Kind,
		UserID:         env.UserID,
		Estimator:      est,
		Encoder:        enc,
		FeatureColumns: env.FeatureColumns,
		LabelSemantics: env.LabelSemantics,
		TrainedAt:      env.TrainedAt,
		Metadata:       env.Metadata,
	}
	if err := b.Validate(); err != nil {
		return nil, corrupt(err)
	}
	return b, nil
}

func decodeEstimator(env estimatorEnvelope, nColumns int) (models.Estimator, error) {
	if len(env.Params) == 0 {
		return nil, fmt.Errorf("estimator params missing")
	}
	switch env.Type {
	case KindGradientBoosting:
		var m GradientBoostedRegressor
		if err := json.Unmarshal(env.Params, &m); err != nil {
			return nil, fmt.Errorf("estimator: %w", err)
		}
		if err := m.check(); err != nil {
			return nil, err
		}
		if m.NFeatures != nColumns {
			return nil, fmt.Errorf("estimator expects %d features, bundle declares %d", m.NFeatures, nColumns)
		}
		return &m, nil
	case KindRandomForest:
		var m RandomForestClassifier
		if err := json.Unmarshal(env.Params, &m); err != nil {
			return nil, fmt.Errorf("estimator: %w", err)
		}
		if err := m.check(); err != nil {
			return nil, err
		}
		if m.NFeatures != nColumns {
			return nil, fmt.Errorf("estimator expects %d features, bundle declares %d", m.NFeatures, nColumns)
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("unknown estimator type %q", env.Type)
	}
}

func corrupt(err error) error {
	return &models.SerializationError{Err: err}
}
