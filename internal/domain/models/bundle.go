package models

import (
	"fmt"
	"sort"
	"time"
)

// BundleKind distinguishes the expense regressor from the shared decision classifier.
type BundleKind string

const (
	BundleExpenseRegressor   BundleKind = "expense_regressor"
	BundleDecisionClassifier BundleKind = "decision_classifier"
)

// ColumnType describes how a feature column is produced.
type ColumnType string

const (
	ColumnCategorical ColumnType = "categorical"
	ColumnNumeric     ColumnType = "numeric"
	ColumnCount       ColumnType = "count"
	ColumnFlag        ColumnType = "flag"
)

// FeatureColumn is one typed entry of a bundle's declared input order.
type FeatureColumn struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Estimator is a fitted model. Implementations must be safe for concurrent Predict calls.
type Estimator interface {
	Kind() string
	Predict(x []float64) float64
}

// Classifier is an Estimator that also exposes class probabilities.
type Classifier interface {
	Estimator
	Classes() []int
	PredictProba(x []float64) []float64
}

// LabelInfo carries the user-facing meaning of a classifier output.
type LabelInfo struct {
	Label  string `json:"label"`
	Emoji  string `json:"emoji"`
	Advice string `json:"advice"`
}

// ModelBundle is an immutable snapshot of a fitted estimator and everything
// needed to build matching input vectors. Never mutate a bundle after it is built.
type ModelBundle struct {
	Version        string
	Kind           BundleKind
	UserID         string
	Estimator      Estimator
	Encoder        CategoryEncoding
	FeatureColumns []FeatureColumn
	LabelSemantics map[int]LabelInfo
	TrainedAt      time.Time
	Metadata       *TrainingMetadata
}

// ColumnNames returns the declared feature order as plain names.
func (b *ModelBundle) ColumnNames() []string {
	out := make([]string, len(b.FeatureColumns))
	for i, c := range b.FeatureColumns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the structural completeness required before a bundle can serve.
func (b *ModelBundle) Validate() error {
	if b == nil {
		return fmt.Errorf("bundle is nil")
	}
	if b.Estimator == nil {
		return fmt.Errorf("bundle %s: estimator is empty", b.Version)
	}
	if b.Encoder.Len() == 0 {
		return fmt.Errorf("bundle %s: category encoder is empty", b.Version)
	}
	if len(b.FeatureColumns) == 0 {
		return fmt.Errorf("bundle %s: feature column list is empty", b.Version)
	}
	seen := make(map[string]struct{}, len(b.FeatureColumns))
	for _, c := range b.FeatureColumns {
		if c.Name == "" {
			return fmt.Errorf("bundle %s: feature column with empty name", b.Version)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("bundle %s: duplicate feature column %q", b.Version, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if b.Kind == BundleDecisionClassifier {
		if _, ok := b.Estimator.(Classifier); !ok {
			return fmt.Errorf("bundle %s: decision bundle requires a classifier", b.Version)
		}
	}
	if b.TrainedAt.IsZero() {
		return fmt.Errorf("bundle %s: trained_at is missing", b.Version)
	}
	return nil
}

// CategoryEncoding maps category labels to contiguous integer codes assigned in sorted-label order.
type CategoryEncoding struct {
	labels []string
	codes  map[string]int
}

// NewCategoryEncoding fits an encoding over the observed labels. Duplicates and empty labels are ignored.
func NewCategoryEncoding(observed []string) CategoryEncoding {
	set := make(map[string]struct{}, len(observed))
	for _, l := range observed {
		if l == "" {
			continue
		}
		set[l] = struct{}{}
	}
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	codes := make(map[string]int, len(labels))
	for i, l := range labels {
		codes[l] = i
	}
	return CategoryEncoding{labels: labels, codes: codes}
}

// Code returns the code for label and whether the label is known.
func (e CategoryEncoding) Code(label string) (int, bool) {
	c, ok := e.codes[label]
	return c, ok
}

// Labels returns a copy of the sorted vocabulary.
func (e CategoryEncoding) Labels() []string {
	out := make([]string, len(e.labels))
	copy(out, e.labels)
	return out
}

// Codes returns every code in ascending order.
func (e CategoryEncoding) Codes() []int {
	out := make([]int, len(e.labels))
	for i := range e.labels {
		out[i] = i
	}
	return out
}

// Mapping returns the label -> code table.
func (e CategoryEncoding) Mapping() map[string]int {
	out := make(map[string]int, len(e.codes))
	for k, v := range e.codes {
		out[k] = v
	}
	return out
}

func (e CategoryEncoding) Len() int { return len(e.labels) }

// TrainingMetadata is the audit trail persisted with every bundle.
type TrainingMetadata struct {
	ModelType          string             `json:"model_type"`
	TrainedAt          time.Time          `json:"trained_at"`
	Scope              string             `json:"scope"`
	NReal              int                `json:"n_real"`
	NSynthetic         int                `json:"n_synthetic,omitempty"`
	PopulationFallback bool               `json:"population_fallback,omitempty"`
	IncomeWeight       float64            `json:"income_weight,omitempty"`
	SavingsWeight      float64            `json:"savings_weight,omitempty"`
	TrainRMSE          float64            `json:"train_rmse,omitempty"`
	TrainMAE           float64            `json:"train_mae,omitempty"`
	CVF1Mean           float64            `json:"cv_f1_mean,omitempty"`
	CVF1Std            float64            `json:"cv_f1_std,omitempty"`
	CVFolds            int                `json:"cv_folds,omitempty"`
	TestAccuracy       float64            `json:"test_accuracy,omitempty"`
	TestF1Weighted     float64            `json:"test_f1_weighted,omitempty"`
	NTrain             int                `json:"n_train,omitempty"`
	NTest              int                `json:"n_test,omitempty"`
	ConfusionLabels    []int              `json:"confusion_labels,omitempty"`
	ConfusionMatrix    [][]int            `json:"confusion_matrix,omitempty"`
	FeatureImportance  map[string]float64 `json:"feature_importance,omitempty"`
	LabelDistribution  map[string]int     `json:"label_distribution,omitempty"`
	Features           []string           `json:"features"`
}
