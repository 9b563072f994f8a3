package estimator

import (
	"fmt"

	"FinScore/internal/domain/models"
)

// KindGradientBoosting tags gradient-boosted regressors in serialized bundles.
const KindGradientBoosting = "gradient_boosted_regressor"

// BoostingParams configures FitGradientBoosting.
type BoostingParams struct {
	Rounds         int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	// NonNegative clamps predictions at zero.
	NonNegative bool
}

// DefaultBoostingParams returns the expense regressor defaults.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{Rounds: 100, LearningRate: 0.1, MaxDepth: 4, MinSamplesLeaf: 1, NonNegative: true}
}

// GradientBoostedRegressor is an additive ensemble of regression trees fit on squared error.
type GradientBoostedRegressor struct {
	Init         float64   `json:"init"`
	LearningRate float64   `json:"learning_rate"`
	NonNegative  bool      `json:"non_negative"`
	NFeatures    int       `json:"n_features"`
	Trees        []*Tree   `json:"trees"`
	Importances  []float64 `json:"feature_importances"`
}

var _ models.Estimator = (*GradientBoostedRegressor)(nil)

// FitGradientBoosting fits a regressor on X and y.
func FitGradientBoosting(X [][]float64, y []float64, p BoostingParams) (*GradientBoostedRegressor, error) {
	if err := checkDesign(X, len(y)); err != nil {
		return nil, err
	}
	if p.Rounds <= 0 || p.LearningRate <= 0 {
		return nil, fmt.Errorf("boosting: rounds and learning rate must be positive")
	}

	n := len(y)
	var init float64
	for _, v := range y {
		init += v
	}
	init /= float64(n)

	m := &GradientBoostedRegressor{
		Init:         init,
		LearningRate: p.LearningRate,
		NonNegative:  p.NonNegative,
		NFeatures:    len(X[0]),
		Trees:        make([]*Tree, 0, p.Rounds),
	}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = init
	}
	resid := make([]float64, n)
	w := ones(n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	imp := make([]float64, m.NFeatures)

	for r := 0; r < p.Rounds; r++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		tb := newTreeBuilder(X, resid, w, treeParams{
			maxDepth:        p.MaxDepth,
			minSamplesSplit: 2,
			minSamplesLeaf:  p.MinSamplesLeaf,
		}, nil)
		t := tb.build(idx)
		m.Trees = append(m.Trees, t)
		for f, v := range tb.importances {
			imp[f] += v
		}
		for i := range pred {
			pred[i] += p.LearningRate * t.leaf(X[i])[0]
		}
	}
	m.Importances = normalize(imp)
	return m, nil
}

func (m *GradientBoostedRegressor) Kind() string { return KindGradientBoosting }

// Predict returns the ensemble estimate for one row.
func (m *GradientBoostedRegressor) Predict(x []float64) float64 {
	out := m.Init
	for _, t := range m.Trees {
		out += m.LearningRate * t.leaf(x)[0]
	}
	if m.NonNegative && out < 0 {
		return 0
	}
	return out
}

// FeatureImportances returns impurity-decrease importances summing to 1.
func (m *GradientBoostedRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), m.Importances...)
}

func (m *GradientBoostedRegressor) check() error {
	if m.NFeatures <= 0 {
		return fmt.Errorf("boosting: n_features must be positive")
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("boosting: no trees")
	}
	for i, t := range m.Trees {
		if t == nil {
			return fmt.Errorf("boosting: tree %d is null", i)
		}
		if err := t.check(m.NFeatures, 1); err != nil {
			return fmt.Errorf("boosting: tree %d: %w", i, err)
		}
	}
	return nil
}

func checkDesign(X [][]float64, nTargets int) error {
	if len(X) == 0 {
		return fmt.Errorf("estimator: empty design matrix")
	}
	if len(X) != nTargets {
		return fmt.Errorf("estimator: %d rows but %d targets", len(X), nTargets)
	}
	d := len(X[0])
	if d == 0 {
		return fmt.Errorf("estimator: rows have no features")
	}
	for i, row := range X {
		if len(row) != d {
			return fmt.Errorf("estimator: row %d has %d features, want %d", i, len(row), d)
		}
	}
	return nil
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
