package estimator

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"FinScore/internal/domain/models"
)

// KindRandomForest tags random-forest classifiers in serialized bundles.
const KindRandomForest = "random_forest_classifier"

// ForestParams configures FitRandomForest.
type ForestParams struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures per split; 0 selects sqrt(d).
	MaxFeatures     int
	BalancedWeights bool
	Bootstrap       bool
	Seed            int64
}

// DefaultForestParams returns the decision classifier defaults.
func DefaultForestParams() ForestParams {
	return ForestParams{
		Trees:           200,
		MaxDepth:        8,
		MinSamplesSplit: 4,
		MinSamplesLeaf:  2,
		BalancedWeights: true,
		Bootstrap:       true,
		Seed:            42,
	}
}

// RandomForestClassifier averages the class distributions of bagged trees.
type RandomForestClassifier struct {
	ClassLabels []int     `json:"classes"`
	NFeatures   int       `json:"n_features"`
	Trees       []*Tree   `json:"trees"`
	Importances []float64 `json:"feature_importances"`
}

var _ models.Classifier = (*RandomForestClassifier)(nil)

// FitRandomForest fits a classifier on X and integer labels y.
func FitRandomForest(X [][]float64, y []int, p ForestParams) (*RandomForestClassifier, error) {
	if err := checkDesign(X, len(y)); err != nil {
		return nil, err
	}
	if p.Trees <= 0 {
		return nil, fmt.Errorf("forest: tree count must be positive")
	}

	classes := uniqueSorted(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("forest: need at least 2 classes, got %d", len(classes))
	}
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}

	n, d := len(y), len(X[0])
	yi := make([]float64, n)
	counts := make([]int, len(classes))
	for i, v := range y {
		yi[i] = float64(pos[v])
		counts[pos[v]]++
	}
	w := ones(n)
	if p.BalancedWeights {
		for i := range w {
			w[i] = float64(n) / (float64(len(classes)) * float64(counts[int(yi[i])]))
		}
	}

	maxFeatures := p.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(d)))))
	}

	m := &RandomForestClassifier{
		ClassLabels: classes,
		NFeatures:   d,
		Trees:       make([]*Tree, 0, p.Trees),
	}
	imp := make([]float64, d)
	master := rand.New(rand.NewSource(p.Seed))

	for t := 0; t < p.Trees; t++ {
		rng := rand.New(rand.NewSource(master.Int63()))
		idx := make([]int, n)
		for i := range idx {
			if p.Bootstrap {
				idx[i] = rng.Intn(n)
			} else {
				idx[i] = i
			}
		}
		tb := newTreeBuilder(X, yi, w, treeParams{
			maxDepth:        p.MaxDepth,
			minSamplesSplit: p.MinSamplesSplit,
			minSamplesLeaf:  p.MinSamplesLeaf,
			maxFeatures:     maxFeatures,
			nClasses:        len(classes),
		}, rng)
		m.Trees = append(m.Trees, tb.build(idx))
		for f, v := range normalize(tb.importances) {
			imp[f] += v
		}
	}
	m.Importances = normalize(imp)
	return m, nil
}

func (m *RandomForestClassifier) Kind() string { return KindRandomForest }

// Classes returns the sorted class labels; PredictProba follows this order.
func (m *RandomForestClassifier) Classes() []int {
	return append([]int(nil), m.ClassLabels...)
}

// PredictProba averages leaf class distributions over all trees.
func (m *RandomForestClassifier) PredictProba(x []float64) []float64 {
	out := make([]float64, len(m.ClassLabels))
	for _, t := range m.Trees {
		for k, v := range t.leaf(x) {
			out[k] += v
		}
	}
	for k := range out {
		out[k] /= float64(len(m.Trees))
	}
	return out
}

// Predict returns the most probable class label. Ties go to the lower label.
func (m *RandomForestClassifier) Predict(x []float64) float64 {
	proba := m.PredictProba(x)
	best := 0
	for k := 1; k < len(proba); k++ {
		if proba[k] > proba[best] {
			best = k
		}
	}
	return float64(m.ClassLabels[best])
}

// FeatureImportances returns mean impurity-decrease importances summing to 1.
func (m *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), m.Importances...)
}

func (m *RandomForestClassifier) check() error {
	if len(m.ClassLabels) < 2 {
		return fmt.Errorf("forest: need at least 2 classes")
	}
	if !sort.IntsAreSorted(m.ClassLabels) {
		return fmt.Errorf("forest: classes are not sorted")
	}
	if m.NFeatures <= 0 {
		return fmt.Errorf("forest: n_features must be positive")
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("forest: no trees")
	}
	for i, t := range m.Trees {
		if t == nil {
			return fmt.Errorf("forest: tree %d is null", i)
		}
		if err := t.check(m.NFeatures, len(m.ClassLabels)); err != nil {
			return fmt.Errorf("forest: tree %d: %w", i, err)
		}
	}
	return nil
}

func uniqueSorted(y []int) []int {
	set := map[int]struct{}{}
	for _, v := range y {
		set[v] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
