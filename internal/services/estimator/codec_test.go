package estimator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

func regressorBundle(t *testing.T) *models.ModelBundle {
	t.Helper()
	X := [][]float64{{0, 100, 0}, {1, 200, 10}, {0, 300, 20}, {1, 400, 30}}
	m, err := FitGradientBoosting(X, []float64{20, 40, 60, 80}, BoostingParams{Rounds: 5, LearningRate: 0.1, MaxDepth: 2, NonNegative: true})
	require.NoError(t, err)
	return &models.ModelBundle{
		Version:   "b1",
		Kind:      models.BundleExpenseRegressor,
		UserID:    "u1",
		Estimator: m,
		Encoder:   models.NewCategoryEncoding([]string{"Ocio", "Alimentos"}),
		FeatureColumns: []models.FeatureColumn{
			{Name: "categoria_encoded", Type: models.ColumnCategorical},
			{Name: "income", Type: models.ColumnNumeric},
			{Name: "savings", Type: models.ColumnNumeric},
		},
		TrainedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Metadata:  &models.TrainingMetadata{ModelType: KindGradientBoosting, NReal: 4},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec()
	b := regressorBundle(t)
	data, err := c.Encode(b)
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, b.Version, got.Version)
	assert.Equal(t, b.UserID, got.UserID)
	assert.Equal(t, b.ColumnNames(), got.ColumnNames())
	assert.Equal(t, b.Encoder.Mapping(), got.Encoder.Mapping())
	assert.True(t, b.TrainedAt.Equal(got.TrainedAt))
	x := []float64{1, 250, 15}
	assert.InDelta(t, b.Estimator.Predict(x), got.Estimator.Predict(x), 1e-9)
}

func TestCodecRoundTripClassifier(t *testing.T) {
	X, y := separable()
	p := DefaultForestParams()
	p.Trees = 5
	m, err := FitRandomForest(X, y, p)
	require.NoError(t, err)

	b := &models.ModelBundle{
		Version:        "d1",
		Kind:           models.BundleDecisionClassifier,
		Estimator:      m,
		Encoder:        models.NewCategoryEncoding([]string{"a"}),
		FeatureColumns: []models.FeatureColumn{{Name: "amount"}, {Name: "day_of_month"}},
		LabelSemantics: map[int]models.LabelInfo{1: {Label: "good", Emoji: "😊"}},
		TrainedAt:      time.Now(),
	}
	c := NewCodec()
	data, err := c.Encode(b)
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)

	cl, ok := got.Estimator.(models.Classifier)
	require.True(t, ok)
	assert.Equal(t, []int{-1, 0, 1}, cl.Classes())
	assert.Equal(t, "good", got.LabelSemantics[1].Label)
	assert.Equal(t, m.PredictProba([]float64{12, 3}), cl.PredictProba([]float64{12, 3}))
}

func TestCodecRejectsCorruptArtifacts(t *testing.T) {
	c := NewCodec()
	data, err := c.Encode(regressorBundle(t))
	require.NoError(t, err)

	cases := map[string][]byte{
		"truncated":      data[:len(data)/2],
		"not json":       []byte("model.pkl"),
		"wrong version":  []byte(`{"format_version":99}`),
		"unknown kind":   []byte(`{"format_version":1,"kind":"svm"}`),
		"no estimator":   []byte(`{"format_version":1,"kind":"expense_regressor","categories":["a"],"feature_columns":[{"name":"income"}],"trained_at":"2024-01-01T00:00:00Z"}`),
		"bad child link": []byte(`{"format_version":1,"kind":"expense_regressor","estimator":{"type":"gradient_boosted_regressor","params":{"n_features":1,"learning_rate":0.1,"trees":[{"nodes":[{"f":0,"t":1,"l":0,"r":0}]}]}},"categories":["a"],"feature_columns":[{"name":"income"}],"trained_at":"2024-01-01T00:00:00Z"}`),
		"unsorted vocab": []byte(`{"format_version":1,"kind":"expense_regressor","estimator":{"type":"gradient_boosted_regressor","params":{"n_features":1,"learning_rate":0.1,"trees":[{"nodes":[{"f":0,"t":0,"l":-1,"r":-1,"v":[1]}]}]}},"categories":["b","a"],"feature_columns":[{"name":"income"}],"trained_at":"2024-01-01T00:00:00Z"}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(raw)
			var se *models.SerializationError
			assert.True(t, errors.As(err, &se), "got %v", err)
		})
	}
}

func TestCodecEncodeRejectsInvalidBundle(t *testing.T) {
	b := regressorBundle(t)
	b.FeatureColumns = nil
	_, err := NewCodec().Encode(b)
	assert.Error(t, err)
}
