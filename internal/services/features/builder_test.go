package features

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

func ptr(v float64) *float64 { return &v }

func expenseBundle(cols []models.FeatureColumn) *models.ModelBundle {
	return &models.ModelBundle{
		Version:        "v1",
		Kind:           models.BundleExpenseRegressor,
		Encoder:        models.NewCategoryEncoding([]string{"Transporte", "Alimentos", "Ocio"}),
		FeatureColumns: cols,
		TrainedAt:      time.Now(),
	}
}

func permutations(cols []models.FeatureColumn) [][]models.FeatureColumn {
	if len(cols) <= 1 {
		return [][]models.FeatureColumn{append([]models.FeatureColumn(nil), cols...)}
	}
	var out [][]models.FeatureColumn
	for i := range cols {
		rest := make([]models.FeatureColumn, 0, len(cols)-1)
		rest = append(rest, cols[:i]...)
		rest = append(rest, cols[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]models.FeatureColumn{cols[i]}, p...))
		}
	}
	return out
}

func TestBuildFollowsDeclaredOrder(t *testing.T) {
	b := NewBuilder()
	req := &models.ScoringRequest{UserID: "u1", Category: "Ocio", Income: ptr(1000), Savings: ptr(250)}
	want := map[string]float64{ColCategory: 1, ColIncome: 1000, ColSavings: 250}

	for _, cols := range permutations(ExpenseColumns()) {
		vec, err := b.Build(req, expenseBundle(cols))
		require.NoError(t, err)
		require.Len(t, vec, len(cols))
		for i, c := range cols {
			assert.Equal(t, want[c.Name], vec[i], "column %s", c.Name)
		}
	}
}

func TestBuildUnknownCategoryFallsBack(t *testing.T) {
	b := NewBuilder()
	req := &models.ScoringRequest{Category: "Viajes", Income: ptr(10)}
	vec, err := b.Build(req, expenseBundle(ExpenseColumns()))
	require.NoError(t, err)
	assert.Equal(t, []float64{FallbackCategoryCode, 10, 0}, vec)
}

func TestBuildMissingColumn(t *testing.T) {
	b := NewBuilder()
	cols := append(ExpenseColumns(), models.FeatureColumn{Name: "credit_score", Type: models.ColumnNumeric})
	_, err := b.Build(&models.ScoringRequest{Category: "Ocio"}, expenseBundle(cols))

	var mf *models.MissingFeatureError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, "credit_score", mf.Column)
}

func TestBuildDecisionVector(t *testing.T) {
	b := NewBuilder()
	bundle := expenseBundle(DecisionColumns())
	bundle.Kind = models.BundleDecisionClassifier
	req := &models.ScoringRequest{
		Category: "Transporte",
		Amount:   42,
		Context: models.FinancialContext{
			CategoryNecessityScore:    65,
			IsWeekend:                 true,
			DaysSinceLastSameCategory: -1,
			OverdueRemindersCount:     2,
		},
	}
	vec, err := b.Build(req, bundle)
	require.NoError(t, err)
	require.Len(t, vec, 19)
	assert.Equal(t, 42.0, vec[0])
	assert.Equal(t, 65.0, vec[1])
	assert.Equal(t, 2.0, vec[8])
	assert.Equal(t, 1.0, vec[13])
	assert.Equal(t, -1.0, vec[17])
	assert.Equal(t, 2.0, vec[18])
}

func TestValidateColumns(t *testing.T) {
	b := NewBuilder()
	assert.NoError(t, b.ValidateColumns(DecisionColumns()))
	assert.NoError(t, b.ValidateColumns(ExpenseColumns()))

	err := b.ValidateColumns([]models.FeatureColumn{{Name: "income"}, {Name: "zip_code"}})
	var mf *models.MissingFeatureError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "zip_code", mf.Column)
}

func TestDecisionNumericColumns(t *testing.T) {
	cols := DecisionNumericColumns()
	assert.Len(t, cols, 18)
	assert.NotContains(t, cols, ColCategory)
	assert.Equal(t, ColAmount, cols[0])
}
