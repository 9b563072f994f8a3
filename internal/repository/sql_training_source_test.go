package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	"FinScore/pkg/sqlstore"
)

func newSQLiteSource(t *testing.T) (*SQLTrainingSource, *sqlstore.Client) {
	t.Helper()
	c, err := sqlstore.NewClient(sqlstore.WithDriver(sqlstore.DriverSQLite), sqlstore.WithPath(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.InitSchema(context.Background(), SQLiteSchema(Tables{})))
	return NewSQLTrainingSource(c, Tables{}), c
}

func seed(t *testing.T, c *sqlstore.Client, q string, args ...any) {
	t.Helper()
	_, err := c.DB().Exec(q, args...)
	require.NoError(t, err)
}

func TestSQLSourceExpenseRecordsAndSummaries(t *testing.T) {
	src, c := newSQLiteSource(t)
	at := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	seed(t, c, `INSERT INTO expenses (user_id, macrocategoria, total_amount, created_at) VALUES (?, ?, ?, ?), (?, ?, ?, ?), (?, ?, ?, ?)`,
		"u1", "Alimentos", 120.5, at,
		"u1", "", 10.0, at,
		"u2", "Ocio", 40.0, at)
	seed(t, c, `INSERT INTO incomes (user_id, total_amount, created_at) VALUES (?, ?, ?), (?, ?, ?)`,
		"u1", 600.0, at, "u1", 400.0, at)
	seed(t, c, `INSERT INTO accounts (user_id, balance, savings) VALUES (?, ?, ?), (?, ?, ?)`,
		"u1", 100.0, 2000.0, "u2", 50.0, 300.0)

	recs, err := src.ExpenseRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Alimentos", recs[0].Category)
	assert.Equal(t, 120.5, recs[0].Amount)
	assert.True(t, at.Equal(recs[0].CreatedAt))

	sums, err := src.FinancialSummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.FinancialSummary{Income: 1000, Savings: 2000}, sums["u1"])
	assert.Equal(t, models.FinancialSummary{Income: 0, Savings: 300}, sums["u2"])
}

func TestSQLSourceSummariesUseMonthlyIncome(t *testing.T) {
	src, c := newSQLiteSource(t)
	may := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	seed(t, c, `INSERT INTO incomes (user_id, total_amount, created_at) VALUES (?, ?, ?), (?, ?, ?), (?, ?, ?)`,
		"u1", 600.0, may, "u1", 400.0, may, "u1", 500.0, june)

	sums, err := src.FinancialSummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 750.0, sums["u1"].Income)

	snap, err := src.FinancialSnapshot(context.Background(), "u1", june.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 500.0, snap.MonthlyIncome)
}

func TestSQLSourceSnapshotSkipsUncategorizedExpenses(t *testing.T) {
	src, c := newSQLiteSource(t)
	at := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	seed(t, c, `INSERT INTO expenses (user_id, macrocategoria, total_amount, created_at) VALUES (?, ?, ?, ?), (?, NULL, ?, ?), (?, ?, ?, ?)`,
		"u1", "", 10.0, at,
		"u1", 20.0, at,
		"u2", "Ocio", 5.0, at)

	snap, err := src.FinancialSnapshot(context.Background(), "u1", at)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalRecords)
	assert.Empty(t, snap.CategoryCounts)
	assert.Equal(t, 30.0, snap.MonthExpenses)

	recs, err := src.ExpenseRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSQLSourceLabeledFeaturesKeepsNullsAsNaN(t *testing.T) {
	src, c := newSQLiteSource(t)
	seed(t, c, `INSERT INTO expense_ml_features (user_id, macrocategoria, amount, category_necessity_score, label) VALUES (?, ?, ?, ?, ?)`,
		"u1", "Alimentos", 25.0, 100.0, 1)
	seed(t, c, `INSERT INTO expense_ml_features (user_id, macrocategoria, amount, label) VALUES (?, NULL, ?, NULL)`,
		"u1", 30.0)

	rows, err := src.LabeledFeatures(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 1, r.Label)
	assert.Equal(t, "Alimentos", r.Category)
	assert.Equal(t, 25.0, r.Values["amount"])
	assert.Equal(t, 100.0, r.Values["category_necessity_score"])
	assert.True(t, math.IsNaN(r.Values["savings_rate"]))
	assert.Len(t, r.Values, 18)
}

func TestSQLSourceFinancialSnapshot(t *testing.T) {
	src, c := newSQLiteSource(t)
	now := time.Date(2024, 5, 18, 12, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	thisMonth := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	seed(t, c, `INSERT INTO expenses (user_id, macrocategoria, total_amount, created_at) VALUES (?, ?, ?, ?), (?, ?, ?, ?), (?, ?, ?, ?)`,
		"u1", "Alimentos", 100.0, lastMonth,
		"u1", "Alimentos", 50.0, thisMonth,
		"u1", "Ocio", 30.0, thisMonth)
	seed(t, c, `INSERT INTO incomes (user_id, total_amount, created_at) VALUES (?, ?, ?), (?, ?, ?)`,
		"u1", 900.0, lastMonth, "u1", 1000.0, thisMonth)
	seed(t, c, `INSERT INTO accounts (user_id, balance, savings) VALUES (?, ?, ?)`, "u1", 10.0, 250.0)

	snap, err := src.FinancialSnapshot(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, snap.MonthlyIncome)
	assert.Equal(t, 250.0, snap.Savings)
	assert.Equal(t, 80.0, snap.MonthExpenses)
	assert.Equal(t, map[string]int{"Alimentos": 2, "Ocio": 1}, snap.CategoryCounts)
	assert.Equal(t, 3, snap.TotalRecords)

	empty, err := src.FinancialSnapshot(context.Background(), "ghost", now)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalRecords)
	assert.Zero(t, empty.MonthlyIncome)
}

func TestSQLSourceUserActivity(t *testing.T) {
	src, c := newSQLiteSource(t)
	at := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	seed(t, c, `INSERT INTO expenses (user_id, macrocategoria, total_amount, created_at) VALUES (?, ?, ?, ?)`, "u1", "Ocio", 30.0, at)
	seed(t, c, `INSERT INTO incomes (user_id, total_amount, created_at) VALUES (?, ?, ?)`, "u1", 1000.0, at)
	seed(t, c, `INSERT INTO reminders (user_id, total_amount, next_payment_date) VALUES (?, ?, ?)`, "u1", 70.0, at.AddDate(0, 0, 5))
	seed(t, c, `INSERT INTO accounts (user_id, balance, savings) VALUES (?, ?, ?), (?, ?, ?)`, "u1", 300.0, 0.0, "u1", 200.0, 0.0)

	a, err := src.UserActivity(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, a.Balance)
	require.Len(t, a.Expenses, 1)
	assert.Equal(t, "Ocio", a.Expenses[0].Category)
	require.Len(t, a.Incomes, 1)
	require.Len(t, a.Reminders, 1)
	assert.True(t, at.AddDate(0, 0, 5).Equal(a.Reminders[0].NextPayment))
}

func TestSQLSourceWrapsStoreErrors(t *testing.T) {
	src, c := newSQLiteSource(t)
	require.NoError(t, c.Close())
	_, err := src.ExpenseRecords(context.Background())
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}
