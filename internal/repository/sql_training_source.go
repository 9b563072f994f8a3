package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	"FinScore/internal/services/features"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/sqlstore"
	xutil "FinScore/pkg/util"
)

// Tables names the transaction tables. Zero fields fall back to the default names.
type Tables struct {
	Expenses        string
	Incomes         string
	Accounts        string
	Reminders       string
	LabeledFeatures string
}

func (t Tables) withDefaults() Tables {
	def := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Tables{
		Expenses:        def(t.Expenses, "expenses"),
		Incomes:         def(t.Incomes, "incomes"),
		Accounts:        def(t.Accounts, "accounts"),
		Reminders:       def(t.Reminders, "reminders"),
		LabeledFeatures: def(t.LabeledFeatures, "expense_ml_features"),
	}
}

// SQLTrainingSource reads raw transactions and labeled features from the relational store.
// It is read-only; the product backend owns the tables.
type SQLTrainingSource struct {
	db     *sql.DB
	tables Tables
	l      *applogger.Logger
}

var (
	_ domrepo.TrainingSource = (*SQLTrainingSource)(nil)
	_ domrepo.HistorySource  = (*SQLTrainingSource)(nil)
)

func NewSQLTrainingSource(c *sqlstore.Client, tables Tables) *SQLTrainingSource {
	return &SQLTrainingSource{db: c.DB(), tables: tables.withDefaults()}
}

// SetLogger injects a structured logger.
func (s *SQLTrainingSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *SQLTrainingSource) ExpenseRecords(ctx context.Context) ([]models.ExpenseRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT user_id, macrocategoria, total_amount, created_at
        FROM %s
        WHERE macrocategoria IS NOT NULL AND macrocategoria != ''
    `, s.tables.Expenses)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, s.fail("expense_records", "", err)
	}
	defer rows.Close()

	out := make([]models.ExpenseRecord, 0, 256)
	for rows.Next() {
		var r models.ExpenseRecord
		if err := rows.Scan(&r.UserID, &r.Category, &r.Amount, &r.CreatedAt); err != nil {
			return nil, s.fail("expense_records", "", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("expense_records", "", err)
	}
	s.ok("expense_records", "", len(out), start)
	return out, nil
}

func (s *SQLTrainingSource) FinancialSummaries(ctx context.Context) (map[string]models.FinancialSummary, error) {
	start := time.Now()
	out := map[string]models.FinancialSummary{}

	incomes, err := s.monthlyIncomeByUser(ctx)
	if err != nil {
		return nil, s.fail("financial_summaries", "", err)
	}
	savings, err := s.sumByUser(ctx, s.tables.Accounts, "savings")
	if err != nil {
		return nil, s.fail("financial_summaries", "", err)
	}
	for u, v := range incomes {
		fs := out[u]
		fs.Income = v
		out[u] = fs
	}
	for u, v := range savings {
		fs := out[u]
		fs.Savings = v
		out[u] = fs
	}
	s.ok("financial_summaries", "", len(out), start)
	return out, nil
}

// monthlyIncomeByUser averages each user's income over the calendar months that had income,
// the same monthly scale serving reads from FinancialSnapshot.
func (s *SQLTrainingSource) monthlyIncomeByUser(ctx context.Context) (map[string]float64, error) {
	q := fmt.Sprintf(`SELECT user_id, total_amount, created_at FROM %s`, s.tables.Incomes)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byMonth := map[string]map[string]float64{}
	for rows.Next() {
		var (
			u  string
			v  sql.NullFloat64
			at time.Time
		)
		if err := rows.Scan(&u, &v, &at); err != nil {
			return nil, err
		}
		if byMonth[u] == nil {
			byMonth[u] = map[string]float64{}
		}
		byMonth[u][xutil.MonthKey(at)] += v.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(byMonth))
	for u, months := range byMonth {
		var total float64
		for _, v := range months {
			total += v
		}
		out[u] = total / float64(len(months))
	}
	return out, nil
}

func (s *SQLTrainingSource) sumByUser(ctx context.Context, table, column string) (map[string]float64, error) {
	q := fmt.Sprintf(`SELECT user_id, SUM(%s) FROM %s GROUP BY user_id`, column, table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]float64{}
	for rows.Next() {
		var (
			u string
			v sql.NullFloat64
		)
		if err := rows.Scan(&u, &v); err != nil {
			return nil, err
		}
		out[u] = v.Float64
	}
	return out, rows.Err()
}

// LabeledFeatures returns every feature row with an assigned label, newest first.
// NULL feature values come back as NaN.
func (s *SQLTrainingSource) LabeledFeatures(ctx context.Context) ([]models.LabeledFeatureRow, error) {
	start := time.Now()
	cols := features.DecisionNumericColumns()
	q := fmt.Sprintf(`
        SELECT user_id, macrocategoria, %s, label
        FROM %s
        WHERE label IS NOT NULL
        ORDER BY updated_at DESC
    `, strings.Join(cols, ", "), s.tables.LabeledFeatures)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, s.fail("labeled_features", "", err)
	}
	defer rows.Close()

	out := make([]models.LabeledFeatureRow, 0, 256)
	vals := make([]sql.NullFloat64, len(cols))
	for rows.Next() {
		var (
			r   models.LabeledFeatureRow
			cat sql.NullString
		)
		dest := make([]any, 0, len(cols)+3)
		dest = append(dest, &r.UserID, &cat)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		dest = append(dest, &r.Label)
		if err := rows.Scan(dest...); err != nil {
			return nil, s.fail("labeled_features", "", err)
		}
		r.Category = cat.String
		r.Values = make(map[string]float64, len(cols))
		for i, c := range cols {
			if vals[i].Valid {
				r.Values[c] = vals[i].Float64
			} else {
				r.Values[c] = math.NaN()
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("labeled_features", "", err)
	}
	s.ok("labeled_features", "", len(out), start)
	return out, nil
}

// FinancialSnapshot aggregates the user's current month and lifetime category counts.
func (s *SQLTrainingSource) FinancialSnapshot(ctx context.Context, userID string, now time.Time) (*models.FinancialSnapshot, error) {
	start := time.Now()
	from := xutil.MonthStart(now)
	snap := &models.FinancialSnapshot{UserID: userID, CategoryCounts: map[string]int{}}

	scalar := func(q string, dst *float64, args ...any) error {
		var v sql.NullFloat64
		if err := s.db.QueryRowContext(ctx, q, args...).Scan(&v); err != nil {
			return err
		}
		*dst = v.Float64
		return nil
	}
	if err := scalar(fmt.Sprintf(`SELECT SUM(total_amount) FROM %s WHERE user_id = ? AND created_at >= ?`, s.tables.Incomes),
		&snap.MonthlyIncome, userID, from); err != nil {
		return nil, s.fail("financial_snapshot", userID, err)
	}
	if err := scalar(fmt.Sprintf(`SELECT SUM(savings) FROM %s WHERE user_id = ?`, s.tables.Accounts),
		&snap.Savings, userID); err != nil {
		return nil, s.fail("financial_snapshot", userID, err)
	}
	if err := scalar(fmt.Sprintf(`SELECT SUM(total_amount) FROM %s WHERE user_id = ? AND created_at >= ?`, s.tables.Expenses),
		&snap.MonthExpenses, userID, from); err != nil {
		return nil, s.fail("financial_snapshot", userID, err)
	}

	counts, err := s.categoryCounts(ctx, userID)
	if err != nil {
		return nil, s.fail("financial_snapshot", userID, err)
	}
	for c, n := range counts {
		snap.CategoryCounts[c] = n
		snap.TotalRecords += n
	}
	s.ok("financial_snapshot", userID, snap.TotalRecords, start)
	return snap, nil
}

func (s *SQLTrainingSource) categoryCounts(ctx context.Context, userID string) (map[string]int, error) {
	q := fmt.Sprintf(`
        SELECT macrocategoria, COUNT(*)
        FROM %s
        WHERE user_id = ? AND macrocategoria IS NOT NULL AND macrocategoria != ''
        GROUP BY macrocategoria
    `, s.tables.Expenses)
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			c string
			n int
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[c] += n
	}
	return out, rows.Err()
}

// UserActivity loads the raw history used to derive a decision context.
func (s *SQLTrainingSource) UserActivity(ctx context.Context, userID string) (*models.UserActivity, error) {
	start := time.Now()
	a := &models.UserActivity{UserID: userID}

	var bal sql.NullFloat64
	q := fmt.Sprintf(`SELECT SUM(balance) FROM %s WHERE user_id = ?`, s.tables.Accounts)
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&bal); err != nil {
		return nil, s.fail("user_activity", userID, err)
	}
	a.Balance = bal.Float64

	q = fmt.Sprintf(`
        SELECT macrocategoria, total_amount, created_at
        FROM %s
        WHERE user_id = ?
        ORDER BY created_at DESC
    `, s.tables.Expenses)
	if err := s.each(ctx, q, userID, func(rows *sql.Rows) error {
		r := models.ExpenseRecord{UserID: userID}
		var cat sql.NullString
		if err := rows.Scan(&cat, &r.Amount, &r.CreatedAt); err != nil {
			return err
		}
		r.Category = cat.String
		a.Expenses = append(a.Expenses, r)
		return nil
	}); err != nil {
		return nil, s.fail("user_activity", userID, err)
	}

	q = fmt.Sprintf(`SELECT total_amount, created_at FROM %s WHERE user_id = ? ORDER BY created_at DESC`, s.tables.Incomes)
	if err := s.each(ctx, q, userID, func(rows *sql.Rows) error {
		var r models.IncomeRecord
		if err := rows.Scan(&r.Amount, &r.CreatedAt); err != nil {
			return err
		}
		a.Incomes = append(a.Incomes, r)
		return nil
	}); err != nil {
		return nil, s.fail("user_activity", userID, err)
	}

	q = fmt.Sprintf(`SELECT total_amount, next_payment_date FROM %s WHERE user_id = ?`, s.tables.Reminders)
	if err := s.each(ctx, q, userID, func(rows *sql.Rows) error {
		var r models.Reminder
		if err := rows.Scan(&r.Amount, &r.NextPayment); err != nil {
			return err
		}
		a.Reminders = append(a.Reminders, r)
		return nil
	}); err != nil {
		return nil, s.fail("user_activity", userID, err)
	}

	s.ok("user_activity", userID, len(a.Expenses)+len(a.Incomes)+len(a.Reminders), start)
	return a, nil
}

func (s *SQLTrainingSource) each(ctx context.Context, q string, arg any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLTrainingSource) fail(op, userID string, err error) error {
	if s.l != nil {
		s.l.Error("sql source query error",
			applogger.String("op", op),
			applogger.String("user_id", userID),
			applogger.Error(err),
		)
	}
	return &models.StoreUnavailableError{Op: op, Key: userID, Err: err}
}

func (s *SQLTrainingSource) ok(op, userID string, rows int, start time.Time) {
	if s.l != nil {
		s.l.Debug("sql source query ok",
			applogger.String("op", op),
			applogger.String("user_id", userID),
			applogger.Int("rows", rows),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
}

// SQLiteSchema returns DDL for a local store with the same shape as the production tables.
func SQLiteSchema(t Tables) []string {
	t = t.withDefaults()
	feats := make([]string, 0, len(features.DecisionNumericColumns()))
	for _, c := range features.DecisionNumericColumns() {
		feats = append(feats, c+" REAL")
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            expense_id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL,
            macrocategoria TEXT,
            categoria TEXT,
            total_amount REAL NOT NULL,
            created_at DATETIME NOT NULL
        )`, t.Expenses),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            income_id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL,
            total_amount REAL NOT NULL,
            created_at DATETIME NOT NULL
        )`, t.Incomes),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            account_id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL,
            name TEXT,
            balance REAL NOT NULL DEFAULT 0,
            savings REAL NOT NULL DEFAULT 0
        )`, t.Accounts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            reminder_id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL,
            total_amount REAL NOT NULL,
            next_payment_date DATETIME NOT NULL
        )`, t.Reminders),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            feature_id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL,
            macrocategoria TEXT,
            %s,
            label INTEGER,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`, t.LabeledFeatures, strings.Join(feats, ",\n            ")),
	}
}
