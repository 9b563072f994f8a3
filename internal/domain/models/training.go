package models

import "time"

// TrainingExample is one row of the expense regressor's training set.
// Real and synthetic examples share this schema so they can be concatenated.
type TrainingExample struct {
	CategoryCode int
	Income       float64
	Savings      float64
	Target       float64
	Synthetic    bool
}

// ExpenseRecord is a raw historical expense.
type ExpenseRecord struct {
	UserID    string
	Category  string
	Amount    float64
	CreatedAt time.Time
}

// FinancialSummary is the per-user aggregate used as real-example context.
type FinancialSummary struct {
	Income  float64
	Savings float64
}

// IncomeRecord is a raw historical income.
type IncomeRecord struct {
	Amount    float64
	CreatedAt time.Time
}

// Reminder is a scheduled payment.
type Reminder struct {
	Amount      float64
	NextPayment time.Time
}

// UserActivity is everything needed to derive a FinancialContext server-side.
type UserActivity struct {
	UserID    string
	Balance   float64
	Expenses  []ExpenseRecord
	Incomes   []IncomeRecord
	Reminders []Reminder
}

// LabeledFeatureRow is one pre-joined row of the decision classifier's training table.
// Values holds NaN for columns that were NULL in the store.
type LabeledFeatureRow struct {
	UserID   string
	Category string
	Values   map[string]float64
	Label    int
}
