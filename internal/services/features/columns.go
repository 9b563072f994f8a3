package features

import "FinScore/internal/domain/models"

// Raw attribute names. A bundle's declared columns are resolved against these.
const (
	ColCategory                  = "categoria_encoded"
	ColIncome                    = "income"
	ColSavings                   = "savings"
	ColAmount                    = "amount"
	ColCategoryNecessityScore    = "category_necessity_score"
	ColBalanceAtTime             = "balance_at_time"
	ColAmountToBalanceRatio      = "amount_to_balance_ratio"
	ColMonthlyIncomeAvg          = "monthly_income_avg"
	ColMonthlyExpenseAvg         = "monthly_expense_avg"
	ColSavingsRate               = "savings_rate"
	ColUpcomingRemindersAmount   = "upcoming_reminders_amount"
	ColOverdueRemindersCount     = "overdue_reminders_count"
	ColRemindersToBalanceRatio   = "reminders_to_balance_ratio"
	ColDayOfMonth                = "day_of_month"
	ColDayOfWeek                 = "day_of_week"
	ColDaysToEndOfMonth          = "days_to_end_of_month"
	ColIsWeekend                 = "is_weekend"
	ColTimesBoughtThisCategory   = "times_bought_this_category"
	ColAvgAmountThisCategory     = "avg_amount_this_category"
	ColAmountVsCategoryAvg       = "amount_vs_category_avg"
	ColDaysSinceLastSameCategory = "days_since_last_same_category"
)

// ExpenseColumns is the input order of the per-user expense regressor.
func ExpenseColumns() []models.FeatureColumn {
	return []models.FeatureColumn{
		{Name: ColCategory, Type: models.ColumnCategorical},
		{Name: ColIncome, Type: models.ColumnNumeric},
		{Name: ColSavings, Type: models.ColumnNumeric},
	}
}

// DecisionColumns is the input order of the shared decision classifier.
func DecisionColumns() []models.FeatureColumn {
	return []models.FeatureColumn{
		{Name: ColAmount, Type: models.ColumnNumeric},
		{Name: ColCategoryNecessityScore, Type: models.ColumnNumeric},
		{Name: ColBalanceAtTime, Type: models.ColumnNumeric},
		{Name: ColAmountToBalanceRatio, Type: models.ColumnNumeric},
		{Name: ColMonthlyIncomeAvg, Type: models.ColumnNumeric},
		{Name: ColMonthlyExpenseAvg, Type: models.ColumnNumeric},
		{Name: ColSavingsRate, Type: models.ColumnNumeric},
		{Name: ColUpcomingRemindersAmount, Type: models.ColumnNumeric},
		{Name: ColOverdueRemindersCount, Type: models.ColumnCount},
		{Name: ColRemindersToBalanceRatio, Type: models.ColumnNumeric},
		{Name: ColDayOfMonth, Type: models.ColumnCount},
		{Name: ColDayOfWeek, Type: models.ColumnCount},
		{Name: ColDaysToEndOfMonth, Type: models.ColumnCount},
		{Name: ColIsWeekend, Type: models.ColumnFlag},
		{Name: ColTimesBoughtThisCategory, Type: models.ColumnCount},
		{Name: ColAvgAmountThisCategory, Type: models.ColumnNumeric},
		{Name: ColAmountVsCategoryAvg, Type: models.ColumnNumeric},
		{Name: ColDaysSinceLastSameCategory, Type: models.ColumnCount},
		{Name: ColCategory, Type: models.ColumnCategorical},
	}
}

// DecisionNumericColumns lists the decision columns read from the labeled feature table,
// i.e. every decision column except the encoded category.
func DecisionNumericColumns() []string {
	cols := DecisionColumns()
	out := make([]string, 0, len(cols)-1)
	for _, c := range cols {
		if c.Name == ColCategory {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}
