package models

// Requests for model serving HTTP endpoints. Defined in domain for consistency and reuse.

type PredictRequest struct {
	UserID        string   `json:"user_id" validate:"required"`
	Category      string   `json:"category" validate:"required"`
	PlannedAmount *float64 `json:"planned_amount" validate:"omitempty,gte=0"`
	Income        *float64 `json:"income" validate:"omitempty,gte=0"`
	Savings       *float64 `json:"savings" validate:"omitempty"`
}

// ToScoring converts the HTTP payload to the engine's value object.
func (r *PredictRequest) ToScoring() *ScoringRequest {
	s := &ScoringRequest{
		UserID:        r.UserID,
		Category:      r.Category,
		PlannedAmount: r.PlannedAmount,
		Income:        r.Income,
		Savings:       r.Savings,
	}
	if r.PlannedAmount != nil {
		s.Amount = *r.PlannedAmount
	}
	return s
}

type DecisionRequest struct {
	UserID        string  `json:"user_id" validate:"required"`
	ExpenseID     string  `json:"expense_id"`
	Category      string  `json:"category" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	DeriveContext bool    `json:"derive_context"`
	At            string  `json:"at"`

	CategoryNecessityScore    float64 `json:"category_necessity_score" default:"50" validate:"gte=0,lte=100"`
	BalanceAtTime             float64 `json:"balance_at_time"`
	AmountToBalanceRatio      float64 `json:"amount_to_balance_ratio"`
	MonthlyIncomeAvg          float64 `json:"monthly_income_avg"`
	MonthlyExpenseAvg         float64 `json:"monthly_expense_avg"`
	SavingsRate               float64 `json:"savings_rate"`
	UpcomingRemindersAmount   float64 `json:"upcoming_reminders_amount"`
	OverdueRemindersCount     int     `json:"overdue_reminders_count" validate:"gte=0"`
	RemindersToBalanceRatio   float64 `json:"reminders_to_balance_ratio"`
	DayOfMonth                int     `json:"day_of_month" validate:"omitempty,gte=1,lte=31"`
	DayOfWeek                 int     `json:"day_of_week" validate:"gte=0,lte=6"`
	DaysToEndOfMonth          int     `json:"days_to_end_of_month" validate:"gte=0,lte=30"`
	IsWeekend                 bool    `json:"is_weekend"`
	TimesBoughtThisCategory   int     `json:"times_bought_this_category" validate:"gte=0"`
	AvgAmountThisCategory     float64 `json:"avg_amount_this_category"`
	AmountVsCategoryAvg       float64 `json:"amount_vs_category_avg" default:"1"`
	DaysSinceLastSameCategory int     `json:"days_since_last_same_category" validate:"gte=-1"`
}

// ToScoring converts the HTTP payload to the engine's value object.
func (r *DecisionRequest) ToScoring() *ScoringRequest {
	return &ScoringRequest{
		UserID:   r.UserID,
		Category: r.Category,
		Amount:   r.Amount,
		Context: FinancialContext{
			CategoryNecessityScore:    r.CategoryNecessityScore,
			BalanceAtTime:             r.BalanceAtTime,
			AmountToBalanceRatio:      r.AmountToBalanceRatio,
			MonthlyIncomeAvg:          r.MonthlyIncomeAvg,
			MonthlyExpenseAvg:         r.MonthlyExpenseAvg,
			SavingsRate:               r.SavingsRate,
			UpcomingRemindersAmount:   r.UpcomingRemindersAmount,
			OverdueRemindersCount:     r.OverdueRemindersCount,
			RemindersToBalanceRatio:   r.RemindersToBalanceRatio,
			DayOfMonth:                r.DayOfMonth,
			DayOfWeek:                 r.DayOfWeek,
			DaysToEndOfMonth:          r.DaysToEndOfMonth,
			IsWeekend:                 r.IsWeekend,
			TimesBoughtThisCategory:   r.TimesBoughtThisCategory,
			AvgAmountThisCategory:     r.AvgAmountThisCategory,
			AmountVsCategoryAvg:       r.AmountVsCategoryAvg,
			DaysSinceLastSameCategory: r.DaysSinceLastSameCategory,
		},
	}
}

type UserPathRequest struct {
	UserID string `param:"user_id" validate:"required"`
}
