package models

import "time"

// FinancialContext holds the balance, ratio, temporal and category-history
// features of a transaction at the time it is scored.
type FinancialContext struct {
	CategoryNecessityScore    float64 `json:"category_necessity_score"`
	BalanceAtTime             float64 `json:"balance_at_time"`
	AmountToBalanceRatio      float64 `json:"amount_to_balance_ratio"`
	MonthlyIncomeAvg          float64 `json:"monthly_income_avg"`
	MonthlyExpenseAvg         float64 `json:"monthly_expense_avg"`
	SavingsRate               float64 `json:"savings_rate"`
	UpcomingRemindersAmount   float64 `json:"upcoming_reminders_amount"`
	OverdueRemindersCount     int     `json:"overdue_reminders_count"`
	RemindersToBalanceRatio   float64 `json:"reminders_to_balance_ratio"`
	DayOfMonth                int     `json:"day_of_month"`
	DayOfWeek                 int     `json:"day_of_week"`
	DaysToEndOfMonth          int     `json:"days_to_end_of_month"`
	IsWeekend                 bool    `json:"is_weekend"`
	TimesBoughtThisCategory   int     `json:"times_bought_this_category"`
	AvgAmountThisCategory     float64 `json:"avg_amount_this_category"`
	AmountVsCategoryAvg       float64 `json:"amount_vs_category_avg"`
	DaysSinceLastSameCategory int     `json:"days_since_last_same_category"`
}

// ScoringRequest is the per-call input of the prediction engine.
// Nil Income/Savings mean "unknown" and are resolved from the store or treated as 0.
type ScoringRequest struct {
	UserID        string
	Category      string
	Amount        float64
	PlannedAmount *float64
	Income        *float64
	Savings       *float64
	Context       FinancialContext
}

// FinancialSnapshot is the per-user aggregate read from the relational store.
type FinancialSnapshot struct {
	UserID         string         `json:"user_id"`
	MonthlyIncome  float64        `json:"monthly_income"`
	Savings        float64        `json:"savings"`
	MonthExpenses  float64        `json:"month_expenses"`
	CategoryCounts map[string]int `json:"category_counts"`
	TotalRecords   int            `json:"total_records"`
}

// PredictionOutcome tells which branch of the engine produced a result.
type PredictionOutcome string

const (
	OutcomePrediction PredictionOutcome = "prediction"
	OutcomeTiered     PredictionOutcome = "tiered_recommendation"
)

// RecommendationBand is one affordability tier.
type RecommendationBand struct {
	Name      string  `json:"name"`
	Fraction  float64 `json:"fraction"`
	Amount    float64 `json:"amount"`
	Rationale string  `json:"rationale"`
}

// TieredRecommendation is computed per request and never cached.
type TieredRecommendation struct {
	TotalFlow    float64            `json:"total_flow"`
	Conservative RecommendationBand `json:"conservative"`
	Balanced     RecommendationBand `json:"balanced"`
	Aggressive   RecommendationBand `json:"aggressive"`
}

// ImpactAnalysis projects the balance left after a planned purchase.
type ImpactAnalysis struct {
	PlannedAmount    float64 `json:"planned_amount"`
	ProjectedBalance float64 `json:"projected_balance"`
	RiskIncrease     int     `json:"risk_increase"`
	RiskLevel        string  `json:"risk_level"`
	Message          string  `json:"message"`
}

// PredictionResult is returned by the expense prediction path. Exactly one of
// PredictedAmount (Outcome=prediction) or Tiered (Outcome=tiered_recommendation) is meaningful.
type PredictionResult struct {
	Outcome           PredictionOutcome     `json:"outcome"`
	UserID            string                `json:"user_id"`
	Category          string                `json:"category"`
	PredictedAmount   float64               `json:"predicted_amount,omitempty"`
	IncomeRatio       float64               `json:"income_ratio,omitempty"`
	LiquidityRatio    float64               `json:"liquidity_ratio,omitempty"`
	TrustScore        int                   `json:"trust_score,omitempty"`
	Impact            *ImpactAnalysis       `json:"impact_analysis,omitempty"`
	BehavioralInsight string                `json:"behavioral_insight,omitempty"`
	Tiered            *TieredRecommendation `json:"tiered,omitempty"`
	ModelVersion      string                `json:"model_version,omitempty"`
	ModelTrainedAt    *time.Time            `json:"model_trained_at,omitempty"`
}

// DecisionResult is returned by the decision classifier path.
type DecisionResult struct {
	UserID         string             `json:"user_id"`
	Prediction     int                `json:"prediction"`
	Label          string             `json:"prediction_label"`
	Emoji          string             `json:"prediction_emoji"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
	Advice         string             `json:"advice"`
	ModelVersion   string             `json:"model_version"`
	ModelTrainedAt time.Time          `json:"model_trained_at"`
}
