package usecase

import (
	"fmt"
	"math"

	"FinScore/internal/domain/models"
)

// Tier fractions of total available flow (income + savings).
const (
	ConservativeFraction = 0.20
	BalancedFraction     = 0.40
	AggressiveFraction   = 0.60
)

// Risk tiers of a planned purchase.
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskModerate = "moderate"
	RiskLow      = "low"
)

// TieredRecommendation computes the affordability bands used when a category has no history.
// Total flow is income + savings; only a negative sum is floored at 0, so missing context
// or net debt yields zero bands.
func TieredRecommendation(income, savings float64) models.TieredRecommendation {
	total := math.Max(income+savings, 0)
	band := func(name string, fraction float64, rationale string) models.RecommendationBand {
		return models.RecommendationBand{
			Name:      name,
			Fraction:  fraction,
			Amount:    total * fraction,
			Rationale: rationale,
		}
	}
	return models.TieredRecommendation{
		TotalFlow: total,
		Conservative: band("conservative", ConservativeFraction,
			"Keeps most of your income and savings untouched. A safe first spend in a category you have not used yet."),
		Balanced: band("balanced", BalancedFraction,
			"A moderate share of your available money. Reasonable if this purchase is planned."),
		Aggressive: band("aggressive", AggressiveFraction,
			"Commits a large part of your available money. Only if this category is a priority right now."),
	}
}

// TrustScore is a confidence heuristic that grows with the records in the category:
// 30 with no records at all, otherwise 50 + 8 per category record, capped at 98.
func TrustScore(categoryCount, totalRecords int) int {
	if totalRecords <= 0 {
		return 30
	}
	return min(98, 50+8*max(categoryCount, 0))
}

// ProjectImpact classifies the balance left after a planned purchase this month.
func ProjectImpact(income, savings, monthExpenses, planned float64) models.ImpactAnalysis {
	projected := savings + income - monthExpenses - planned
	out := models.ImpactAnalysis{PlannedAmount: planned, ProjectedBalance: round2(projected)}
	switch {
	case projected < 0:
		out.RiskIncrease = 100
		out.RiskLevel = RiskCritical
		out.Message = fmt.Sprintf("Warning: this purchase would leave you %.2f short this month. Consider postponing it or lowering the amount.", -projected)
	case projected < 0.10*income:
		out.RiskIncrease = 75
		out.RiskLevel = RiskHigh
		out.Message = "This purchase leaves less than 10% of your income as a cushion. Make sure no other payments are due."
	case projected < 0.30*income:
		out.RiskIncrease = 40
		out.RiskLevel = RiskModerate
		out.Message = "You can afford it, but it will noticeably reduce your margin for the rest of the month."
	default:
		out.RiskIncrease = 10
		out.RiskLevel = RiskLow
		out.Message = "This purchase fits comfortably within your budget."
	}
	return out
}

// BehavioralInsight summarizes the prediction against the user's income.
func BehavioralInsight(category string, incomeRatio float64, categoryCount int) string {
	switch {
	case incomeRatio <= 0:
		return fmt.Sprintf("You usually spend in %s, but there is no income on record to compare it with.", category)
	case incomeRatio >= 30:
		return fmt.Sprintf("Your usual %s spend takes %.1f%% of your monthly income. This is one of your heaviest categories.", category, incomeRatio)
	case incomeRatio >= 10:
		return fmt.Sprintf("Your usual %s spend is %.1f%% of your monthly income across %d past purchases.", category, incomeRatio, categoryCount)
	default:
		return fmt.Sprintf("%s is a light category for you: about %.1f%% of your monthly income.", category, incomeRatio)
	}
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return round2(num / den * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
