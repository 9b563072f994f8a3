package features

import (
	"math"
	"sort"
	"time"

	"FinScore/internal/domain/models"
	"FinScore/pkg/util"
)

const (
	// ratioSentinel replaces balance ratios when the balance is not positive.
	ratioSentinel      = 99.0
	averageWindow      = 3 // months
	upcomingWindowDays = 7
)

// ComputeContext derives the decision features of a transaction from the user's raw activity.
// Expenses in activity must not include the transaction being scored.
func ComputeContext(activity *models.UserActivity, category string, amount float64, at time.Time) models.FinancialContext {
	if activity == nil {
		activity = &models.UserActivity{}
	}
	ctx := models.FinancialContext{
		CategoryNecessityScore: NecessityScore(category),
	}

	var totalIncome, totalExpense float64
	for _, in := range activity.Incomes {
		totalIncome += in.Amount
	}
	for _, ex := range activity.Expenses {
		totalExpense += ex.Amount
	}
	balance := activity.Balance + totalIncome - totalExpense
	ctx.BalanceAtTime = round(balance, 2)
	ctx.AmountToBalanceRatio = ratioOrSentinel(amount, balance)

	since := at.AddDate(0, -averageWindow, 0)
	incomeByMonth := map[string]float64{}
	for _, in := range activity.Incomes {
		if !in.CreatedAt.Before(since) {
			incomeByMonth[util.MonthKey(in.CreatedAt.UTC())] += in.Amount
		}
	}
	expenseByMonth := map[string]float64{}
	for _, ex := range activity.Expenses {
		if !ex.CreatedAt.Before(since) {
			expenseByMonth[util.MonthKey(ex.CreatedAt.UTC())] += ex.Amount
		}
	}
	ctx.MonthlyIncomeAvg = round(mean(incomeByMonth), 2)
	ctx.MonthlyExpenseAvg = round(mean(expenseByMonth), 2)
	ctx.SavingsRate = -1
	if ctx.MonthlyIncomeAvg > 0 {
		ctx.SavingsRate = round((ctx.MonthlyIncomeAvg-ctx.MonthlyExpenseAvg)/ctx.MonthlyIncomeAvg, 4)
	}

	today := midnight(at)
	horizon := today.AddDate(0, 0, upcomingWindowDays)
	var upcoming float64
	for _, r := range activity.Reminders {
		due := midnight(r.NextPayment.In(at.Location()))
		switch {
		case due.Before(today):
			ctx.OverdueRemindersCount++
		case !due.After(horizon):
			upcoming += r.Amount
		}
	}
	ctx.UpcomingRemindersAmount = round(upcoming, 2)
	ctx.RemindersToBalanceRatio = ratioOrSentinel(upcoming, balance)

	ctx.DayOfMonth = at.Day()
	ctx.DayOfWeek = int(at.Weekday())
	ctx.DaysToEndOfMonth = util.DaysToEndOfMonth(at)
	ctx.IsWeekend = at.Weekday() == time.Saturday || at.Weekday() == time.Sunday

	var same []models.ExpenseRecord
	for _, ex := range activity.Expenses {
		if ex.Category == category {
			same = append(same, ex)
		}
	}
	ctx.TimesBoughtThisCategory = len(same)
	ctx.AmountVsCategoryAvg = 1.0
	ctx.DaysSinceLastSameCategory = -1
	if len(same) > 0 {
		var sum float64
		for _, ex := range same {
			sum += ex.Amount
		}
		ctx.AvgAmountThisCategory = round(sum/float64(len(same)), 2)
		if ctx.AvgAmountThisCategory > 0 {
			ctx.AmountVsCategoryAvg = round(amount/ctx.AvgAmountThisCategory, 4)
		}

		sort.Slice(same, func(i, j int) bool { return same[i].CreatedAt.After(same[j].CreatedAt) })
		days := util.DaysBetween(same[0].CreatedAt, at)
		if days < 0 {
			days = 0
		}
		ctx.DaysSinceLastSameCategory = days
	}
	return ctx
}

func ratioOrSentinel(num, balance float64) float64 {
	if balance <= 0 {
		return ratioSentinel
	}
	return round(num/balance, 4)
}

func mean(byMonth map[string]float64) float64 {
	if len(byMonth) == 0 {
		return 0
	}
	var sum float64
	for _, v := range byMonth {
		sum += v
	}
	return sum / float64(len(byMonth))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
