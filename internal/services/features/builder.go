package features

import (
	"FinScore/internal/domain/models"
	applogger "FinScore/pkg/logger"
)

// FallbackCategoryCode is substituted for categories outside a bundle's vocabulary.
const FallbackCategoryCode = 0

// Builder maps a scoring request onto the column order declared by a bundle.
type Builder struct {
	log *applogger.Logger
}

// BuilderOption configures Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for unknown-category warnings.
func WithLogger(l *applogger.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{log: applogger.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RawAttributes assembles every fixed attribute the builder knows how to produce.
// Unknown income or savings resolve to 0.
func (b *Builder) RawAttributes(req *models.ScoringRequest, categoryCode int) map[string]float64 {
	c := req.Context
	weekend := 0.0
	if c.IsWeekend {
		weekend = 1
	}
	return map[string]float64{
		ColCategory:                  float64(categoryCode),
		ColIncome:                    deref(req.Income),
		ColSavings:                   deref(req.Savings),
		ColAmount:                    req.Amount,
		ColCategoryNecessityScore:    c.CategoryNecessityScore,
		ColBalanceAtTime:             c.BalanceAtTime,
		ColAmountToBalanceRatio:      c.AmountToBalanceRatio,
		ColMonthlyIncomeAvg:          c.MonthlyIncomeAvg,
		ColMonthlyExpenseAvg:         c.MonthlyExpenseAvg,
		ColSavingsRate:               c.SavingsRate,
		ColUpcomingRemindersAmount:   c.UpcomingRemindersAmount,
		ColOverdueRemindersCount:     float64(c.OverdueRemindersCount),
		ColRemindersToBalanceRatio:   c.RemindersToBalanceRatio,
		ColDayOfMonth:                float64(c.DayOfMonth),
		ColDayOfWeek:                 float64(c.DayOfWeek),
		ColDaysToEndOfMonth:          float64(c.DaysToEndOfMonth),
		ColIsWeekend:                 weekend,
		ColTimesBoughtThisCategory:   float64(c.TimesBoughtThisCategory),
		ColAvgAmountThisCategory:     c.AvgAmountThisCategory,
		ColAmountVsCategoryAvg:       c.AmountVsCategoryAvg,
		ColDaysSinceLastSameCategory: float64(c.DaysSinceLastSameCategory),
	}
}

// Build encodes the request's category with the bundle's encoder and projects the raw
// attributes onto bundle.FeatureColumns. An unseen category never fails the call.
func (b *Builder) Build(req *models.ScoringRequest, bundle *models.ModelBundle) ([]float64, error) {
	code, ok := bundle.Encoder.Code(req.Category)
	if !ok {
		code = FallbackCategoryCode
		b.log.Warn("unknown category, using fallback code",
			applogger.String("category", req.Category),
			applogger.String("user_id", req.UserID),
			applogger.String("bundle_kind", string(bundle.Kind)),
			applogger.String("bundle_version", bundle.Version),
		)
	}

	return Project(bundle.FeatureColumns, b.RawAttributes(req, code))
}

// Project orders raw attributes by cols. Training and serving both go through it.
func Project(cols []models.FeatureColumn, raw map[string]float64) ([]float64, error) {
	vec := make([]float64, len(cols))
	for i, col := range cols {
		v, ok := raw[col.Name]
		if !ok {
			return nil, &models.MissingFeatureError{Column: col.Name}
		}
		vec[i] = v
	}
	return vec, nil
}

// ExampleAttributes exposes a training example under the same attribute names serving uses.
func ExampleAttributes(ex models.TrainingExample) map[string]float64 {
	return map[string]float64{
		ColCategory: float64(ex.CategoryCode),
		ColIncome:   ex.Income,
		ColSavings:  ex.Savings,
	}
}

// ValidateColumns checks that every declared column resolves against the raw attributes.
// Called at load time so a contract mismatch fails the reload rather than a request.
func (b *Builder) ValidateColumns(cols []models.FeatureColumn) error {
	raw := b.RawAttributes(&models.ScoringRequest{}, FallbackCategoryCode)
	for _, col := range cols {
		if _, ok := raw[col.Name]; !ok {
			return &models.MissingFeatureError{Column: col.Name}
		}
	}
	return nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
