package augment

import (
	"fmt"

	"FinScore/internal/domain/models"
)

// Config holds the reviewed wealth priors and the grid shape.
type Config struct {
	IncomeWeight   float64
	SavingsWeight  float64
	GridPoints     int
	IncomeMin      float64
	IncomeMax      float64
	SavingsMin     float64
	SavingsMax     float64
	MultiplierStep float64
}

// Engine synthesizes training examples from the income and savings priors.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.IncomeWeight < 0 || cfg.SavingsWeight < 0 {
		return nil, fmt.Errorf("augment: weights must be non-negative")
	}
	if cfg.GridPoints < 2 {
		return nil, fmt.Errorf("augment: grid needs at least 2 points, got %d", cfg.GridPoints)
	}
	if cfg.IncomeMax <= cfg.IncomeMin || cfg.SavingsMax <= cfg.SavingsMin {
		return nil, fmt.Errorf("augment: income and savings ranges must be increasing")
	}
	if cfg.MultiplierStep < 0 {
		return nil, fmt.Errorf("augment: multiplier step must be non-negative")
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine settings.
func (e *Engine) Config() Config { return e.cfg }

// CategoryMultiplier separates categories deterministically: 1 + step*code.
func (e *Engine) CategoryMultiplier(code int) float64 {
	return 1 + e.cfg.MultiplierStep*float64(code)
}

// Target is the prior spend for a user with the given income and savings in category code.
func (e *Engine) Target(income, savings float64, code int) float64 {
	return (income*e.cfg.IncomeWeight + savings*e.cfg.SavingsWeight) * e.CategoryMultiplier(code)
}

type generateOptions struct {
	maxIncome  float64
	maxSavings float64
}

// GenerateOption tunes one Generate call.
type GenerateOption func(*generateOptions)

// WithObservedMax stretches the grid so it covers the largest real income and savings seen.
func WithObservedMax(income, savings float64) GenerateOption {
	return func(o *generateOptions) {
		o.maxIncome = income
		o.maxSavings = savings
	}
}

// Grid returns the income and savings axes. Both span fixed absolute ranges, widened
// when real data exceeds them.
func (e *Engine) Grid(opts ...GenerateOption) (incomes, savings []float64) {
	o := generateOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	incMax := e.cfg.IncomeMax
	if o.maxIncome > incMax {
		incMax = o.maxIncome
	}
	savMax := e.cfg.SavingsMax
	if o.maxSavings > savMax {
		savMax = o.maxSavings
	}
	return linspace(e.cfg.IncomeMin, incMax, e.cfg.GridPoints),
		linspace(e.cfg.SavingsMin, savMax, e.cfg.GridPoints)
}

// Generate emits |incomes| x |savings| x |codes| synthetic examples.
func (e *Engine) Generate(codes []int, opts ...GenerateOption) []models.TrainingExample {
	incomes, savings := e.Grid(opts...)
	out := make([]models.TrainingExample, 0, len(incomes)*len(savings)*len(codes))
	for _, inc := range incomes {
		for _, sav := range savings {
			for _, code := range codes {
				out = append(out, models.TrainingExample{
					CategoryCode: code,
					Income:       inc,
					Savings:      sav,
					Target:       e.Target(inc, sav, code),
					Synthetic:    true,
				})
			}
		}
	}
	return out
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}
