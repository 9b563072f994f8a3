package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	"FinScore/internal/services/features"
	applogger "FinScore/pkg/logger"
)

// ModelProvider hands out serving bundles.
type ModelProvider interface {
	EnsureLoaded(ctx context.Context, key string) (*models.ModelBundle, error)
}

var _ ModelProvider = (*ModelLifecycleManager)(nil)

// DecisionOptions controls how a decision request gets its context.
type DecisionOptions struct {
	DeriveContext bool
	At            time.Time
}

// PredictionEngine scores requests against the serving bundles. It never touches the artifact store.
type PredictionEngine struct {
	models  ModelProvider
	builder *features.Builder
	history domrepo.HistorySource
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

// EngineOption configures PredictionEngine.
type EngineOption func(*PredictionEngine)

func WithEngineLogger(l *applogger.Logger) EngineOption {
	return func(e *PredictionEngine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithEngineMetrics(r domrepo.Metrics) EngineOption {
	return func(e *PredictionEngine) { e.metrics = r }
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *PredictionEngine) { e.now = now }
}

func NewPredictionEngine(provider ModelProvider, builder *features.Builder, history domrepo.HistorySource, opts ...EngineOption) *PredictionEngine {
	e := &PredictionEngine{
		models:  provider,
		builder: builder,
		history: history,
		log:     applogger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Predict returns a point estimate for a known category or the tiered recommendation
// for a category the user never spent in.
func (e *PredictionEngine) Predict(ctx context.Context, req *models.ScoringRequest) (*models.PredictionResult, error) {
	start := time.Now()
	defer e.latency("predict_seconds", start)

	key := domrepo.ModelKeyFor(models.RetrainTarget{Kind: models.BundleExpenseRegressor, UserID: req.UserID})
	bundle, err := e.models.EnsureLoaded(ctx, key)
	if err != nil {
		e.count(models.BundleExpenseRegressor, "error")
		return nil, err
	}

	snap, err := e.history.FinancialSnapshot(ctx, req.UserID, e.now())
	if err != nil {
		e.count(models.BundleExpenseRegressor, "error")
		return nil, fmt.Errorf("financial snapshot: %w", err)
	}
	if snap == nil {
		snap = &models.FinancialSnapshot{UserID: req.UserID}
	}

	income := valueOr(req.Income, snap.MonthlyIncome)
	savings := valueOr(req.Savings, snap.Savings)
	trainedAt := bundle.TrainedAt
	res := &models.PredictionResult{
		UserID:         req.UserID,
		Category:       req.Category,
		ModelVersion:   bundle.Version,
		ModelTrainedAt: &trainedAt,
	}

	count := snap.CategoryCounts[req.Category]
	if count == 0 {
		tiers := TieredRecommendation(income, savings)
		res.Outcome = models.OutcomeTiered
		res.Tiered = &tiers
		e.count(models.BundleExpenseRegressor, string(models.OutcomeTiered))
		return res, nil
	}

	scoring := *req
	scoring.Income = &income
	scoring.Savings = &savings
	vec, err := e.builder.Build(&scoring, bundle)
	if err != nil {
		e.count(models.BundleExpenseRegressor, "error")
		return nil, err
	}
	predicted := round2(math.Max(bundle.Estimator.Predict(vec), 0))

	res.Outcome = models.OutcomePrediction
	res.PredictedAmount = predicted
	res.IncomeRatio = ratio(predicted, income)
	res.LiquidityRatio = ratio(predicted, income+savings)
	res.TrustScore = TrustScore(count, snap.TotalRecords)
	res.BehavioralInsight = BehavioralInsight(req.Category, res.IncomeRatio, count)
	if req.PlannedAmount != nil {
		impact := ProjectImpact(income, savings, snap.MonthExpenses, *req.PlannedAmount)
		res.Impact = &impact
	}
	e.count(models.BundleExpenseRegressor, string(models.OutcomePrediction))
	return res, nil
}

// PredictDecision classifies a transaction as good, neutral or regretted.
func (e *PredictionEngine) PredictDecision(ctx context.Context, req *models.ScoringRequest, opts DecisionOptions) (*models.DecisionResult, error) {
	start := time.Now()
	defer e.latency("predict_decision_seconds", start)

	bundle, err := e.models.EnsureLoaded(ctx, domrepo.DecisionModelKey)
	if err != nil {
		e.count(models.BundleDecisionClassifier, "error")
		return nil, err
	}
	cl, ok := bundle.Estimator.(models.Classifier)
	if !ok {
		e.count(models.BundleDecisionClassifier, "error")
		return nil, fmt.Errorf("bundle %s: estimator %s is not a classifier", bundle.Version, bundle.Estimator.Kind())
	}

	scoring := *req
	if opts.DeriveContext {
		at := opts.At
		if at.IsZero() {
			at = e.now()
		}
		activity, err := e.history.UserActivity(ctx, req.UserID)
		if err != nil {
			e.count(models.BundleDecisionClassifier, "error")
			return nil, fmt.Errorf("user activity: %w", err)
		}
		scoring.Context = features.ComputeContext(activity, req.Category, req.Amount, at)
	}

	vec, err := e.builder.Build(&scoring, bundle)
	if err != nil {
		e.count(models.BundleDecisionClassifier, "error")
		return nil, err
	}

	proba := cl.PredictProba(vec)
	classes := cl.Classes()
	best := 0
	probs := make(map[string]float64, len(classes))
	for i, c := range classes {
		probs[labelName(bundle, c)] = math.Round(proba[i]*10000) / 10000
		if proba[i] > proba[best] {
			best = i
		}
	}
	class := classes[best]
	info := bundle.LabelSemantics[class]

	e.count(models.BundleDecisionClassifier, labelName(bundle, class))
	return &models.DecisionResult{
		UserID:         req.UserID,
		Prediction:     class,
		Label:          labelName(bundle, class),
		Emoji:          info.Emoji,
		Confidence:     math.Round(proba[best]*10000) / 10000,
		Probabilities:  probs,
		Advice:         info.Advice,
		ModelVersion:   bundle.Version,
		ModelTrainedAt: bundle.TrainedAt,
	}, nil
}

func labelName(b *models.ModelBundle, class int) string {
	if info, ok := b.LabelSemantics[class]; ok && info.Label != "" {
		return info.Label
	}
	return strconv.Itoa(class)
}

func valueOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func (e *PredictionEngine) count(kind models.BundleKind, outcome string) {
	if e.metrics != nil {
		e.metrics.RecordPrediction(string(kind), outcome)
	}
}

func (e *PredictionEngine) latency(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordLatency(op, time.Since(start).Seconds())
	}
}
