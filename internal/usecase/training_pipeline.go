package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	domsvc "FinScore/internal/domain/service"
	"FinScore/internal/services/augment"
	"FinScore/internal/services/estimator"
	"FinScore/internal/services/features"
	applogger "FinScore/pkg/logger"
)

const unknownCategory = "unknown"

// TrainingConfig holds thresholds and estimator settings for both model kinds.
type TrainingConfig struct {
	MinPersonalRecords int
	PopulationFallback bool
	MinLabeledExamples int
	Boosting           estimator.BoostingParams
	Forest             estimator.ForestParams
}

// DefaultTrainingConfig returns the production thresholds.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		MinPersonalRecords: 2,
		PopulationFallback: true,
		MinLabeledExamples: 15,
		Boosting:           estimator.DefaultBoostingParams(),
		Forest:             estimator.DefaultForestParams(),
	}
}

// DecisionLabels is the user-facing meaning of each decision class.
func DecisionLabels() map[int]models.LabelInfo {
	return map[int]models.LabelInfo{
		1:  {Label: "good", Emoji: "😊", Advice: "This expense is in line with your habits. Go ahead!"},
		0:  {Label: "neutral", Emoji: "😐", Advice: "A normal expense. Weigh it before confirming."},
		-1: {Label: "regretted", Emoji: "😰", Advice: "Careful: similar expenses have led to regret before. Do you need it now?"},
	}
}

// TrainingPipeline fits bundles and persists them. It never installs a bundle.
type TrainingPipeline struct {
	source      domrepo.TrainingSource
	engine      *augment.Engine
	store       domrepo.ArtifactStore
	codec       domsvc.BundleCodec
	cfg         TrainingConfig
	expenseCols []models.FeatureColumn
	log         *applogger.Logger
	now         func() time.Time
}

var _ domsvc.ModelTrainer = (*TrainingPipeline)(nil)

// TrainingOption configures TrainingPipeline.
type TrainingOption func(*TrainingPipeline)

func WithTrainingLogger(l *applogger.Logger) TrainingOption {
	return func(p *TrainingPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithExpenseColumns overrides the declared expense column order.
func WithExpenseColumns(cols []models.FeatureColumn) TrainingOption {
	return func(p *TrainingPipeline) { p.expenseCols = cols }
}

// WithClock overrides the clock used for trained_at.
func WithClock(now func() time.Time) TrainingOption {
	return func(p *TrainingPipeline) { p.now = now }
}

func NewTrainingPipeline(source domrepo.TrainingSource, engine *augment.Engine, store domrepo.ArtifactStore, codec domsvc.BundleCodec, cfg TrainingConfig, opts ...TrainingOption) *TrainingPipeline {
	p := &TrainingPipeline{
		source:      source,
		engine:      engine,
		store:       store,
		codec:       codec,
		cfg:         cfg,
		expenseCols: features.ExpenseColumns(),
		log:         applogger.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Train fits the bundle for target and persists it to the artifact store.
func (p *TrainingPipeline) Train(ctx context.Context, target models.RetrainTarget) (*models.ModelBundle, error) {
	var (
		b   *models.ModelBundle
		err error
	)
	switch target.Kind {
	case models.BundleDecisionClassifier:
		b, err = p.TrainDecisionModel(ctx)
	case models.BundleExpenseRegressor:
		b, err = p.TrainExpenseModel(ctx, target.UserID)
	default:
		return nil, fmt.Errorf("unknown bundle kind %q", target.Kind)
	}
	if err != nil {
		return nil, err
	}
	if err := p.Persist(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Persist writes the bundle and its human-readable sidecar.
func (p *TrainingPipeline) Persist(ctx context.Context, b *models.ModelBundle) error {
	key := domrepo.ModelKeyFor(models.RetrainTarget{Kind: b.Kind, UserID: b.UserID})
	data, err := p.codec.Encode(b)
	if err != nil {
		return atStage(StageEncode, err)
	}
	var sidecar any = b.Metadata
	if b.Kind == models.BundleExpenseRegressor {
		sidecar = b.Encoder.Mapping()
	}
	side, err := json.Marshal(sidecar)
	if err != nil {
		return atStage(StageEncode, fmt.Errorf("encode sidecar: %w", err))
	}

	if err := p.store.Put(ctx, domrepo.BundleArtifactKey(key), data); err != nil {
		return atStage(StagePersist, err)
	}
	if err := p.store.Put(ctx, domrepo.SidecarArtifactKey(key), side); err != nil {
		return atStage(StagePersist, err)
	}
	p.log.Info("bundle persisted",
		applogger.String("model_key", key),
		applogger.String("version", b.Version),
		applogger.Int("bytes", len(data)),
	)
	return nil
}

// TrainExpenseModel fits the per-user expense regressor on real examples plus the synthetic grid.
func (p *TrainingPipeline) TrainExpenseModel(ctx context.Context, userID string) (*models.ModelBundle, error) {
	records, err := p.source.ExpenseRecords(ctx)
	if err != nil {
		return nil, atStage(StageFetch, err)
	}
	summaries, err := p.source.FinancialSummaries(ctx)
	if err != nil {
		return nil, atStage(StageFetch, err)
	}

	var personal []models.ExpenseRecord
	labels := make([]string, 0, len(records))
	for _, r := range records {
		labels = append(labels, r.Category)
		if r.UserID == userID {
			personal = append(personal, r)
		}
	}

	need := p.cfg.MinPersonalRecords
	scope := "user"
	fitSet := personal
	if len(personal) < need {
		if !p.cfg.PopulationFallback {
			return nil, atStage(StageFetch, &models.InsufficientDataError{Scope: "user:" + userID, Have: len(personal), Need: need})
		}
		if len(records) < need {
			return nil, atStage(StageFetch, &models.InsufficientDataError{Scope: "population", Have: len(records), Need: need})
		}
		scope = "population"
		fitSet = records
		p.log.Warn("too few personal records, training on population",
			applogger.String("user_id", userID),
			applogger.Int("personal", len(personal)),
			applogger.Int("population", len(records)),
		)
	}

	enc := models.NewCategoryEncoding(labels)
	if enc.Len() == 0 {
		return nil, atStage(StageFetch, &models.InsufficientDataError{Scope: "categories", Have: 0, Need: 1})
	}

	var maxIncome, maxSavings float64
	examples := make([]models.TrainingExample, 0, len(fitSet))
	for _, r := range fitSet {
		code, _ := enc.Code(r.Category)
		s := summaries[r.UserID]
		maxIncome = math.Max(maxIncome, s.Income)
		maxSavings = math.Max(maxSavings, s.Savings)
		examples = append(examples, models.TrainingExample{
			CategoryCode: code,
			Income:       s.Income,
			Savings:      s.Savings,
			Target:       r.Amount,
		})
	}
	nReal := len(examples)
	synthetic := p.engine.Generate(enc.Codes(), augment.WithObservedMax(maxIncome, maxSavings))
	examples = append(examples, synthetic...)

	cols := p.expenseCols
	X := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		row, err := features.Project(cols, features.ExampleAttributes(ex))
		if err != nil {
			return nil, atStage(StageEncode, err)
		}
		X[i] = row
		y[i] = ex.Target
	}

	start := time.Now()
	model, err := estimator.FitGradientBoosting(X, y, p.cfg.Boosting)
	if err != nil {
		return nil, atStage(StageFit, err)
	}
	rmse, mae := estimator.RegressionErrors(y[:nReal], predictRows(model, X[:nReal]))

	now := p.now().UTC()
	weights := p.engine.Config()
	b := &models.ModelBundle{
		Version:        uuid.NewString(),
		Kind:           models.BundleExpenseRegressor,
		UserID:         userID,
		Estimator:      model,
		Encoder:        enc,
		FeatureColumns: cols,
		TrainedAt:      now,
		Metadata: &models.TrainingMetadata{
			ModelType:          model.Kind(),
			TrainedAt:          now,
			Scope:              scope,
			NReal:              nReal,
			NSynthetic:         len(synthetic),
			PopulationFallback: scope == "population",
			IncomeWeight:       weights.IncomeWeight,
			SavingsWeight:      weights.SavingsWeight,
			TrainRMSE:          rmse,
			TrainMAE:           mae,
			FeatureImportance:  importanceByColumn(cols, model.FeatureImportances()),
			Features:           columnNames(cols),
		},
	}
	p.log.Info("expense model trained",
		applogger.String("user_id", userID),
		applogger.String("scope", scope),
		applogger.Int("n_real", nReal),
		applogger.Int("n_synthetic", len(synthetic)),
		applogger.Float64("train_rmse", rmse),
		applogger.Duration("fit_ms", time.Since(start)),
	)
	return b, nil
}

// TrainDecisionModel fits the shared decision classifier on the labeled feature table.
func (p *TrainingPipeline) TrainDecisionModel(ctx context.Context) (*models.ModelBundle, error) {
	rows, err := p.source.LabeledFeatures(ctx)
	if err != nil {
		return nil, atStage(StageFetch, err)
	}
	if len(rows) < p.cfg.MinLabeledExamples {
		return nil, atStage(StageFetch, &models.InsufficientDataError{Scope: "decision", Have: len(rows), Need: p.cfg.MinLabeledExamples})
	}

	labels := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = categoryOrUnknown(r.Category)
	}
	enc := models.NewCategoryEncoding(labels)

	cols := features.DecisionColumns()
	X := make([][]float64, len(rows))
	y := make([]int, len(rows))
	distribution := map[string]int{}
	for i, r := range rows {
		vec := make([]float64, len(cols))
		for j, c := range cols {
			if c.Name == features.ColCategory {
				code, _ := enc.Code(labels[i])
				vec[j] = float64(code)
				continue
			}
			v, ok := r.Values[c.Name]
			if !ok {
				v = math.NaN()
			}
			vec[j] = v
		}
		X[i] = vec
		y[i] = r.Label
		distribution[strconv.Itoa(r.Label)]++
	}
	estimator.ImputeMedian(X)

	if len(distribution) < 2 {
		return nil, atStage(StageFetch, &models.InsufficientDataError{Scope: "decision outcome classes", Have: len(distribution), Need: 2})
	}

	n := len(rows)
	seed := p.cfg.Forest.Seed
	trainIdx, testIdx := estimator.StratifiedSplit(y, estimator.TestFraction(n), seed)
	Xtr, ytr := estimator.Subset(X, trainIdx), estimator.Subset(y, trainIdx)
	Xte, yte := estimator.Subset(X, testIdx), estimator.Subset(y, testIdx)

	folds := estimator.FoldCount(n, len(distribution))
	cv, err := estimator.CrossValidateForest(Xtr, ytr, folds, p.cfg.Forest)
	if err != nil {
		return nil, atStage(StageFit, err)
	}
	cvMean, cvStd := estimator.MeanStd(cv)

	model, err := estimator.FitRandomForest(Xtr, ytr, p.cfg.Forest)
	if err != nil {
		return nil, atStage(StageFit, err)
	}
	pred := estimator.PredictLabels(model, Xte)
	classes := model.Classes()

	now := p.now().UTC()
	b := &models.ModelBundle{
		Version:        uuid.NewString(),
		Kind:           models.BundleDecisionClassifier,
		Estimator:      model,
		Encoder:        enc,
		FeatureColumns: cols,
		LabelSemantics: DecisionLabels(),
		TrainedAt:      now,
		Metadata: &models.TrainingMetadata{
			ModelType:         model.Kind(),
			TrainedAt:         now,
			Scope:             "population",
			NReal:             n,
			CVF1Mean:          cvMean,
			CVF1Std:           cvStd,
			CVFolds:           folds,
			TestAccuracy:      estimator.Accuracy(yte, pred),
			TestF1Weighted:    estimator.F1Weighted(yte, pred),
			NTrain:            len(trainIdx),
			NTest:             len(testIdx),
			ConfusionLabels:   classes,
			ConfusionMatrix:   estimator.ConfusionMatrix(yte, pred, classes),
			FeatureImportance: importanceByColumn(cols, model.FeatureImportances()),
			LabelDistribution: distribution,
			Features:          columnNames(cols),
		},
	}
	p.log.Info("decision model trained",
		applogger.Int("n_samples", n),
		applogger.Int("cv_folds", folds),
		applogger.Float64("cv_f1_mean", cvMean),
		applogger.Float64("test_accuracy", b.Metadata.TestAccuracy),
	)
	return b, nil
}

func categoryOrUnknown(c string) string {
	if c == "" {
		return unknownCategory
	}
	return c
}

func predictRows(m models.Estimator, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = m.Predict(row)
	}
	return out
}

func importanceByColumn(cols []models.FeatureColumn, imp []float64) map[string]float64 {
	out := make(map[string]float64, len(cols))
	for i, c := range cols {
		if i < len(imp) {
			out[c.Name] = imp[i]
		}
	}
	return out
}

func columnNames(cols []models.FeatureColumn) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
