package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	"FinScore/internal/service/ratelimit"
	"FinScore/internal/usecase"
)

type fakeLifecycle struct {
	statuses   map[string]models.ModelStatus
	retrainErr error
	reloadErr  error
	loadErr    error
	retrained  []models.RetrainTarget
	reloaded   []string
}

func (f *fakeLifecycle) EnsureLoaded(_ context.Context, key string) (*models.ModelBundle, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &models.ModelBundle{}, nil
}

func (f *fakeLifecycle) Reload(_ context.Context, key string) (*models.ModelBundle, error) {
	f.reloaded = append(f.reloaded, key)
	return nil, f.reloadErr
}

func (f *fakeLifecycle) Retrain(_ context.Context, t models.RetrainTarget) (*models.ModelBundle, error) {
	f.retrained = append(f.retrained, t)
	if f.retrainErr != nil {
		return nil, f.retrainErr
	}
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.statuses[domrepo.ModelKeyFor(t)] = models.ModelStatus{ModelKey: domrepo.ModelKeyFor(t), State: models.StateReady, Version: "v2", TrainedAt: &at}
	return &models.ModelBundle{}, nil
}

func (f *fakeLifecycle) Status(key string) models.ModelStatus {
	if st, ok := f.statuses[key]; ok {
		return st
	}
	return models.ModelStatus{ModelKey: key, State: models.StateEmpty}
}

func (f *fakeLifecycle) ActiveModels() int { return len(f.statuses) }

type fakePredictor struct {
	err      error
	lastReq  *models.ScoringRequest
	lastOpts usecase.DecisionOptions
}

func (f *fakePredictor) Predict(_ context.Context, req *models.ScoringRequest) (*models.PredictionResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.PredictionResult{Outcome: models.OutcomePrediction, UserID: req.UserID, Category: req.Category, PredictedAmount: 42}, nil
}

func (f *fakePredictor) PredictDecision(_ context.Context, req *models.ScoringRequest, opts usecase.DecisionOptions) (*models.DecisionResult, error) {
	f.lastReq, f.lastOpts = req, opts
	if f.err != nil {
		return nil, f.err
	}
	return &models.DecisionResult{UserID: req.UserID, Prediction: 1, Label: "good"}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type errItem struct {
	Code   string                 `json:"code"`
	Params map[string]interface{} `json:"params"`
}

func newTestServer(lc *fakeLifecycle, p *fakePredictor, lim *ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	NewModelEchoHandler(nil, lc, p, lim).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func firstError(t *testing.T, env envelope) errItem {
	t.Helper()
	var items []errItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.NotEmpty(t, items)
	return items[0]
}

func TestHealthReportsDecisionModel(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	lc := &fakeLifecycle{statuses: map[string]models.ModelStatus{
		domrepo.DecisionModelKey: {ModelKey: domrepo.DecisionModelKey, State: models.StateReady, TrainedAt: &at},
		"user:u1":                {ModelKey: "user:u1", State: models.StateReady},
	}}
	e := newTestServer(lc, &fakePredictor{}, nil)

	rec, _ := do(t, e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.ModelLoaded)
	assert.Equal(t, 2, body.ActiveModels)
	require.NotNil(t, body.ModelTrainedAt)
	assert.True(t, at.Equal(*body.ModelTrainedAt))
}

func TestPredictValidatesAndServes(t *testing.T) {
	p := &fakePredictor{}
	e := newTestServer(&fakeLifecycle{statuses: map[string]models.ModelStatus{}}, p, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/predict", `{"category":"Ocio"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, e, http.MethodPost, "/api/predict", `{"user_id":"u1","category":"Ocio","planned_amount":100,"income":2000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusOK, env.Status)
	require.NotNil(t, p.lastReq)
	assert.Equal(t, 100.0, p.lastReq.Amount)
	require.NotNil(t, p.lastReq.Income)
	assert.Equal(t, 2000.0, *p.lastReq.Income)
	assert.Nil(t, p.lastReq.Savings)
}

func TestPredictDecisionParsesOptions(t *testing.T) {
	p := &fakePredictor{}
	e := newTestServer(&fakeLifecycle{statuses: map[string]models.ModelStatus{}}, p, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/predict-decision",
		`{"user_id":"u1","category":"Ocio","amount":50,"derive_context":true,"at":"2024-03-09"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, p.lastOpts.DeriveContext)
	assert.Equal(t, 9, p.lastOpts.At.Day())
	// defaults apply to fields the caller left out
	assert.Equal(t, 50.0, p.lastReq.Context.CategoryNecessityScore)
	assert.Equal(t, 1.0, p.lastReq.Context.AmountVsCategoryAvg)

	rec, _ = do(t, e, http.MethodPost, "/api/predict-decision", `{"user_id":"u1","category":"Ocio","amount":50,"at":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorsMapToDistinctCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not trained", &models.NotTrainedError{ModelKey: "user:u1"}, http.StatusNotFound, CodeNotTrained},
		{"insufficient", &models.InsufficientDataError{Scope: "user u1", Have: 1, Need: 2}, http.StatusUnprocessableEntity, CodeInsufficientData},
		{"contract", &models.MissingFeatureError{Column: "x"}, http.StatusInternalServerError, CodeFeatureContract},
		{"store", &models.StoreUnavailableError{Op: "artifact get", Err: errors.New("refused")}, http.StatusServiceUnavailable, CodeStoreUnavailable},
		{"corrupt", &models.SerializationError{Key: "k", Err: errors.New("bad json")}, http.StatusInternalServerError, CodeArtifactCorrupt},
		{"timeout", fmt.Errorf("fit: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, CodeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestServer(&fakeLifecycle{statuses: map[string]models.ModelStatus{}}, &fakePredictor{err: tc.err}, nil)
			rec, env := do(t, e, http.MethodPost, "/api/predict", `{"user_id":"u1","category":"Ocio"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, firstError(t, env).Code)
		})
	}
}

func TestTrainUserModelRetrainsAndReportsStatus(t *testing.T) {
	lc := &fakeLifecycle{statuses: map[string]models.ModelStatus{}}
	e := newTestServer(lc, &fakePredictor{}, nil)

	rec, env := do(t, e, http.MethodPost, "/api/train/u7", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, lc.retrained, 1)
	assert.Equal(t, models.RetrainTarget{Kind: models.BundleExpenseRegressor, UserID: "u7"}, lc.retrained[0])

	var st models.ModelStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, models.StateReady, st.State)
	assert.Equal(t, "v2", st.Version)
}

func TestRetrainFailureCarriesStage(t *testing.T) {
	fetchErr := &usecase.StageError{Stage: usecase.StageFetch, Err: &models.InsufficientDataError{Scope: "decision", Have: 3, Need: 15}}
	lc := &fakeLifecycle{statuses: map[string]models.ModelStatus{}, retrainErr: fetchErr}
	e := newTestServer(lc, &fakePredictor{}, nil)

	rec, env := do(t, e, http.MethodPost, "/api/retrain", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	item := firstError(t, env)
	assert.Equal(t, CodeInsufficientData, item.Code)
	assert.Equal(t, "fetch", item.Params["stage"])
}

func TestRetrainIsRateLimitedPerKey(t *testing.T) {
	lc := &fakeLifecycle{statuses: map[string]models.ModelStatus{}}
	e := newTestServer(lc, &fakePredictor{}, ratelimit.New(1, 0.0001))

	rec, _ := do(t, e, http.MethodPost, "/api/retrain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, env := do(t, e, http.MethodPost, "/api/retrain", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimited, firstError(t, env).Code)
	assert.Len(t, lc.retrained, 1)

	// a different key has its own bucket
	rec, _ = do(t, e, http.MethodPost, "/api/train/u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModelInfoAndStatus(t *testing.T) {
	lc := &fakeLifecycle{statuses: map[string]models.ModelStatus{}, loadErr: &models.NotTrainedError{ModelKey: domrepo.DecisionModelKey}}
	e := newTestServer(lc, &fakePredictor{}, nil)

	rec, _ := do(t, e, http.MethodGet, "/api/model-info", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := do(t, e, http.MethodGet, "/api/models/u9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.ModelStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "user:u9", st.ModelKey)
	assert.Equal(t, models.StateEmpty, st.State)
}

func TestReloadRoutes(t *testing.T) {
	lc := &fakeLifecycle{statuses: map[string]models.ModelStatus{}}
	e := newTestServer(lc, &fakePredictor{}, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/models/u3/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/api/decision/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user:u3", domrepo.DecisionModelKey}, lc.reloaded)

	lc.reloadErr = &usecase.StageError{Stage: usecase.StageLoad, Err: &models.SerializationError{Key: "models/u3.json", Err: errors.New("eof")}}
	rec, env := do(t, e, http.MethodPost, "/api/models/u3/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeArtifactCorrupt, firstError(t, env).Code)
}
