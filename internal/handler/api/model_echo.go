package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	"FinScore/internal/service/ratelimit"
	"FinScore/internal/usecase"
	xhttp "FinScore/pkg/http"
	xlogger "FinScore/pkg/logger"
)

// Lifecycle is the slice of the model lifecycle manager the API needs.
type Lifecycle interface {
	EnsureLoaded(ctx context.Context, key string) (*models.ModelBundle, error)
	Reload(ctx context.Context, key string) (*models.ModelBundle, error)
	Retrain(ctx context.Context, target models.RetrainTarget) (*models.ModelBundle, error)
	Status(key string) models.ModelStatus
	ActiveModels() int
}

// Predictor scores requests.
type Predictor interface {
	Predict(ctx context.Context, req *models.ScoringRequest) (*models.PredictionResult, error)
	PredictDecision(ctx context.Context, req *models.ScoringRequest, opts usecase.DecisionOptions) (*models.DecisionResult, error)
}

var (
	_ Lifecycle = (*usecase.ModelLifecycleManager)(nil)
	_ Predictor = (*usecase.PredictionEngine)(nil)
)

// ModelEchoHandler serves predictions, synchronous retrains and model status.
type ModelEchoHandler struct {
	logger    *xlogger.Logger
	lifecycle Lifecycle
	predictor Predictor
	limiter   *ratelimit.Limiter
}

// NewModelEchoHandler builds the handler. limiter may be nil.
func NewModelEchoHandler(logger *xlogger.Logger, lc Lifecycle, p Predictor, limiter *ratelimit.Limiter) *ModelEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &ModelEchoHandler{logger: logger.With(xlogger.String("component", "api")), lifecycle: lc, predictor: p, limiter: limiter}
}

func (h *ModelEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/predict", h.Predict)
	g.POST("/predict-decision", h.PredictDecision)
	g.POST("/retrain", h.RetrainDecision)
	g.GET("/model-info", h.ModelInfo)
	g.POST("/decision/reload", h.ReloadDecision)
	g.GET("/models/:user_id", h.UserModelStatus)
	g.POST("/models/:user_id/reload", h.ReloadUserModel)
	g.POST("/train/:user_id", h.TrainUserModel)
}

type healthResponse struct {
	Status         string     `json:"status"`
	ModelLoaded    bool       `json:"model_loaded"`
	ModelTrainedAt *time.Time `json:"model_trained_at"`
	ActiveModels   int        `json:"active_models"`
}

// Health reports the decision model and the number of READY slots.
func (h *ModelEchoHandler) Health(c echo.Context) error {
	st := h.lifecycle.Status(domrepo.DecisionModelKey)
	return c.JSON(http.StatusOK, healthResponse{
		Status:         "ok",
		ModelLoaded:    st.State != models.StateEmpty,
		ModelTrainedAt: st.TrainedAt,
		ActiveModels:   h.lifecycle.ActiveModels(),
	})
}

func (h *ModelEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.predictor.Predict(c.Request().Context(), req.ToScoring())
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ModelEchoHandler) PredictDecision(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	opts := usecase.DecisionOptions{DeriveContext: req.DeriveContext}
	if req.At != "" {
		at, ok := xhttp.ParseTime(req.At)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("cannot parse at %q", req.At))
		}
		opts.At = at
	}
	res, err := h.predictor.PredictDecision(c.Request().Context(), req.ToScoring(), opts)
	if err != nil {
		return h.fail(c, "predict_decision", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// RetrainDecision retrains the decision model and swaps it in before responding.
func (h *ModelEchoHandler) RetrainDecision(c echo.Context) error {
	return h.retrain(c, models.RetrainTarget{Kind: models.BundleDecisionClassifier})
}

func (h *ModelEchoHandler) TrainUserModel(c echo.Context) error {
	req := &models.UserPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.retrain(c, models.RetrainTarget{Kind: models.BundleExpenseRegressor, UserID: req.UserID})
}

func (h *ModelEchoHandler) retrain(c echo.Context, target models.RetrainTarget) error {
	key := domrepo.ModelKeyFor(target)
	if h.limiter != nil && !h.limiter.Allow(key) {
		return h.fail(c, "retrain", &models.RateLimitedError{ModelKey: key})
	}
	if _, err := h.lifecycle.Retrain(c.Request().Context(), target); err != nil {
		return h.fail(c, "retrain", err)
	}
	return xhttp.SuccessResponse(c, h.lifecycle.Status(key))
}

// ModelInfo describes the decision model, loading it on first use.
func (h *ModelEchoHandler) ModelInfo(c echo.Context) error {
	if _, err := h.lifecycle.EnsureLoaded(c.Request().Context(), domrepo.DecisionModelKey); err != nil {
		return h.fail(c, "model_info", err)
	}
	return xhttp.SuccessResponse(c, h.lifecycle.Status(domrepo.DecisionModelKey))
}

func (h *ModelEchoHandler) ReloadDecision(c echo.Context) error {
	return h.reload(c, domrepo.DecisionModelKey)
}

func (h *ModelEchoHandler) ReloadUserModel(c echo.Context) error {
	req := &models.UserPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.reload(c, domrepo.ModelKeyFor(models.RetrainTarget{Kind: models.BundleExpenseRegressor, UserID: req.UserID}))
}

func (h *ModelEchoHandler) reload(c echo.Context, key string) error {
	if _, err := h.lifecycle.Reload(c.Request().Context(), key); err != nil {
		return h.fail(c, "reload", err)
	}
	return xhttp.SuccessResponse(c, h.lifecycle.Status(key))
}

// UserModelStatus reports the slot as is; an EMPTY slot is not an error.
func (h *ModelEchoHandler) UserModelStatus(c echo.Context) error {
	req := &models.UserPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := domrepo.ModelKeyFor(models.RetrainTarget{Kind: models.BundleExpenseRegressor, UserID: req.UserID})
	return xhttp.SuccessResponse(c, h.lifecycle.Status(key))
}

func (h *ModelEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.String("code", appErr.Code), xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.String("code", appErr.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
