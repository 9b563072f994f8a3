package api

import (
	"context"
	"errors"

	"FinScore/internal/domain/models"
	"FinScore/internal/usecase"
	xhttp "FinScore/pkg/http"
)

// Error codes of the serving boundary.
const (
	CodeNotTrained       = "ERR_NOT_TRAINED"
	CodeInsufficientData = "ERR_INSUFFICIENT_DATA"
	CodeFeatureContract  = "ERR_FEATURE_CONTRACT"
	CodeStoreUnavailable = "ERR_STORE_UNAVAILABLE"
	CodeArtifactCorrupt  = "ERR_ARTIFACT_CORRUPT"
	CodeTimeout          = "ERR_TIMEOUT"
	CodeRateLimited      = "ERR_RATE_LIMITED"
)

// toAppError maps a domain error onto an HTTP error. Not trained, broken, and not enough data never share a code.
func toAppError(err error) *xhttp.AppError {
	var (
		rl  *models.RateLimitedError
		ins *models.InsufficientDataError
		mf  *models.MissingFeatureError
		se  *models.SerializationError
		ae  *xhttp.AppError
		out *xhttp.AppError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &rl):
		out = xhttp.TooManyRequestsError(rl.Error()).WithCode(CodeRateLimited).WithParam("model_key", rl.ModelKey)
	case errors.Is(err, models.ErrNotTrained):
		out = xhttp.NotFoundError("no model trained yet").WithCode(CodeNotTrained)
		var nt *models.NotTrainedError
		if errors.As(err, &nt) {
			out.WithParam("model_key", nt.ModelKey)
		}
	case errors.As(err, &ins):
		out = xhttp.UnprocessableError(ins.Error()).WithCode(CodeInsufficientData).
			WithParam("have", ins.Have).
			WithParam("need", ins.Need)
	case errors.As(err, &mf):
		out = xhttp.InternalError(mf.Error()).WithCode(CodeFeatureContract).WithParam("column", mf.Column)
	case errors.As(err, &se):
		out = xhttp.InternalError("persisted model is corrupt or incompatible").WithCode(CodeArtifactCorrupt)
	case errors.Is(err, context.DeadlineExceeded):
		out = xhttp.GatewayTimeoutError("operation timed out").WithCode(CodeTimeout)
	case errors.Is(err, models.ErrStoreUnavailable):
		out = xhttp.ServiceUnavailableError("storage is unavailable").WithCode(CodeStoreUnavailable)
	default:
		out = xhttp.InternalError("internal error")
	}
	if stage := usecase.StageOf(err); stage != "" {
		out.WithParam("stage", stage)
	}
	return out.WithError(err)
}
