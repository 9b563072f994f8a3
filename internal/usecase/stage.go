package usecase

import "errors"

// Pipeline stages reported with retrain and reload failures.
const (
	StageFetch    = "fetch"
	StageFit      = "fit"
	StageEncode   = "encode"
	StagePersist  = "persist"
	StageLoad     = "load"
	StageValidate = "validate"
	StageInstall  = "install"
)

// StageError tags an error with the lifecycle stage it came from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func atStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or "" if none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
