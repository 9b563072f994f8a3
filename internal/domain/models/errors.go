package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTrained is returned when no bundle is installed for a model key.
	ErrNotTrained = errors.New("model not trained")
	// ErrArtifactNotFound is returned by artifact stores for a missing key.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrStoreUnavailable marks network or storage faults.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStaleBundle rejects a candidate trained before the bundle already serving.
	ErrStaleBundle = errors.New("bundle is older than the serving bundle")
)

// NotTrainedError names the model key that has no bundle.
type NotTrainedError struct {
	ModelKey string
}

func (e *NotTrainedError) Error() string {
	return fmt.Sprintf("no model trained yet for %s", e.ModelKey)
}

func (e *NotTrainedError) Unwrap() error { return ErrNotTrained }

// InsufficientDataError reports too few real examples to fit a reliable model.
type InsufficientDataError struct {
	Scope string
	Have  int
	Need  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: have %d examples, need at least %d", e.Scope, e.Have, e.Need)
}

// MissingFeatureError means a declared column cannot be resolved from the raw attributes.
type MissingFeatureError struct {
	Column string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("feature column %q cannot be resolved", e.Column)
}

// StoreUnavailableError wraps a failed store or data-source call.
type StoreUnavailableError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// SerializationError reports a corrupt or incompatible persisted bundle.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("bundle %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("bundle: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// RateLimitedError is returned when retrains for a model key arrive faster than allowed.
type RateLimitedError struct {
	ModelKey string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("retrain for %s rate limited", e.ModelKey)
}
