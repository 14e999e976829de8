package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
)

// ExecutionError is returned by Engine.Execute and Execution.Err. It wraps
// the underlying error, so errors.Is against query and kv sentinels still
// works.
type ExecutionError struct {
	// Code identifies the error category.
	Code ExecutionErrorCode

	// ExecutionID identifies the failed execution.
	ExecutionID string

	// PlanHash is the version-stable hash of the plan, in hex.
	PlanHash string

	Err error
}

// ExecutionErrorCode categorizes execution errors.
type ExecutionErrorCode string

const (
	// ErrCodeContextRequired means the plan references a parameter that was
	// not supplied, either with no context at all or unbound in it.
	ErrCodeContextRequired ExecutionErrorCode = "CONTEXT_REQUIRED"

	// ErrCodeInvalidContinuation means the continuation does not belong to
	// this plan.
	ErrCodeInvalidContinuation ExecutionErrorCode = "INVALID_CONTINUATION"

	// ErrCodeStoreFailure covers everything the store reported.
	ErrCodeStoreFailure ExecutionErrorCode = "STORE_FAILURE"
)

func (e *ExecutionError) Error() string {
	if e.ExecutionID != "" {
		return fmt.Sprintf("%s: %v (execution=%s, plan=%s)", e.Code, e.Err, e.ExecutionID, e.PlanHash)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func classify(err error) ExecutionErrorCode {
	switch {
	case query.IsContextRequired(err), errors.Is(err, query.ErrUnboundParameter):
		return ErrCodeContextRequired
	case errors.Is(err, kv.ErrInvalidContinuation):
		return ErrCodeInvalidContinuation
	default:
		return ErrCodeStoreFailure
	}
}

func newExecutionError(err error, executionID, planHash string) *ExecutionError {
	return &ExecutionError{
		Code:        classify(err),
		ExecutionID: executionID,
		PlanHash:    planHash,
		Err:         err,
	}
}

// IsContextRequired returns true if err is a CONTEXT_REQUIRED execution error.
// Uses errors.As to handle wrapped errors.
func IsContextRequired(err error) bool {
	return hasCode(err, ErrCodeContextRequired)
}

// IsInvalidContinuation returns true if err is an INVALID_CONTINUATION
// execution error.
func IsInvalidContinuation(err error) bool {
	return hasCode(err, ErrCodeInvalidContinuation)
}

// IsStoreFailure returns true if err is a STORE_FAILURE execution error.
func IsStoreFailure(err error) bool {
	return hasCode(err, ErrCodeStoreFailure)
}

func hasCode(err error, code ExecutionErrorCode) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
