package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrQuotaContention = errors.New("quota update kept conflicting with concurrent writers")
)

// ValidationError rejects a request before any dependency is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// QuotaExceededError is returned when a deduction would break a plan limit.
// Nothing was charged.
type QuotaExceededError struct {
	Remaining Remaining
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s plan (daily %d, monthly %d left)",
		e.Remaining.Plan, e.Remaining.Daily, e.Remaining.Monthly)
}

// AnonymousLimitError carries the counter the client should keep.
type AnonymousLimitError struct {
	Counter AnonymousCounter
	Limit   int
}

func (e *AnonymousLimitError) Error() string {
	return fmt.Sprintf("anonymous limit of %d chats reached", e.Limit)
}

// ModelInvocationError wraps a failed model call.
type ModelInvocationError struct {
	ModelID string
	Err     error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model %s failed: %v", e.ModelID, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// TransientError marks a dependency failure that the turn absorbed.
type TransientError struct {
	Dependency string
	Err        error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
