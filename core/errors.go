package core

import (
	"errors"
	"fmt"
)

// Sentinel errors of the taxonomy. Typed errors below wrap them so callers
// can use errors.Is for classification and errors.As for details.
var (
	// ErrToolNotFound signals dispatch of an unregistered tool name. It never
	// aborts a run; it is converted into a tool error payload.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolExecution signals a handler level failure (non-fatal).
	ErrToolExecution = errors.New("tool execution failed")
	// ErrGateway signals a failure of the remote model (terminal for the run).
	ErrGateway = errors.New("model gateway error")
	// ErrOrchestrationLimit signals that the iteration cap was hit.
	ErrOrchestrationLimit = errors.New("orchestration limit exceeded")
	// ErrPersistence signals a storage failure.
	ErrPersistence = errors.New("persistence error")
	// ErrMalformedHistory signals a history that violates tool call correlation.
	ErrMalformedHistory = errors.New("malformed history")
	// ErrThreadBusy is returned when a run is already active for a thread.
	ErrThreadBusy = errors.New("thread busy")
	// ErrCancelled signals that a run was cancelled by the caller.
	ErrCancelled = errors.New("run cancelled")
)

// GatewayError wraps a failure reported by a model provider.
type GatewayError struct {
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("model gateway error: %v", e.Err)
	}
	return fmt.Sprintf("model gateway error [%s]: %v", e.Provider, e.Err)
}

// Unwrap exposes both the sentinel and the underlying provider error.
func (e *GatewayError) Unwrap() []error { return []error{ErrGateway, e.Err} }

// NewGatewayError wraps err unless it already is a *GatewayError.
func NewGatewayError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &GatewayError{Provider: provider, Err: err}
}

// PersistenceError wraps a storage failure for a thread operation.
type PersistenceError struct {
	Op       string // load, save, list, delete
	ThreadID string
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.ThreadID == "" {
		return fmt.Sprintf("persistence error (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence error (%s thread %q): %v", e.Op, e.ThreadID, e.Err)
}

// Unwrap exposes both the sentinel and the underlying storage error.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// NewPersistenceError wraps err unless it is nil or already a *PersistenceError.
func NewPersistenceError(op, threadID string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, ThreadID: threadID, Err: err}
}

// LimitExceededError reports the iteration cap that was hit.
type LimitExceededError struct {
	Limit int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("orchestration limit exceeded: %d model calls", e.Limit)
}

// Unwrap returns ErrOrchestrationLimit.
func (e *LimitExceededError) Unwrap() error { return ErrOrchestrationLimit }

// MalformedHistoryError pinpoints the first message violating tool call
// correlation.
type MalformedHistoryError struct {
	Index  int
	Reason string
}

func (e *MalformedHistoryError) Error() string {
	return fmt.Sprintf("malformed history at message %d: %s", e.Index, e.Reason)
}

// Unwrap returns ErrMalformedHistory.
func (e *MalformedHistoryError) Unwrap() error { return ErrMalformedHistory }
