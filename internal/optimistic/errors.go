package optimistic

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed mutation
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindAuth       ErrorKind = "auth"
	KindValidation ErrorKind = "validation"
	KindServer     ErrorKind = "server"
	KindConflict   ErrorKind = "conflict"
)

// Retryable reports the default retry behaviour of a kind
func (k ErrorKind) Retryable() bool {
	return k == KindNetwork || k == KindServer
}

// ErrNotFound marks a remote resource that does not exist
var ErrNotFound = errors.New("not found")

// OperationError is the error type surfaced by every controller operation
type OperationError struct {
	Kind          ErrorKind `json:"kind"`
	Message       string    `json:"message"`
	Retryable     bool      `json:"retryable"`
	RelatedItemID string    `json:"relatedItemId,omitempty"`
	Err           error     `json:"-"`
}

// NewError builds an OperationError with the kind's default retryability
func NewError(kind ErrorKind, message string, cause error) *OperationError {
	return &OperationError{
		Kind:      kind,
		Message:   message,
		Retryable: kind.Retryable(),
		Err:       cause,
	}
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OperationError) Unwrap() error { return e.Err }

// IsRetryable satisfies retry.Retryable
func (e *OperationError) IsRetryable() bool { return e.Retryable }

// Is matches another OperationError of the same kind
func (e *OperationError) Is(target error) bool {
	t, ok := target.(*OperationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Classify maps any error returned by a RemoteStore onto the taxonomy.
// Unknown errors are treated as transient network failures.
func Classify(err error) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}

	if errors.Is(err, ErrNotFound) {
		return NewError(KindValidation, "article introuvable", err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindNetwork, "requête interrompue", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(KindNetwork, "erreur réseau", err)
	}

	return NewError(KindNetwork, "erreur de communication", err)
}

// IsNotFound reports whether err marks a missing remote resource
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// KindOf returns the kind of err, or "" when err is nil
func KindOf(err error) ErrorKind {
	if opErr := Classify(err); opErr != nil {
		return opErr.Kind
	}
	return ""
}
