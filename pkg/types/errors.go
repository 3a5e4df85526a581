package types

import (
	"errors"
	"fmt"
)

// Engine configuration and adapter errors.
var (
	ErrConfiguration = errors.New("invalid profile configuration")
	ErrTypeMismatch  = errors.New("value does not have the declared type")
	ErrNoMapper      = errors.New("no mapper configured")
	ErrNilRequest    = errors.New("request must not be nil")
)

// ErrorKind classifies a modeled pipeline failure. The set is closed.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindFailedToFind
	KindHookFailed
	KindRequestFailed
	KindRequestCanceled
	KindCreateEntityFailed
	KindUpdateEntityFailed
	KindCreateResultFailed
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrGeneric            = errors.New("request failed with an unclassified error")
	ErrFailedToFind       = errors.New("failed to find entity")
	ErrHookFailed         = errors.New("hook failed")
	ErrRequestFailed      = errors.New("request failed")
	ErrRequestCanceled    = errors.New("request canceled")
	ErrCreateEntityFailed = errors.New("failed to create entity")
	ErrUpdateEntityFailed = errors.New("failed to update entity")
	ErrCreateResultFailed = errors.New("failed to create result")
)

var kindSentinels = map[ErrorKind]error{
	KindGeneric:            ErrGeneric,
	KindFailedToFind:       ErrFailedToFind,
	KindHookFailed:         ErrHookFailed,
	KindRequestFailed:      ErrRequestFailed,
	KindRequestCanceled:    ErrRequestCanceled,
	KindCreateEntityFailed: ErrCreateEntityFailed,
	KindUpdateEntityFailed: ErrUpdateEntityFailed,
	KindCreateResultFailed: ErrCreateResultFailed,
}

// String returns the kind name used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindFailedToFind:
		return "failed_to_find"
	case KindHookFailed:
		return "hook_failed"
	case KindRequestFailed:
		return "request_failed"
	case KindRequestCanceled:
		return "request_canceled"
	case KindCreateEntityFailed:
		return "create_entity_failed"
	case KindUpdateEntityFailed:
		return "update_entity_failed"
	case KindCreateResultFailed:
		return "create_result_failed"
	default:
		return "unknown"
	}
}

// Error is a modeled failure produced by a pipeline. It carries the request
// that failed, whatever partial result the pipeline had built, and the
// underlying cause.
type Error struct {
	Kind    ErrorKind
	Request any
	Result  any
	Err     error
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, req any, err error) *Error {
	return &Error{Kind: kind, Request: req, Err: err}
}

// WithResult attaches a partial result and returns e.
func (e *Error) WithResult(result any) *Error {
	e.Result = result
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := kindSentinels[e.Kind]
	if msg == nil {
		msg = ErrGeneric
	}
	if e.Err == nil {
		return msg.Error()
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Dispatch routes e to the handler method for its kind. Kinds without a
// dedicated method go to HandleError.
func (e *Error) Dispatch(h ErrorHandler) *Response {
	switch e.Kind {
	case KindFailedToFind:
		return h.HandleFailedToFind(e)
	case KindHookFailed:
		return h.HandleHookFailed(e)
	case KindRequestFailed:
		return h.HandleRequestFailed(e)
	case KindRequestCanceled:
		return h.HandleRequestCanceled(e)
	case KindCreateEntityFailed:
		return h.HandleCreateEntityFailed(e)
	case KindUpdateEntityFailed:
		return h.HandleUpdateEntityFailed(e)
	case KindCreateResultFailed:
		return h.HandleCreateResultFailed(e)
	default:
		return h.HandleError(e)
	}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
