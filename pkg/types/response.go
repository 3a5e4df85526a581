package types

import (
	"errors"
	"fmt"
)

// NoResult is the result type of handlers that return nothing but errors.
type NoResult struct{}

// Response is the type-erased outcome of a pipeline run.
type Response struct {
	Result any
	Errors []*Error
}

// Success wraps result in an error-free Response.
func Success(result any) *Response {
	return &Response{Result: result}
}

// ErrorResponse builds a Response carrying e and its partial result.
func ErrorResponse(e *Error) *Response {
	return &Response{Result: e.Result, Errors: []*Error{e}}
}

// HasErrors reports whether the response carries at least one error.
func (r *Response) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

// Err joins the carried errors, or returns nil.
func (r *Response) Err() error {
	if !r.HasErrors() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// ResponseOf is the typed view a handler returns.
type ResponseOf[T any] struct {
	Result T
	Errors []*Error
}

// HasErrors reports whether the response carries at least one error.
func (r ResponseOf[T]) HasErrors() bool { return len(r.Errors) > 0 }

// Err joins the carried errors, or returns nil.
func (r ResponseOf[T]) Err() error {
	return (&Response{Errors: r.Errors}).Err()
}

// Typed converts r into a ResponseOf[T]. A nil result becomes T's zero
// value; any other result that is not a T returns ErrTypeMismatch.
func Typed[T any](r *Response) (ResponseOf[T], error) {
	var out ResponseOf[T]
	if r == nil {
		return out, nil
	}
	out.Errors = r.Errors
	if r.Result == nil {
		return out, nil
	}
	v, ok := r.Result.(T)
	if !ok {
		return out, fmt.Errorf("response result %T: %w", r.Result, ErrTypeMismatch)
	}
	out.Result = v
	return out, nil
}

// PagedResult is one page of a sorted, filtered list. PageNumber is 1-based.
type PagedResult[T any] struct {
	Items          []T
	PageNumber     int
	PageSize       int
	PageCount      int
	TotalItemCount int
}
