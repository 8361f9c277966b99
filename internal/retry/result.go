package retry

import "git.home.luguber.info/inful/tutorguard/internal/errors"

// Result is the outcome of a retry sequence: either Success with Data, or a
// failure carrying the normalized Error.
type Result[T any] struct {
	Success bool
	Data    T
	Error   *errors.BaseError
}

// Ok creates a successful Result with the given value.
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail creates a failed Result with the given error.
func Fail[T any](err *errors.BaseError) Result[T] {
	return Result[T]{Error: err}
}

// Unwrap converts the Result back into Go's (value, error) convention.
func (r Result[T]) Unwrap() (T, error) {
	if r.Success {
		return r.Data, nil
	}
	var zero T
	if r.Error == nil {
		return zero, errors.MaxRetriesExceeded()
	}
	return zero, r.Error
}
