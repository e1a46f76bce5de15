// Package result provides a two-armed outcome value, Ok or Err, used where an
// operation's failure is part of its normal output rather than a Go error.
package result

import "fmt"

// Result holds either a success value of type T or a failure value of type E.
// The zero value is Ok with the zero T.
type Result[E, T any] struct {
	value T
	err   E
	isErr bool
}

// Ok returns a successful Result.
func Ok[E, T any](value T) Result[E, T] {
	return Result[E, T]{value: value}
}

// Err returns a failed Result.
func Err[E, T any](err E) Result[E, T] {
	return Result[E, T]{err: err, isErr: true}
}

// IsOk reports whether r holds a success value.
func (r Result[E, T]) IsOk() bool { return !r.isErr }

// IsErr reports whether r holds a failure value.
func (r Result[E, T]) IsErr() bool { return r.isErr }

// Value returns the success value and true, or the zero T and false.
func (r Result[E, T]) Value() (T, bool) {
	if r.isErr {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Error returns the failure value and true, or the zero E and false.
func (r Result[E, T]) Error() (E, bool) {
	if !r.isErr {
		var zero E
		return zero, false
	}
	return r.err, true
}

// Unwrap returns the success value, or the failure value as any.
func (r Result[E, T]) Unwrap() any {
	if r.isErr {
		return r.err
	}
	return r.value
}

// String implements fmt.Stringer.
func (r Result[E, T]) String() string {
	if r.isErr {
		return fmt.Sprintf("Err(%v)", r.err)
	}
	return fmt.Sprintf("Ok(%v)", r.value)
}
