// Package task implements a synchronous interpreter for deferred computations.
//
// Only the variants that can never block are supported: an immediate success,
// an immediate failure, and the two sequencing combinators. Anything that
// genuinely waits on the outside world (timers, network, port round-trips) has
// no representation here; such effects are surfaced to tests as port commands
// and simulated by the test itself.
//
// The variant set is deliberately open, since tasks decoded from a host
// runtime may carry tags this package does not know. Perform matches the known
// variants exhaustively and fails with ErrMalformedTask on anything else.
package task

import (
	"errors"
	"fmt"

	"github.com/joeycumines/testable/internal/result"
)

// ErrMalformedTask indicates a task variant the interpreter does not
// recognise. It signals a version mismatch between this adapter and the host
// runtime, never an ordinary test failure.
var ErrMalformedTask = errors.New("malformed task")

// Variant tags.
const (
	TagSucceed = "succeed"
	TagFail    = "fail"
	TagAndThen = "andThen"
	TagOnError = "onError"
)

// Task is a deferred computation.
type Task interface {
	// Tag identifies the variant.
	Tag() string
}

// Continuation produces the next task from the outcome of a previous one.
// A non-nil error is an integration failure (for example, a host callback
// that threw) and aborts evaluation.
type Continuation func(any) (Task, error)

// Then adapts a plain function into a Continuation.
func Then(fn func(any) Task) Continuation {
	return func(v any) (Task, error) {
		return fn(v), nil
	}
}

// Succeed is a task that has already succeeded with Value.
type Succeed struct {
	Value any
}

func (Succeed) Tag() string { return TagSucceed }

// Fail is a task that has already failed with Err.
type Fail struct {
	Err any
}

func (Fail) Tag() string { return TagFail }

// AndThen runs Inner and, on success, continues with Next.
type AndThen struct {
	Inner Task
	Next  Continuation
}

func (AndThen) Tag() string { return TagAndThen }

// OnError runs Inner and, on failure, continues with Next.
type OnError struct {
	Inner Task
	Next  Continuation
}

func (OnError) Tag() string { return TagOnError }

// Perform is the payload of an effect leaf that asks the host runtime's task
// manager to run Task.
type Perform struct {
	Task Task
}

// Outcome is the result of evaluating a task: Ok(value) or Err(failure).
type Outcome = result.Result[any, any]

// Run evaluates t synchronously by substitution.
//
// The returned Outcome is the task's own success or failure. The Go error is
// reserved for integration failures: ErrMalformedTask, or an error returned by
// a continuation. Short-circuited continuations are never invoked.
func Run(t Task) (Outcome, error) {
	switch t := t.(type) {
	case Succeed:
		return result.Ok[any, any](t.Value), nil
	case Fail:
		return result.Err[any, any](t.Err), nil
	case AndThen:
		out, err := Run(t.Inner)
		if err != nil || out.IsErr() {
			return out, err
		}
		v, _ := out.Value()
		return continueWith(t.Next, v)
	case OnError:
		out, err := Run(t.Inner)
		if err != nil || out.IsOk() {
			return out, err
		}
		e, _ := out.Error()
		return continueWith(t.Next, e)
	case nil:
		return Outcome{}, fmt.Errorf("%w: nil task", ErrMalformedTask)
	default:
		return Outcome{}, fmt.Errorf("%w: unrecognised variant %q", ErrMalformedTask, t.Tag())
	}
}

func continueWith(next Continuation, v any) (Outcome, error) {
	if next == nil {
		return Outcome{}, fmt.Errorf("%w: missing continuation", ErrMalformedTask)
	}
	t, err := next(v)
	if err != nil {
		return Outcome{}, fmt.Errorf("task continuation failed: %w", err)
	}
	return Run(t)
}
