// Package host is the Go-native reactive application runtime.
//
// An application is four functions: init, update, subscriptions and view.
// A Program is a zero-argument constructor which, when called, hands those
// functions to the process-wide Platform initializer and receives a Module.
// Embedding the Module starts the application.
//
//	func Counter() host.Module {
//	    return host.Initialize(counterInit, counterUpdate, nil, counterView)
//	}
//
//	app, err := host.Program(Counter)().Embed(host.Root{}, nil)
//
// With the real initializer, Embed launches a supervised bubbletea loop (see
// Runtime). Test harnesses replace the initializer so that Embed instead
// returns a *Descriptor holding the application's raw functions.
package host

import (
	"fmt"

	"github.com/joeycumines/testable/internal/effect"
)

// InitFunc produces the initial model and commands from the embed flags.
type InitFunc func(flags any) (model any, cmds effect.Tree)

// UpdateFunc applies a message to a model.
type UpdateFunc func(msg, model any) (newModel any, cmds effect.Tree)

// SubscriptionsFunc reports the subscriptions active for a model.
type SubscriptionsFunc func(model any) effect.Tree

// ViewFunc renders a model.
type ViewFunc func(model any) string

// Module is the result of constructing a program: something that can be
// embedded.
type Module interface {
	Embed(root Root, flags any) (App, error)
}

// ModuleFunc adapts a function into a Module.
type ModuleFunc func(root Root, flags any) (App, error)

func (f ModuleFunc) Embed(root Root, flags any) (App, error) { return f(root, flags) }

// Program constructs a Module. It must be called only after any interception
// of the platform is in place, since construction is what reads the
// initializer.
type Program func() Module

// App is whatever Embed produced: a *Runtime for the real initializer, a
// *Descriptor under interception.
type App any

// Step is the model and command tree produced by init or update.
type Step struct {
	Model any
	Cmds  effect.Tree
}

// Descriptor is an application's raw functions, captured at embed time
// instead of starting the loop. Init is already evaluated against the embed
// flags. Subscriptions is nil when the capturing host does not expose them.
type Descriptor struct {
	Init          Step
	Update        func(msg, model any) (Step, error)
	Subscriptions func(model any) (effect.Tree, error)
}

// AppError is a failure raised by application code during init, update or
// subscriptions: a Go panic, or an exception thrown by hosted script.
type AppError struct {
	Op  string
	Err error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("application %s failed: %v", e.Op, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// Recover converts a panic raised by application code in op into an
// *AppError stored in *err. A panic that already carries an *AppError is
// stored unchanged. Use as a deferred call.
func Recover(op string, err *error) {
	if r := recover(); r != nil {
		if appErr, ok := r.(*AppError); ok {
			*err = appErr
			return
		}
		cause, ok := r.(error)
		if !ok {
			cause = fmt.Errorf("panic: %v", r)
		}
		*err = &AppError{Op: op, Err: cause}
	}
}
