// Package jshost runs compiled reactive applications inside a goja runtime
// and exposes them to the test context.
//
// A bundle is loaded in the order the host runtime expects: the runtime's own
// platform code first, then Install, then the application code. Install
// replaces the platform's initializer so that embedding a program yields a
// FakeApp object instead of starting its loop; Program turns a JS program
// value into a host.Program that testable.Start understands.
//
//	h, err := jshost.New()
//	...
//	err = h.Load("core.js", coreSrc)
//	err = h.Install()
//	err = h.Load("main.js", mainSrc)
//	c, err := testable.Start(h.Program("_user$project$Main$main"))
//
// A Host wraps a single goja.Runtime and is not safe for concurrent use.
package jshost

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/testable"
	"github.com/joeycumines/testable/internal/host"
)

// ErrContract reports a JS value whose shape does not match the Contract.
var ErrContract = errors.New("value does not match the host contract")

// Host is a goja runtime hosting a compiled application bundle.
type Host struct {
	vm       *goja.Runtime
	registry *require.Registry
	contract Contract
	logger   *slog.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithContract overrides the host-internal shapes, see Elm018.
func WithContract(c Contract) Option {
	return func(h *Host) { h.contract = c }
}

// WithLogger sets the logger that receives console output and host tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// WithRegistry shares an existing require registry, so that native modules
// registered elsewhere are visible to the bundle.
func WithRegistry(registry *require.Registry) Option {
	return func(h *Host) { h.registry = registry }
}

// New creates a Host with a require registry, a console routed to the
// logger, and the testable:context module registered.
func New(opts ...Option) (*Host, error) {
	h := &Host{contract: Elm018}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.registry == nil {
		h.registry = require.NewRegistry()
	}
	h.vm = goja.New()

	h.registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(consolePrinter{logger: h.logger}))
	h.registry.RegisterNativeModule(ModuleName, h.Require)
	h.registry.Enable(h.vm)
	console.Enable(h.vm)

	if err := h.vm.Set(h.contract.TestContextGlobal, h.exports()); err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", h.contract.TestContextGlobal, err)
	}
	return h, nil
}

// Runtime returns the underlying goja runtime.
func (h *Host) Runtime() *goja.Runtime { return h.vm }

// Contract returns the contract in use.
func (h *Host) Contract() Contract { return h.contract }

// Load evaluates src as a script named name.
func (h *Host) Load(name, src string) error {
	if _, err := h.vm.RunScript(name, src); err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	h.logger.Debug("[JSHost] loaded script", "name", name)
	return nil
}

// Eval evaluates a JS expression.
func (h *Host) Eval(expr string) (goja.Value, error) {
	v, err := h.vm.RunString(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %q: %w", expr, err)
	}
	return v, nil
}

// Install replaces the platform object's initializer with one that returns
// {ctor: "FakeApp", init, update, subscriptions}, ignoring the renderer. The
// platform must already be loaded; installing before it is a setup error.
func (h *Host) Install() error {
	platform, ok := h.vm.Get(h.contract.PlatformObject).(*goja.Object)
	if !ok || isNullish(platform.Get(h.contract.Initialize)) {
		return fmt.Errorf("%w: test context was loaded before %s", testable.ErrSetup, h.contract.PlatformObject)
	}
	c := h.contract
	initialize := func(call goja.FunctionCall) goja.Value {
		app := h.vm.NewObject()
		_ = app.Set(c.CtorField, c.FakeAppCtor)
		_ = app.Set("init", call.Argument(0))
		_ = app.Set("update", call.Argument(1))
		_ = app.Set("subscriptions", call.Argument(2))
		return app
	}
	if err := platform.Set(c.Initialize, initialize); err != nil {
		return fmt.Errorf("failed to replace %s.%s: %w", c.PlatformObject, c.Initialize, err)
	}
	h.logger.Debug("[JSHost] interceptor installed", "platform", c.PlatformObject)
	return nil
}

// Program returns a host.Program for the JS program value expr evaluates to.
// The expression is evaluated each time the program is constructed.
func (h *Host) Program(expr string) host.Program {
	return func() host.Module {
		v, err := h.Eval(expr)
		if err != nil {
			return failedModule(err)
		}
		return h.construct(v)
	}
}

// ProgramValue is Program for an already evaluated program value.
func (h *Host) ProgramValue(program goja.Value) host.Program {
	return func() host.Module { return h.construct(program) }
}

// construct follows the bundle's program contract:
// program()(containerModule, moduleName), after which containerModule.embed
// is the embed step.
func (h *Host) construct(program goja.Value) host.Module {
	thunk, ok := goja.AssertFunction(program)
	if !ok {
		return failedModule(fmt.Errorf("%w: program is not a function", ErrContract))
	}
	ctor, err := thunk(goja.Undefined())
	if err != nil {
		return failedModule(appError("program", err))
	}
	bind, ok := goja.AssertFunction(ctor)
	if !ok {
		return failedModule(fmt.Errorf("%w: program() did not return a function", ErrContract))
	}
	container := h.vm.NewObject()
	if _, err := bind(goja.Undefined(), container, h.vm.ToValue(h.contract.ModuleName)); err != nil {
		return failedModule(appError("program", err))
	}
	return host.ModuleFunc(func(_ host.Root, flags any) (host.App, error) {
		return h.embed(container, flags)
	})
}

func (h *Host) embed(container *goja.Object, flags any) (host.App, error) {
	embed, ok := goja.AssertFunction(container.Get(h.contract.Embed))
	if !ok {
		return nil, fmt.Errorf("%w: container module has no %s function", ErrContract, h.contract.Embed)
	}
	app, err := embed(container, h.vm.NewObject(), h.toValue(flags))
	if err != nil {
		return nil, appError("init", err)
	}
	obj, ok := app.(*goja.Object)
	if !ok || ctorOf(obj, h.contract) != h.contract.FakeAppCtor {
		// not intercepted; the test context rejects anything but a descriptor
		return app, nil
	}
	return h.descriptor(obj)
}

func failedModule(err error) host.Module {
	return host.ModuleFunc(func(host.Root, any) (host.App, error) { return nil, err })
}

// toValue converts a Go value for the runtime; goja values pass through and
// nil becomes undefined.
func (h *Host) toValue(v any) goja.Value {
	switch v := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return v
	default:
		return h.vm.ToValue(v)
	}
}

// Export converts a runtime value to its Go representation, leaving other
// values as they are.
func Export(v any) any {
	if jv, ok := v.(goja.Value); ok && jv != nil {
		return jv.Export()
	}
	return v
}

// appError converts an error from a JS call into an application failure.
func appError(op string, err error) error {
	return &host.AppError{Op: op, Err: err}
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func ctorOf(obj *goja.Object, c Contract) string {
	v := obj.Get(c.CtorField)
	if isNullish(v) {
		return ""
	}
	return v.String()
}

type consolePrinter struct {
	logger *slog.Logger
}

func (p consolePrinter) Log(s string)   { p.logger.Info(s, "source", "console") }
func (p consolePrinter) Info(s string)  { p.logger.Info(s, "source", "console") }
func (p consolePrinter) Debug(s string) { p.logger.Debug(s, "source", "console") }
func (p consolePrinter) Warn(s string)  { p.logger.Warn(s, "source", "console") }
func (p consolePrinter) Error(s string) { p.logger.Error(s, "source", "console") }
