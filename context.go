package testable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joeycumines/testable/internal/effect"
	"github.com/joeycumines/testable/internal/host"
	"github.com/joeycumines/testable/internal/task"
)

var (
	// ErrNotIntercepted is returned by Start when embedding the program did not
	// produce a descriptor, meaning the host's initializer was not intercepted.
	ErrNotIntercepted = fmt.Errorf("%w: program was not captured by the interceptor", ErrSetup)

	// ErrNoSubscriptions is returned when the captured application does not
	// expose subscriptions.
	ErrNoSubscriptions = errors.New("application does not expose subscriptions")
)

// Context is a snapshot of a simulated application: its current model, the
// commands produced by the most recent step, and the errors accumulated so
// far. Every operation returns a new Context; a Context is never modified
// after it is returned, so earlier snapshots stay valid for assertions.
type Context struct {
	id     string
	app    *host.Descriptor
	model  any
	cmds   effect.Tree
	errors []error
	opts   *options
}

// Start constructs program through the (intercepted) host initializer,
// embeds it with a fabricated root, and returns a Context holding the result
// of init.
func Start(program host.Program, opts ...Option) (*Context, error) {
	o := newOptions(opts)
	if program == nil {
		return nil, fmt.Errorf("%w: nil program", ErrSetup)
	}
	module := program()
	if module == nil {
		return nil, fmt.Errorf("%w: program constructed no module", ErrSetup)
	}
	app, err := module.Embed(fakeRoot(o.logger), o.flags)
	if err != nil {
		return nil, fmt.Errorf("failed to embed program: %w", err)
	}
	return startDescriptor(app, o)
}

// StartDescriptor builds a Context from an App produced by an intercepted
// embed. Hosts other than the Go-native one (see the jshost package) use it
// directly.
func StartDescriptor(app host.App, opts ...Option) (*Context, error) {
	return startDescriptor(app, newOptions(opts))
}

func startDescriptor(app host.App, o *options) (*Context, error) {
	d, ok := app.(*host.Descriptor)
	if !ok || d == nil || d.Update == nil {
		if rt, ok := app.(*host.Runtime); ok {
			rt.Quit()
		}
		return nil, fmt.Errorf("%w (got %T)", ErrNotIntercepted, app)
	}
	c := &Context{
		id:    uuid.NewString(),
		app:   d,
		model: d.Init.Model,
		cmds:  d.Init.Cmds,
		opts:  o,
	}
	o.logger.Debug("[TestContext] started", "context", c.id, "model", fmt.Sprint(c.model))
	return c, nil
}

// fakeRoot is the root handed to embed. Under interception it is ignored; if
// interception is missing, it keeps the real loop away from the terminal
// until Start shuts it down.
func fakeRoot(logger *slog.Logger) host.Root {
	return host.Root{
		Context: context.Background(),
		Input:   bytes.NewReader(nil),
		Output:  io.Discard,
		Logger:  logger,
		Options: []tea.ProgramOption{tea.WithoutSignals(), tea.WithoutRenderer()},
	}
}

// ID returns the identifier shared by every snapshot derived from the same
// Start call.
func (c *Context) ID() string { return c.id }

// Model returns Err(errors) if any errors have accumulated, else Ok(model).
func (c *Context) Model() Result[[]error, any] {
	if len(c.errors) > 0 {
		return Err[[]error, any](slices.Clone(c.errors))
	}
	return Ok[[]error](c.model)
}

// Errors returns a copy of the accumulated errors.
func (c *Context) Errors() []error {
	return slices.Clone(c.errors)
}

// Cmds returns the command tree produced by the most recent init or update.
func (c *Context) Cmds() Tree { return c.cmds }

// Commands flattens Cmds.
func (c *Context) Commands() ([]Command, error) {
	return effect.ExtractCmds(c.cmds)
}

// Subscriptions flattens the application's subscriptions for the current
// model.
func (c *Context) Subscriptions() ([]Subscription, error) {
	if c.app.Subscriptions == nil {
		return nil, ErrNoSubscriptions
	}
	tree, err := c.app.Subscriptions(c.model)
	if err != nil {
		return nil, err
	}
	return effect.ExtractSubs(tree)
}

func (c *Context) clone() *Context {
	next := *c
	next.errors = slices.Clone(c.errors)
	return &next
}

// Update calls the application's update with msg and the current model and
// returns the resulting Context. If the application fails (a panic, or an
// exception in hosted script), the failure is accumulated, the model is kept
// and the command tree is cleared. Any other error is an integration failure
// and is returned.
func (c *Context) Update(msg any) (*Context, error) {
	return c.begin().update(msg)
}

// begin returns the Context an operation builds on. With WithResetErrors it
// has no errors; Update, Send and RunTasks each reset once, however many
// updates they apply.
func (c *Context) begin() *Context {
	if !c.opts.resetErrors || len(c.errors) == 0 {
		return c
	}
	next := c.clone()
	next.errors = nil
	return next
}

// update applies msg without resetting the accumulated errors.
func (c *Context) update(msg any) (*Context, error) {
	step, err := c.app.Update(msg, c.model)
	next := c.clone()
	if err != nil {
		var appErr *host.AppError
		if !errors.As(err, &appErr) {
			return nil, err
		}
		c.opts.logger.Debug("[TestContext] update failed", "context", c.id, "error", err)
		next.errors = append(next.errors, err)
		next.cmds = nil
		return next, nil
	}
	next.model = step.Model
	next.cmds = step.Cmds
	c.opts.logger.Debug("[TestContext] updated", "context", c.id, "msg", fmt.Sprint(msg), "model", fmt.Sprint(next.model))
	return next, nil
}

// Fail returns a Context with err appended to the accumulated errors.
func (c *Context) Fail(err error) *Context {
	if err == nil {
		return c
	}
	next := c.clone()
	next.errors = append(next.errors, err)
	return next
}

// Check runs fn against the current model and accumulates its error, if any.
func (c *Context) Check(fn func(model any) error) *Context {
	return c.Fail(fn(c.model))
}

// Send simulates a value arriving on the inbound port name: each subscription
// to that port maps the value into a message, which is then applied with
// Update, in subscription order. A port with no subscription is accumulated
// as an error.
func (c *Context) Send(port string, value any) (*Context, error) {
	subs, err := c.Subscriptions()
	if err != nil {
		var appErr *host.AppError
		if errors.As(err, &appErr) {
			return c.begin().Fail(err), nil
		}
		return nil, err
	}
	next := c.begin()
	matched := false
	for _, sub := range subs {
		if sub.Port != port {
			continue
		}
		matched = true
		tagger, ok := sub.Tagger()
		if !ok {
			return nil, fmt.Errorf("subscription to port %q has no message mapper (got %T)", port, sub.Value)
		}
		msg, err := mapValue(tagger, value)
		if err != nil {
			next = next.Fail(err)
			continue
		}
		if next, err = next.update(msg); err != nil {
			return nil, err
		}
	}
	if !matched {
		return next.Fail(fmt.Errorf("no subscription to port %q", port)), nil
	}
	return next, nil
}

func mapValue(tagger Tagger, value any) (msg any, err error) {
	defer host.Recover("port mapper", &err)
	msg, _ = ApplyMapper(tagger, value).Value()
	return msg, nil
}

// RunTasks performs every task command of the most recent step, in order,
// and applies each successful result as a message. Failed tasks, and
// application failures inside task callbacks, are accumulated as errors.
func (c *Context) RunTasks() (*Context, error) {
	cmds, err := c.Commands()
	if err != nil {
		return nil, err
	}
	next := c.begin()
	for _, cmd := range cmds {
		tc, ok := cmd.(TaskCommand)
		if !ok {
			continue
		}
		out, err := task.Run(tc.Task)
		if err != nil {
			var appErr *host.AppError
			if !errors.As(err, &appErr) {
				return nil, err
			}
			next = next.Fail(err)
			continue
		}
		if e, failed := out.Error(); failed {
			next = next.Fail(fmt.Errorf("task failed: %v", e))
			continue
		}
		v, _ := out.Value()
		if next, err = next.update(v); err != nil {
			return nil, err
		}
	}
	return next, nil
}
