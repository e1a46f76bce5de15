package testable

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/joeycumines/testable/internal/effect"
	"github.com/joeycumines/testable/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireModel(t *testing.T, c *Context, want any) {
	t.Helper()
	model, ok := c.Model().Value()
	require.True(t, ok, "expected Ok model, got %v", c.Model())
	assert.Equal(t, want, model)
}

func TestStart_CounterEndToEnd(t *testing.T) {
	c0, err := Start(counter)
	require.NoError(t, err)
	requireModel(t, c0, 0)
	assert.Empty(t, c0.Errors())
	assert.NotEmpty(t, c0.ID())

	c1, err := c0.Update(5)
	require.NoError(t, err)
	requireModel(t, c1, 5)

	c2, err := c1.Update(3)
	require.NoError(t, err)
	requireModel(t, c2, 8)

	// earlier snapshots are unchanged
	requireModel(t, c0, 0)
	requireModel(t, c1, 5)
	assert.Equal(t, c0.ID(), c2.ID())
}

func TestStart_Flags(t *testing.T) {
	c, err := Start(counter, WithFlags(40))
	require.NoError(t, err)
	requireModel(t, c, 40)
}

func TestStart_NilProgram(t *testing.T) {
	_, err := Start(nil)
	assert.ErrorIs(t, err, ErrSetup)

	_, err = Start(func() host.Module { return nil })
	assert.ErrorIs(t, err, ErrSetup)
}

func TestStart_NotIntercepted(t *testing.T) {
	p := host.NewPlatform(host.Start)
	program := func() host.Module {
		return p.Initialize(counterInit, counterUpdate, nil, counterView)
	}
	_, err := Start(program)
	require.ErrorIs(t, err, ErrNotIntercepted)
	assert.ErrorIs(t, err, ErrSetup)
}

func TestStart_InitPanicIsReturned(t *testing.T) {
	program := func() host.Module {
		return host.Initialize(func(any) (any, effect.Tree) { panic("no init") }, counterUpdate, nil, nil)
	}
	_, err := Start(program)
	var appErr *host.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "init", appErr.Op)
}

func TestStartDescriptor(t *testing.T) {
	d := &host.Descriptor{
		Init: host.Step{Model: "hello"},
		Update: func(msg, model any) (host.Step, error) {
			return host.Step{Model: model.(string) + msg.(string)}, nil
		},
	}
	c, err := StartDescriptor(d)
	require.NoError(t, err)
	c, err = c.Update(" world")
	require.NoError(t, err)
	requireModel(t, c, "hello world")

	_, err = StartDescriptor("not a descriptor")
	assert.ErrorIs(t, err, ErrNotIntercepted)
	_, err = StartDescriptor(&host.Descriptor{})
	assert.ErrorIs(t, err, ErrNotIntercepted)
}

func TestUpdate_PanicIsAccumulated(t *testing.T) {
	c, err := Start(counter)
	require.NoError(t, err)
	c, err = c.Update(2)
	require.NoError(t, err)

	failed, err := c.Update("boom")
	require.NoError(t, err)
	errs, isErr := failed.Model().Error()
	require.True(t, isErr)
	require.Len(t, errs, 1)
	var appErr *host.AppError
	require.ErrorAs(t, errs[0], &appErr)
	assert.Equal(t, "update", appErr.Op)
	assert.Nil(t, failed.Cmds())

	// errors persist by default and the model is retained
	later, err := failed.Update(1)
	require.NoError(t, err)
	assert.True(t, later.Model().IsErr())
	assert.Len(t, later.Errors(), 1)

	// the snapshot before the failure is still clean
	requireModel(t, c, 2)
}

func TestUpdate_ResetErrors(t *testing.T) {
	c, err := Start(counter, WithResetErrors(true))
	require.NoError(t, err)
	c, err = c.Update("boom")
	require.NoError(t, err)
	assert.True(t, c.Model().IsErr())

	c, err = c.Update(4)
	require.NoError(t, err)
	requireModel(t, c, 4)
}

func TestRunTasks_ResetErrorsKeepsFailures(t *testing.T) {
	c, err := Start(counter, WithResetErrors(true))
	require.NoError(t, err)
	c = c.Fail(errors.New("stale"))
	c, err = c.Update("flaky")
	require.NoError(t, err)
	assert.Empty(t, c.Errors())

	c, err = c.RunTasks()
	require.NoError(t, err)
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "offline")
	// the successful task was still applied
	assert.Equal(t, 1, c.model)

	// the next operation starts clean
	c, err = c.Update(2)
	require.NoError(t, err)
	requireModel(t, c, 3)
}

func TestSend_ResetErrorsKeepsFailures(t *testing.T) {
	c, err := Start(counter, WithResetErrors(true))
	require.NoError(t, err)
	c = c.Fail(errors.New("stale"))

	// the first "checked" mapper panics, the second maps to 1
	c, err = c.Send("checked", "not an int")
	require.NoError(t, err)
	errs := c.Errors()
	require.Len(t, errs, 1)
	var appErr *host.AppError
	assert.ErrorAs(t, errs[0], &appErr)
	assert.Equal(t, 1, c.model)

	c, err = c.Send("checked", 4)
	require.NoError(t, err)
	requireModel(t, c, 6)
}

func TestFailAndCheck(t *testing.T) {
	c, err := Start(counter)
	require.NoError(t, err)
	assert.Same(t, c, c.Fail(nil))

	errPositive := errors.New("model must be positive")
	checked := c.Check(func(model any) error {
		if model.(int) <= 0 {
			return errPositive
		}
		return nil
	})
	errs, ok := checked.Model().Error()
	require.True(t, ok)
	assert.Equal(t, []error{errPositive}, errs)
	assert.True(t, c.Model().IsOk())
}

func TestCommands(t *testing.T) {
	c, err := Start(counter)
	require.NoError(t, err)
	cmds, err := c.Commands()
	require.NoError(t, err)
	assert.Empty(t, cmds)

	c, err = c.Update("fetch")
	require.NoError(t, err)
	cmds, err = c.Commands()
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.IsType(t, TaskCommand{}, cmds[0])
	assert.Equal(t, PortCommand{Port: "log", Value: "fetching"}, cmds[1])
	assert.IsType(t, TaskCommand{}, cmds[2])
}

func TestCommands_Malformed(t *testing.T) {
	c, err := Start(counter)
	require.NoError(t, err)
	c, err = c.Update("malformed")
	require.NoError(t, err)
	_, err = c.Commands()
	assert.ErrorIs(t, err, ErrMalformedTree)
	_, err = c.RunTasks()
	assert.ErrorIs(t, err, ErrMalformedTree)
}

func TestRunTasks(t *testing.T) {
	c, err := Start(counter, WithFlags(1))
	require.NoError(t, err)
	c, err = c.Update("fetch")
	require.NoError(t, err)
	c, err = c.RunTasks()
	require.NoError(t, err)
	// 1 + 10 + 6
	requireModel(t, c, 17)
}

func TestRunTasks_FailureIsAccumulated(t *testing.T) {
	c, err := Start(counter)
	require.NoError(t, err)
	c, err = c.Update("broken")
	require.NoError(t, err)
	c, err = c.RunTasks()
	require.NoError(t, err)
	errs, ok := c.Model().Error()
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "offline")
}

func TestSubscriptions(t *testing.T) {
	c, err := Start(counter)
	require.NoError(t, err)
	subs, err := c.Subscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 5)
	assert.Equal(t, "incoming", subs[0].Port)
	assert.Equal(t, "doubled", subs[1].Port)

	bare, err := Start(bareCounter)
	require.NoError(t, err)
	_, err = bare.Subscriptions()
	assert.ErrorIs(t, err, ErrNoSubscriptions)
}

func TestSend(t *testing.T) {
	c, err := Start(counter)
	require.NoError(t, err)

	// both "incoming" subscriptions apply, in order: +5 then +1
	c, err = c.Send("incoming", 5)
	require.NoError(t, err)
	requireModel(t, c, 6)

	c, err = c.Send("doubled", 2)
	require.NoError(t, err)
	requireModel(t, c, 10)

	unknown, err := c.Send("nowhere", 1)
	require.NoError(t, err)
	errs, ok := unknown.Model().Error()
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `"nowhere"`)
}

func TestSend_MapperPanicIsAccumulated(t *testing.T) {
	c, err := Start(counter)
	require.NoError(t, err)
	c, err = c.Send("doubled", "not an int")
	require.NoError(t, err)
	errs, ok := c.Model().Error()
	require.True(t, ok)
	require.Len(t, errs, 1)
	var appErr *host.AppError
	assert.ErrorAs(t, errs[0], &appErr)
}

func TestSend_SubscriptionsPanicIsAccumulated(t *testing.T) {
	c, err := Start(counter, WithFlags(-1))
	require.NoError(t, err)
	c, err = c.Send("incoming", 1)
	require.NoError(t, err)
	assert.True(t, c.Model().IsErr())
}

func TestSend_NoSubscriptions(t *testing.T) {
	c, err := Start(bareCounter)
	require.NoError(t, err)
	_, err = c.Send("incoming", 1)
	assert.ErrorIs(t, err, ErrNoSubscriptions)
}

func TestApplyMapper(t *testing.T) {
	r := ApplyMapper(func(n int) string { return strings.Repeat("x", n) }, 3)
	v, ok := r.Value()
	require.True(t, ok)
	assert.Equal(t, "xxx", v)

	var tagger Tagger = func(v any) any { return []any{"Got", v} }
	got, ok := ApplyMapper(tagger, any(1)).Value()
	require.True(t, ok)
	assert.Equal(t, []any{"Got", 1}, got)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, err := Start(counter, WithLogger(logger))
	require.NoError(t, err)
	_, err = c.Update(1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[TestContext] started")
	assert.Contains(t, buf.String(), "[TestContext] updated")
}
