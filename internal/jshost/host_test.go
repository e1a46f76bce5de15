package jshost

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dop251/goja"
	"github.com/joeycumines/testable"
	"github.com/joeycumines/testable/internal/effect"
	"github.com/joeycumines/testable/internal/host"
	"github.com/joeycumines/testable/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterMain = "_user$project$Counter$main"

func loadTestdata(t *testing.T, h *Host, name string) {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	require.NoError(t, h.Load(name, string(src)))
}

// newCounterHost loads the platform, optionally installs the interceptor,
// then loads the counter application.
func newCounterHost(t *testing.T, install bool, opts ...Option) *Host {
	t.Helper()
	h, err := New(opts...)
	require.NoError(t, err)
	loadTestdata(t, h, "platform.js")
	if install {
		require.NoError(t, h.Install())
	}
	loadTestdata(t, h, "counter.js")
	return h
}

func eval(t *testing.T, h *Host, expr string) goja.Value {
	t.Helper()
	v, err := h.Eval(expr)
	require.NoError(t, err)
	return v
}

func requireModel(t *testing.T, c *testable.Context, want any) {
	t.Helper()
	model, ok := c.Model().Value()
	require.True(t, ok, "expected Ok model, got %v", c.Model())
	assert.Equal(t, want, Export(model))
}

func TestInstall_BeforePlatform(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	err = h.Install()
	assert.ErrorIs(t, err, testable.ErrSetup)

	_, err = h.Eval(`var _elm_lang$core$Native_Platform = {}`)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Install(), testable.ErrSetup)
}

func TestInstall_ReplacesInitializer(t *testing.T) {
	h := newCounterHost(t, true)
	app := eval(t, h, `(function() {
		var container = {};
		_user$project$Counter$main()(container, 'Counter');
		return container.embed({}, 3);
	})()`)
	obj, ok := app.(*goja.Object)
	require.True(t, ok)
	assert.Equal(t, "FakeApp", obj.Get("ctor").String())
	assert.NotNil(t, obj.Get("update"))
	assert.NotNil(t, obj.Get("subscriptions"))
}

func TestStart_CounterEndToEnd(t *testing.T) {
	h := newCounterHost(t, true)
	c0, err := testable.Start(h.Program(counterMain))
	require.NoError(t, err)
	requireModel(t, c0, int64(0))

	c1, err := c0.Update(eval(t, h, `_user$project$Counter$Increment(5)`))
	require.NoError(t, err)
	requireModel(t, c1, int64(5))

	c2, err := c1.Update(eval(t, h, `_user$project$Counter$Increment(3)`))
	require.NoError(t, err)
	requireModel(t, c2, int64(8))

	requireModel(t, c0, int64(0))
}

func TestStart_Flags(t *testing.T) {
	h := newCounterHost(t, true)
	c, err := testable.Start(h.Program(counterMain), testable.WithFlags(10))
	require.NoError(t, err)
	requireModel(t, c, int64(10))
}

func TestStart_NotIntercepted(t *testing.T) {
	h := newCounterHost(t, false)
	_, err := testable.Start(h.Program(counterMain))
	assert.ErrorIs(t, err, testable.ErrNotIntercepted)
}

func TestStart_BadProgram(t *testing.T) {
	h := newCounterHost(t, true)
	_, err := testable.Start(h.Program(`42`))
	assert.ErrorIs(t, err, ErrContract)

	_, err = testable.Start(h.Program(`undefinedThing`))
	assert.Error(t, err)
}

func TestUpdate_ExceptionIsAccumulated(t *testing.T) {
	h := newCounterHost(t, true)
	c, err := testable.Start(h.Program(counterMain))
	require.NoError(t, err)
	c, err = c.Update(eval(t, h, `({ctor: 'Crash'})`))
	require.NoError(t, err)
	errs, failed := c.Model().Error()
	require.True(t, failed)
	require.Len(t, errs, 1)
	var appErr *host.AppError
	require.ErrorAs(t, errs[0], &appErr)
	assert.Contains(t, errs[0].Error(), "crash in update")
}

func TestCommandsAndRunTasks(t *testing.T) {
	h := newCounterHost(t, true)
	c, err := testable.Start(h.Program(counterMain))
	require.NoError(t, err)
	c, err = c.Update(eval(t, h, `({ctor: 'Fetch'})`))
	require.NoError(t, err)

	cmds, err := c.Commands()
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.IsType(t, effect.TaskCommand{}, cmds[0])
	port, ok := cmds[1].(effect.PortCommand)
	require.True(t, ok)
	assert.Equal(t, "log", port.Port)
	assert.Equal(t, "fetching", Export(port.Value))
	assert.IsType(t, effect.TaskCommand{}, cmds[2])

	out, err := testable.PerformTask(cmds[0].(effect.TaskCommand).Task)
	require.NoError(t, err)
	msg, ok := out.Value()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"ctor": "Loaded", "_0": int64(6)}, Export(msg))

	c, err = c.RunTasks()
	require.NoError(t, err)
	// 6 from andThen, 4 from onError
	requireModel(t, c, int64(10))

	cmds, err = c.Commands()
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "loaded 4", Export(cmds[0].(effect.PortCommand).Value))
}

func TestRunTasks_UnsupportedTask(t *testing.T) {
	h := newCounterHost(t, true)
	c, err := testable.Start(h.Program(counterMain))
	require.NoError(t, err)
	c, err = c.Update(eval(t, h, `({ctor: 'Stuck'})`))
	require.NoError(t, err)
	_, err = c.RunTasks()
	assert.ErrorIs(t, err, task.ErrMalformedTask)
}

func TestCommands_UnknownTreeKind(t *testing.T) {
	h := newCounterHost(t, true)
	c, err := testable.Start(h.Program(counterMain))
	require.NoError(t, err)
	c, err = c.Update(eval(t, h, `({ctor: 'Weird'})`))
	require.NoError(t, err)
	_, err = c.Commands()
	assert.ErrorIs(t, err, effect.ErrMalformedTree)
}

func TestSend(t *testing.T) {
	h := newCounterHost(t, true)
	c, err := testable.Start(h.Program(counterMain))
	require.NoError(t, err)

	subs, err := c.Subscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "incoming", subs[0].Port)
	_, ok := subs[0].Tagger()
	assert.True(t, ok)

	c, err = c.Send("incoming", 5)
	require.NoError(t, err)
	requireModel(t, c, int64(6))

	c, err = c.Send("incoming", "five")
	require.NoError(t, err)
	errs, failed := c.Model().Error()
	require.True(t, failed)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "incoming expects a number")
}

func TestDecodeTree(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	tree := h.DecodeTree(eval(t, h, `({type: 'node', branches: [
		{type: 'leaf', home: 'a', value: 1},
		{type: 'node', branches: {ctor: '::', _0: {type: 'leaf', home: 'b', value: 2}, _1: {ctor: '[]'}}},
		undefined
	]})`))
	var homes []string
	require.NoError(t, effect.ForEachLeaf(tree, func(l effect.Leaf) error {
		homes = append(homes, l.Home)
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, homes)

	assert.Nil(t, h.DecodeTree(goja.Undefined()))

	for _, src := range []string{
		`({type: 'map', tree: {type: 'node', branches: []}})`,
		`({type: 'node', branches: 7})`,
		`({type: 'leaf'})`,
		`({nothing: true})`,
		`'leaf'`,
	} {
		err := effect.ForEachLeaf(h.DecodeTree(eval(t, h, src)), func(effect.Leaf) error { return nil })
		assert.ErrorIs(t, err, effect.ErrMalformedTree, src)
	}
}

func TestDecodeTask(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	out, err := task.Run(h.DecodeTask(eval(t, h, `({ctor: '_Task_fail', value: 'bad'})`)))
	require.NoError(t, err)
	e, failed := out.Error()
	require.True(t, failed)
	assert.Equal(t, "bad", Export(e))

	_, err = task.Run(h.DecodeTask(eval(t, h, `({ctor: '_Task_sleep'})`)))
	assert.ErrorIs(t, err, task.ErrMalformedTask)

	_, err = task.Run(h.DecodeTask(eval(t, h, `({ctor: '_Task_andThen', task: {ctor: '_Task_succeed', value: 1}})`)))
	assert.ErrorIs(t, err, task.ErrMalformedTask)

	_, err = task.Run(h.DecodeTask(eval(t, h, `({ctor: '_Task_andThen',
		callback: function() { throw new Error('callback exploded'); },
		task: {ctor: '_Task_succeed', value: 1}})`)))
	var appErr *host.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "task callback", appErr.Op)
}

func TestConsoleIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h, err := New(WithLogger(logger))
	require.NoError(t, err)
	_, err = h.Eval(`console.log('hello from script'); console.error('bad thing')`)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "hello from script")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "source=console")
}

func TestWithContract(t *testing.T) {
	contract := Elm018
	contract.PlatformObject = "MyPlatform"
	h, err := New(WithContract(contract))
	require.NoError(t, err)
	assert.Equal(t, "MyPlatform", h.Contract().PlatformObject)
	_, err = h.Eval(`var MyPlatform = {initialize: function() {}}`)
	require.NoError(t, err)
	require.NoError(t, h.Install())
	v := eval(t, h, `MyPlatform.initialize(1, 2, 3, 4).ctor`)
	assert.Equal(t, "FakeApp", v.String())
}
