package jshost

import (
	"errors"

	"github.com/dop251/goja"
	"github.com/joeycumines/testable"
	"github.com/joeycumines/testable/internal/effect"
	"github.com/joeycumines/testable/internal/task"
)

// ModuleName is the require name of the test-context API.
const ModuleName = "testable:context"

// Require is the native module loader for ModuleName.
//
//	const TestContext = require('testable:context');
//	let c = TestContext.start(main);
//	c = TestContext.update({ctor: 'Increment'}, c);
//	TestContext.model(c); // {ctor: 'Ok', _0: model} or {ctor: 'Err', _0: [messages]}
func (h *Host) Require(_ *goja.Runtime, module *goja.Object) {
	_ = module.Set("exports", h.exports())
}

func (h *Host) exports() *goja.Object {
	vm := h.vm
	exports := vm.NewObject()

	// start(program, flags?): TestContext
	_ = exports.Set("start", func(call goja.FunctionCall) goja.Value {
		c, err := testable.Start(h.ProgramValue(call.Argument(0)),
			testable.WithFlags(optional(call.Argument(1))),
			testable.WithLogger(h.logger),
		)
		if err != nil {
			panic(h.throwable(err))
		}
		return h.wrapContext(c)
	})

	// model(context): Result (List String) model
	_ = exports.Set("model", func(call goja.FunctionCall) goja.Value {
		c := h.unwrapContext(call.Argument(0))
		if errs, failed := c.Model().Error(); failed {
			messages := make([]any, len(errs))
			for i, err := range errs {
				messages[i] = err.Error()
			}
			return h.ctorValue("Err", vm.NewArray(messages...))
		}
		model, _ := c.Model().Value()
		return h.ctorValue("Ok", h.toValue(model))
	})

	// update(msg, context) or update(msg)(context): TestContext
	update := func(msg, ctx goja.Value) goja.Value {
		next, err := h.unwrapContext(ctx).Update(msg)
		if err != nil {
			panic(h.throwable(err))
		}
		return h.wrapContext(next)
	}
	_ = exports.Set("update", func(call goja.FunctionCall) goja.Value {
		msg := call.Argument(0)
		if len(call.Arguments) < 2 {
			return vm.ToValue(func(call goja.FunctionCall) goja.Value {
				return update(msg, call.Argument(0))
			})
		}
		return update(msg, call.Argument(1))
	})

	// send(port, value, context): TestContext
	_ = exports.Set("send", func(call goja.FunctionCall) goja.Value {
		next, err := h.unwrapContext(call.Argument(2)).Send(call.Argument(0).String(), call.Argument(1))
		if err != nil {
			panic(h.throwable(err))
		}
		return h.wrapContext(next)
	})

	// runTasks(context): TestContext
	_ = exports.Set("runTasks", func(call goja.FunctionCall) goja.Value {
		next, err := h.unwrapContext(call.Argument(0)).RunTasks()
		if err != nil {
			panic(h.throwable(err))
		}
		return h.wrapContext(next)
	})

	// commands(context): Array<{ctor: 'TaskCommand', task} | {ctor: 'PortCommand', port, value}>
	_ = exports.Set("commands", func(call goja.FunctionCall) goja.Value {
		cmds, err := h.unwrapContext(call.Argument(0)).Commands()
		if err != nil {
			panic(h.throwable(err))
		}
		out := make([]any, 0, len(cmds))
		for _, cmd := range cmds {
			obj := vm.NewObject()
			switch cmd := cmd.(type) {
			case effect.TaskCommand:
				_ = obj.Set(h.contract.CtorField, "TaskCommand")
				_ = obj.Set("task", vm.ToValue(cmd.Task))
			case effect.PortCommand:
				_ = obj.Set(h.contract.CtorField, "PortCommand")
				_ = obj.Set("port", cmd.Port)
				_ = obj.Set("value", h.toValue(cmd.Value))
			}
			out = append(out, obj)
		}
		return vm.NewArray(out...)
	})

	// subscriptions(context): Array<{port, value}>
	_ = exports.Set("subscriptions", func(call goja.FunctionCall) goja.Value {
		subs, err := h.unwrapContext(call.Argument(0)).Subscriptions()
		if err != nil {
			panic(h.throwable(err))
		}
		out := make([]any, 0, len(subs))
		for _, sub := range subs {
			obj := vm.NewObject()
			_ = obj.Set("port", sub.Port)
			_ = obj.Set("value", h.toValue(sub.Value))
			out = append(out, obj)
		}
		return vm.NewArray(out...)
	})

	// performTask(task): Result error value
	_ = exports.Set("performTask", func(call goja.FunctionCall) goja.Value {
		out, err := testable.PerformTask(h.taskArgument(call.Argument(0)))
		if err != nil {
			panic(h.throwable(err))
		}
		if e, failed := out.Error(); failed {
			return h.ctorValue("Err", h.toValue(e))
		}
		v, _ := out.Value()
		return h.ctorValue("Ok", h.toValue(v))
	})

	// applyMapper(mapper, value): Result never msg
	_ = exports.Set("applyMapper", func(call goja.FunctionCall) goja.Value {
		mapper, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("applyMapper: mapper is not a function"))
		}
		var callErr error
		r := testable.ApplyMapper(func(v goja.Value) goja.Value {
			msg, err := mapper(goja.Undefined(), v)
			if err != nil {
				callErr = err
				return goja.Undefined()
			}
			return msg
		}, call.Argument(1))
		if callErr != nil {
			panic(h.throwable(callErr))
		}
		msg, _ := r.Value()
		return h.ctorValue("Ok", msg)
	})

	// subPortName(constructor): String
	_ = exports.Set("subPortName", func(call goja.FunctionCall) goja.Value {
		ctor, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("subPortName: constructor is not a function"))
		}
		name, err := effect.ExtractSubPortName(func(tagger effect.Tagger) (effect.Tree, error) {
			tree, err := ctor(goja.Undefined(), vm.ToValue(func(call goja.FunctionCall) goja.Value {
				return h.toValue(tagger(call.Argument(0)))
			}))
			if err != nil {
				return nil, err
			}
			return h.DecodeTree(tree), nil
		})
		if err != nil {
			panic(h.throwable(err))
		}
		return vm.ToValue(name)
	})

	return exports
}

const contextField = "_0"

func (h *Host) wrapContext(c *testable.Context) goja.Value {
	obj := h.vm.NewObject()
	_ = obj.Set(h.contract.CtorField, "TestContextNativeValue")
	_ = obj.Set(contextField, c)
	return obj
}

func (h *Host) unwrapContext(v goja.Value) *testable.Context {
	if obj, ok := v.(*goja.Object); ok {
		if field := obj.Get(contextField); field != nil {
			if c, ok := field.Export().(*testable.Context); ok && c != nil {
				return c
			}
		}
	}
	panic(h.vm.NewTypeError("not a test context"))
}

// taskArgument accepts a JS task or a task taken from commands().
func (h *Host) taskArgument(v goja.Value) task.Task {
	if t, ok := optional(v).(task.Task); ok {
		return t
	}
	return h.DecodeTask(v)
}

func (h *Host) ctorValue(ctor string, value goja.Value) goja.Value {
	obj := h.vm.NewObject()
	_ = obj.Set(h.contract.CtorField, ctor)
	_ = obj.Set("_0", value)
	return obj
}

// throwable converts err into a value a native function can panic with to
// throw it into the script. Exceptions raised by script are rethrown as is.
func (h *Host) throwable(err error) goja.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value()
	}
	return h.vm.NewGoError(err)
}

// optional maps undefined and null to nil and unwraps tasks handed out by
// commands(). Other values are returned as they are.
func optional(v goja.Value) any {
	if isNullish(v) {
		return nil
	}
	if obj, ok := v.(*goja.Object); ok {
		if exported, ok := obj.Export().(task.Task); ok {
			return exported
		}
	}
	return v
}
