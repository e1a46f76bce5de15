package jshost

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/testable/internal/effect"
	"github.com/joeycumines/testable/internal/host"
	"github.com/joeycumines/testable/internal/task"
)

// opaqueTree is a tree of a kind the contract does not name. Flattening
// rejects it.
type opaqueTree struct {
	kind  string
	value goja.Value
}

func (t opaqueTree) Kind() string { return t.kind }

// opaqueTask is a task the interpreter cannot evaluate, such as a native
// binding that needs the real scheduler.
type opaqueTask struct {
	tag   string
	value goja.Value
}

func (t opaqueTask) Tag() string { return t.tag }

// descriptor converts a FakeApp into a host.Descriptor. Models and messages
// stay goja values; only commands and subscriptions are decoded.
func (h *Host) descriptor(app *goja.Object) (*host.Descriptor, error) {
	update, ok := goja.AssertFunction(app.Get("update"))
	if !ok {
		return nil, fmt.Errorf("%w: FakeApp has no update function", ErrContract)
	}
	model, cmds, err := h.tuple(app.Get("init"))
	if err != nil {
		return nil, fmt.Errorf("invalid init: %w", err)
	}
	d := &host.Descriptor{
		Init: host.Step{Model: model, Cmds: cmds},
		Update: func(msg, model any) (host.Step, error) {
			partial, err := update(goja.Undefined(), h.toValue(msg))
			if err != nil {
				return host.Step{}, appError("update", err)
			}
			apply, ok := goja.AssertFunction(partial)
			if !ok {
				return host.Step{}, fmt.Errorf("%w: update(msg) is not a function", ErrContract)
			}
			result, err := apply(goja.Undefined(), h.toValue(model))
			if err != nil {
				return host.Step{}, appError("update", err)
			}
			next, cmds, err := h.tuple(result)
			if err != nil {
				return host.Step{}, fmt.Errorf("invalid update result: %w", err)
			}
			return host.Step{Model: next, Cmds: cmds}, nil
		},
	}
	if subscriptions, ok := goja.AssertFunction(app.Get("subscriptions")); ok {
		d.Subscriptions = func(model any) (effect.Tree, error) {
			tree, err := subscriptions(goja.Undefined(), h.toValue(model))
			if err != nil {
				return nil, appError("subscriptions", err)
			}
			return h.DecodeTree(tree), nil
		}
	}
	return d, nil
}

// tuple splits a (model, commands) pair.
func (h *Host) tuple(v goja.Value) (goja.Value, effect.Tree, error) {
	obj, ok := v.(*goja.Object)
	if !ok || ctorOf(obj, h.contract) != h.contract.Tuple2Ctor {
		return nil, nil, fmt.Errorf("%w: expected a %s", ErrContract, h.contract.Tuple2Ctor)
	}
	return obj.Get("_0"), h.DecodeTree(obj.Get("_1")), nil
}

// DecodeTree converts a JS effect tree. Undefined and null decode to an empty
// tree; kinds the contract does not name decode to a tree that flattening
// rejects with effect.ErrMalformedTree.
func (h *Host) DecodeTree(v goja.Value) effect.Tree {
	if isNullish(v) {
		return nil
	}
	c := h.contract
	obj, ok := v.(*goja.Object)
	if !ok {
		return opaqueTree{kind: v.String(), value: v}
	}
	kindValue := obj.Get(c.KindField)
	if isNullish(kindValue) {
		return opaqueTree{value: v}
	}
	switch kind := kindValue.String(); kind {
	case c.LeafKind:
		home := obj.Get(c.HomeField)
		if isNullish(home) {
			return opaqueTree{kind: kind, value: v}
		}
		leaf := effect.Leaf{Home: home.String()}
		leaf.Value = h.decodeLeafValue(leaf.Home, obj.Get(c.ValueField))
		return leaf
	case c.NodeKind:
		branches, ok := h.list(obj.Get(c.BranchesField))
		if !ok {
			return opaqueTree{kind: kind, value: v}
		}
		node := effect.Node{Branches: make([]effect.Tree, 0, len(branches))}
		for _, b := range branches {
			node.Branches = append(node.Branches, h.DecodeTree(b))
		}
		return node
	default:
		return opaqueTree{kind: kind, value: v}
	}
}

func (h *Host) decodeLeafValue(home string, v goja.Value) any {
	c := h.contract
	if obj, ok := v.(*goja.Object); ok {
		if home == c.TaskHome && ctorOf(obj, c) == c.PerformCtor {
			return task.Perform{Task: h.DecodeTask(obj.Get("_0"))}
		}
		if fn, ok := goja.AssertFunction(obj); ok {
			return h.tagger(fn)
		}
	}
	return v
}

// tagger wraps a JS message mapper. An exception thrown by the mapper is
// raised as a panic carrying a *host.AppError, which the test context
// recovers and accumulates.
func (h *Host) tagger(fn goja.Callable) effect.Tagger {
	return func(v any) any {
		msg, err := fn(goja.Undefined(), h.toValue(v))
		if err != nil {
			panic(appError("port mapper", err))
		}
		return msg
	}
}

// list reads an array or a cons list into a slice.
func (h *Host) list(v goja.Value) ([]goja.Value, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	if obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		out := make([]goja.Value, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, obj.Get(fmt.Sprint(i)))
		}
		return out, true
	}
	var out []goja.Value
	for {
		switch ctorOf(obj, h.contract) {
		case h.contract.NilCtor:
			return out, true
		case h.contract.ConsCtor:
			out = append(out, obj.Get("_0"))
			next, ok := obj.Get("_1").(*goja.Object)
			if !ok {
				return nil, false
			}
			obj = next
		default:
			return nil, false
		}
	}
}

// DecodeTask converts a JS task. Tags the contract does not name decode to a
// task the interpreter rejects with task.ErrMalformedTask. Continuations call
// back into the runtime when the task is performed.
func (h *Host) DecodeTask(v goja.Value) task.Task {
	c := h.contract
	obj, ok := v.(*goja.Object)
	if !ok {
		return opaqueTask{value: v}
	}
	switch tag := ctorOf(obj, c); tag {
	case c.SucceedCtor:
		return task.Succeed{Value: obj.Get(c.TaskValue)}
	case c.FailCtor:
		return task.Fail{Err: obj.Get(c.TaskValue)}
	case c.AndThenCtor, c.OnErrorCtor:
		callback, ok := goja.AssertFunction(obj.Get(c.TaskCallback))
		if !ok {
			return opaqueTask{tag: tag, value: v}
		}
		inner := h.DecodeTask(obj.Get(c.TaskInner))
		next := h.continuation(callback)
		if tag == c.AndThenCtor {
			return task.AndThen{Inner: inner, Next: next}
		}
		return task.OnError{Inner: inner, Next: next}
	default:
		return opaqueTask{tag: tag, value: v}
	}
}

func (h *Host) continuation(callback goja.Callable) task.Continuation {
	return func(v any) (task.Task, error) {
		next, err := callback(goja.Undefined(), h.toValue(v))
		if err != nil {
			return nil, appError("task callback", err)
		}
		return h.DecodeTask(next), nil
	}
}
