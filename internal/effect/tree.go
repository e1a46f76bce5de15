// Package effect models the command and subscription trees returned by an
// application's init, update and subscriptions functions, and flattens them
// into ordered lists of leaves.
//
// A tree is either a Leaf, a single effect routed to a named channel, or a
// Node, an ordered batch of subtrees. Traversal is depth-first and
// left-to-right; that order is observable to tests and must not change.
package effect

import (
	"errors"
	"fmt"
	"iter"

	"github.com/joeycumines/testable/internal/task"
)

// ErrMalformedTree indicates a tree variant that flattening does not
// recognise. Like task.ErrMalformedTask, it is an integration bug between the
// adapter and the host runtime.
var ErrMalformedTree = errors.New("malformed effect tree")

// Tree kinds.
const (
	KindLeaf = "leaf"
	KindNode = "node"
)

// TaskHome is the reserved channel handled by the host's task manager.
const TaskHome = "Task"

// Tree is an effect tree. Implementations outside this package are allowed so
// that hosts can represent variants they cannot decode; flattening rejects them.
type Tree interface {
	Kind() string
}

// Leaf is a single effect destined for the channel Home.
type Leaf struct {
	Home  string
	Value any
}

func (Leaf) Kind() string { return KindLeaf }

// Node is an ordered batch of trees.
type Node struct {
	Branches []Tree
}

func (Node) Kind() string { return KindNode }

// Tagger maps a value received on a channel into an application message.
type Tagger func(any) any

// None returns an empty tree.
func None() Tree { return Node{} }

// Batch groups trees, preserving their order.
func Batch(trees ...Tree) Tree { return Node{Branches: trees} }

// Perform returns a leaf asking the task manager to run t.
func Perform(t task.Task) Leaf {
	return Leaf{Home: TaskHome, Value: task.Perform{Task: t}}
}

// Port returns a leaf sending value out through the named port.
func Port(name string, value any) Leaf {
	return Leaf{Home: name, Value: value}
}

// Subscribe returns a subscription leaf for the named inbound port.
func Subscribe(name string, tagger Tagger) Leaf {
	return Leaf{Home: name, Value: tagger}
}

// ForEachLeaf calls visit for every leaf of tree, depth-first and
// left-to-right. A nil tree, or nil branch, has no leaves. It stops at the
// first error returned by visit, or with ErrMalformedTree if it meets a
// variant other than Leaf or Node. It keeps no state between calls.
func ForEachLeaf(tree Tree, visit func(Leaf) error) error {
	switch t := tree.(type) {
	case Leaf:
		return visit(t)
	case *Leaf:
		if t == nil {
			return fmt.Errorf("%w: nil leaf", ErrMalformedTree)
		}
		return visit(*t)
	case Node:
		return forEachBranch(t.Branches, visit)
	case *Node:
		if t == nil {
			return fmt.Errorf("%w: nil node", ErrMalformedTree)
		}
		return forEachBranch(t.Branches, visit)
	case nil:
		return nil
	default:
		return fmt.Errorf("%w: unrecognised kind %q", ErrMalformedTree, t.Kind())
	}
}

func forEachBranch(branches []Tree, visit func(Leaf) error) error {
	for _, b := range branches {
		if err := ForEachLeaf(b, visit); err != nil {
			return err
		}
	}
	return nil
}

var errStop = errors.New("stop")

// Leaves returns an iterator over the leaves of tree, in ForEachLeaf order.
// A malformed tree yields its error as the final pair.
func Leaves(tree Tree) iter.Seq2[Leaf, error] {
	return func(yield func(Leaf, error) bool) {
		err := ForEachLeaf(tree, func(l Leaf) error {
			if !yield(l, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(Leaf{}, err)
		}
	}
}
