package testable

import (
	"github.com/joeycumines/testable/internal/effect"
	"github.com/joeycumines/testable/internal/host"
	"github.com/joeycumines/testable/internal/result"
	"github.com/joeycumines/testable/internal/task"
)

type (
	// Tree is a command or subscription tree.
	Tree = effect.Tree
	// Leaf is a single effect.
	Leaf = effect.Leaf
	// Node is an ordered batch of trees.
	Node = effect.Node
	// Tagger maps a port value into an application message.
	Tagger = effect.Tagger
	// Command is a flattened command.
	Command = effect.Command
	// TaskCommand asks the task manager to perform a task.
	TaskCommand = effect.TaskCommand
	// PortCommand is any command that is not a task command.
	PortCommand = effect.PortCommand
	// Subscription is a flattened subscription.
	Subscription = effect.Subscription

	// Task is a deferred computation.
	Task = task.Task

	// Program is a zero-argument application constructor.
	Program = host.Program
	// Descriptor is a captured application.
	Descriptor = host.Descriptor
)

// Result is Ok(value) or Err(failure).
type Result[E, T any] = result.Result[E, T]

// Ok returns a successful Result.
func Ok[E, T any](value T) Result[E, T] { return result.Ok[E](value) }

// Err returns a failed Result.
func Err[E, T any](err E) Result[E, T] { return result.Err[E, T](err) }

var (
	// ErrMalformedTree reports an effect tree variant the adapter cannot walk.
	ErrMalformedTree = effect.ErrMalformedTree
	// ErrMalformedTask reports a task variant the interpreter cannot evaluate.
	ErrMalformedTask = task.ErrMalformedTask
	// ErrNotSingleLeaf reports a subscription constructor that did not
	// produce exactly one leaf.
	ErrNotSingleLeaf = effect.ErrNotSingleLeaf
)

// ForEachLeaf visits the leaves of tree depth-first, left-to-right.
func ForEachLeaf(tree Tree, visit func(Leaf) error) error {
	return effect.ForEachLeaf(tree, visit)
}

// ExtractCmds flattens a command tree.
func ExtractCmds(tree Tree) ([]Command, error) {
	return effect.ExtractCmds(tree)
}

// ExtractSubs flattens a subscription tree.
func ExtractSubs(tree Tree) ([]Subscription, error) {
	return effect.ExtractSubs(tree)
}

// ExtractSubPortName returns the port name of the single leaf produced by a
// subscription constructor.
func ExtractSubPortName(ctor func(Tagger) Tree) (string, error) {
	return effect.ExtractSubPortName(func(tagger Tagger) (Tree, error) {
		return ctor(tagger), nil
	})
}

// PerformTask evaluates t synchronously. The Result is the task's own
// outcome; the error reports an integration failure such as ErrMalformedTask.
func PerformTask(t Task) (Result[any, any], error) {
	return task.Run(t)
}

// ApplyMapper applies mapper to value. It always succeeds; it stands in for
// the dispatch channel that would carry a port value into the application.
func ApplyMapper[A, B any](mapper func(A) B, value A) Result[error, B] {
	return Ok[error](mapper(value))
}
