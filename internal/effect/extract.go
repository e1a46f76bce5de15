package effect

import (
	"errors"
	"fmt"

	"github.com/joeycumines/testable/internal/task"
)

// ErrNotSingleLeaf is returned by ExtractSubPortName when the subscription
// constructor does not produce exactly one leaf.
var ErrNotSingleLeaf = errors.New("subscription constructor must produce exactly one leaf")

// Command is a flattened command: a TaskCommand or a PortCommand.
type Command interface {
	// Channel returns the name of the channel the command is routed to.
	Channel() string
}

// TaskCommand asks the task manager to perform Task.
type TaskCommand struct {
	Task task.Task
}

func (TaskCommand) Channel() string { return TaskHome }

// PortCommand is any other command, carried verbatim.
type PortCommand struct {
	Port  string
	Value any
}

func (c PortCommand) Channel() string { return c.Port }

// Subscription is a flattened subscription.
type Subscription struct {
	Port  string
	Value any
}

// Tagger returns the subscription's message mapper, if its payload is one.
func (s Subscription) Tagger() (Tagger, bool) {
	switch fn := s.Value.(type) {
	case Tagger:
		return fn, fn != nil
	case func(any) any:
		return fn, fn != nil
	}
	return nil, false
}

// ExtractCmds flattens tree into commands, in traversal order. A leaf is a
// TaskCommand iff its home is TaskHome and its payload is a task.Perform.
func ExtractCmds(tree Tree) ([]Command, error) {
	var cmds []Command
	err := ForEachLeaf(tree, func(l Leaf) error {
		cmds = append(cmds, classify(l))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cmds, nil
}

func classify(l Leaf) Command {
	if l.Home == TaskHome {
		switch p := l.Value.(type) {
		case task.Perform:
			return TaskCommand{Task: p.Task}
		case *task.Perform:
			if p != nil {
				return TaskCommand{Task: p.Task}
			}
		}
	}
	return PortCommand{Port: l.Home, Value: l.Value}
}

// ExtractSubs flattens tree into subscriptions, one per leaf, in order.
func ExtractSubs(tree Tree) ([]Subscription, error) {
	var subs []Subscription
	err := ForEachLeaf(tree, func(l Leaf) error {
		subs = append(subs, Subscription{Port: l.Home, Value: l.Value})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// SubscriptionConstructor builds a subscription tree from a message mapper,
// the shape of an inbound port declaration.
type SubscriptionConstructor func(Tagger) (Tree, error)

// ExtractSubPortName applies ctor to an identity mapper and returns the port
// name of the single leaf it produces.
func ExtractSubPortName(ctor SubscriptionConstructor) (string, error) {
	tree, err := ctor(func(v any) any { return v })
	if err != nil {
		return "", fmt.Errorf("subscription constructor failed: %w", err)
	}
	var (
		name  string
		count int
	)
	err = ForEachLeaf(tree, func(l Leaf) error {
		count++
		name = l.Home
		return nil
	})
	if err != nil {
		return "", err
	}
	if count != 1 {
		return "", fmt.Errorf("%w: got %d", ErrNotSingleLeaf, count)
	}
	return name, nil
}
