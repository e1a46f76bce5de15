// Package command implements the testable command line: a registry of named
// commands, each with its own flag set.
package command

import (
	"flag"
	"fmt"
	"io"
)

// Command is a subcommand of the testable binary.
type Command interface {
	Name() string
	Description() string
	Usage() string

	// SetupFlags registers the command's flags; fs is parsed before Execute.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command with the arguments left after flag parsing.
	Execute(args []string, stdout, stderr io.Writer) error
}

// BaseCommand holds the name, description and usage, and registers no flags.
type BaseCommand struct {
	name        string
	description string
	usage       string
}

// NewBaseCommand creates a new BaseCommand.
func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{
		name:        name,
		description: description,
		usage:       usage,
	}
}

func (c *BaseCommand) Name() string        { return c.name }
func (c *BaseCommand) Description() string { return c.description }
func (c *BaseCommand) Usage() string       { return c.usage }

func (c *BaseCommand) SetupFlags(fs *flag.FlagSet) {}

// noArgs rejects any positional arguments.
func noArgs(args []string, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	return nil
}
