package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/joeycumines/testable/internal/config"
	"github.com/joeycumines/testable/internal/jshost"
	"github.com/joeycumines/testable/internal/logging"
	"github.com/joeycumines/testable/internal/scenario"
)

// ErrScenariosFailed is returned by run when at least one scenario failed.
var ErrScenariosFailed = errors.New("scenarios failed")

// RunCommand runs scenario archives.
type RunCommand struct {
	*BaseCommand
	config *config.Config
	flags  *flag.FlagSet

	failFast    bool
	resetErrors bool
	format      string
	color       string
	logLevel    string
	logFile     string
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run scenario archives against their applications",
			"run [options] <file.txtar|dir>...",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags = fs
	fs.BoolVar(&c.failFast, "fail-fast", false, "Stop at the first failing scenario (default from config run.fail-fast)")
	fs.BoolVar(&c.resetErrors, "reset-errors", false, "Clear accumulated errors on every update (default from config context.reset-errors)")
	fs.StringVar(&c.format, "format", "", "Report format: pretty or plain (default from config run.format)")
	fs.StringVar(&c.color, "color", "", "Color mode: auto, always or never (default from config color)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&c.logFile, "log-file", "", "Write logs to this file (default from config log.file)")
}

// Execute runs every scenario named by args; directories contribute their
// *.txtar files in name order.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "no scenario files given")
		return fmt.Errorf("no scenario files given")
	}
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}

	settings, err := logging.Resolve(c.config, c.logLevel, c.logFile)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(settings, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	// flag -> config -> default
	set := c.explicitFlags()
	schema := config.DefaultSchema()
	failFast := c.failFast
	if !set["fail-fast"] {
		if failFast, err = schema.ResolveBoolFor(c.config, "run", "fail-fast"); err != nil {
			return err
		}
	}
	reset := c.resetErrors
	if !set["reset-errors"] {
		if reset, err = schema.ResolveBool(c.config, "context.reset-errors"); err != nil {
			return err
		}
	}
	format := c.format
	if format == "" {
		format = schema.ResolveFor(c.config, "run", "format")
	}
	color := c.color
	if color == "" {
		color = schema.Resolve(c.config, "color")
	}

	contract := jshost.Elm018
	contract.PlatformObject = schema.Resolve(c.config, "js.platform-object")
	contract.ModuleName = schema.Resolve(c.config, "context.module-name")
	runner := &scenario.Runner{Logger: logger, Contract: &contract, ResetErrors: reset}
	reporter := NewReporter(stdout, format, color)

	var passed, failed int
	for _, path := range paths {
		s, err := scenario.ParseFile(path)
		if err != nil {
			return err
		}
		logger.Info("[Run] scenario", "name", s.Name, "path", path)
		rep := runner.Run(s)
		reporter.Scenario(rep)
		if rep.Passed() {
			passed++
			continue
		}
		failed++
		if failFast {
			break
		}
	}
	reporter.Summary(passed, failed)

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, failed, passed+failed)
	}
	return nil
}

// explicitFlags names the flags given on the command line.
func (c *RunCommand) explicitFlags() map[string]bool {
	set := make(map[string]bool)
	if c.flags != nil {
		c.flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	}
	return set
}

func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.txtar"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %v", args)
	}
	return paths, nil
}
