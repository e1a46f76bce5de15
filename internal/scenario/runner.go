package scenario

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/joeycumines/testable"
	"github.com/joeycumines/testable/internal/jshost"
)

// Runner executes scenarios, each in a fresh Host.
type Runner struct {
	Logger *slog.Logger
	// Contract overrides jshost.Elm018 when set.
	Contract *jshost.Contract
	// ResetErrors is the default for scenarios that do not set resetErrors.
	ResetErrors bool
}

// Report is the outcome of a run.
type Report struct {
	Name  string
	Steps []StepReport
	// Errors are the errors accumulated by the final context.
	Errors []string
	// Model is the exported final model, if it is Ok.
	Model any
	// Fatal is set when the run could not continue.
	Fatal error

	acknowledged int
}

// StepReport records one executed step.
type StepReport struct {
	Index     int
	Step      string
	NewErrors []string
}

// Failed reports whether the step added errors.
func (s StepReport) Failed() bool { return len(s.NewErrors) > 0 }

// Passed reports whether the run completed and every accumulated error was
// acknowledged by an expectErrors step.
func (r *Report) Passed() bool {
	return r.Fatal == nil && len(r.Errors) == r.acknowledged
}

// Run executes s. Failures of the application and of assertions are
// accumulated in the report; anything else stops the run and is recorded as
// Report.Fatal.
func (r *Runner) Run(s *Scenario) *Report {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("scenario", s.Name)
	rep := &Report{Name: s.Name}

	h, c, err := r.start(s, logger)
	if err != nil {
		rep.Fatal = err
		logger.Error("[Scenario] failed to start", "error", err)
		return rep
	}

	reset := r.resetErrors(s)
	for i, step := range s.Definition.Steps {
		before := len(c.Errors())
		next, err := r.step(h, c, step, rep)
		if err != nil {
			rep.Fatal = fmt.Errorf("step %d (%s): %w", i+1, step.Describe(), err)
			logger.Error("[Scenario] step aborted the run", "step", i+1, "error", err)
			break
		}
		c = next
		errs := c.Errors()
		if reset && step.updates() {
			// the step started from an empty error list
			before = 0
			rep.acknowledged = 0
		}
		sr := StepReport{Index: i + 1, Step: step.Describe()}
		for _, e := range errs[before:] {
			sr.NewErrors = append(sr.NewErrors, e.Error())
		}
		logger.Debug("[Scenario] step", "step", sr.Index, "desc", sr.Step, "newErrors", len(sr.NewErrors))
		rep.Steps = append(rep.Steps, sr)
	}

	rep.Errors = errorStrings(c.Errors())
	if model, ok := c.Model().Value(); ok {
		rep.Model = jshost.Export(model)
	}
	return rep
}

func (r *Runner) start(s *Scenario, logger *slog.Logger) (*jshost.Host, *testable.Context, error) {
	opts := []jshost.Option{jshost.WithLogger(logger)}
	if r.Contract != nil {
		opts = append(opts, jshost.WithContract(*r.Contract))
	}
	h, err := jshost.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	before, after := s.platformFirst()
	for _, f := range before {
		if err := h.Load(f.Name, string(f.Data)); err != nil {
			return nil, nil, err
		}
	}
	if err := h.Install(); err != nil {
		return nil, nil, err
	}
	for _, f := range after {
		if err := h.Load(f.Name, string(f.Data)); err != nil {
			return nil, nil, err
		}
	}

	c, err := testable.Start(h.Program(s.Definition.Program),
		testable.WithFlags(s.Definition.Flags),
		testable.WithLogger(logger),
		testable.WithResetErrors(r.resetErrors(s)),
	)
	if err != nil {
		return nil, nil, err
	}
	return h, c, nil
}

func (r *Runner) resetErrors(s *Scenario) bool {
	if s.Definition.ResetErrors != nil {
		return *s.Definition.ResetErrors
	}
	return r.ResetErrors
}

func (r *Runner) step(h *jshost.Host, c *testable.Context, step Step, rep *Report) (*testable.Context, error) {
	switch step.Kind() {
	case "send":
		return c.Update(step.Send)
	case "sendJS":
		msg, err := h.Eval(step.SendJS)
		if err != nil {
			return nil, err
		}
		return c.Update(msg)
	case "port":
		return c.Send(step.Port.Name, step.Port.Value)
	case "runTasks":
		return c.RunTasks()
	case "expect":
		return expect(c, step.Expect)
	case "expectCommands":
		cmds, err := c.Commands()
		if err != nil {
			return nil, err
		}
		got := make([]string, 0, len(cmds))
		for _, cmd := range cmds {
			got = append(got, commandSummary(cmd))
		}
		if !slices.Equal(got, step.ExpectCommands) {
			return c.Fail(fmt.Errorf("expected commands [%s], got [%s]",
				strings.Join(step.ExpectCommands, ", "), strings.Join(got, ", "))), nil
		}
		return c, nil
	case "expectErrors":
		errs := errorStrings(c.Errors())
		if err := matchErrors(errs, step.ExpectErrors); err != nil {
			return c.Fail(err), nil
		}
		rep.acknowledged = len(errs)
		return c, nil
	default:
		return nil, fmt.Errorf("%w: step has no single kind", ErrInvalid)
	}
}

func commandSummary(cmd testable.Command) string {
	switch cmd := cmd.(type) {
	case testable.TaskCommand:
		return "task"
	case testable.PortCommand:
		return "port:" + cmd.Port
	default:
		return fmt.Sprintf("%T", cmd)
	}
}

func matchErrors(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d error(s), got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !strings.Contains(got[i], want[i]) {
			return fmt.Errorf("expected error %d to contain %q, got %q", i+1, want[i], got[i])
		}
	}
	return nil
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

// expect evaluates src against the context. A false result is accumulated;
// an expression that does not compile or run aborts the scenario.
func expect(c *testable.Context, src string) (*testable.Context, error) {
	env := Env(c)
	program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("expression compilation failed: %w", err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation failed: %w", err)
	}
	if b, _ := out.(bool); !b {
		return c.Fail(fmt.Errorf("expectation failed: %s", src)), nil
	}
	return c, nil
}

// Env is the environment expect expressions run in:
//
//	model          the exported model, nil when errors have accumulated
//	ok             whether the model is Ok
//	errors         accumulated error messages
//	commands       the previous step's commands, each {kind, port, value}
//	subscriptions  port names of the current subscriptions
func Env(c *testable.Context) map[string]any {
	model, ok := c.Model().Value()

	commands := []any{}
	if cmds, err := c.Commands(); err == nil {
		for _, cmd := range cmds {
			entry := map[string]any{"kind": "task", "port": "", "value": nil}
			if pc, isPort := cmd.(testable.PortCommand); isPort {
				entry["kind"], entry["port"], entry["value"] = "port", pc.Port, jshost.Export(pc.Value)
			}
			commands = append(commands, entry)
		}
	}

	subscriptions := []string{}
	if subs, err := c.Subscriptions(); err == nil {
		for _, sub := range subs {
			subscriptions = append(subscriptions, sub.Port)
		}
	}

	return map[string]any{
		"model":         jshost.Export(model),
		"ok":            ok,
		"errors":        errorStrings(c.Errors()),
		"commands":      commands,
		"subscriptions": subscriptions,
	}
}
