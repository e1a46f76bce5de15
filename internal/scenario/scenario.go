// Package scenario describes scripted runs of a hosted application.
//
// A scenario is a txtar archive. Its scenario.yaml file names the program to
// start and the steps to drive it through; every *.js file is a script for
// the host, loaded in archive order:
//
//	Counter increments.
//	-- scenario.yaml --
//	program: _user$project$Counter$main
//	platform: [core.js]
//	steps:
//	  - send: {ctor: Increment, _0: 2}
//	  - expect: model == 2
//	-- core.js --
//	...
//	-- counter.js --
//	...
//
// Files listed under platform are loaded before the interceptor is installed
// and the remaining scripts after it. Without a platform list, the
// interceptor is installed once every script has loaded.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/tools/txtar"
	"gopkg.in/yaml.v3"
)

// DefinitionFile is the archive member holding the Definition.
const DefinitionFile = "scenario.yaml"

// ErrInvalid reports an archive that does not describe a runnable scenario.
var ErrInvalid = errors.New("invalid scenario")

// Scenario is a parsed archive.
type Scenario struct {
	Name        string
	Description string
	Definition  Definition
	Scripts     []txtar.File
}

// Definition is the content of scenario.yaml.
type Definition struct {
	Name string `yaml:"name"`
	// Program is a JS expression evaluating to the program under test.
	Program  string   `yaml:"program"`
	Platform []string `yaml:"platform"`
	Flags    any      `yaml:"flags"`
	// ResetErrors overrides the runner's error accumulation mode.
	ResetErrors *bool  `yaml:"resetErrors"`
	Steps       []Step `yaml:"steps"`
}

// Step is one action or assertion. Exactly one field is set.
type Step struct {
	// Send applies a message decoded from YAML.
	Send any `yaml:"send,omitempty"`
	// SendJS applies the message a JS expression evaluates to.
	SendJS string    `yaml:"sendJS,omitempty"`
	Port   *PortStep `yaml:"port,omitempty"`
	// RunTasks performs the task commands of the previous step.
	RunTasks bool `yaml:"runTasks,omitempty"`
	// Expect is a boolean expression over model, ok, errors, commands and
	// subscriptions.
	Expect string `yaml:"expect,omitempty"`
	// ExpectCommands lists the commands of the previous step, as "task" or
	// "port:<name>".
	ExpectCommands []string `yaml:"expectCommands,omitempty"`
	// ExpectErrors lists substrings of the accumulated errors, one per error.
	// A passing ExpectErrors acknowledges those errors.
	ExpectErrors []string `yaml:"expectErrors,omitempty"`
}

// PortStep delivers a value on an inbound port.
type PortStep struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// Kind names the field set on s, or "" if none is.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s Step) kinds() []string {
	var kinds []string
	if s.Send != nil {
		kinds = append(kinds, "send")
	}
	if s.SendJS != "" {
		kinds = append(kinds, "sendJS")
	}
	if s.Port != nil {
		kinds = append(kinds, "port")
	}
	if s.RunTasks {
		kinds = append(kinds, "runTasks")
	}
	if s.Expect != "" {
		kinds = append(kinds, "expect")
	}
	if s.ExpectCommands != nil {
		kinds = append(kinds, "expectCommands")
	}
	if s.ExpectErrors != nil {
		kinds = append(kinds, "expectErrors")
	}
	return kinds
}

// updates reports whether s drives the application, and so starts from an
// empty error list when errors are reset.
func (s Step) updates() bool {
	switch s.Kind() {
	case "send", "sendJS", "port", "runTasks":
		return true
	}
	return false
}

// Describe renders s for reports.
func (s Step) Describe() string {
	switch s.Kind() {
	case "send":
		return fmt.Sprintf("send %v", s.Send)
	case "sendJS":
		return "send " + s.SendJS
	case "port":
		return fmt.Sprintf("port %s <- %v", s.Port.Name, s.Port.Value)
	case "runTasks":
		return "run tasks"
	case "expect":
		return "expect " + s.Expect
	case "expectCommands":
		return "expect commands [" + strings.Join(s.ExpectCommands, ", ") + "]"
	case "expectErrors":
		return fmt.Sprintf("expect %d error(s)", len(s.ExpectErrors))
	default:
		return "?"
	}
}

// ParseFile reads and parses the archive at path. The scenario is named
// after the file unless the definition names it.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, data)
}

// Parse parses a txtar archive.
func Parse(name string, data []byte) (*Scenario, error) {
	archive := txtar.Parse(data)
	s := &Scenario{
		Name:        name,
		Description: strings.TrimSpace(string(archive.Comment)),
	}

	var def []byte
	seen := make(map[string]bool)
	for _, f := range archive.Files {
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: %s: duplicate file %q", ErrInvalid, name, f.Name)
		}
		seen[f.Name] = true
		switch {
		case f.Name == DefinitionFile:
			def = f.Data
		case strings.HasSuffix(f.Name, ".js"):
			s.Scripts = append(s.Scripts, f)
		}
	}
	if def == nil {
		return nil, fmt.Errorf("%w: %s: missing %s", ErrInvalid, name, DefinitionFile)
	}

	dec := yaml.NewDecoder(bytes.NewReader(def))
	dec.KnownFields(true)
	if err := dec.Decode(&s.Definition); err != nil {
		return nil, fmt.Errorf("%w: %s: %s: %v", ErrInvalid, name, DefinitionFile, err)
	}
	if s.Definition.Name != "" {
		s.Name = s.Definition.Name
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, s.Name, err)
	}
	return s, nil
}

func (s *Scenario) validate() error {
	if strings.TrimSpace(s.Definition.Program) == "" {
		return errors.New("program is required")
	}
	if len(s.Scripts) == 0 {
		return errors.New("no scripts")
	}
	for _, p := range s.Definition.Platform {
		if !slices.ContainsFunc(s.Scripts, func(f txtar.File) bool { return f.Name == p }) {
			return fmt.Errorf("platform script %q not found", p)
		}
	}
	for i, step := range s.Definition.Steps {
		switch kinds := step.kinds(); len(kinds) {
		case 0:
			return fmt.Errorf("step %d: empty", i+1)
		case 1:
		default:
			return fmt.Errorf("step %d: more than one of %s", i+1, strings.Join(kinds, ", "))
		}
		if step.Port != nil && step.Port.Name == "" {
			return fmt.Errorf("step %d: port name is required", i+1)
		}
	}
	return nil
}

// platformFirst splits the scripts into those loaded before and after the
// interceptor is installed.
func (s *Scenario) platformFirst() (before, after []txtar.File) {
	if len(s.Definition.Platform) == 0 {
		return s.Scripts, nil
	}
	for _, p := range s.Definition.Platform {
		i := slices.IndexFunc(s.Scripts, func(f txtar.File) bool { return f.Name == p })
		before = append(before, s.Scripts[i])
	}
	for _, f := range s.Scripts {
		if !slices.Contains(s.Definition.Platform, f.Name) {
			after = append(after, f)
		}
	}
	return before, after
}
