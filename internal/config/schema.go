package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString OptionType = "string"
	TypeBool   OptionType = "bool"
	TypeInt    OptionType = "int"
	// TypeEnum is a string restricted to ConfigOption.Values.
	TypeEnum OptionType = "enum"
)

// ConfigOption declares one option.
type ConfigOption struct {
	// Key is the option name as it appears in the file.
	Key         string
	Type        OptionType
	Default     string
	Description string
	// Values lists the accepted values of a TypeEnum option.
	Values []string
	// Section is "" for global options.
	Section string
	// EnvVar overrides the file value when set.
	EnvVar string
}

// ConfigSchema is the set of known options. It drives validation, typed
// resolution, environment overrides and `testable config schema`.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema returns an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds opt; a later registration of the same key wins.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := &opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
		return
	}
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll registers every option in opts.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the option for key in section ("" for global), or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Global options may
// appear in any section.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.Lookup(section, key) != nil || s.byKey[key] != nil
}

// Options returns the options of section, in registration order.
func (s *ConfigSchema) Options(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted names of all non-global sections.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of a global key: its environment
// variable if set, else the config value, else the schema default. c may be
// nil.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	return s.ResolveFor(c, "", key)
}

// ResolveFor is Resolve for a key read by command; a value in the command's
// section takes precedence over the global value.
func (s *ConfigSchema) ResolveFor(c *Config, command, key string) string {
	opt := s.Lookup("", key)
	if command != "" {
		if o := s.Lookup(command, key); o != nil {
			opt = o
		}
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetCommandOption(command, key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveBool is Resolve parsed as a boolean.
func (s *ConfigSchema) ResolveBool(c *Config, key string) (bool, error) {
	return s.ResolveBoolFor(c, "", key)
}

// ResolveBoolFor is ResolveFor parsed as a boolean.
func (s *ConfigSchema) ResolveBoolFor(c *Config, command, key string) (bool, error) {
	v := s.ResolveFor(c, command, key)
	if v == "" {
		return false, nil
	}
	b, err := parseBool(v)
	if err != nil {
		return false, fmt.Errorf("option %q: %w", key, err)
	}
	return b, nil
}

// ResolveInt is Resolve parsed as an integer; an empty value is 0.
func (s *ConfigSchema) ResolveInt(c *Config, key string) (int, error) {
	v := s.Resolve(c, key)
	if v == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %q: expected int, got %q", key, v)
	}
	return i, nil
}

// ValidateConfig returns human-readable problems with c: unknown options and
// values that do not match their declared type. The result is sorted.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := opt.validate(value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			if err := opt.validate(value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	sort.Strings(issues)
	return issues
}

func (o *ConfigOption) validate(value string) error {
	switch o.Type {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeEnum:
		for _, v := range o.Values {
			if strings.EqualFold(v, value) {
				return nil
			}
		}
		return fmt.Errorf("expected one of %s, got %q", strings.Join(o.Values, ", "), value)
	default:
		return fmt.Errorf("unknown option type %q", o.Type)
	}
	return nil
}

// FormatHelp renders the schema as a reference, global options first.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.Options(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.Options(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-28s %s", o.Key, o.Description)
	var parts []string
	switch o.Type {
	case TypeEnum:
		parts = append(parts, "one of: "+strings.Join(o.Values, ", "))
	case TypeString, "":
	default:
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema returns every option testable understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "log.level", Type: TypeEnum, Values: []string{"debug", "info", "warn", "error"}, Default: "info", Description: "Log level", EnvVar: "TESTABLE_LOG_LEVEL"},
		{Key: "log.format", Type: TypeEnum, Values: []string{"text", "json"}, Default: "text", Description: "Log record format", EnvVar: "TESTABLE_LOG_FORMAT"},
		{Key: "log.file", Type: TypeString, Description: "Write logs to this file instead of stderr", EnvVar: "TESTABLE_LOG_FILE"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Max number of rotated log files kept"},
		{Key: "color", Type: TypeEnum, Values: []string{"auto", "always", "never"}, Default: "auto", Description: "Color mode for reports", EnvVar: "TESTABLE_COLOR"},
		{Key: "js.platform-object", Type: TypeString, Default: "_elm_lang$core$Native_Platform", Description: "Global holding the runtime initializer"},
		{Key: "context.reset-errors", Type: TypeBool, Default: "false", Description: "Clear accumulated errors on every update", EnvVar: "TESTABLE_RESET_ERRORS"},
		{Key: "context.module-name", Type: TypeString, Default: "<TestContext fake module>", Description: "Module name passed to program constructors"},

		{Key: "fail-fast", Section: "run", Type: TypeBool, Default: "false", Description: "Stop at the first failing scenario"},
		{Key: "format", Section: "run", Type: TypeEnum, Values: []string{"pretty", "plain"}, Default: "pretty", Description: "Report format"},
	})
	return s
}
