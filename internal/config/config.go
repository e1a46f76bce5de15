// Package config loads the testable configuration file.
//
// The file uses a dnsmasq-style format: one option per line, the option name
// followed by the rest of the line as its value. Lines starting with # are
// comments. A [name] header starts a command section; options inside it apply
// to that command only and fall back to the global value.
//
//	log.level debug
//	context.reset-errors false
//
//	[run]
//	log.format json
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config is a parsed configuration file.
type Config struct {
	// Global options apply to every command.
	Global map[string]string
	// Commands holds per-command sections.
	Commands map[string]map[string]string
	// Warnings lists problems found while loading, such as unknown options.
	Warnings []string
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
	}
}

// Load reads the configuration from GetConfigPath.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration at path. A missing file yields an
// empty configuration. Symlinks are rejected.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader parses a configuration and validates it against
// DefaultSchema. Validation problems become warnings, not errors.
func LoadFromReader(r io.Reader) (*Config, error) {
	c := NewConfig()
	scanner := bufio.NewScanner(r)

	var section string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(strings.Trim(line, "[]"))
			if section != "" && c.Commands[section] == nil {
				c.Commands[section] = make(map[string]string)
			}
			continue
		}

		name, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		if section == "" {
			c.Global[name] = value
		} else {
			c.Commands[section][name] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(c, DefaultSchema()) {
		c.addWarning("%s", issue)
	}
	return c, nil
}

func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("[Config] " + msg)
}

// parseBool accepts true, false, 1, 0, yes, no, on and off, in any case.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// GetGlobalOption returns a global option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	value, ok := c.Global[name]
	return value, ok
}

// GetCommandOption returns an option for command, falling back to the global
// value.
func (c *Config) GetCommandOption(command, name string) (string, bool) {
	if opts, ok := c.Commands[command]; ok {
		if value, ok := opts[name]; ok {
			return value, true
		}
	}
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global option.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// SetCommandOption sets an option in a command section.
func (c *Config) SetCommandOption(command, name, value string) {
	if c.Commands[command] == nil {
		c.Commands[command] = make(map[string]string)
	}
	c.Commands[command][name] = value
}

// GetString returns the global option for key, or "".
func (c *Config) GetString(key string) string {
	v, _ := c.GetGlobalOption(key)
	return v
}

// GetBool returns the global option for key as a boolean; unset or invalid
// values are false.
func (c *Config) GetBool(key string) bool {
	b, err := parseBool(c.GetString(key))
	return err == nil && b
}

// GetInt returns the global option for key as an integer; unset or invalid
// values are 0.
func (c *Config) GetInt(key string) int {
	i, err := strconv.Atoi(c.GetString(key))
	if err != nil {
		return 0
	}
	return i
}

// HasWarnings reports whether loading produced warnings.
func (c *Config) HasWarnings() bool {
	return len(c.Warnings) > 0
}
