package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns $TESTABLE_CONFIG if set, else ~/.testable/config.
func GetConfigPath() (string, error) {
	if path := os.Getenv("TESTABLE_CONFIG"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".testable", "config"), nil
}
