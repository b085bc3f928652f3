package config

import (
	"os"
	"path/filepath"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.dayplan).
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dayplan"), nil
}

// ResolveSQLitePath returns the database file to open.
// Resolution order (first match wins):
// 1. Explicit config via "storage.sqlite.path"
// 2. Local project directory: .dayplan/tasks.db (if .dayplan exists)
// 3. XDG_DATA_HOME/dayplan/tasks.db (if XDG_DATA_HOME is set)
// 4. Global fallback: ~/.dayplan/tasks.db
func ResolveSQLitePath(configured string) string {
	if configured != "" {
		return configured
	}

	if info, err := os.Stat(".dayplan"); err == nil && info.IsDir() {
		return filepath.Join(".dayplan", DefaultSQLiteFile)
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "dayplan", DefaultSQLiteFile)
	}

	dir, err := GetGlobalConfigDir()
	if err != nil {
		return DefaultSQLiteFile
	}
	return filepath.Join(dir, DefaultSQLiteFile)
}
