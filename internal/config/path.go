// Package config loads the typed application configuration and resolves the
// files ledgerscan keeps on disk.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appDir = "ledgerscan"

// ExpandPath expands environment variables and then a leading ~ in a
// configured path, so "$LEDGERSCAN_HOME/db" may itself point at "~/...".
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// DataDir is where results are stored: $XDG_DATA_HOME/ledgerscan, else
// ~/.local/share/ledgerscan.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", "~/.local/share")
}

// ConfigDir holds config.yaml and the Sheets token: $XDG_CONFIG_HOME/ledgerscan,
// else ~/.config/ledgerscan.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", "~/.config")
}

// DefaultStoragePath is the results database used unless storage.path is set.
func DefaultStoragePath() string {
	return filepath.Join(DataDir(), "ledgerscan.db")
}

func xdgDir(env, fallback string) string {
	base := os.Getenv(env)
	if !filepath.IsAbs(base) {
		base = fallback
	}
	return filepath.Join(ExpandPath(base), appDir)
}
