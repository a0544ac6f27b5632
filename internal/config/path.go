// Package config holds path helpers shared by the CLI and the storage layers.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading ~ to the home directory and then expands
// $VAR and ${VAR} references. Paths the home directory cannot be found for
// are returned with the tilde intact.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return ""
	case path == "~" || strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

// DataDir is where sift keeps its database and local documents:
// $XDG_DATA_HOME/sift, falling back to ~/.local/share/sift.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "sift")
	}
	return ExpandPath("~/.local/share/sift")
}
