// Package docstore keeps the binary documents behind invoices. Paths are
// logical, slash-separated keys such as "user-1/3f2a.pdf".
package docstore

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/service"
)

// Backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// ErrInvalidPath is returned for keys that are empty or escape the store root.
var ErrInvalidPath = errors.New("invalid document path")

// Config selects and configures a document store.
type Config struct {
	Backend string
	Root    string
	S3      S3Config
}

// New creates the store named by cfg.Backend.
func New(cfg Config) (service.DocumentStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		return NewLocalStore(cfg.Root)
	case BackendS3:
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("%w: unknown document store backend %q", common.ErrInvalidConfig, cfg.Backend)
	}
}

// cleanKey normalizes a logical path and rejects anything that could leave
// the store.
func cleanKey(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return cleaned, nil
}
