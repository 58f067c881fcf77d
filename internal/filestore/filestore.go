// Package filestore keeps the raw bytes behind file-based source events.
// Nothing here parses the content.
package filestore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var ErrNotFound = errors.New("stored file not found")

type Store interface {
	// Save writes data under name and returns a reference that Open accepts.
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, ref string) ([]byte, error)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName builds the stored name for an upload: the first 16 hex chars of
// its content hash followed by a sanitized copy of the client filename.
func ObjectName(contentHash, filename string) string {
	prefix := contentHash
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	return prefix + "_" + SanitizeFilename(filename)
}

func SanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = unsafeName.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "upload"
	}
	return base
}
