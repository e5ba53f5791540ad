// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"fmt"
	"log/slog"
	"os"
)

// NewScratch creates a private temporary directory for one pipeline run.
// The returned cleanup removes it and is safe to call more than once.
func NewScratch() (dir string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", "bibformat-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("%w: creating scratch directory: %v", ErrExtraction, err)
	}
	done := false
	cleanup = func() {
		if done {
			return
		}
		done = true
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("removing scratch directory", "dir", dir, "error", err)
		}
	}
	return dir, cleanup, nil
}
