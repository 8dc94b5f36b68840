// Package startup provides utilities for application startup tasks.
package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// staleOutputExtensions are the stream artifacts a previous run leaves in
// the output directory.
var staleOutputExtensions = map[string]bool{
	".ts":   true,
	".m3u8": true,
}

// CleanupOutputDir removes stream artifacts left behind by a previous run
// so clients never see segments from a dead generation. The directory is
// created if missing. Returns the number of files removed.
func CleanupOutputDir(logger *slog.Logger, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var removed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !staleOutputExtensions[ext] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove stale output file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("removed stale output files from previous run",
			slog.Int("removed_count", removed),
			slog.String("path", dir),
		)
	}
	return removed, nil
}

// EnsurePlanDir creates the plan directory if missing.
func EnsurePlanDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
