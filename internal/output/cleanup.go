package output

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CleanOld removes generated workbooks and results older than retention.
// The diagnostic file is left alone. A zero retention disables the sweep.
func CleanOld(dir string, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}

	var files []string
	for _, pattern := range []string{
		ArtifactBase + "_*" + ArtifactExt,
		ResultBase + "_*" + ResultExt,
	} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			slog.Error("output cleanup glob", "pattern", pattern, "error", err)
			return 0, err
		}
		files = append(files, matches...)
	}

	cutoff := time.Now().Add(-retention)
	cleaned := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(f); err != nil {
				slog.Warn("failed to remove old output", "path", f, "error", err)
			} else {
				cleaned++
			}
		}
	}

	if cleaned > 0 {
		slog.Info("cleaned up old outputs", "count", cleaned, "dir", dir)
	}
	return cleaned, nil
}
