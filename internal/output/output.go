// Package output owns the canonical output directory: timestamped filenames
// for each run and the retention sweep over old files.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Base names and extensions for files written per run.
const (
	ArtifactBase   = "xlsform_survey"
	ArtifactExt    = ".xlsx"
	ResultBase     = "form_result"
	ResultExt      = ".json"
	DiagnosticName = "conversion_error.txt"

	// TimestampLayout has second resolution; two runs within the same
	// second produce the same names.
	TimestampLayout = "20060102_150405"
)

// Layout computes canonical paths inside one output directory.
type Layout struct {
	Dir string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewLayout creates a Layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Dir: dir, Now: time.Now}
}

// Filenames are the canonical paths for one run, all sharing one timestamp.
type Filenames struct {
	Timestamp        string
	ArtifactBasename string
	ArtifactPath     string
	ResultPath       string
}

// Next returns the filenames for a run starting now.
func (l Layout) Next() Filenames {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	return l.At(now())
}

// At returns the filenames for a run stamped with t.
func (l Layout) At(t time.Time) Filenames {
	ts := t.Format(TimestampLayout)
	artifact := fmt.Sprintf("%s_%s%s", ArtifactBase, ts, ArtifactExt)
	return Filenames{
		Timestamp:        ts,
		ArtifactBasename: artifact,
		ArtifactPath:     filepath.Join(l.Dir, artifact),
		ResultPath:       filepath.Join(l.Dir, fmt.Sprintf("%s_%s%s", ResultBase, ts, ResultExt)),
	}
}

// DiagnosticPath is the single file conversion failures are written to. Each
// failure replaces the previous one.
func (l Layout) DiagnosticPath() string {
	return filepath.Join(l.Dir, DiagnosticName)
}

// Ensure creates the output directory if it does not exist.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", l.Dir, err)
	}
	return nil
}

// Contains reports whether path lies directly inside the output directory.
// The API uses it before serving files named by a run record.
func (l Layout) Contains(path string) bool {
	dir, err := filepath.Abs(l.Dir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == dir
}
