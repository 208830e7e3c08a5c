package locator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/yangwenmai/formconv/internal/model"
)

// Locator resolves an expected artifact to its canonical path.
type Locator struct {
	policy SearchPolicy
}

// New creates a Locator using the given search policy.
func New(policy SearchPolicy) *Locator {
	return &Locator{policy: policy}
}

// Policy returns the search policy in use.
func (l *Locator) Policy() SearchPolicy {
	return l.policy
}

// Resolve never fails; the outcome is encoded in the returned reference's State.
//
// A non-empty file at canonicalPath is Verified without any move. An empty
// one is reported as Empty and no search happens. Otherwise the first
// strategy that finds basename wins and the file is moved to canonicalPath.
func (l *Locator) Resolve(basename, canonicalPath string) model.ArtifactReference {
	ref := model.NewArtifactReference(canonicalPath, basename)

	if state, ok := checkSize(canonicalPath); ok {
		ref.State = state
		return ref
	}

	for _, s := range l.policy.Strategies {
		src, found := s.Find(basename)
		if !found || samePath(src, canonicalPath) {
			continue
		}
		slog.Debug("artifact candidate found", "strategy", s.Name(), "source", src)
		ref.Source = src

		if err := moveFile(src, canonicalPath); err != nil {
			slog.Warn("could not move artifact", "source", src, "dest", canonicalPath, "error", err)
			ref.State = model.ArtifactFoundElsewhere
			ref.Detail = err.Error()
			return ref
		}
		ref.State = model.ArtifactRelocated
		slog.Info("artifact relocated", "source", src, "dest", canonicalPath)

		if state, ok := checkSize(canonicalPath); ok {
			ref.State = state
		} else {
			ref.State = model.ArtifactMissing
		}
		return ref
	}

	ref.State = model.ArtifactMissing
	return ref
}

// checkSize reports Verified or Empty for an existing regular file.
func checkSize(path string) (model.ArtifactState, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return model.ArtifactUnknown, false
	}
	if info.Size() == 0 {
		return model.ArtifactEmpty, true
	}
	return model.ArtifactVerified, true
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// moveFile renames src to dst, copying across filesystems when rename cannot.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
