package locator

import (
	"os"
	"path/filepath"
)

// WorkDir looks for the file directly in a directory, by default the
// process working directory at the time of the search.
type WorkDir struct {
	Dir string
}

func (WorkDir) Name() string { return "workdir" }

func (w WorkDir) Find(basename string) (string, bool) {
	dir := w.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", false
		}
		dir = wd
	}
	return fileIn(dir, basename)
}

// Dirs probes a fixed, ordered list of directories. Missing directories are skipped.
type Dirs struct {
	Paths []string
}

func (Dirs) Name() string { return "dirs" }

func (d Dirs) Find(basename string) (string, bool) {
	for _, dir := range d.Paths {
		if p, ok := fileIn(dir, basename); ok {
			return p, true
		}
	}
	return "", false
}

// Walk searches breadth-first below Root. Files in directories up to
// MaxDepth levels below Root are considered; deeper directories are never opened.
type Walk struct {
	Root     string
	MaxDepth int

	onVisit func(dir string, depth int)
}

func (Walk) Name() string { return "walk" }

func (w Walk) Find(basename string) (string, bool) {
	type level struct {
		dir   string
		depth int
	}
	queue := []level{{dir: w.Root, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if w.onVisit != nil {
			w.onVisit(cur.dir, cur.depth)
		}
		entries, err := os.ReadDir(cur.dir)
		if err != nil {
			// Unreadable directories are skipped.
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && e.Name() == basename {
				return filepath.Join(cur.dir, e.Name()), true
			}
		}
		if cur.depth >= w.MaxDepth {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				queue = append(queue, level{dir: filepath.Join(cur.dir, e.Name()), depth: cur.depth + 1})
			}
		}
	}
	return "", false
}

func fileIn(dir, basename string) (string, bool) {
	p := filepath.Join(dir, basename)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}
