// Package locator finds the workbook an agent produced and moves it to its
// canonical path.
//
// The agent is not guaranteed to save where it was asked to, so the locator
// checks the canonical path first and then walks an ordered SearchPolicy of
// fallback strategies. The search is best-effort and bounded: a Missing
// result is a legitimate outcome, not something to loop on.
package locator

import (
	"os"
	"path/filepath"
	"strings"
)

// Strategy looks for a file by basename in one family of locations.
type Strategy interface {
	Name() string
	// Find returns the path of the first matching file, if any.
	Find(basename string) (string, bool)
}

// SearchPolicy is the ordered list of strategies tried after the canonical path.
type SearchPolicy struct {
	Strategies []Strategy
}

// DefaultMaxDepth bounds the home directory walk.
const DefaultMaxDepth = 3

// DefaultPolicy searches the working directory, the usual temp and user
// download locations, and finally the home directory up to DefaultMaxDepth.
func DefaultPolicy() SearchPolicy {
	strategies := []Strategy{
		WorkDir{},
		Dirs{Paths: []string{
			"/tmp",
			"/var/tmp",
			ExpandHome("~/Downloads"),
			ExpandHome("~/Desktop"),
			".",
		}},
	}
	if home, err := os.UserHomeDir(); err == nil {
		strategies = append(strategies, Walk{Root: home, MaxDepth: DefaultMaxDepth})
	}
	return SearchPolicy{Strategies: strategies}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
