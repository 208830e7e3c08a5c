package locator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// policyFile is the on-disk form of a SearchPolicy:
//
//	strategies:
//	  - type: workdir
//	  - type: dirs
//	    paths: [/tmp, /var/tmp, ~/Downloads]
//	  - type: walk
//	    root: "~"
//	    max_depth: 3
type policyFile struct {
	Strategies []struct {
		Type     string   `yaml:"type"`
		Dir      string   `yaml:"dir"`
		Paths    []string `yaml:"paths"`
		Root     string   `yaml:"root"`
		MaxDepth *int     `yaml:"max_depth"`
	} `yaml:"strategies"`
}

// LoadPolicy reads a SearchPolicy from a YAML file.
func LoadPolicy(path string) (SearchPolicy, error) {
	f, err := os.Open(path)
	if err != nil {
		return SearchPolicy{}, err
	}
	defer f.Close()

	var pf policyFile
	if err := yaml.NewDecoder(f).Decode(&pf); err != nil {
		return SearchPolicy{}, fmt.Errorf("decode policy %s: %w", path, err)
	}
	return pf.build()
}

func (pf policyFile) build() (SearchPolicy, error) {
	var policy SearchPolicy
	for i, s := range pf.Strategies {
		switch s.Type {
		case "workdir":
			policy.Strategies = append(policy.Strategies, WorkDir{Dir: ExpandHome(s.Dir)})
		case "dirs":
			paths := make([]string, 0, len(s.Paths))
			for _, p := range s.Paths {
				paths = append(paths, ExpandHome(p))
			}
			policy.Strategies = append(policy.Strategies, Dirs{Paths: paths})
		case "walk":
			if s.Root == "" {
				return SearchPolicy{}, fmt.Errorf("strategy %d: walk requires root", i)
			}
			depth := DefaultMaxDepth
			if s.MaxDepth != nil {
				depth = *s.MaxDepth
			}
			if depth < 0 {
				return SearchPolicy{}, fmt.Errorf("strategy %d: max_depth must be >= 0", i)
			}
			policy.Strategies = append(policy.Strategies, Walk{Root: ExpandHome(s.Root), MaxDepth: depth})
		default:
			return SearchPolicy{}, fmt.Errorf("strategy %d: unknown type %q", i, s.Type)
		}
	}
	return policy, nil
}
