package locator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	p := DefaultPolicy()
	var names []string
	for _, s := range p.Strategies {
		names = append(names, s.Name())
	}
	if got := strings.Join(names, ","); got != "workdir,dirs,walk" {
		t.Fatalf("strategies = %s, want workdir,dirs,walk", got)
	}

	dirs := p.Strategies[1].(Dirs)
	want := []string{"/tmp", "/var/tmp", "/home/tester/Downloads", "/home/tester/Desktop", "."}
	if strings.Join(dirs.Paths, "|") != strings.Join(want, "|") {
		t.Errorf("dirs = %v, want %v", dirs.Paths, want)
	}

	walk := p.Strategies[2].(Walk)
	if walk.Root != "/home/tester" || walk.MaxDepth != 3 {
		t.Errorf("walk = %+v, want root /home/tester depth 3", walk)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	tests := []struct{ in, want string }{
		{"~", "/home/tester"},
		{"~/Downloads", "/home/tester/Downloads"},
		{"/tmp", "/tmp"},
		{"~other/x", "~other/x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadPolicy(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `strategies:
  - type: workdir
  - type: dirs
    paths: [/tmp, ~/Downloads]
  - type: walk
    root: "~"
    max_depth: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if len(p.Strategies) != 3 {
		t.Fatalf("strategies = %d, want 3", len(p.Strategies))
	}
	dirs := p.Strategies[1].(Dirs)
	if dirs.Paths[1] != "/home/tester/Downloads" {
		t.Errorf("dirs[1] = %q, want expanded home", dirs.Paths[1])
	}
	walk := p.Strategies[2].(Walk)
	if walk.Root != "/home/tester" || walk.MaxDepth != 2 {
		t.Errorf("walk = %+v", walk)
	}
}

func TestLoadPolicy_WalkDefaultsDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	os.WriteFile(path, []byte("strategies:\n  - type: walk\n    root: /srv\n"), 0o644)

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if w := p.Strategies[0].(Walk); w.MaxDepth != DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", w.MaxDepth, DefaultMaxDepth)
	}
}

func TestLoadPolicy_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown type", "strategies:\n  - type: glob\n"},
		{"walk without root", "strategies:\n  - type: walk\n"},
		{"negative depth", "strategies:\n  - type: walk\n    root: /srv\n    max_depth: -1\n"},
		{"malformed yaml", "strategies: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			os.WriteFile(path, []byte(tt.content), 0o644)
			if _, err := LoadPolicy(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	if _, err := LoadPolicy("/nonexistent/policy.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
