package config

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("// x\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveFilesWalksDirectories(t *testing.T) {
	root := t.TempDir()
	top := filepath.Join(root, "top.sv")
	core := filepath.Join(root, "rtl", "core.sv")
	hdr := filepath.Join(root, "rtl", "defs.svh")
	legacy := filepath.Join(root, "rtl", "old.v")
	gen := filepath.Join(root, "build", "gen.sv")
	hidden := filepath.Join(root, ".git", "x.sv")
	notes := filepath.Join(root, "notes.txt")
	for _, p := range []string{top, core, hdr, legacy, gen, hidden, notes} {
		touch(t, p)
	}

	cfg := DefaultConfig()
	cfg.Defaults.Exclude = []string{"build/**", "**/old.v"}
	files, err := cfg.ResolveFiles([]string{root})
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}

	for _, want := range []string{top, core, hdr} {
		if !containsPath(files, want) {
			t.Fatalf("expected %s in %v", want, files)
		}
	}
	for _, skip := range []string{legacy, gen, hidden, notes} {
		if containsPath(files, skip) {
			t.Fatalf("did not expect %s in %v", skip, files)
		}
	}
}

func TestResolveFilesKeepsExplicitFiles(t *testing.T) {
	root := t.TempDir()
	odd := filepath.Join(root, "design.txt")
	sv := filepath.Join(root, "a.sv")
	touch(t, odd)
	touch(t, sv)

	cfg := DefaultConfig()
	files, err := cfg.ResolveFiles([]string{odd, sv, odd, root})
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if len(files) != 2 || files[0] != odd || files[1] != sv {
		t.Fatalf("files = %v", files)
	}
}

func TestResolveFilesMissingInput(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.ResolveFiles([]string{filepath.Join(t.TempDir(), "nope.sv")}); err == nil {
		t.Fatalf("expected error for missing input")
	}
}

func TestMatcherTopLevelDoubleStar(t *testing.T) {
	m, err := NewMatcher([]string{"**/*.sv"})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	for path, want := range map[string]bool{
		"a.sv":       true,
		"x/y/a.sv":   true,
		"a.svh":      false,
		"x/a.sv.bak": false,
	} {
		if got := m.Match(path); got != want {
			t.Fatalf("Match(%q) = %v, want %v", path, got, want)
		}
	}
}

func containsPath(files []string, target string) bool {
	for _, f := range files {
		if filepath.Clean(f) == filepath.Clean(target) {
			return true
		}
	}
	return false
}
