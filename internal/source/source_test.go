package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("module m;\nendmodule\n"), "module m;\nendmodule\n"},
		{"bom", []byte("\xEF\xBB\xBFmodule m;"), "module m;"},
		{"crlf", []byte("a\r\nb\r\n"), "a\nb\n"},
		{"lone cr", []byte("a\rb\r"), "a\nb\n"},
		{"mixed", []byte("\xEF\xBB\xBFa\r\n\rb"), "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Normalize = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsInvalidUTF8(t *testing.T) {
	_, err := Normalize([]byte{'a', 0xff, 'b'})
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.sv")
	if err := os.WriteFile(path, []byte("module a;\r\nendmodule\r\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if text != "module a;\nendmodule\n" {
		t.Fatalf("ReadFile = %q", text)
	}
	if _, err := ReadFile(filepath.Join(dir, "missing.sv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLocationClamped(t *testing.T) {
	got := Location{Line: 0, Col: -1, EndLine: 3, EndCol: 0}.Clamped()
	want := Location{Line: 1, Col: 1, EndLine: 3, EndCol: 1}
	if got != want {
		t.Fatalf("Clamped = %+v, want %+v", got, want)
	}
}
