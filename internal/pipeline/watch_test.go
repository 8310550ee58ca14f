package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/robert-at-pretension-io/sv-lint/internal/config"
	"github.com/robert-at-pretension-io/sv-lint/internal/metrics"
)

func TestNewWatcherRejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(config.DefaultConfig(), WatchOptions{}, nil)
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher")
	}
}

func waitBatch(t *testing.T, ch <-chan []string, timeout time.Duration) []string {
	t.Helper()
	select {
	case paths := <-ch:
		return paths
	case <-time.After(timeout):
		return nil
	}
}

func TestWatcherReportsSourceChanges(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "build"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Defaults.Exclude = []string{"build/**"}

	rec := metrics.New()
	changed := make(chan []string, 4)
	w, err := NewWatcher(cfg, WatchOptions{Debounce: 50 * time.Millisecond, Metrics: rec}, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Add([]string{dir}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	top := writeSV(t, dir, "top.sv", "module top; endmodule")
	paths := waitBatch(t, changed, 2*time.Second)
	if len(paths) != 1 || paths[0] != top {
		t.Fatalf("expected [%s], got %v", top, paths)
	}
	if got := testutil.ToFloat64(rec.WatcherEvents); got < 1 {
		t.Fatalf("watcher events = %v", got)
	}

	writeSV(t, dir, "notes.txt", "not verilog")
	writeSV(t, filepath.Join(dir, "build"), "gen.sv", "module gen; endmodule")
	if paths := waitBatch(t, changed, 300*time.Millisecond); paths != nil {
		t.Fatalf("filtered files triggered a batch: %v", paths)
	}

	sub := filepath.Join(dir, "rtl")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	nested := writeSV(t, sub, "core.sv", "module core; endmodule")
	paths = waitBatch(t, changed, 2*time.Second)
	if len(paths) != 1 || paths[0] != nested {
		t.Fatalf("expected [%s], got %v", nested, paths)
	}
}

func TestWatcherExplicitFile(t *testing.T) {
	dir := t.TempDir()
	target := writeSV(t, dir, "odd.vh", "`define X 1")

	changed := make(chan []string, 4)
	w, err := NewWatcher(config.DefaultConfig(), WatchOptions{Debounce: 50 * time.Millisecond}, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Add([]string{target}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeSV(t, dir, "other.sv", "module other; endmodule")
	writeSV(t, dir, "odd.vh", "`define X 2")
	paths := waitBatch(t, changed, 2*time.Second)
	if len(paths) != 1 || paths[0] != target {
		t.Fatalf("expected [%s], got %v", target, paths)
	}
}
