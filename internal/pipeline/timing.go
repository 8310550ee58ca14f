package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimingEvent is one JSONL record of the timing file.
type TimingEvent struct {
	RunID      string  `json:"run_id"`
	Kind       string  `json:"kind"`
	File       string  `json:"file,omitempty"`
	Stage      string  `json:"stage,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// TimingRecorder appends stage, file and run timings to a JSONL file. A nil
// recorder records nothing.
type TimingRecorder struct {
	runID  string
	start  time.Time
	mu     sync.Mutex
	closer io.Closer
	enc    *json.Encoder
	err    error
}

// NewTimingRecorder creates path (and its directory). An empty path gives a
// nil recorder.
func NewTimingRecorder(path, runID string, start time.Time) (*TimingRecorder, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("timing dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create timing file: %w", err)
	}
	return newTimingRecorder(f, f, runID, start), nil
}

func newTimingRecorder(w io.Writer, c io.Closer, runID string, start time.Time) *TimingRecorder {
	return &TimingRecorder{runID: runID, start: start, closer: c, enc: json.NewEncoder(w)}
}

// Err returns the first write error.
func (tr *TimingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.err
}

func (tr *TimingRecorder) Close() error {
	if tr == nil || tr.closer == nil {
		return nil
	}
	if err := tr.closer.Close(); err != nil {
		return err
	}
	return tr.Err()
}

func (tr *TimingRecorder) record(kind, file, stage, status string, start time.Time, d time.Duration) {
	if tr == nil {
		return
	}
	startMS := durationToMS(start.Sub(tr.start))
	durMS := durationToMS(d)
	ev := TimingEvent{
		RunID:      tr.runID,
		Kind:       kind,
		File:       file,
		Stage:      stage,
		Status:     status,
		StartMS:    startMS,
		DurationMS: durMS,
		EndMS:      startMS + durMS,
	}
	tr.mu.Lock()
	if err := tr.enc.Encode(ev); err != nil && tr.err == nil {
		tr.err = err
	}
	tr.mu.Unlock()
}

func (tr *TimingRecorder) RecordStage(file, stage, status string, start time.Time, d time.Duration) {
	tr.record("stage", file, stage, status, start, d)
}

func (tr *TimingRecorder) RecordFile(file, status string, start time.Time, d time.Duration) {
	tr.record("file", file, "", status, start, d)
}

func (tr *TimingRecorder) RecordRun(status string, start time.Time, d time.Duration) {
	tr.record("run", "", "", status, start, d)
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}
