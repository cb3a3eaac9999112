/*
PURPOSE:
  Writes trial outcomes to a JSON Lines journal (NDJSON) next to the result table.
  Carries what the frozen CSV schema cannot: status, error detail, duration, sweep id.

REQUIREMENTS:
  User-specified:
  - Show exactly which configurations failed and why.

  Implementation-discovered:
  - JSON Lines is append-friendly and survives a crash mid-sweep.

ARCHITECTURE INTEGRATION:
  - Called by: internal/sweep (via Recorder)
  - Consumes: internal/model.TrialOutcome

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Sync after every record, same contract as the CSV table.

USAGE:
  w, err := output.NewJSONJournal("results/benchmark_results.csv.jsonl")
  w.Append(outcome)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go
  - internal/output/csv.go

MAINTENANCE:
  - None; the journal follows TrialOutcome's json tags.
*/

package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/daryltucker/sweep-runner/internal/model"
)

// JournalPath returns the default journal location for a result table.
func JournalPath(tablePath string) string {
	return tablePath + ".jsonl"
}

// JSONJournal handles writing outcomes to a JSON Lines file.
type JSONJournal struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	closed  bool
	mu      sync.Mutex
}

// NewJSONJournal creates a new journal. An existing file is versioned like the table.
func NewJSONJournal(path string) (*JSONJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, _, err := createVersioned(path)
	if err != nil {
		return nil, err
	}

	return &JSONJournal{
		path:    path,
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Path returns the journal location.
func (jw *JSONJournal) Path() string { return jw.path }

// Append writes a single outcome as a JSON line.
func (jw *JSONJournal) Append(o model.TrialOutcome) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrClosed
	}
	if err := jw.encoder.Encode(o); err != nil {
		return err
	}
	return jw.file.Sync()
}

// Close closes the underlying file.
func (jw *JSONJournal) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return nil
	}
	jw.closed = true
	return jw.file.Close()
}
