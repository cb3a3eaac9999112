/*
PURPOSE:
  Writes trial outcomes to the result table CSV.
  Ensures data integrity by flushing and syncing every row.

REQUIREMENTS:
  User-specified:
  - Fixed column set: engine,value_size,threads,ops,prefill_tput,decode_tput,timestamp.
  - One row per attempted trial, failed trials included with empty throughput.
  - Rows are never rewritten.

  Implementation-discovered:
  - The plotting side reads this file; the schema is a compatibility surface.
  - Absent throughput must be an empty field, never "0".
  - A file left over from a previous sweep is versioned (results.csv.1), not truncated.

ARCHITECTURE INTEGRATION:
  - Called by: internal/sweep (via Recorder), internal/cli (summary reads it back)
  - Consumes: internal/model.TrialOutcome

ERROR HANDLING:
  - Returns error on file creation or write failure. The sweep treats it as fatal.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() and Sync() after every write (critical for crash resilience).
  - Locale independent numbers: strconv, never fmt with %v on floats.

USAGE:
  t, err := output.NewCSVTable("results/benchmark_results.csv")
  t.Append(outcome)
  t.Close()

SELF-HEALING INSTRUCTIONS:
  - Do not change TableHeader without updating the plotting scripts.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Append() mapping when TrialOutcome changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/daryltucker/sweep-runner/internal/model"
)

// TimestampLayout is ISO-8601 with microseconds and zone offset.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// TableHeader is the result table schema, in column order.
var TableHeader = []string{"engine", "value_size", "threads", "ops", "prefill_tput", "decode_tput", "timestamp"}

// CSVTable is the append-only result table.
type CSVTable struct {
	path    string
	rotated string
	file    *os.File
	writer  *csv.Writer
	rows    int
	closed  bool
	mu      sync.Mutex
}

// NewCSVTable creates the table at path and writes the header.
// An existing file at path is renamed to path.N first.
func NewCSVTable(path string) (*CSVTable, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, rotated, err := createVersioned(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(TableHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, err
	}

	return &CSVTable{
		path:    path,
		rotated: rotated,
		file:    f,
		writer:  w,
	}, nil
}

// Path returns the table location.
func (t *CSVTable) Path() string { return t.path }

// Rotated returns where a previous table was moved to, or "".
func (t *CSVTable) Rotated() string { return t.rotated }

// Rows returns the number of data rows appended so far.
func (t *CSVTable) Rows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// Append writes one row and syncs it to disk before returning.
func (t *CSVTable) Append(o model.TrialOutcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	if err := t.writer.Write(FormatRow(o)); err != nil {
		return err
	}
	t.writer.Flush()
	if err := t.writer.Error(); err != nil {
		return err
	}
	if err := t.file.Sync(); err != nil {
		return err
	}
	t.rows++
	return nil
}

// Close closes the underlying file.
func (t *CSVTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.writer.Flush()
	return t.file.Close()
}

// FormatRow maps an outcome to the fixed column order.
func FormatRow(o model.TrialOutcome) []string {
	return []string{
		o.Config.Engine,
		strconv.Itoa(o.Config.ValueSize),
		strconv.Itoa(o.Config.Threads),
		strconv.Itoa(o.Config.Ops),
		formatOptional(o.PrefillThroughput),
		formatOptional(o.DecodeThroughput),
		o.Timestamp.Format(TimestampLayout),
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Row is one result table row read back from disk.
type Row struct {
	Engine            string
	ValueSize         int
	Threads           int
	Ops               int
	PrefillThroughput *float64
	DecodeThroughput  *float64
	Timestamp         time.Time
}

// ReadTable reads a result table, checking the header matches TableHeader.
func ReadTable(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(TableHeader)

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !slices.Equal(header, TableHeader) {
		return nil, fmt.Errorf("%s: unexpected header %v", path, header)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	var row Row
	var err error

	row.Engine = rec[0]
	if row.ValueSize, err = strconv.Atoi(rec[1]); err != nil {
		return row, fmt.Errorf("value_size: %w", err)
	}
	if row.Threads, err = strconv.Atoi(rec[2]); err != nil {
		return row, fmt.Errorf("threads: %w", err)
	}
	if row.Ops, err = strconv.Atoi(rec[3]); err != nil {
		return row, fmt.Errorf("ops: %w", err)
	}
	if row.PrefillThroughput, err = parseOptional(rec[4]); err != nil {
		return row, fmt.Errorf("prefill_tput: %w", err)
	}
	if row.DecodeThroughput, err = parseOptional(rec[5]); err != nil {
		return row, fmt.Errorf("decode_tput: %w", err)
	}
	if row.Timestamp, err = time.Parse(TimestampLayout, rec[6]); err != nil {
		return row, fmt.Errorf("timestamp: %w", err)
	}
	return row, nil
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
