/*
PURPOSE:
  Extracts throughput metrics from the free-text output of the benchmark.

REQUIREMENTS:
  User-specified:
  - Find the "Prefill Results" and "Decode Results" sections.
  - Read the number after "Throughput:" inside each section.
  - Never fail on malformed output; missing values stay missing.

  Implementation-discovered:
  - A retried phase reprints header+metric, so the last value in a section wins.
  - Section order and repeats are worth surfacing (Inspect) without changing values.

ARCHITECTURE INTEGRATION:
  - Called by: internal/sweep, internal/cli (parse command)
  - Depends on: nothing

ERROR HANDLING:
  - None. Unparseable lines are ignored and reported as anomalies by Inspect.

IMPLEMENTATION RULES:
  - Single forward pass over lines, no lookahead.
  - Section state is an explicit enum, not ad hoc flags.

USAGE:
  rec := parser.Parse(stdout)
  if v, ok := rec.Throughput(parser.SectionPrefill); ok { ... }

SELF-HEALING INSTRUCTIONS:
  - If the benchmark renames its headers, update the marker constants.

RELATED FILES:
  - internal/sweep/driver.go

MAINTENANCE:
  - Add a Section value when the benchmark grows a new phase.
*/

package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	PrefillMarker    = "Prefill Results"
	DecodeMarker     = "Decode Results"
	ThroughputMarker = "Throughput:"

	// ThroughputKey is the metric name stored in a section's Metrics.
	ThroughputKey = "throughput"
)

var throughputRe = regexp.MustCompile(`Throughput:\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)`)

// Section is the parser state: which results block the scan is inside.
type Section int

const (
	SectionNone Section = iota
	SectionPrefill
	SectionDecode
)

func (s Section) String() string {
	switch s {
	case SectionPrefill:
		return "prefill"
	case SectionDecode:
		return "decode"
	default:
		return "none"
	}
}

// MarshalText lets Record encode as {"prefill": {...}}.
func (s Section) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Metrics holds the values found inside one section.
type Metrics map[string]float64

// Record maps a section to its metrics. A section appears once its header
// was seen; a metric appears only if its line was parsed.
type Record map[Section]Metrics

// Throughput returns the throughput of a section, if one was parsed.
func (r Record) Throughput(s Section) (float64, bool) {
	m, ok := r[s]
	if !ok {
		return 0, false
	}
	v, ok := m[ThroughputKey]
	return v, ok
}

// ThroughputPtr is Throughput as an optional value.
func (r Record) ThroughputPtr(s Section) *float64 {
	v, ok := r.Throughput(s)
	if !ok {
		return nil
	}
	return &v
}

// AnomalyKind names a suspicious pattern in the log.
type AnomalyKind string

const (
	AnomalyRepeatedHeader      AnomalyKind = "repeated_header"
	AnomalyDecodeBeforePrefill AnomalyKind = "decode_before_prefill"
	AnomalyOverwritten         AnomalyKind = "throughput_overwritten"
	AnomalyOutsideSection      AnomalyKind = "throughput_outside_section"
	AnomalyUnparseable         AnomalyKind = "throughput_unparseable"
)

// Anomaly is a line the parser accepted but that may indicate a log format change.
type Anomaly struct {
	Line    int
	Kind    AnomalyKind
	Section Section
	Text    string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("line %d: %s (%s): %s", a.Line, a.Kind, a.Section, a.Text)
}

// Parse maps raw benchmark output to a Record. It never fails.
func Parse(raw string) Record {
	rec, _ := Inspect(raw)
	return rec
}

// Inspect is Parse plus a list of anomalies. Values are identical to Parse.
func Inspect(raw string) (Record, []Anomaly) {
	rec := Record{}
	var anomalies []Anomaly

	current := SectionNone
	seen := map[Section]bool{}

	for i, line := range strings.Split(raw, "\n") {
		lineNo := i + 1
		line = strings.TrimRight(line, "\r")

		next := SectionNone
		if strings.Contains(line, PrefillMarker) {
			next = SectionPrefill
		} else if strings.Contains(line, DecodeMarker) {
			next = SectionDecode
		}
		if next != SectionNone {
			if seen[next] {
				anomalies = append(anomalies, Anomaly{lineNo, AnomalyRepeatedHeader, next, line})
			}
			if next == SectionDecode && !seen[SectionPrefill] {
				anomalies = append(anomalies, Anomaly{lineNo, AnomalyDecodeBeforePrefill, next, line})
			}
			seen[next] = true
			current = next
			if _, ok := rec[current]; !ok {
				rec[current] = Metrics{}
			}
		}

		if !strings.Contains(line, ThroughputMarker) {
			continue
		}
		if current == SectionNone {
			anomalies = append(anomalies, Anomaly{lineNo, AnomalyOutsideSection, current, line})
			continue
		}
		v, ok := extractThroughput(line)
		if !ok {
			anomalies = append(anomalies, Anomaly{lineNo, AnomalyUnparseable, current, line})
			continue
		}
		if _, dup := rec[current][ThroughputKey]; dup {
			anomalies = append(anomalies, Anomaly{lineNo, AnomalyOverwritten, current, line})
		}
		rec[current][ThroughputKey] = v
	}

	return rec, anomalies
}

func extractThroughput(line string) (float64, bool) {
	m := throughputRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
