package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `I0101 benchmark.cpp:74]   Engine: mooncake
Running prefill phase...
=== Prefill Results ===
Total ops: 2000
Throughput: 3.5 GB/s
Running decode phase...
=== Decode Results ===
Total ops: 2000
Throughput: 7.25 GB/s
done
`

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Record
	}{
		{
			name: "both sections",
			in:   sampleLog,
			want: Record{
				SectionPrefill: {ThroughputKey: 3.5},
				SectionDecode:  {ThroughputKey: 7.25},
			},
		},
		{
			name: "single line",
			in:   "...Prefill Results...Throughput: 3.5...\n...Decode Results...Throughput: 7.25...",
			want: Record{
				SectionPrefill: {ThroughputKey: 3.5},
				SectionDecode:  {ThroughputKey: 7.25},
			},
		},
		{
			name: "no markers",
			in:   "starting\nThroughput: 9.0\nbye\n",
			want: Record{},
		},
		{
			name: "empty input",
			in:   "",
			want: Record{},
		},
		{
			name: "header without throughput",
			in:   "Prefill Results\nnothing here\nDecode Results\nThroughput: 1.5\n",
			want: Record{
				SectionPrefill: {},
				SectionDecode:  {ThroughputKey: 1.5},
			},
		},
		{
			name: "retry last wins",
			in:   "Prefill Results\nThroughput: 1.0\nretrying\nPrefill Results\nThroughput: 2.0\n",
			want: Record{
				SectionPrefill: {ThroughputKey: 2.0},
			},
		},
		{
			name: "unparseable value ignored",
			in:   "Decode Results\nThroughput: N/A\n",
			want: Record{SectionDecode: {}},
		},
		{
			name: "zero is a value",
			in:   "Prefill Results\nThroughput: 0\n",
			want: Record{SectionPrefill: {ThroughputKey: 0}},
		},
		{
			name: "crlf line endings",
			in:   "Prefill Results\r\nThroughput:\t12.25\r\n",
			want: Record{SectionPrefill: {ThroughputKey: 12.25}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	values := []float64{0.1, 3.5, 7.25, 1.8875, 12.25, 123456.789, 1e-7, 6.02e23, 0.30000000000000004}
	for _, v := range values {
		for _, format := range []byte{'f', 'g', 'e'} {
			text := strconv.FormatFloat(v, format, -1, 64)
			t.Run(fmt.Sprintf("%c/%s", format, text), func(t *testing.T) {
				log := fmt.Sprintf("Prefill Results\nThroughput: %s\nDecode Results\nThroughput: %s GB/s\n", text, text)
				rec := Parse(log)

				p, ok := rec.Throughput(SectionPrefill)
				require.True(t, ok)
				assert.Equal(t, v, p)

				d, ok := rec.Throughput(SectionDecode)
				require.True(t, ok)
				assert.Equal(t, v, d)
			})
		}
	}
}

func TestRecord_ThroughputPtr(t *testing.T) {
	rec := Parse("Prefill Results\n")
	assert.Nil(t, rec.ThroughputPtr(SectionPrefill))
	assert.Nil(t, rec.ThroughputPtr(SectionDecode))

	rec = Parse("Decode Results\nThroughput: 0.0\n")
	p := rec.ThroughputPtr(SectionDecode)
	require.NotNil(t, p)
	assert.Equal(t, 0.0, *p)
}

func TestInspect_Anomalies(t *testing.T) {
	log := strings.Join([]string{
		"Throughput: 1.0",   // 1 outside
		"Decode Results",    // 2 decode before prefill
		"Throughput: 2.0",   // 3
		"Prefill Results",   // 4
		"Throughput: bogus", // 5 unparseable
		"Throughput: 3.0",   // 6
		"Prefill Results",   // 7 repeated
		"Throughput: 4.0",   // 8 overwritten
	}, "\n")

	rec, anomalies := Inspect(log)
	assert.Equal(t, Parse(log), rec)

	var kinds []AnomalyKind
	var lines []int
	for _, a := range anomalies {
		kinds = append(kinds, a.Kind)
		lines = append(lines, a.Line)
	}
	assert.Equal(t, []AnomalyKind{
		AnomalyOutsideSection,
		AnomalyDecodeBeforePrefill,
		AnomalyUnparseable,
		AnomalyRepeatedHeader,
		AnomalyOverwritten,
	}, kinds)
	assert.Equal(t, []int{1, 2, 5, 7, 8}, lines)

	v, _ := rec.Throughput(SectionPrefill)
	assert.Equal(t, 4.0, v)
}

func TestInspect_CleanLog(t *testing.T) {
	_, anomalies := Inspect(sampleLog)
	assert.Empty(t, anomalies)
}

func TestRecord_JSON(t *testing.T) {
	data, err := json.Marshal(Parse(sampleLog))
	require.NoError(t, err)
	assert.JSONEq(t, `{"prefill":{"throughput":3.5},"decode":{"throughput":7.25}}`, string(data))
}

func TestSection_String(t *testing.T) {
	assert.Equal(t, "none", SectionNone.String())
	assert.Equal(t, "prefill", SectionPrefill.String())
	assert.Equal(t, "decode", SectionDecode.String())
}
