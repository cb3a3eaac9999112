package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrialConfig_Args(t *testing.T) {
	c := TrialConfig{Engine: "mooncake", ValueSize: 524288, Threads: 4, Ops: 2000}
	assert.Equal(t, []string{
		"--engine=mooncake",
		"--value-size=524288",
		"--num-ops=2000",
		"--num-threads=4",
	}, c.Args())
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{512, "512B"},
		{524288, "512KB"},
		{1048576, "1MB"},
		{16777200, "16MB"},
		{8 << 30, "8.0GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.in))
		})
	}
}

func TestStatus_Failed(t *testing.T) {
	assert.False(t, StatusOK.Failed())
	for _, s := range []Status{StatusProcessError, StatusTimeout, StatusUnexpectedError} {
		assert.True(t, s.Failed(), s)
	}
}
