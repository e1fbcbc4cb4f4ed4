package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSections(t *testing.T) {
	output := `===TAIL===
100,50.0,1,2,3,300,1,1,250
===HISTORY===
row1
row2
===PROCESS===
NOT_RUNNING
===LOGTAIL===
line a
line b`

	sections := SplitSections(output)
	assert.Equal(t, "100,50.0,1,2,3,300,1,1,250", sections[SectionTail])
	assert.Equal(t, "row1\nrow2", sections[SectionHistory])
	assert.Equal(t, "NOT_RUNNING", sections[SectionProcess])
	assert.Equal(t, "line a\nline b", sections[SectionLogTail])
}

func TestSplitSectionsEmptySection(t *testing.T) {
	sections := SplitSections("===TAIL===\n===HISTORY===\nrow")
	assert.Equal(t, "", sections[SectionTail])
	assert.Equal(t, "row", sections[SectionHistory])
}

func TestParseLogLine(t *testing.T) {
	rec := ParseLogLine("205500000,411000.0,-1.2e6,3.4e5,-8.6e5,300.1,512.3,0.997,328.0")
	require.NotNil(t, rec)
	assert.Equal(t, int64(205500000), rec.Step)
	assert.InDelta(t, 411000.0, rec.TimePS, 1e-9)
	assert.InDelta(t, 411.0, rec.TimeNS, 1e-9)
	assert.InDelta(t, 300.1, rec.Temperature, 1e-9)
	assert.InDelta(t, 0.997, rec.Density, 1e-9)
	assert.InDelta(t, 328.0, rec.SpeedNSDay, 1e-9)
}

func TestParseLogLineRejects(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"header", `#"Step","Time (ps)","Potential Energy"`},
		{"too few columns", "100,50.0,1,2,3"},
		{"garbage column", "100,abc,1,2,3,300,1,1,250"},
		{"truncated write", "205500000,4110"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ParseLogLine(tt.line))
		})
	}
}

func TestParseLogLinesSkipsMalformed(t *testing.T) {
	text := `#"Step","Time (ps)"
1000,2.0,-1,1,0,300,512,0.99,250
garbage line here
2000,4.0,-1,1,0,301,512,0.99,251
3000,6.0
3000,6.0,-1,1,0,302,512,0.99,252`

	records := ParseLogLines(text)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1000), records[0].Step)
	assert.Equal(t, int64(3000), records[2].Step)
}

func TestParseGPUOutput(t *testing.T) {
	output := "87, 45, 8123, 24564, 61, NVIDIA GeForce RTX 4090\n12, 3, 1024, 24564, 40, NVIDIA GeForce RTX 4090"
	devices := ParseGPUOutput(output)
	require.Len(t, devices, 2)
	assert.Equal(t, "NVIDIA GeForce RTX 4090", devices[0].Name)
	assert.Equal(t, 87, devices[0].UtilPct)
	assert.Equal(t, 8123, devices[0].MemUsedMB)
	assert.Equal(t, 24564, devices[0].MemTotalMB)
	assert.Equal(t, 61, devices[0].Temp)
	assert.Equal(t, 12, devices[1].UtilPct)
}

func TestParseGPUOutputNoTool(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"whitespace", "  \n  "},
		{"not found", "bash: nvidia-smi: command not found"},
		{"driver error", "NVIDIA-SMI has failed because it couldn't communicate with the NVIDIA driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ParseGPUOutput(tt.output))
		})
	}
}

func TestDeriveSpeed(t *testing.T) {
	// 2 ns covered in 15 minutes is 192 ns/day.
	speed := DeriveSpeed(100.0, 102.0, 15*time.Minute)
	assert.InDelta(t, 192.0, speed, 1e-9)
}

func TestDeriveSpeedDegenerate(t *testing.T) {
	assert.Zero(t, DeriveSpeed(100, 100, time.Minute))
	assert.Zero(t, DeriveSpeed(100, 99, time.Minute))
	assert.Zero(t, DeriveSpeed(100, 102, 0))
	assert.Zero(t, DeriveSpeed(100, 102, -time.Second))
}
