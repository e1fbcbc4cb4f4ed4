package poller

import (
	"strconv"
	"strings"
	"time"
)

// SplitSections splits compound command output into named sections.
// A line of the form "===NAME===" starts section NAME; everything until the
// next marker belongs to it.
func SplitSections(output string) map[string]string {
	sections := make(map[string]string)
	var current string
	var lines []string

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "===") && strings.HasSuffix(trimmed, "===") && len(trimmed) > 6 {
			if current != "" {
				sections[current] = strings.Join(lines, "\n")
			}
			current = strings.Trim(trimmed, "=")
			lines = nil
			continue
		}
		lines = append(lines, line)
	}
	if current != "" {
		sections[current] = strings.Join(lines, "\n")
	}

	return sections
}

// ParseLogLine parses a single CSV row of a production log.
// Returns nil for header lines, blank lines, and rows that don't fit the
// fixed column schema.
func ParseLogLine(line string) *LogRecord {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	fields := strings.Split(line, ",")
	if len(fields) < 9 {
		return nil
	}

	vals := make([]float64, 9)
	for i := 0; i < 9; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return nil
		}
		vals[i] = v
	}

	return &LogRecord{
		Step:            int64(vals[0]),
		TimePS:          vals[1],
		TimeNS:          vals[1] / 1000.0,
		PotentialEnergy: vals[2],
		KineticEnergy:   vals[3],
		TotalEnergy:     vals[4],
		Temperature:     vals[5],
		Volume:          vals[6],
		Density:         vals[7],
		SpeedNSDay:      vals[8],
	}
}

// ParseLogLines parses multiple CSV rows, skipping headers and malformed
// rows. Malformed rows are never fatal; the result holds exactly the rows
// that parsed.
func ParseLogLines(text string) []LogRecord {
	var records []LogRecord
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if rec := ParseLogLine(line); rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// ParseGPUOutput parses nvidia-smi CSV output into one snapshot per device
// line. Empty output or tool-not-found noise yields an empty slice, since
// absence of the tool is not an error.
func ParseGPUOutput(output string) []GPUSnapshot {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil
	}

	lower := strings.ToLower(output)
	if strings.Contains(lower, "not found") ||
		strings.Contains(lower, "no devices") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "error") {
		return nil
	}

	var devices []GPUSnapshot
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 6 {
			continue
		}

		util, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		memUtil, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			continue
		}
		memUsed, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			continue
		}
		memTotal, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil {
			continue
		}
		temp, err := strconv.Atoi(strings.TrimSpace(fields[4]))
		if err != nil {
			continue
		}

		// name can itself contain commas (rare, but cheap to handle)
		name := strings.TrimSpace(strings.Join(fields[5:], ","))

		devices = append(devices, GPUSnapshot{
			Name:       name,
			UtilPct:    util,
			MemUtilPct: memUtil,
			MemUsedMB:  memUsed,
			MemTotalMB: memTotal,
			Temp:       temp,
		})
	}

	return devices
}

// DeriveSpeed computes a trailing throughput in ns/day from the simulated
// time covered between two observations and the wall time between them.
// Used when the log's own speed column is absent or zero. Returns 0 when
// the inputs can't support a rate.
func DeriveSpeed(prevNS, curNS float64, elapsed time.Duration) float64 {
	if elapsed <= 0 || curNS <= prevNS {
		return 0
	}
	days := elapsed.Hours() / 24
	return (curNS - prevNS) / days
}
