package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dev", "dev"},
		{"", ""},
		{"1.2.3", "v1.2.3"},
		{"v1.2.3", "v1.2.3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatVersion(tt.in))
	}
}

func TestSetVersionInfo(t *testing.T) {
	defer SetVersionInfo("dev", "none", "unknown")

	SetVersionInfo("1.0.0", "abc123", "2026-01-01")
	assert.Equal(t, "1.0.0", version)
	assert.Equal(t, "abc123", commit)
	assert.Equal(t, "2026-01-01", date)
}
