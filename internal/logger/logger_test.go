package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferLoggerCapturesLevels(t *testing.T) {
	l := NewBufferLogger()
	l.Debug("debug %d", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	assert.True(t, l.HasLevel("debug"))
	assert.True(t, l.HasLevel("info"))
	assert.True(t, l.HasLevel("warn"))
	assert.True(t, l.HasLevel("error"))

	l.Clear()
	assert.False(t, l.HasLevel("info"))
}

func TestNoopLoggerDiscards(t *testing.T) {
	l := Noop()
	// Must not panic or write anywhere.
	l.Debug("a")
	l.Info("b")
	l.Warn("c")
	l.Error("d")
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("hello")
	assert.True(t, buf.HasLevel("info"))
}

func TestPollLogDisabled(t *testing.T) {
	p := NewPollLog("")
	require.Nil(t, p)
	// Nil receivers are safe.
	p.Printf("ignored")
	assert.NoError(t, p.Close())
}

func TestPollLogWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poll.log")
	p := NewPollLog(path)
	require.NotNil(t, p)
	defer p.Close()

	p.Printf("job=%s status=%s", "tet5-vc", "running")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "job=tet5-vc status=running")
}
