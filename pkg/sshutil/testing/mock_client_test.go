package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientExactMatchWins(t *testing.T) {
	m := NewMockClient("gpubox")
	m.SetCommandResponse("echo hi", CommandResponse{Stdout: []byte("exact")})
	m.SetCommandResponse("echo.*", CommandResponse{Stdout: []byte("pattern")})

	stdout, _, code, err := m.Exec("echo hi")
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Equal(t, "exact", string(stdout))
}

func TestMockClientRegexMatch(t *testing.T) {
	m := NewMockClient("gpubox")
	m.SetCommandResponse(`tail -1 .*production\.log`, CommandResponse{Stdout: []byte("row")})

	stdout, _, _, err := m.Exec("tail -1 /sims/a/production.log")
	require.NoError(t, err)
	assert.Equal(t, "row", string(stdout))
}

func TestMockClientUnknownCommandSucceeds(t *testing.T) {
	m := NewMockClient("gpubox")
	stdout, stderr, code, err := m.Exec("some unknown command")
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}

func TestMockClientRecordsExecutionOrder(t *testing.T) {
	m := NewMockClient("gpubox")
	m.Exec("first")
	m.Exec("second")
	assert.Equal(t, []string{"first", "second"}, m.Executed())
}

func TestMockClientClosed(t *testing.T) {
	m := NewMockClient("gpubox")
	require.NoError(t, m.Close())
	_, _, code, err := m.Exec("anything")
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}
