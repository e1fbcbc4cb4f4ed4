// Package testing provides a mock SSH client for exercising SSH-dependent
// code without real connections.
package testing

import (
	"context"
	"errors"
	"regexp"
	"sync"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection for testing. Commands are matched
// against registered patterns (exact string first, then regex) and the
// corresponding canned response is returned. Every executed command is
// recorded for assertions.
type MockClient struct {
	mu       sync.Mutex
	host     string
	closed   bool
	commands map[string]CommandResponse // pattern -> response
	executed []string
}

// NewMockClient creates a new mock SSH client.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		commands: make(map[string]CommandResponse),
	}
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// Executed returns a copy of all commands run against this client, in order.
func (m *MockClient) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.executed))
	copy(out, m.executed)
	return out
}

// Exec runs a command against the registered responses.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return m.ExecContext(context.Background(), cmd)
}

// ExecContext runs a command with context cancellation support.
func (m *MockClient) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}

	select {
	case <-ctx.Done():
		return nil, nil, -1, ctx.Err()
	default:
	}

	m.executed = append(m.executed, cmd)

	// Exact command matches first
	if resp, ok := m.commands[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	// Then pattern matches
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
		}
	}

	// Unknown commands succeed with empty output, like a quiet shell.
	return nil, nil, 0, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}
