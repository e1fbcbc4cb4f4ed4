package sshutil

import (
	"bytes"
	"context"
	"fmt"

	"github.com/simwatch/simwatch/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return c.ExecContext(context.Background(), cmd)
}

// ExecContext runs a command bounded by ctx. If the context expires before
// the command finishes, the session is torn down and ctx.Err() is returned.
// A non-zero exit code with nil error means the command ran but failed.
func (c *Client) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return nil, nil, -1, errors.WrapWithCode(ctx.Err(), errors.ErrExec,
			fmt.Sprintf("Remote command timed out: %s", truncateCmd(cmd)),
			"The host may be overloaded. Consider raising poll_timeout.")
	case runErr := <-done:
		exitCode = 0
		if runErr != nil {
			if exitErr, ok := runErr.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return nil, nil, -1, errors.WrapWithCode(runErr, errors.ErrExec,
					fmt.Sprintf("Failed to execute command: %s", truncateCmd(cmd)),
					"Check if the command exists on the remote host.")
			}
		}
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
	}
}

// truncateCmd shortens long compound commands for error messages.
func truncateCmd(cmd string) string {
	const max = 120
	if len(cmd) <= max {
		return cmd
	}
	return cmd[:max] + "..."
}
