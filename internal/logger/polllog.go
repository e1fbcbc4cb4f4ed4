package logger

import (
	"fmt"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for the diagnostic poll log.
const (
	DefaultMaxSizeMB  = 5 // MB
	DefaultMaxBackups = 2 // number of backup files
	DefaultMaxAgeDays = 7 // days
)

// PollLog is an append-only diagnostic log of remote poll attempts and
// results. It is written by the poller and consumed by nobody; rotation is
// handled by lumberjack so it is always safe to discard.
type PollLog struct {
	mu sync.Mutex
	w  *lj.Logger
}

// NewPollLog creates a rotating poll log at the given path.
// An empty path returns nil, which every method treats as "disabled".
func NewPollLog(path string) *PollLog {
	if path == "" {
		return nil
	}
	return &PollLog{
		w: &lj.Logger{
			Filename:   path,
			MaxSize:    DefaultMaxSizeMB,
			MaxBackups: DefaultMaxBackups,
			MaxAge:     DefaultMaxAgeDays,
		},
	}
}

// Printf appends one timestamped line to the poll log.
func (p *PollLog) Printf(format string, args ...interface{}) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	line := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
	_, _ = p.w.Write([]byte(line))
}

// Close closes the underlying log file.
func (p *PollLog) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.Close()
}
