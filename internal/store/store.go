// Package store holds the latest poll results for concurrent readers. The
// poll loop writes, the HTTP handlers and indicator read.
package store

import (
	"sync"
	"time"

	"github.com/simwatch/simwatch/internal/poller"
)

// Store is a mutex-guarded holder of the most recent report. Snapshots are
// deep copies so readers can never observe a half-written cycle and writers
// can never mutate what a reader holds.
type Store struct {
	mu     sync.RWMutex
	report *poller.Report
}

// New creates an empty store.
func New() *Store {
	return &Store{report: &poller.Report{}}
}

// SetReport replaces the entire report with the result of a poll cycle.
func (s *Store) SetReport(r *poller.Report) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r.Clone()
}

// SetJob replaces a single job's snapshot, appending it if the job is new.
func (s *Store) SetJob(snap *poller.JobSnapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.report.Simulations {
		if existing.Name == snap.Name {
			s.report.Simulations[i] = snap.Clone()
			return
		}
	}
	s.report.Simulations = append(s.report.Simulations, snap.Clone())
}

// SetJobError marks a job failed without discarding its data. Only the
// error text and timestamp change.
func (s *Store) SetJobError(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.report.Simulations {
		if existing.Name == name {
			existing.Error = err.Error()
			existing.LastUpdate = time.Now()
			return
		}
	}
	s.report.Simulations = append(s.report.Simulations, &poller.JobSnapshot{
		Name:       name,
		Status:     poller.StatusError,
		Error:      err.Error(),
		LastUpdate: time.Now(),
	})
}

// SetGPU replaces the GPU portion of the report.
func (s *Store) SetGPU(gpu []poller.GPUSnapshot, gpuErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.GPU = append([]poller.GPUSnapshot(nil), gpu...)
	s.report.GPUError = gpuErr
}

// Snapshot returns a deep copy of the current report.
func (s *Store) Snapshot() *poller.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report.Clone()
}

// Job returns a deep copy of one job's snapshot, or nil if unknown.
func (s *Store) Job(name string) *poller.JobSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report.Job(name).Clone()
}
