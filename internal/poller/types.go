package poller

import "time"

// Job status values as reported in snapshots.
const (
	StatusRunning     = "running"
	StatusStopped     = "stopped"
	StatusCompleted   = "completed"
	StatusUnreachable = "unreachable"
	StatusError       = "error"
)

// completionSlack handles floating point accumulation from timestep
// rounding: a run within 0.5% of target counts as completed.
const completionSlack = 0.995

// LogRecord is one parsed row of a production log file. Columns follow the
// reporter's fixed CSV schema.
type LogRecord struct {
	Step            int64   `json:"step"`
	TimePS          float64 `json:"time_ps"`
	TimeNS          float64 `json:"time_ns"`
	PotentialEnergy float64 `json:"potential_energy"`
	KineticEnergy   float64 `json:"kinetic_energy"`
	TotalEnergy     float64 `json:"total_energy"`
	Temperature     float64 `json:"temperature"`
	Volume          float64 `json:"volume"`
	Density         float64 `json:"density"`
	SpeedNSDay      float64 `json:"speed_ns_day"`
}

// JobSnapshot is the latest known state of one simulation. A snapshot is
// replaced wholesale on each successful poll; a failed poll only touches
// Error and LastUpdate so prior data stays visible.
type JobSnapshot struct {
	Name           string      `json:"name"`
	Status         string      `json:"status"`
	CurrentNS      float64     `json:"current_ns"`
	TargetNS       float64     `json:"target_ns"`
	Percent        float64     `json:"percent"`
	Speed          float64     `json:"speed,omitempty"`
	ETA            *time.Time  `json:"eta,omitempty"`
	ETAHuman       string      `json:"eta_human,omitempty"`
	Temperature    float64     `json:"temperature,omitempty"`
	Density        float64     `json:"density,omitempty"`
	Energy         float64     `json:"energy,omitempty"`
	LastUpdate     time.Time   `json:"last_update"`
	History        []LogRecord `json:"log_data"`
	LogTail        []string    `json:"log_tail"`
	ProcessRunning bool        `json:"process_running"`
	Auto           bool        `json:"auto,omitempty"`
	Error          string      `json:"error,omitempty"`

	// launchCmd captured from a running process, used as a restart
	// fallback for discovered jobs. Not exported over the API.
	launchCmd string
}

// LaunchCmd returns the restart command captured from the running process,
// if any.
func (s *JobSnapshot) LaunchCmd() string {
	return s.launchCmd
}

// Clone returns a deep copy of the snapshot.
func (s *JobSnapshot) Clone() *JobSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.ETA != nil {
		eta := *s.ETA
		out.ETA = &eta
	}
	out.History = append([]LogRecord(nil), s.History...)
	out.LogTail = append([]string(nil), s.LogTail...)
	return &out
}

// GPUSnapshot is the state of one GPU device.
type GPUSnapshot struct {
	Name       string `json:"name"`
	UtilPct    int    `json:"gpu_util"`
	MemUtilPct int    `json:"mem_util"`
	MemUsedMB  int    `json:"mem_used_mb"`
	MemTotalMB int    `json:"mem_total_mb"`
	Temp       int    `json:"temperature"`
}

// Report is the result of one full poll cycle.
type Report struct {
	Timestamp   time.Time      `json:"timestamp"`
	Simulations []*JobSnapshot `json:"simulations"`
	GPU         []GPUSnapshot  `json:"gpu"`
	GPUError    string         `json:"gpu_error,omitempty"`
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := &Report{
		Timestamp: r.Timestamp,
		GPUError:  r.GPUError,
		GPU:       append([]GPUSnapshot(nil), r.GPU...),
	}
	for _, s := range r.Simulations {
		out.Simulations = append(out.Simulations, s.Clone())
	}
	return out
}

// Job returns the snapshot with the given name, or nil.
func (r *Report) Job(name string) *JobSnapshot {
	for _, s := range r.Simulations {
		if s.Name == name {
			return s
		}
	}
	return nil
}
