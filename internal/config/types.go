package config

import (
	"path"
	"strings"
	"time"
)

// Config represents the complete .simwatch.yaml configuration file.
type Config struct {
	// Host is the SSH destination for all remote calls: an alias from
	// ~/.ssh/config, a hostname, or user@hostname.
	Host string `yaml:"host" mapstructure:"host"`

	// RemoteBase is the directory job dirs are resolved against when they
	// are not absolute.
	RemoteBase string `yaml:"remote_base" mapstructure:"remote_base"`

	// PollInterval is the sleep between background poll cycles.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// PollTimeout bounds each remote call so one unreachable host can't
	// stall a whole cycle.
	PollTimeout time.Duration `yaml:"poll_timeout" mapstructure:"poll_timeout"`

	// DashboardPort is the local port for the web dashboard.
	DashboardPort int `yaml:"dashboard_port" mapstructure:"dashboard_port"`

	// PollLog is the path of the rotating diagnostic log of poll attempts.
	// Empty disables it.
	PollLog string `yaml:"poll_log" mapstructure:"poll_log"`

	// DiscoverRoots are remote directories scanned for simulations the
	// config doesn't list. Empty disables discovery.
	DiscoverRoots []string `yaml:"discover_roots" mapstructure:"discover_roots"`

	// Jobs are the tracked simulations.
	Jobs []Job `yaml:"simulations" mapstructure:"simulations"`
}

// Job defines one tracked simulation run.
type Job struct {
	// Name identifies the job in the store, the dashboard, and the API.
	Name string `yaml:"name" mapstructure:"name"`

	// Dir is the remote working directory, resolved against RemoteBase
	// when relative.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Script identifies the job's process for liveness checks and pkill.
	Script string `yaml:"script" mapstructure:"script"`

	// Log is the structured log file inside Dir.
	Log string `yaml:"log" mapstructure:"log"`

	// TargetNS is the simulated time the run aims for.
	TargetNS float64 `yaml:"target_ns" mapstructure:"target_ns"`

	// Status, when set to "completed", freezes the job: it is never
	// polled and always reported at 100%.
	Status string `yaml:"status" mapstructure:"status"`

	// LaunchCmd overrides the default remote restart command.
	LaunchCmd string `yaml:"launch_cmd" mapstructure:"launch_cmd"`

	// Auto marks jobs found by remote discovery rather than config.
	Auto bool `yaml:"-" mapstructure:"-"`
}

// StatusCompleted marks a job as finished in the config.
const StatusCompleted = "completed"

// Completed reports whether the job is frozen at 100%.
func (j Job) Completed() bool {
	return j.Status == StatusCompleted
}

// LogPath returns the full remote path of the job's log file.
func (j Job) LogPath() string {
	name := j.Log
	if name == "" {
		name = DefaultLogName
	}
	return path.Join(j.Dir, name)
}

// Resolve fills defaults and resolves Dir against base.
func (j Job) Resolve(base string) Job {
	if j.Log == "" {
		j.Log = DefaultLogName
	}
	if j.TargetNS <= 0 {
		j.TargetNS = DefaultTargetNS
	}
	if base != "" && !strings.HasPrefix(j.Dir, "/") && !strings.HasPrefix(j.Dir, "~") {
		j.Dir = path.Join(base, j.Dir)
	}
	return j
}

// Defaults for job and daemon settings.
const (
	DefaultLogName      = "production.log"
	DefaultTargetNS     = 500
	DefaultPollInterval = 30 * time.Second
	DefaultPollTimeout  = 15 * time.Second
	DefaultPort         = 5050
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  DefaultPollInterval,
		PollTimeout:   DefaultPollTimeout,
		DashboardPort: DefaultPort,
	}
}
