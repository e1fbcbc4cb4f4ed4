package config

import (
	"fmt"
	"strings"

	"github.com/simwatch/simwatch/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
// A config that fails validation is fatal at startup.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return errors.New(errors.ErrConfig,
			"No remote host configured",
			"Set 'host' in "+ConfigFileName+" to an SSH alias or user@hostname.")
	}

	if cfg.PollInterval <= 0 {
		return errors.New(errors.ErrConfig,
			"poll_interval must be positive",
			"Use a duration like 30s or 2m.")
	}
	if cfg.PollTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"poll_timeout must be positive",
			"Use a duration like 15s.")
	}

	if cfg.DashboardPort <= 0 || cfg.DashboardPort > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("dashboard_port %d is out of range", cfg.DashboardPort),
			"Pick a port between 1 and 65535, e.g. 5050.")
	}

	seen := make(map[string]bool)
	for i, job := range cfg.Jobs {
		if strings.TrimSpace(job.Name) == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Simulation %d has no name", i+1),
				"Every entry under 'simulations' needs a unique 'name'.")
		}
		if seen[job.Name] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Duplicate simulation name '%s'", job.Name),
				"Simulation names identify jobs in the store and the API; make them unique.")
		}
		seen[job.Name] = true

		if strings.TrimSpace(job.Dir) == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Simulation '%s' has no dir", job.Name),
				"Set 'dir' to the remote working directory of the run.")
		}
		if job.Status != "" && job.Status != StatusCompleted {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Simulation '%s' has unknown status '%s'", job.Name, job.Status),
				"The only supported static status is 'completed'; drop the field otherwise.")
		}
	}

	return nil
}
