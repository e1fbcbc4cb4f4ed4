package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/simwatch/simwatch/internal/config"
	"github.com/simwatch/simwatch/internal/errors"
	"github.com/simwatch/simwatch/pkg/sshutil"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .simwatch.yaml configuration",
	Long: `Initialize a new simwatch configuration file.

Creates a .simwatch.yaml in the current directory, guiding you through
the remote host and first simulation with interactive prompts.

Examples:
  simwatch init
  simwatch init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand()
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")
	rootCmd.AddCommand(initCmd)
}

func initCommand() error {
	configPath := filepath.Join(".", config.ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !initForce {
		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", config.ConfigFileName)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"failed to get user input",
				"try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	var sshHost, remoteBase, jobName, jobDir, jobScript string
	targetNS := strconv.Itoa(config.DefaultTargetNS)

	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH host or alias").
				Description("Hostname, user@host, or SSH config alias of the GPU box").
				Placeholder("gpubox or user@192.168.1.50").
				Value(&sshHost).
				Validate(required("SSH host")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Remote base directory (optional)").
				Description("Relative job dirs are resolved against this").
				Placeholder("~/md").
				Value(&remoteBase),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Simulation name").
				Placeholder("tet5-vc").
				Value(&jobName).
				Validate(required("simulation name")),
			huh.NewInput().
				Title("Simulation directory").
				Description("Remote directory holding the production log").
				Placeholder("~/md/tet5-vc").
				Value(&jobDir).
				Validate(required("simulation directory")),
			huh.NewInput().
				Title("Run script (optional)").
				Description("Script name used for process checks and restarts").
				Placeholder("run_production.py").
				Value(&jobScript),
			huh.NewInput().
				Title("Target length (ns)").
				Value(&targetNS).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil || v <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"failed to get user input",
			"check terminal compatibility")
	}

	// Test the connection before saving; a config pointing at an
	// unreachable host is usually a typo.
	fmt.Printf("Testing connection to %s...\n", sshHost)
	if client, err := sshutil.Dial(sshHost, 10*time.Second); err != nil {
		var saveAnyway bool
		fmt.Printf("\nConnection failed: %v\n\n", err)
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Save config anyway? (You can fix the connection later)").
					Value(&saveAnyway),
			),
		)
		if formErr := form.Run(); formErr != nil || !saveAnyway {
			return errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("connection to '%s' failed", sshHost),
				"check that the host is reachable: ssh "+sshHost)
		}
	} else {
		client.Close()
		fmt.Println("Connection OK.")
	}

	target, _ := strconv.ParseFloat(strings.TrimSpace(targetNS), 64)
	cfg := config.DefaultConfig()
	cfg.Host = sshHost
	cfg.RemoteBase = remoteBase
	cfg.Jobs = []config.Job{{
		Name:     jobName,
		Dir:      jobDir,
		Script:   jobScript,
		Log:      config.DefaultLogName,
		TargetNS: target,
	}}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"failed to generate config", "")
	}

	header := `# simwatch configuration
# Run 'simwatch serve' to start monitoring

`
	if err := os.WriteFile(configPath, []byte(header+string(data)), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("failed to write config file: %s", configPath),
			"check directory permissions")
	}

	fmt.Printf("Created %s\n\n", configPath)
	fmt.Println("Next steps:")
	fmt.Println("  simwatch status   - one-shot poll")
	fmt.Println("  simwatch serve    - start the monitor")
	return nil
}
