package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/simwatch/simwatch/internal/logger"
	"github.com/simwatch/simwatch/internal/poller"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "One-shot poll of all simulations",
	Long: `Poll the remote host once and print every job's progress, then exit.

Examples:
  simwatch status
  simwatch status --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusCommand()
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func statusCommand() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewEnvLogger("[simwatch]")
	p := poller.New(cfg, log, nil)
	defer p.Close()

	ctx := context.Background()
	if err := p.Discover(ctx); err != nil {
		log.Debug("discovery: %v", err)
	}
	report := p.PollAll(ctx, cfg.Jobs)

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(report)
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimText     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusText  = map[string]lipgloss.Style{
		poller.StatusRunning:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		poller.StatusCompleted:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		poller.StatusStopped:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		poller.StatusUnreachable: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		poller.StatusError:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

func printReport(r *poller.Report) {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-16s %-12s %8s %10s %10s %10s",
		"JOB", "STATUS", "PROGRESS", "NS", "NS/DAY", "ETA")))

	for _, s := range r.Simulations {
		style, ok := statusText[s.Status]
		if !ok {
			style = lipgloss.NewStyle()
		}
		speed := "-"
		if s.Speed > 0 {
			speed = fmt.Sprintf("%.0f", s.Speed)
		}
		eta := "-"
		if s.ETAHuman != "" {
			eta = s.ETAHuman
		}
		line := fmt.Sprintf("%-16s %-12s %7.1f%% %10.1f %10s %10s",
			truncate(s.Name, 16), s.Status, s.Percent, s.CurrentNS, speed, eta)
		fmt.Println(style.Render(line))
		if s.Error != "" {
			fmt.Println(dimText.Render("  " + truncate(s.Error, width-2)))
		}
	}

	if len(r.GPU) > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("GPU"))
		for _, g := range r.GPU {
			fmt.Printf("%s  util %d%%  mem %d/%d MB  %d°C\n",
				g.Name, g.UtilPct, g.MemUsedMB, g.MemTotalMB, g.Temp)
		}
	}
	if r.GPUError != "" {
		fmt.Println(dimText.Render("gpu: " + r.GPUError))
	}
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}
