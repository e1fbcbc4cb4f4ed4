package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/simwatch/simwatch/internal/indicator"
	"github.com/simwatch/simwatch/internal/logger"
	"github.com/simwatch/simwatch/internal/web"
)

var (
	serveHeadless bool
	servePort     int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor",
	Long: `Start the poll loop, the local web dashboard, and the terminal
indicator. The indicator runs in the foreground; pass --headless to run
without it (e.g. under a process manager).

Keyboard shortcuts:
  q / Ctrl+C  Quit
  r           Force an immediate poll

Examples:
  simwatch serve
  simwatch serve --headless
  simwatch serve --port 6060`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "run without the terminal indicator")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the dashboard port")
	rootCmd.AddCommand(serveCmd)
}

func serveCommand() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.DashboardPort = servePort
	}

	log := logger.NewEnvLogger("[simwatch]")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDaemon(cfg, log)
	d.cancel = cancel

	server := web.New(cfg.DashboardPort, d.store, d, log)

	// The bind doubles as the single-instance check, so it happens
	// before anything else starts.
	if err := server.Listen(); err != nil {
		return err
	}
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Serve() }()

	loopDone := make(chan struct{})
	go func() {
		d.run(ctx)
		close(loopDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	if serveHeadless {
		select {
		case <-sigCh:
		case runErr = <-serverErr:
		case <-ctx.Done():
		}
	} else {
		indicatorDone := make(chan error, 1)
		go func() {
			indicatorDone <- indicator.Run(d.bridge, func() error {
				refreshCtx, refreshCancel := context.WithTimeout(ctx, cfg.PollTimeout+cfg.PollInterval)
				defer refreshCancel()
				return d.Refresh(refreshCtx)
			})
		}()
		select {
		case runErr = <-indicatorDone:
		case <-sigCh:
		case runErr = <-serverErr:
		case <-ctx.Done():
		}
	}

	cancel()
	<-loopDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("dashboard shutdown: %v", err)
	}

	return runErr
}
