package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/simwatch/simwatch/internal/bridge"
	"github.com/simwatch/simwatch/internal/config"
	"github.com/simwatch/simwatch/internal/errors"
	"github.com/simwatch/simwatch/internal/logger"
	"github.com/simwatch/simwatch/internal/poller"
	"github.com/simwatch/simwatch/internal/store"
)

// daemon owns the poll loop and implements web.Controller. One goroutine
// runs the loop; everything else reaches it through channels, so no cycle
// ever runs twice concurrently.
type daemon struct {
	cfg     *config.Config
	poller  *poller.Poller
	store   *store.Store
	bridge  *bridge.Bridge
	log     logger.Logger
	pollLog *logger.PollLog

	refreshCh chan chan error
	cancel    context.CancelFunc
}

func newDaemon(cfg *config.Config, log logger.Logger) *daemon {
	pollLog := logger.NewPollLog(cfg.PollLog)
	return &daemon{
		cfg:       cfg,
		poller:    poller.New(cfg, log, pollLog),
		store:     store.New(),
		bridge:    bridge.New(),
		log:       log,
		pollLog:   pollLog,
		refreshCh: make(chan chan error),
	}
}

// run executes poll cycles until the context is cancelled. The first cycle
// runs immediately so the dashboard has data as soon as it comes up.
func (d *daemon) run(ctx context.Context) {
	d.cycle(ctx)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.poller.Close()
			d.pollLog.Close()
			return
		case <-ticker.C:
			d.cycle(ctx)
		case done := <-d.refreshCh:
			d.cycle(ctx)
			done <- nil
			// The interval restarts so a manual refresh doesn't get
			// followed by a near-immediate scheduled one.
			ticker.Reset(d.cfg.PollInterval)
		}
	}
}

// cycle runs discovery plus one full poll and publishes the results.
func (d *daemon) cycle(ctx context.Context) {
	if err := d.poller.Discover(ctx); err != nil {
		d.log.Debug("discovery: %v", err)
	}
	report := d.poller.PollAll(ctx, d.cfg.Jobs)
	d.store.SetReport(report)
	d.bridge.Publish(bridge.Render(report))
}

// Refresh triggers a cycle and waits for its results to land in the store.
func (d *daemon) Refresh(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case d.refreshCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopJob kills the named job's remote process.
func (d *daemon) StopJob(ctx context.Context, name string) error {
	job, err := d.jobByName(name)
	if err != nil {
		return err
	}
	return d.poller.Stop(ctx, job)
}

// RestartJob relaunches the named job's remote process.
func (d *daemon) RestartJob(ctx context.Context, name string) error {
	job, err := d.jobByName(name)
	if err != nil {
		return err
	}
	return d.poller.Restart(ctx, job)
}

// Quit cancels the daemon context, which unwinds serve.
func (d *daemon) Quit() {
	if d.cancel != nil {
		d.cancel()
	}
}

// jobByName finds a job in the config or the discovered set.
func (d *daemon) jobByName(name string) (config.Job, error) {
	for _, j := range d.cfg.Jobs {
		if j.Name == name {
			return j, nil
		}
	}
	for _, j := range d.poller.Discovered() {
		if j.Name == name {
			return j, nil
		}
	}
	return config.Job{}, errors.New(errors.ErrConfig,
		fmt.Sprintf("unknown job: %s", name),
		"check the job name against 'simwatch status'")
}
