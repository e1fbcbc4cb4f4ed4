package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simwatch/simwatch/internal/config"
	"github.com/simwatch/simwatch/internal/errors"
	"github.com/simwatch/simwatch/internal/logger"
	"github.com/simwatch/simwatch/internal/poller"
	"github.com/simwatch/simwatch/pkg/sshutil"
	sshtest "github.com/simwatch/simwatch/pkg/sshutil/testing"
)

const daemonHistory = `0,0.0,-1,1,0,300,512,0.99,328.0
205500000,411000.0,-1,1,0,300,512,0.99,328.0`

func daemonConfig() *config.Config {
	return &config.Config{
		Host:     "gpubox",
		Jobs:     []config.Job{{Name: "tet5-vc", Dir: "/sims/tet5-vc", Script: "run.py", Log: "production.log", TargetNS: 500}},
		// A long interval so cycles only run when the test asks.
		PollInterval: time.Hour,
		PollTimeout:  5 * time.Second,
	}
}

func newTestDaemon(t *testing.T, cfg *config.Config) *daemon {
	t.Helper()
	d := newDaemon(cfg, logger.Noop())
	d.poller.SetDialFunc(func(host string, timeout time.Duration) (sshutil.SSHClient, error) {
		m := sshtest.NewMockClient(host)
		m.SetCommandResponse(`tet5-vc/production\.log`, sshtest.CommandResponse{
			Stdout: []byte("===TAIL===\n===HISTORY===\n" + daemonHistory +
				"\n===PROCESS===\n12345 python run.py\n===LOGTAIL===\nline\n"),
		})
		return m, nil
	})
	return d
}

func TestDaemonRefreshIsSynchronous(t *testing.T) {
	d := newTestDaemon(t, daemonConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()

	refreshCtx, refreshCancel := context.WithTimeout(ctx, 10*time.Second)
	defer refreshCancel()
	require.NoError(t, d.Refresh(refreshCtx))

	// Refresh returning means the cycle's results are already visible.
	snap := d.store.Snapshot()
	require.Len(t, snap.Simulations, 1)
	assert.Equal(t, "tet5-vc", snap.Simulations[0].Name)
	assert.InDelta(t, 82.2, snap.Simulations[0].Percent, 1e-9)

	// And the indicator got fed.
	u, ok := d.bridge.Latest()
	require.True(t, ok)
	assert.Equal(t, "MD 82%", u.Title)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop did not stop")
	}
}

func TestDaemonRefreshCancelledContext(t *testing.T) {
	d := newTestDaemon(t, daemonConfig())

	// No loop running, so the send can never rendezvous.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Refresh(ctx), context.Canceled)
}

func TestDaemonJobByName(t *testing.T) {
	d := newTestDaemon(t, daemonConfig())

	job, err := d.jobByName("tet5-vc")
	require.NoError(t, err)
	assert.Equal(t, "/sims/tet5-vc", job.Dir)

	_, err = d.jobByName("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestDaemonStopJobUnknown(t *testing.T) {
	d := newTestDaemon(t, daemonConfig())
	err := d.StopJob(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
}

func TestDaemonQuitCancels(t *testing.T) {
	d := newTestDaemon(t, daemonConfig())
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.Quit()
	select {
	case <-ctx.Done():
	default:
		t.Fatal("quit did not cancel the context")
	}
}

func TestDaemonCyclePublishesReport(t *testing.T) {
	d := newTestDaemon(t, daemonConfig())
	d.cycle(context.Background())

	snap := d.store.Snapshot()
	require.Len(t, snap.Simulations, 1)
	assert.Equal(t, poller.StatusRunning, snap.Simulations[0].Status)
	assert.Equal(t, 1, d.bridge.Pending())
}
