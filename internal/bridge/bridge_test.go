package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simwatch/simwatch/internal/poller"
)

func TestLatestDrainsToNewest(t *testing.T) {
	b := New()
	b.Publish(Update{Title: "MD 10%"})
	b.Publish(Update{Title: "MD 11%"})
	b.Publish(Update{Title: "MD 12%"})

	u, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, "MD 12%", u.Title)
	assert.Equal(t, 2, b.Dropped())

	// The queue is empty afterwards; the newest is applied exactly once.
	_, ok = b.Latest()
	assert.False(t, ok)
	assert.Zero(t, b.Pending())
}

func TestLatestEmptyQueue(t *testing.T) {
	b := New()
	_, ok := b.Latest()
	assert.False(t, ok)
	assert.Zero(t, b.Dropped())
}

func TestPublishBoundsQueue(t *testing.T) {
	b := New()
	for i := 0; i < maxQueued+10; i++ {
		b.Publish(Update{})
	}
	assert.Equal(t, maxQueued, b.Pending())
	assert.Equal(t, 10, b.Dropped())
}

func TestTitleLeastProgressedRunning(t *testing.T) {
	r := &poller.Report{Simulations: []*poller.JobSnapshot{
		{Name: "a", Status: poller.StatusRunning, Percent: 82.2},
		{Name: "b", Status: poller.StatusRunning, Percent: 41.2},
		{Name: "c", Status: poller.StatusCompleted, Percent: 100},
	}}
	assert.Equal(t, "MD 41%", Title(r))
}

func TestTitleRoundsPercent(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{81.5, "MD 82%"},
		{81.4, "MD 81%"},
		{41.7, "MD 42%"},
		{0.2, "MD 0%"},
	}
	for _, tt := range tests {
		r := &poller.Report{Simulations: []*poller.JobSnapshot{
			{Name: "a", Status: poller.StatusRunning, Percent: tt.percent},
		}}
		assert.Equal(t, tt.want, Title(r))
	}
}

func TestTitleStates(t *testing.T) {
	tests := []struct {
		name   string
		report *poller.Report
		want   string
	}{
		{"nil report", nil, "idle"},
		{"no jobs", &poller.Report{}, "idle"},
		{
			"all completed",
			&poller.Report{Simulations: []*poller.JobSnapshot{
				{Status: poller.StatusCompleted},
				{Status: poller.StatusCompleted},
			}},
			"done",
		},
		{
			"unreachable",
			&poller.Report{Simulations: []*poller.JobSnapshot{
				{Status: poller.StatusUnreachable},
			}},
			"err",
		},
		{
			"stopped only",
			&poller.Report{Simulations: []*poller.JobSnapshot{
				{Status: poller.StatusStopped},
			}},
			"idle",
		},
		{
			"running wins over errors",
			&poller.Report{Simulations: []*poller.JobSnapshot{
				{Status: poller.StatusUnreachable},
				{Status: poller.StatusRunning, Percent: 12.3},
			}},
			"MD 12%",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.report))
		})
	}
}

func TestBuildMenu(t *testing.T) {
	r := &poller.Report{
		Simulations: []*poller.JobSnapshot{
			{Name: "tet5-vc", Status: poller.StatusRunning, Percent: 82.2, Speed: 328, ETAHuman: "6d 12h"},
			{Name: "chol30", Status: poller.StatusStopped, Percent: 10.0},
		},
		GPU: []poller.GPUSnapshot{{Name: "RTX 4090", UtilPct: 87, MemUsedMB: 8123, MemTotalMB: 24564, Temp: 61}},
	}

	items := BuildMenu(r)
	require.Len(t, items, 3)

	// Jobs are sorted by name for a stable menu.
	assert.Equal(t, "chol30", items[0].Job)
	assert.Equal(t, "tet5-vc", items[1].Job)
	assert.Contains(t, items[1].Label, "82.2%")
	assert.Contains(t, items[1].Label, "328 ns/day")
	assert.Contains(t, items[1].Label, "eta 6d 12h")
	assert.Contains(t, items[2].Label, "RTX 4090")
}

func TestBuildMenuGPUError(t *testing.T) {
	r := &poller.Report{GPUError: "host unreachable"}
	items := BuildMenu(r)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Label, "host unreachable")
}
