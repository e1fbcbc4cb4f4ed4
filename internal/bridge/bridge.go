// Package bridge carries poll results from the background loop to the
// indicator. The indicator's UI loop can only touch its widgets from its
// own goroutine, so updates are queued here and applied on its tick.
package bridge

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/simwatch/simwatch/internal/poller"
)

// maxQueued bounds the queue so a stalled consumer can't grow it without
// limit. The consumer only ever wants the newest update anyway.
const maxQueued = 64

// MenuItem is one line of the indicator's detail view.
type MenuItem struct {
	Label string
	Job   string
}

// Update is one rendered indicator state.
type Update struct {
	Title string
	Menu  []MenuItem
}

// Bridge is a FIFO of pending updates. Producers publish after every poll
// cycle; the consumer drains on its tick and applies only the newest.
type Bridge struct {
	mu      sync.Mutex
	queue   []Update
	dropped int
}

// New creates an empty bridge.
func New() *Bridge {
	return &Bridge{}
}

// Publish queues an update. When the queue is full the oldest entry is
// discarded, since the consumer would skip it anyway.
func (b *Bridge) Publish(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) >= maxQueued {
		b.queue = b.queue[1:]
		b.dropped++
	}
	b.queue = append(b.queue, u)
}

// Latest drains the queue and returns the newest update. Intermediate
// updates are counted as dropped; they were already stale when the
// consumer woke up. Returns false when nothing is pending.
func (b *Bridge) Latest() (Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.queue)
	if n == 0 {
		return Update{}, false
	}
	u := b.queue[n-1]
	b.dropped += n - 1
	b.queue = nil
	return u, true
}

// Dropped returns how many updates were superseded before being applied.
func (b *Bridge) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Pending returns the current queue depth.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Render turns a report into the indicator state. The title tracks the
// least-progressed running job, so the glanceable number is always the one
// that finishes last.
func Render(r *poller.Report) Update {
	return Update{
		Title: Title(r),
		Menu:  BuildMenu(r),
	}
}

// Title computes the compact indicator title for a report.
func Title(r *poller.Report) string {
	if r == nil || len(r.Simulations) == 0 {
		return "idle"
	}

	minPct := -1.0
	completed := 0
	bad := 0
	for _, s := range r.Simulations {
		switch s.Status {
		case poller.StatusRunning:
			if minPct < 0 || s.Percent < minPct {
				minPct = s.Percent
			}
		case poller.StatusCompleted:
			completed++
		case poller.StatusUnreachable, poller.StatusError:
			bad++
		}
	}

	switch {
	case minPct >= 0:
		return fmt.Sprintf("MD %.0f%%", minPct)
	case completed == len(r.Simulations):
		return "done"
	case bad > 0:
		return "err"
	default:
		return "idle"
	}
}

// BuildMenu renders one line per job plus GPU summary lines.
func BuildMenu(r *poller.Report) []MenuItem {
	if r == nil {
		return nil
	}

	items := make([]MenuItem, 0, len(r.Simulations)+len(r.GPU))

	sims := append([]*poller.JobSnapshot(nil), r.Simulations...)
	sort.Slice(sims, func(i, k int) bool { return sims[i].Name < sims[k].Name })

	for _, s := range sims {
		items = append(items, MenuItem{Label: jobLine(s), Job: s.Name})
	}
	for _, g := range r.GPU {
		items = append(items, MenuItem{
			Label: fmt.Sprintf("%s  %d%% gpu  %d/%d MB  %d°C",
				g.Name, g.UtilPct, g.MemUsedMB, g.MemTotalMB, g.Temp),
		})
	}
	if r.GPUError != "" {
		items = append(items, MenuItem{Label: "gpu: " + r.GPUError})
	}
	return items
}

func jobLine(s *poller.JobSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %.1f%%", s.Name, s.Percent)
	if s.Speed > 0 {
		fmt.Fprintf(&b, "  %.0f ns/day", s.Speed)
	}
	if s.ETAHuman != "" {
		fmt.Fprintf(&b, "  eta %s", s.ETAHuman)
	}
	fmt.Fprintf(&b, "  [%s]", s.Status)
	return b.String()
}
