package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/simwatch/simwatch/internal/config"
	"github.com/simwatch/simwatch/internal/errors"
	"github.com/simwatch/simwatch/internal/logger"
	"github.com/simwatch/simwatch/pkg/sshutil"
)

// DialFunc opens an SSH connection to a host. Swappable for tests.
type DialFunc func(host string, timeout time.Duration) (sshutil.SSHClient, error)

func defaultDial(host string, timeout time.Duration) (sshutil.SSHClient, error) {
	return sshutil.Dial(host, timeout)
}

// Poller gathers job and GPU state from the remote host. It holds one SSH
// connection, redialing after transport failures, and a last-known cache so
// a flaky link degrades snapshots to "unreachable" instead of blanking them.
type Poller struct {
	host          string
	timeout       time.Duration
	discoverRoots []string
	dial          DialFunc
	log           logger.Logger
	pollLog       *logger.PollLog

	mu         sync.Mutex
	conn       sshutil.SSHClient
	lastKnown  map[string]*JobSnapshot
	discovered map[string]config.Job
}

// New creates a poller for the configured host.
func New(cfg *config.Config, log logger.Logger, pollLog *logger.PollLog) *Poller {
	if log == nil {
		log = logger.Noop()
	}
	return &Poller{
		host:          cfg.Host,
		timeout:       cfg.PollTimeout,
		discoverRoots: cfg.DiscoverRoots,
		dial:          defaultDial,
		log:           log,
		pollLog:       pollLog,
		lastKnown:     make(map[string]*JobSnapshot),
		discovered:    make(map[string]config.Job),
	}
}

// SetDialFunc replaces the connection factory. Must be called before the
// first poll.
func (p *Poller) SetDialFunc(dial DialFunc) {
	p.dial = dial
}

// Close tears down the SSH connection if one is open.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// client returns the live connection, dialing if needed.
func (p *Poller) client() (sshutil.SSHClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}
	conn, err := p.dial(p.host, p.timeout)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

// dropConn discards the connection after a transport failure so the next
// poll redials.
func (p *Poller) dropConn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// exec runs one remote command, applying the poll timeout and discarding
// the connection on transport errors.
func (p *Poller) exec(ctx context.Context, cmd string) (string, int, error) {
	conn, err := p.client()
	if err != nil {
		return "", -1, err
	}
	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	stdout, _, exitCode, err := conn.ExecContext(execCtx, cmd)
	if err != nil {
		p.dropConn()
		return "", -1, err
	}
	return string(stdout), exitCode, nil
}

// PollAll runs one full cycle: every active job plus the GPUs. Jobs marked
// completed in the config are synthesized locally without touching the
// remote host. A failure on one job never aborts the others.
func (p *Poller) PollAll(ctx context.Context, jobs []config.Job) *Report {
	all := p.mergeJobs(jobs)
	report := &Report{Timestamp: time.Now()}

	for _, job := range all {
		if job.Completed() {
			report.Simulations = append(report.Simulations, p.completedSnapshot(job))
			continue
		}
		snap := p.pollJob(ctx, job)
		report.Simulations = append(report.Simulations, snap)
		p.pollLog.Printf("job=%s status=%s percent=%.1f err=%q",
			snap.Name, snap.Status, snap.Percent, snap.Error)
	}

	gpu, err := p.PollGPU(ctx)
	if err != nil {
		report.GPUError = err.Error()
		p.pollLog.Printf("gpu poll failed: %v", err)
	} else {
		report.GPU = gpu
	}

	return report
}

// mergeJobs combines configured jobs with discovered ones. A configured job
// always wins over a discovered job with the same name or directory suffix,
// so a tilde path in the config collides with its absolute discovered form.
func (p *Poller) mergeJobs(manual []config.Job) []config.Job {
	all := append([]config.Job(nil), manual...)

	taken := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, j := range manual {
		taken[j.Name] = true
		dirs[simDirKey(j.Dir)] = true
	}

	p.mu.Lock()
	extra := make([]config.Job, 0, len(p.discovered))
	for _, j := range p.discovered {
		if taken[j.Name] || dirs[simDirKey(j.Dir)] {
			continue
		}
		extra = append(extra, j)
	}
	p.mu.Unlock()

	sort.Slice(extra, func(i, k int) bool { return extra[i].Name < extra[k].Name })
	return append(all, extra...)
}

// completedSnapshot builds the snapshot for a job the config has marked
// done. Cached history is kept if an earlier poll fetched it.
func (p *Poller) completedSnapshot(job config.Job) *JobSnapshot {
	p.mu.Lock()
	cached := p.lastKnown[job.Name].Clone()
	p.mu.Unlock()

	if cached != nil {
		cached.Status = StatusCompleted
		cached.Percent = 100
		cached.ProcessRunning = false
		cached.Error = ""
		return cached
	}
	return &JobSnapshot{
		Name:       job.Name,
		Status:     StatusCompleted,
		CurrentNS:  job.TargetNS,
		TargetNS:   job.TargetNS,
		Percent:    100,
		LastUpdate: time.Now(),
		Auto:       job.Auto,
	}
}

// pollJob fetches and parses one job's state.
func (p *Poller) pollJob(ctx context.Context, job config.Job) *JobSnapshot {
	output, _, err := p.exec(ctx, BuildJobCommand(job))
	if err != nil {
		return p.unreachableSnapshot(job, err)
	}

	snap := p.parseJobOutput(job, output)
	p.mu.Lock()
	p.lastKnown[job.Name] = snap.Clone()
	p.mu.Unlock()
	return snap
}

// unreachableSnapshot degrades the last successful snapshot instead of
// losing it. With no prior data the snapshot carries just the error.
func (p *Poller) unreachableSnapshot(job config.Job, cause error) *JobSnapshot {
	p.log.Warn("poll failed for %s: %v", job.Name, cause)

	p.mu.Lock()
	cached := p.lastKnown[job.Name].Clone()
	p.mu.Unlock()

	if cached != nil {
		cached.Status = StatusUnreachable
		cached.Error = cause.Error()
		return cached
	}
	return &JobSnapshot{
		Name:       job.Name,
		Status:     StatusUnreachable,
		TargetNS:   job.TargetNS,
		LastUpdate: time.Now(),
		Auto:       job.Auto,
		Error:      cause.Error(),
	}
}

func (p *Poller) parseJobOutput(job config.Job, output string) *JobSnapshot {
	sections := SplitSections(output)
	now := time.Now()

	snap := &JobSnapshot{
		Name:       job.Name,
		TargetNS:   job.TargetNS,
		LastUpdate: now,
		Auto:       job.Auto,
	}

	snap.ProcessRunning, snap.launchCmd = parseProcessSection(sections[SectionProcess], job)

	if tail := strings.TrimSpace(sections[SectionLogTail]); tail != "" && tail != noLog {
		snap.LogTail = strings.Split(tail, "\n")
	}

	records := ParseLogLines(sections[SectionHistory])
	if len(records) == 0 {
		// No parseable log yet. A running process with no output is
		// still a running job at 0%.
		if snap.ProcessRunning {
			snap.Status = StatusRunning
		} else {
			snap.Status = StatusStopped
		}
		return snap
	}

	// The log's clock includes equilibration time that doesn't count
	// toward the production target, so time is rebased to the first row.
	offset := records[0].TimeNS
	for i := range records {
		records[i].TimeNS -= offset
	}

	newest := records[len(records)-1]
	snap.History = records
	snap.CurrentNS = newest.TimeNS
	snap.Temperature = newest.Temperature
	snap.Density = newest.Density
	snap.Energy = newest.TotalEnergy

	// Progress only moves forward. A shorter read (truncated file, log
	// rotation mid-fetch) must not make a job appear to regress.
	p.mu.Lock()
	prev := p.lastKnown[job.Name]
	var prevNS float64
	var prevAt time.Time
	if prev != nil {
		prevNS = prev.CurrentNS
		prevAt = prev.LastUpdate
	}
	p.mu.Unlock()
	if snap.CurrentNS < prevNS {
		snap.CurrentNS = prevNS
	}

	if job.TargetNS > 0 {
		snap.Percent = snap.CurrentNS / job.TargetNS * 100
		if snap.Percent > 100 {
			snap.Percent = 100
		}
	}

	snap.Speed = newest.SpeedNSDay
	if snap.Speed <= 0 && prev != nil {
		snap.Speed = DeriveSpeed(prevNS, snap.CurrentNS, now.Sub(prevAt))
	}

	switch {
	case job.TargetNS > 0 && snap.CurrentNS >= completionSlack*job.TargetNS:
		snap.Status = StatusCompleted
		snap.Percent = 100
	case snap.ProcessRunning:
		snap.Status = StatusRunning
	default:
		snap.Status = StatusStopped
	}

	if snap.Status == StatusRunning && snap.Speed > 0 {
		remaining := job.TargetNS - snap.CurrentNS
		eta := now.Add(time.Duration(remaining / snap.Speed * 24 * float64(time.Hour)))
		snap.ETA = &eta
		snap.ETAHuman = humanizeETA(eta.Sub(now))
	}

	return snap
}

// parseProcessSection reports liveness and, for discovered jobs, recovers
// the command line of the running process so it can be restarted later.
func parseProcessSection(section string, job config.Job) (running bool, launchCmd string) {
	text := strings.TrimSpace(section)
	if text == "" || text == notRunning {
		return false, ""
	}
	if !job.Auto {
		return true, ""
	}
	// Lines are "PID cmdline". The first match is the process to clone
	// on restart.
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
		if len(parts) == 2 && parts[1] != "" {
			return true, fmt.Sprintf("cd %s && nohup %s > /dev/null 2>&1 &",
				job.Dir, strings.TrimSpace(parts[1]))
		}
	}
	return true, ""
}

// PollGPU fetches device utilization from the remote host.
func (p *Poller) PollGPU(ctx context.Context) ([]GPUSnapshot, error) {
	output, _, err := p.exec(ctx, BuildGPUCommand())
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrPoll,
			"failed to query GPU state",
			"check that the host is reachable")
	}
	return ParseGPUOutput(output), nil
}

// Discover scans the remote host for simulations the config doesn't list:
// python processes on the GPU, recently written logs, and sim_meta.json
// files under the configured roots. Results persist across cycles so a
// discovered job survives its process exiting.
func (p *Poller) Discover(ctx context.Context) error {
	if len(p.discoverRoots) == 0 {
		return nil
	}
	output, _, err := p.exec(ctx, BuildDiscoverCommand(p.discoverRoots))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrPoll,
			"simulation discovery failed",
			"check that the host is reachable")
	}

	found := parseDiscovery(output)
	p.mu.Lock()
	for key, job := range found {
		p.discovered[key] = job
	}
	p.mu.Unlock()

	for _, job := range found {
		p.log.Debug("discovered simulation in %s", job.Dir)
	}
	return nil
}

// simMeta is the optional sidecar file a simulation can write next to its
// log to describe itself.
type simMeta struct {
	Name      string  `json:"name"`
	TargetNS  float64 `json:"target_ns"`
	Script    string  `json:"script"`
	LaunchCmd string  `json:"launch_cmd"`
}

// parseDiscovery turns discovery output into candidate jobs keyed by their
// home-independent directory suffix. Each job keeps its real directory, so
// the same simulation seen under different home spellings collapses to one
// entry without losing a usable path.
func parseDiscovery(output string) map[string]config.Job {
	sections := SplitSections(output)
	found := make(map[string]config.Job)

	add := func(dir string) (string, bool) {
		dir = normalizeSimDir(dir)
		key := simDirKey(dir)
		if key == "" || key == "/" {
			return "", false
		}
		if _, ok := found[key]; !ok {
			found[key] = config.Job{
				Name:     path.Base(dir),
				Dir:      dir,
				Log:      config.DefaultLogName,
				TargetNS: config.DefaultTargetNS,
				Auto:     true,
			}
		}
		return key, true
	}

	// GPU section: "pid:cwd:cmdline" per process.
	for _, line := range strings.Split(strings.TrimSpace(sections[SectionGPU]), "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 3)
		if len(parts) < 2 || parts[1] == "" {
			continue
		}
		key, ok := add(parts[1])
		if !ok {
			continue
		}
		if job := found[key]; job.LaunchCmd == "" && len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
			job.LaunchCmd = fmt.Sprintf("cd %s && nohup %s > /dev/null 2>&1 &",
				job.Dir, strings.TrimSpace(parts[2]))
			found[key] = job
		}
	}

	// RECENT section: paths to freshly written production logs.
	for _, line := range strings.Split(strings.TrimSpace(sections[SectionRecent]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		add(path.Dir(line))
	}

	// META section: "path:" header lines followed by the file content.
	applyMeta(sections[SectionMeta], found, add)

	return found
}

func applyMeta(section string, found map[string]config.Job, add func(string) (string, bool)) {
	var dir string
	var body []string

	flush := func() {
		if dir == "" || len(body) == 0 {
			return
		}
		var meta simMeta
		if err := json.Unmarshal([]byte(strings.Join(body, "\n")), &meta); err != nil {
			return
		}
		key, ok := add(dir)
		if !ok {
			return
		}
		job := found[key]
		if meta.Name != "" {
			job.Name = meta.Name
		}
		if meta.TargetNS > 0 {
			job.TargetNS = meta.TargetNS
		}
		if meta.Script != "" {
			job.Script = meta.Script
		}
		if meta.LaunchCmd != "" {
			job.LaunchCmd = meta.LaunchCmd
		}
		found[key] = job
	}

	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, "sim_meta.json:") {
			flush()
			dir = normalizeSimDir(path.Dir(strings.TrimSuffix(trimmed, ":")))
			body = nil
			continue
		}
		body = append(body, line)
	}
	flush()
}

// Discovered returns the current discovered-job cache.
func (p *Poller) Discovered() []config.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	jobs := make([]config.Job, 0, len(p.discovered))
	for _, j := range p.discovered {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })
	return jobs
}

// Stop kills a job's remote process. A nonzero exit means no process
// matched, which is surfaced as an error.
func (p *Poller) Stop(ctx context.Context, job config.Job) error {
	_, exitCode, err := p.exec(ctx, BuildStopCommand(job))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("failed to stop %s", job.Name),
			"check that the host is reachable")
	}
	if exitCode != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("no running process found for %s", job.Name),
			"the simulation may have already stopped")
	}
	return nil
}

// Restart kills a job's remote process if one is running and launches it
// again, detached from the SSH session. Discovered jobs reuse the command
// line captured from their last live process.
func (p *Poller) Restart(ctx context.Context, job config.Job) error {
	cmd := BuildLaunchCommand(job)
	if job.Auto && job.LaunchCmd == "" {
		p.mu.Lock()
		if snap := p.lastKnown[job.Name]; snap != nil && snap.launchCmd != "" {
			cmd = snap.launchCmd
		}
		p.mu.Unlock()
	}

	// Already-dead processes are fine here.
	if _, _, err := p.exec(ctx, BuildStopCommand(job)); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("failed to restart %s", job.Name),
			"check that the host is reachable")
	}

	_, exitCode, err := p.exec(ctx, cmd)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("failed to restart %s", job.Name),
			"check that the host is reachable")
	}
	if exitCode != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("launch command for %s exited with code %d", job.Name, exitCode),
			"check the launch_cmd in your config")
	}
	p.pollLog.Printf("restarted job=%s", job.Name)
	return nil
}

// normalizeSimDir canonicalizes a directory path.
func normalizeSimDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if len(dir) > 1 {
		dir = strings.TrimRight(dir, "/")
	}
	return dir
}

// simDirKey reduces a directory to a home-independent suffix for identity
// comparison, so "~/md/tet5-vc" and "/home/user/md/tet5-vc" name the same
// simulation.
func simDirKey(dir string) string {
	p := normalizeSimDir(dir)
	switch {
	case strings.HasPrefix(p, "~/"):
		return p[2:]
	case strings.HasPrefix(p, "/home/"):
		parts := strings.SplitN(p, "/", 4)
		if len(parts) == 4 {
			return parts[3]
		}
		return ""
	case strings.HasPrefix(p, "/root/"):
		return p[len("/root/"):]
	}
	return p
}

// humanizeETA renders a remaining duration the way a person would say it.
func humanizeETA(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
