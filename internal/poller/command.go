package poller

import (
	"fmt"
	"strings"

	"github.com/simwatch/simwatch/internal/config"
)

// Section markers separating the parts of a compound remote command's
// output. Chosen so they can never occur in CSV log content.
const (
	SectionTail    = "TAIL"
	SectionHistory = "HISTORY"
	SectionProcess = "PROCESS"
	SectionLogTail = "LOGTAIL"

	SectionGPU    = "GPU"
	SectionRecent = "RECENT"
	SectionMeta   = "META"
)

// Sentinels emitted by the remote side when a section has nothing to say.
const (
	noLog      = "NO_LOG"
	notRunning = "NOT_RUNNING"
)

// marker renders a section marker line (e.g. "===TAIL===").
func marker(section string) string {
	return "===" + section + "==="
}

// displayTailLines is how many raw log lines are fetched for display.
const displayTailLines = 30

// BuildJobCommand returns the single compound command that gathers
// everything needed to poll one job: the newest log row, the full history,
// a process liveness check, and the raw tail for display. One SSH round
// trip per job bounds connection-setup latency.
func BuildJobCommand(job config.Job) string {
	logPath := job.LogPath()
	commands := []string{
		fmt.Sprintf("echo '%s'", marker(SectionTail)),
		fmt.Sprintf("tail -1 %s 2>/dev/null || echo '%s'", logPath, noLog),
		fmt.Sprintf("echo '%s'", marker(SectionHistory)),
		fmt.Sprintf("cat %s 2>/dev/null || echo '%s'", logPath, noLog),
		fmt.Sprintf("echo '%s'", marker(SectionProcess)),
		buildProcessCheck(job),
		fmt.Sprintf("echo '%s'", marker(SectionLogTail)),
		fmt.Sprintf("tail -%d %s 2>/dev/null || echo '%s'", displayTailLines, logPath, noLog),
	}
	return strings.Join(commands, " ; ")
}

// buildProcessCheck returns the liveness command for a job.
func buildProcessCheck(job config.Job) string {
	if job.Script != "" && !job.Auto {
		// [c]haracter class trick so pgrep doesn't match its own bash -c command
		escaped := "[" + job.Script[:1] + "]" + job.Script[1:]
		return fmt.Sprintf("pgrep -af '%s' 2>/dev/null || echo '%s'", escaped, notRunning)
	}
	// For discovered jobs, find python processes whose cwd matches the job
	// directory and echo "PID cmdline" so the launch command can be
	// recovered for restarts.
	return fmt.Sprintf(
		`found=0; for pid in $(pgrep '[p]ython' 2>/dev/null); do `+
			`cwd=$(readlink /proc/$pid/cwd 2>/dev/null); `+
			`if [ "$cwd" = "%s" ]; then `+
			`cmd=$(tr '\0' ' ' < /proc/$pid/cmdline 2>/dev/null); `+
			`echo "$pid $cmd"; found=1; fi; done; `+
			`[ $found -eq 0 ] && echo '%s'`,
		job.Dir, notRunning)
}

// gpuQuery is the nvidia-smi field list for device snapshots.
const gpuQuery = "utilization.gpu,utilization.memory,memory.used,memory.total,temperature.gpu,name"

// BuildGPUCommand returns the GPU introspection command. The WSL library
// path is tried first; plain nvidia-smi is the fallback. Absence of the
// tool yields empty output, which the parser treats as "no devices".
func BuildGPUCommand() string {
	args := fmt.Sprintf("--query-gpu=%s --format=csv,noheader,nounits", gpuQuery)
	return fmt.Sprintf("/usr/lib/wsl/lib/nvidia-smi %s 2>/dev/null || nvidia-smi %s 2>/dev/null || true", args, args)
}

// BuildDiscoverCommand returns the compound command that finds simulations
// the config doesn't list: python processes on the GPU, recently written
// production logs under the given roots, and sim_meta.json files.
func BuildDiscoverCommand(roots []string) string {
	rootList := strings.Join(roots, " ")
	parts := []string{
		fmt.Sprintf("echo '%s'", marker(SectionGPU)),
		`nvidia-smi pmon -c 1 -s u 2>/dev/null | awk '/python/ {print $2}' | ` +
			`while read pid; do ` +
			`cwd=$(readlink /proc/$pid/cwd 2>/dev/null) ; ` +
			`cmd=$(tr '\0' ' ' < /proc/$pid/cmdline 2>/dev/null) ; ` +
			`[ -n "$cwd" ] && echo "$pid:$cwd:$cmd" ; ` +
			`done`,
		fmt.Sprintf("echo '%s'", marker(SectionRecent)),
		fmt.Sprintf("find %s -maxdepth 2 -name '%s' -type f -mmin -60 2>/dev/null",
			rootList, config.DefaultLogName),
		fmt.Sprintf("echo '%s'", marker(SectionMeta)),
		fmt.Sprintf(`find %s -maxdepth 2 -name 'sim_meta.json' -type f 2>/dev/null | `+
			`while read f; do echo "$f:"; cat "$f"; done`, rootList),
	}
	return strings.Join(parts, " ; ")
}

// BuildStopCommand returns the remote kill command for a job's process.
// Discovered jobs have no script name, so they are matched by directory.
func BuildStopCommand(job config.Job) string {
	if job.Script == "" {
		return fmt.Sprintf("pkill -f 'python.*%s'", job.Dir)
	}
	return fmt.Sprintf("pkill -f 'python.*%s'", job.Script)
}

// BuildLaunchCommand returns the remote restart command for a job,
// nohup-detached so it survives the SSH session ending. The configured
// launch_cmd wins; otherwise the job's script is wrapped in a conda run.
func BuildLaunchCommand(job config.Job) string {
	if job.LaunchCmd != "" {
		return job.LaunchCmd
	}
	return fmt.Sprintf("cd %s && nohup conda run --no-capture-output -n md-env python %s > /dev/null 2>&1 &",
		job.Dir, job.Script)
}
