package remote

import (
	"fmt"
	"path"
	"strings"
)

// LogPlaceholder is echoed by the remote side when no log file exists yet.
// The browser UI matches on this exact text; do not change it.
const LogPlaceholder = "[INFO] Noch kein Log verfügbar"

// Remote outcome messages for kill. Like LogPlaceholder these are part of
// the compatibility surface.
const (
	MsgKilled      = "Process killed successfully"
	MsgAlreadyDead = "Process already dead"
	MsgNotFound    = "No matching process found"
)

const logTailLines = 1000

// Quote escapes a single argument for POSIX sh. Every value interpolated
// into a remote command goes through this individually — arguments are
// never concatenated into the command before escaping.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// PIDFilePath derives the remote PID file location for a job. The PID
// file, once written, is the sole source of truth for liveness.
func PIDFilePath(jobID string) string {
	return "/tmp/job_" + jobID + ".pid"
}

// LaunchLogPath is where the detached process' combined output is captured
// at launch time, before the pipeline opens its own log.
func LaunchLogPath(jobID string) string {
	return "/tmp/job_" + jobID + ".log"
}

// PrimaryLogPath and SecondaryLogPath are the pipeline's own log
// locations, tried in order by get_log.
func PrimaryLogPath(inputPath string) string {
	return path.Join(inputPath, "logs", "analysis.log")
}

func SecondaryLogPath(inputPath string) string {
	return path.Join(inputPath, "analysis.log")
}

// BuildRunCommand launches the analysis script detached and captures its
// PID into the job's PID file within the same shell invocation — a second
// round trip would open a window where the process runs untracked.
func BuildRunCommand(script, inputPath, sampleList, jobID string) string {
	return fmt.Sprintf(
		"mkdir -p %s; nohup %s %s %s %s > %s 2>&1 & echo $! > %s",
		Quote(path.Join(inputPath, "logs")),
		Quote(script),
		Quote(inputPath),
		Quote(sampleList),
		Quote(jobID),
		Quote(LaunchLogPath(jobID)),
		Quote(PIDFilePath(jobID)),
	)
}

// BuildGetLogCommand tails the primary log, falls back to the secondary
// location, and echoes the placeholder when neither exists.
func BuildGetLogCommand(inputPath string) string {
	primary := Quote(PrimaryLogPath(inputPath))
	secondary := Quote(SecondaryLogPath(inputPath))
	return fmt.Sprintf(
		"if [ -f %[1]s ]; then tail -n %[3]d %[1]s; elif [ -f %[2]s ]; then tail -n %[3]d %[2]s; else echo %[4]s; fi",
		primary, secondary, logTailLines, Quote(LogPlaceholder),
	)
}

// BuildKillCommand terminates the job's process: TERM, a 5 second grace
// window, then KILL if the liveness probe still answers. The PID file is
// removed in every branch that had one. Without a PID file we fall back to
// a pattern search by job id; pkill finding nothing is a success.
func BuildKillCommand(jobID string) string {
	pidFile := Quote(PIDFilePath(jobID))
	return fmt.Sprintf(
		`if [ -f %[1]s ]; then `+
			`PID=$(cat %[1]s); `+
			`if kill -0 "$PID" 2>/dev/null; then `+
			`kill -TERM "$PID"; sleep 5; `+
			`if kill -0 "$PID" 2>/dev/null; then kill -KILL "$PID"; fi; `+
			`rm -f %[1]s; echo %[2]s; `+
			`else rm -f %[1]s; echo %[3]s; fi; `+
			`else pkill -f %[4]s 2>/dev/null; echo %[5]s; fi`,
		pidFile, Quote(MsgKilled), Quote(MsgAlreadyDead), Quote(jobID), Quote(MsgNotFound),
	)
}

// BuildStatusCommand reports running (PID file present, liveness probe
// answers), finished (present, dead) or not_found (no PID file). The gap
// between file read and signal 0 is inherent to PID-file tracking and
// accepted.
func BuildStatusCommand(jobID string) string {
	pidFile := Quote(PIDFilePath(jobID))
	return fmt.Sprintf(
		`if [ -f %[1]s ]; then `+
			`if kill -0 "$(cat %[1]s)" 2>/dev/null; then echo running; else echo finished; fi; `+
			`else echo not_found; fi`,
		pidFile,
	)
}

// BuildTestCommand is a trivial round trip used only to validate
// connectivity.
func BuildTestCommand() string {
	return `echo "OK $(hostname) $(date)"`
}
