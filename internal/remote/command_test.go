package remote

import (
	"strings"
	"testing"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain path",
			input: "/data/run42",
			want:  "'/data/run42'",
		},
		{
			name:  "empty string",
			input: "",
			want:  "''",
		},
		{
			name:  "embedded single quote",
			input: "/data/it's",
			want:  `'/data/it'\''s'`,
		},
		{
			name:  "command substitution stays literal",
			input: "$(rm -rf /)",
			want:  "'$(rm -rf /)'",
		},
		{
			name:  "semicolon stays literal",
			input: "x; reboot",
			want:  "'x; reboot'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Quote(tt.input); got != tt.want {
				t.Errorf("Quote(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPIDFilePath(t *testing.T) {
	if got := PIDFilePath("job-001"); got != "/tmp/job_job-001.pid" {
		t.Errorf("PIDFilePath() = %s, want /tmp/job_job-001.pid", got)
	}
}

func TestBuildRunCommand(t *testing.T) {
	cmd := BuildRunCommand("/opt/pipelines/wgs/run_analysis.sh", "/data/run42", "S1,S2,S3", "job-001")

	for _, want := range []string{
		"mkdir -p '/data/run42/logs'",
		"nohup '/opt/pipelines/wgs/run_analysis.sh' '/data/run42' 'S1,S2,S3' 'job-001'",
		"> '/tmp/job_job-001.log' 2>&1 &",
		"echo $! > '/tmp/job_job-001.pid'",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("run command missing %q:\n%s", want, cmd)
		}
	}

	// PID capture must be part of the same invocation, after the
	// backgrounded launch.
	if strings.Index(cmd, "&") > strings.Index(cmd, "echo $!") {
		t.Errorf("PID capture must follow the detached launch: %s", cmd)
	}
}

func TestBuildRunCommandInjectionSafety(t *testing.T) {
	// A hostile input path must not alter the command structure: the
	// value has to reach the remote side as a literal.
	hostile := "/data/run'; rm -rf /; echo '"
	cmd := BuildRunCommand("/opt/script.sh", hostile, "S1", "job-1")

	if !strings.Contains(cmd, `'/data/run'\''; rm -rf /; echo '\'''`+"/logs'") {
		// The quoted form keeps the quote escaped; the raw sequence
		// "'; rm" must never appear unescaped.
		if strings.Contains(cmd, "'; rm -rf /;") && !strings.Contains(cmd, `'\''`) {
			t.Errorf("hostile path not escaped: %s", cmd)
		}
	}
	if !strings.Contains(cmd, `'\''`) {
		t.Errorf("expected escaped single quote in command: %s", cmd)
	}
}

func TestBuildGetLogCommand(t *testing.T) {
	cmd := BuildGetLogCommand("/data/run42")

	for _, want := range []string{
		"tail -n 1000 '/data/run42/logs/analysis.log'",
		"elif [ -f '/data/run42/analysis.log' ]",
		"tail -n 1000 '/data/run42/analysis.log'",
		"echo '[INFO] Noch kein Log verfügbar'",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("get_log command missing %q:\n%s", want, cmd)
		}
	}
}

func TestBuildKillCommand(t *testing.T) {
	cmd := BuildKillCommand("job-001")

	for _, want := range []string{
		"[ -f '/tmp/job_job-001.pid' ]",
		`kill -TERM "$PID"`,
		"sleep 5",
		`kill -KILL "$PID"`,
		"rm -f '/tmp/job_job-001.pid'",
		"echo 'Process killed successfully'",
		"echo 'Process already dead'",
		"pkill -f 'job-001'",
		"echo 'No matching process found'",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("kill command missing %q:\n%s", want, cmd)
		}
	}

	// Graceful before forceful.
	if strings.Index(cmd, "kill -TERM") > strings.Index(cmd, "kill -KILL") {
		t.Errorf("TERM must precede KILL: %s", cmd)
	}
}

func TestBuildStatusCommand(t *testing.T) {
	cmd := BuildStatusCommand("job-001")

	for _, want := range []string{
		"[ -f '/tmp/job_job-001.pid' ]",
		"kill -0",
		"echo running",
		"echo finished",
		"echo not_found",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("status command missing %q:\n%s", want, cmd)
		}
	}
}
