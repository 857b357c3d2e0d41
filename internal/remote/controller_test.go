package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"seqlab.portal/internal/core/domain"
)

// fakeHost simulates the remote shell logic per host, keyed on the
// command text the controller builds.
type fakeHost func(command string) (string, error)

func testController(t *testing.T, hosts map[string]fakeHost) *Controller {
	t.Helper()

	tr := NewTransport(discardLogger())
	tr.sleep = func(time.Duration) {}
	tr.run = func(ctx context.Context, ep Endpoint, command string) (string, error) {
		h, ok := hosts[ep.Host]
		if !ok {
			return "", errors.New("unreachable")
		}
		return h(command)
	}

	return NewController(
		testRouter(),
		tr,
		map[domain.AnalysisType]string{
			domain.AnalysisWGS:     "/opt/pipelines/wgs/run_analysis.sh",
			domain.AnalysisSpecies: "/opt/pipelines/species/run_analysis.sh",
		},
		discardLogger(),
	)
}

func TestControllerRunRoutesByType(t *testing.T) {
	var wgsCmds, speciesCmds []string

	c := testController(t, map[string]fakeHost{
		"analysis@wgs-node": func(cmd string) (string, error) {
			wgsCmds = append(wgsCmds, cmd)
			return "", nil
		},
		"analysis@species-node": func(cmd string) (string, error) {
			speciesCmds = append(speciesCmds, cmd)
			return "", nil
		},
	})

	err := c.Run(context.Background(), domain.AnalysisWGS, "/data/run42", "S1,S2,S3", "job-001")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(wgsCmds) != 1 || len(speciesCmds) != 0 {
		t.Fatalf("wgs commands = %d, species = %d; want 1/0", len(wgsCmds), len(speciesCmds))
	}
	if !strings.Contains(wgsCmds[0], "/opt/pipelines/wgs/run_analysis.sh") {
		t.Errorf("run used wrong script: %s", wgsCmds[0])
	}
	if !strings.Contains(wgsCmds[0], "/tmp/job_job-001.pid") {
		t.Errorf("run must capture PID to the job's PID file: %s", wgsCmds[0])
	}
}

func TestControllerRunTransportFailure(t *testing.T) {
	c := testController(t, map[string]fakeHost{
		"analysis@wgs-node": func(string) (string, error) {
			return "", errors.New("connection reset")
		},
	})

	err := c.Run(context.Background(), domain.AnalysisWGS, "/data/run42", "S1", "job-002")

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *remote.Error, got %v", err)
	}
	if terr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", terr.Attempts)
	}
}

func TestControllerGetLog(t *testing.T) {
	c := testController(t, map[string]fakeHost{
		"analysis@species-node": func(cmd string) (string, error) {
			if !strings.Contains(cmd, "tail -n 1000") {
				t.Errorf("unexpected command: %s", cmd)
			}
			return "line1\nline2", nil
		},
	})

	got, err := c.GetLog(context.Background(), "/animalSpecies/run1", "species")
	if err != nil {
		t.Fatalf("GetLog() error = %v", err)
	}
	if got != "line1\nline2" {
		t.Errorf("GetLog() = %q", got)
	}
}

func TestControllerGetLogToleratesUnknownType(t *testing.T) {
	called := false
	c := testController(t, map[string]fakeHost{
		"analysis@wgs-node": func(string) (string, error) {
			called = true
			return LogPlaceholder, nil
		},
	})

	got, err := c.GetLog(context.Background(), "/data/x", "whatever")
	if err != nil {
		t.Fatalf("GetLog() error = %v", err)
	}
	if !called {
		t.Error("unknown type must fall back to the wgs endpoint")
	}
	if got != LogPlaceholder {
		t.Errorf("GetLog() = %q, want placeholder", got)
	}
}

func TestControllerKillOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   string
	}{
		{name: "killed", stdout: "Process killed successfully\n", want: MsgKilled},
		{name: "already dead", stdout: "Process already dead\n", want: MsgAlreadyDead},
		{name: "not found", stdout: "No matching process found\n", want: MsgNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testController(t, map[string]fakeHost{
				"analysis@wgs-node": func(string) (string, error) {
					return tt.stdout, nil
				},
			})

			got, err := c.Kill(context.Background(), "job-001", "wgs")
			if err != nil {
				t.Fatalf("Kill() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Kill() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestControllerStatusProbesHostsInOrder(t *testing.T) {
	c := testController(t, map[string]fakeHost{
		"analysis@wgs-node": func(string) (string, error) {
			return "not_found", nil
		},
		"analysis@species-node": func(string) (string, error) {
			return "running", nil
		},
	})

	got, err := c.Status(context.Background(), "job-007")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if got != domain.RemoteStatusRunning {
		t.Errorf("Status() = %v, want running", got)
	}
}

func TestControllerStatusNotFoundEverywhere(t *testing.T) {
	c := testController(t, map[string]fakeHost{
		"analysis@wgs-node":     func(string) (string, error) { return "not_found", nil },
		"analysis@species-node": func(string) (string, error) { return "not_found", nil },
	})

	got, err := c.Status(context.Background(), "gone")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if got != domain.RemoteStatusNotFound {
		t.Errorf("Status() = %v, want not_found", got)
	}
}

func TestControllerStatusFinished(t *testing.T) {
	c := testController(t, map[string]fakeHost{
		"analysis@wgs-node":     func(string) (string, error) { return "finished", nil },
		"analysis@species-node": func(string) (string, error) { return "not_found", nil },
	})

	got, err := c.Status(context.Background(), "job-001")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if got != domain.RemoteStatusFinished {
		t.Errorf("Status() = %v, want finished", got)
	}
}

func TestControllerTestReportsBothHosts(t *testing.T) {
	c := testController(t, map[string]fakeHost{
		"analysis@wgs-node":     func(string) (string, error) { return "OK wgs-node Mon", nil },
		"analysis@species-node": func(string) (string, error) { return "OK species-node Mon", nil },
	})

	got, err := c.Test(context.Background())
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if !strings.Contains(got, "wgs-node") || !strings.Contains(got, "species-node") {
		t.Errorf("Test() = %q, want both hosts reported", got)
	}
}
