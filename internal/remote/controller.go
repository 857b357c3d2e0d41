package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"seqlab.portal/internal/core/domain"
)

// Controller implements the five-operation command protocol on top of the
// Router and Transport. Each call is one independent remote connection;
// nothing is multiplexed or cached between calls.
type Controller struct {
	router    *Router
	transport *Transport
	scripts   map[domain.AnalysisType]string
	log       *slog.Logger
}

func NewController(router *Router, transport *Transport, scripts map[domain.AnalysisType]string, log *slog.Logger) *Controller {
	return &Controller{
		router:    router,
		transport: transport,
		scripts:   scripts,
		log:       log,
	}
}

// Run launches the analysis script detached on the host owning jobType.
// Success means the launch command completed; the analysis itself keeps
// running after this call returns.
func (c *Controller) Run(ctx context.Context, jobType domain.AnalysisType, inputPath, sampleList, jobID string) error {
	script, ok := c.scripts[jobType]
	if !ok {
		return fmt.Errorf("no analysis script configured for type %q", jobType)
	}

	ep := c.router.Route(jobType)
	command := BuildRunCommand(script, inputPath, sampleList, jobID)

	if _, err := c.transport.Execute(ctx, ep, command); err != nil {
		return err
	}

	c.log.Info("analysis launched",
		"job_id", jobID,
		"type", jobType,
		"input_path", inputPath,
		"pid_file", PIDFilePath(jobID),
	)
	return nil
}

// GetLog tails the job's log. jobType is free text here; unknown values
// route loosely instead of erroring (legacy behavior, see Router).
func (c *Controller) GetLog(ctx context.Context, inputPath, jobType string) (string, error) {
	ep := c.router.RouteLoose(jobType)
	res, err := c.transport.Execute(ctx, ep, BuildGetLogCommand(inputPath))
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Kill terminates the job's process and returns the remote outcome
// message. A job that is already dead or cannot be found is a successful
// outcome with a negative payload, not an error.
func (c *Controller) Kill(ctx context.Context, jobID, jobType string) (string, error) {
	ep := c.router.RouteLoose(jobType)
	res, err := c.transport.Execute(ctx, ep, BuildKillCommand(jobID))
	if err != nil {
		return "", err
	}

	outcome := strings.TrimSpace(res.Stdout)
	c.log.Info("kill completed", "job_id", jobID, "outcome", outcome)
	return outcome, nil
}

// Status probes PID-file liveness for jobID. The protocol identifies a job
// by id alone, so the probe walks the endpoints in routing order and
// returns the first answer that is not not_found.
func (c *Controller) Status(ctx context.Context, jobID string) (domain.RemoteStatus, error) {
	command := BuildStatusCommand(jobID)

	var lastErr error
	for _, t := range domain.AnalysisTypes {
		res, err := c.transport.Execute(ctx, c.router.Route(t), command)
		if err != nil {
			lastErr = err
			continue
		}
		switch st := domain.RemoteStatus(strings.TrimSpace(res.Stdout)); st {
		case domain.RemoteStatusRunning, domain.RemoteStatusFinished:
			return st, nil
		case domain.RemoteStatusNotFound:
			continue
		default:
			lastErr = fmt.Errorf("unexpected status output %q for job %s", res.Stdout, jobID)
		}
	}

	if lastErr != nil {
		return "", lastErr
	}
	return domain.RemoteStatusNotFound, nil
}

// Test performs the connectivity round trip against every configured
// endpoint and reports one line per host.
func (c *Controller) Test(ctx context.Context) (string, error) {
	endpoints := c.router.Endpoints()

	types := make([]string, 0, len(endpoints))
	for t := range endpoints {
		types = append(types, string(t))
	}
	sort.Strings(types)

	var lines []string
	var lastErr error
	for _, t := range types {
		ep := endpoints[domain.AnalysisType(t)]
		res, err := c.transport.Execute(ctx, ep, BuildTestCommand())
		if err != nil {
			lastErr = err
			lines = append(lines, fmt.Sprintf("%s (%s): unreachable", t, ep.Host))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s", t, ep.Host, res.Stdout))
	}

	out := strings.Join(lines, "\n")
	if lastErr != nil {
		return out, lastErr
	}
	return out, nil
}
