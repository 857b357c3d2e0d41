package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"seqlab.portal/internal/config"
	"seqlab.portal/internal/core/domain"
	"seqlab.portal/internal/core/logger"
	"seqlab.portal/internal/core/ports"
	"seqlab.portal/internal/remote"
)

// TODO: Inject version at build time.
const version = "0.1.0"

// Exit codes. A malformed invocation must be tellable apart from a remote
// failure without parsing stderr.
const (
	exitOK     = 0
	exitRemote = 1
	exitUsage  = 2
)

type cli struct {
	cfg        *config.Config
	controller ports.JobController
}

func newCLI(cfg *config.Config) *cli {
	return &cli{cfg: cfg}
}

func (c *cli) rootCmd() *cobra.Command {
	command := &cobra.Command{
		Use:           "jobctl",
		Short:         "Control remote analysis jobs over SSH",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Tests inject their own controller.
			if c.controller != nil {
				return nil
			}

			cfg := c.cfg
			router := remote.NewRouter(
				remote.Endpoint{Host: cfg.WGSHost, KeyPath: cfg.SSHKeyPath},
				remote.Endpoint{Host: cfg.SpeciesHost, KeyPath: cfg.SSHKeyPath},
			)
			transport := remote.NewTransport(logger.Get(),
				remote.WithTimeouts(cfg.ConnectTimeout, cfg.AttemptTimeout),
				remote.WithMaxAttempts(cfg.MaxAttempts),
			)
			c.controller = remote.NewController(router, transport, map[domain.AnalysisType]string{
				domain.AnalysisWGS:     cfg.WGSScript,
				domain.AnalysisSpecies: cfg.SpeciesScript,
			}, logger.Get())

			return nil
		},
	}

	command.AddCommand(
		c.runCmd(),
		c.getLogCmd(),
		c.killCmd(),
		c.statusCmd(),
		c.testCmd(),
	)

	command.CompletionOptions.HiddenDefaultCmd = true

	return command
}

// initLog sends the structured log to the persistent jobctl log file so
// stdout stays machine-readable for the portal. The file being unwritable
// must not block the operation.
func initLog(cfg *config.Config) {
	if err := os.MkdirAll(filepath.Dir(cfg.JobctlLogPath), 0o755); err == nil {
		if f, err := os.OpenFile(cfg.JobctlLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			logger.InitWriter(f, cfg.LogLevel, cfg.LogFormat)
			return
		}
	}
	logger.InitWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "run TYPE INPUT_PATH SAMPLE_LIST JOB_ID",
		Short:   "Launch an analysis as a detached remote process",
		Example: "  jobctl run wgs /bacteria/run42 sample1,sample2 wgs241009_01",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType, err := domain.ParseAnalysisType(args[0])
			if err != nil {
				return err
			}

			if err := c.controller.Run(cmd.Context(), jobType, args[1], args[2], args[3]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", args[3])
			return nil
		},
	}
}

func (c *cli) getLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get_log INPUT_PATH TYPE",
		Short:   "Print the tail of a job's analysis log",
		Example: "  jobctl get_log /bacteria/run42 wgs",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.controller.GetLog(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func (c *cli) killCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "kill JOB_ID TYPE",
		Short:   "Terminate a running analysis",
		Example: "  jobctl kill wgs241009_01 wgs",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// "Already dead" and "not found" are successful outcomes.
			outcome, err := c.controller.Kill(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status JOB_ID",
		Short:   "Probe whether an analysis is still running",
		Example: "  jobctl status wgs241009_01",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.controller.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func (c *cli) testCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "test",
		Short:   "Check connectivity to all analysis hosts",
		Example: "  jobctl test",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.controller.Test(cmd.Context())
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return err
		},
	}
}

// exitCodeFor classifies a command error. Transport and remote failures
// exit 1; everything else (bad arity, unknown subcommand, invalid type)
// is a caller mistake and exits 2.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var rerr *remote.Error
	if errors.As(err, &rerr) {
		return exitRemote
	}
	return exitUsage
}

// usageHint lists the valid modes when the mode itself was not
// recognized. Cobra's bare "unknown command" message does not name them.
func usageHint(err error) string {
	if strings.Contains(err.Error(), "unknown command") {
		return "valid modes: run, get_log, kill, status, test"
	}
	return ""
}
