// Command jobctl drives the remote analysis hosts from the command line.
// The web portal shells out to it; stdout carries the operation result,
// diagnostics go to stderr and the persistent log file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"seqlab.portal/internal/config"
	"seqlab.portal/internal/core/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "jobctl:", err)
		return exitUsage
	}

	// The persistent log must be up before cobra validates the
	// invocation: malformed calls are recorded there too.
	initLog(cfg)

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		os.Interrupt,
	)
	defer cancel()

	root := newCLI(cfg).rootCmd()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		code := exitCodeFor(err)
		logger.Error("jobctl invocation failed",
			"args", args,
			"exit_code", code,
			"error", err,
		)
		fmt.Fprintln(stderr, "jobctl:", err)
		if hint := usageHint(err); hint != "" {
			fmt.Fprintln(stderr, hint)
		}
		return code
	}

	return exitOK
}
