// Package main provides the camrelay CLI entrypoint.
//
// Usage:
//
//	camrelay <command> [options]
//
// Exit codes for listen, replay and record:
//   - 0: success (source exhausted or interrupted)
//   - 1: invalid flags or config
//   - 2: source error
//   - 3: sink error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/camrelay/cli/cmd"
	"github.com/justapithecus/camrelay/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "camrelay",
		Usage:          "Reassemble JPEG images from fragmented UDP camera streams",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ListenCommand(),
			cmd.ReplayCommand(),
			cmd.RecordCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit and prints non-empty
// messages to stderr.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg := exitMessage(exitCoder); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// exitMessage returns the text worth printing for an exit error.
// cli.Exit("", N) reports "exit status N", which is suppressed.
func exitMessage(ec cli.ExitCoder) string {
	msg := ec.Error()
	if msg == fmt.Sprintf("exit status %d", ec.ExitCode()) {
		return ""
	}
	return msg
}
