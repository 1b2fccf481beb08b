package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/camrelay/assembler"
	"github.com/justapithecus/camrelay/cli/reader"
	"github.com/justapithecus/camrelay/cli/render"
	"github.com/justapithecus/camrelay/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect decodes a recorded input datagram by datagram and reports what
// the assembler did with each one. Nothing is written.
func InspectCommand() *cli.Command {
	flags := append(inputFlags(),
		&cli.BoolFlag{
			Name:  "match-stream",
			Usage: "Require middle and end fragments to match the stream ID of the first",
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "Only show the summary",
		},
	)
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Show how each datagram of a capture or pcap file is handled",
		Flags:  append(flags, TUIReadOnlyFlags()...),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	src, err := openInput(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open input: %v", err), exitUsage)
	}
	defer func() { _ = src.Close() }()

	resp, err := reader.InspectCapture(c.Context, src, assembler.Options{MatchStream: c.Bool("match-stream")})
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectCapture, resp)
	}
	if c.Bool("summary") {
		return r.Render(resp.Summary)
	}
	return r.RenderSections(resp, resp.Summary, resp.Fragments)
}
