package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/camrelay/capture"
	"github.com/justapithecus/camrelay/source"
)

// RecordCommand returns the record command.
// Record writes raw datagrams to a capture file without decoding them, so
// a session can be replayed or inspected later.
func RecordCommand() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Record raw UDP datagrams to a capture file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Capture file to write",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "UDP address to bind",
				Value: "0.0.0.0:23333",
			},
			&cli.IntFlag{
				Name:  "max-datagram-size",
				Usage: "Receive buffer size in bytes",
				Value: source.DefaultMaxDatagramSize,
			},
			&cli.DurationFlag{
				Name:  "read-timeout",
				Usage: "Stop after this long without traffic (0 waits forever)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Stop after this many datagrams (0 for no limit)",
			},
		},
		Action: recordAction,
	}
}

func recordAction(c *cli.Context) error {
	if c.Int("count") < 0 {
		return cli.Exit("--count must be >= 0", exitUsage)
	}

	src, err := source.ListenUDP(source.UDPConfig{
		Addr:            c.String("addr"),
		MaxDatagramSize: c.Int("max-datagram-size"),
		ReadTimeout:     c.Duration("read-timeout"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to listen: %v", err), exitSourceError)
	}
	defer func() { _ = src.Close() }()

	f, err := os.Create(c.String("out"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create capture: %v", err), exitSinkError)
	}
	bw := bufio.NewWriter(f)

	ctx, stop := withSignals(c.Context)
	defer stop()

	fmt.Fprintf(c.App.ErrWriter, "recording %s to %s\n", src.Describe(), c.String("out"))
	n, recErr := record(ctx, src, capture.NewWriter(bw), c.Int("count"))

	closeErr := errors.Join(bw.Flush(), f.Close())
	fmt.Fprintf(c.App.ErrWriter, "recorded %d datagrams\n", n)

	var sinkErr *recordWriteError
	switch {
	case errors.As(recErr, &sinkErr):
		return cli.Exit(recErr.Error(), exitSinkError)
	case recErr != nil:
		return cli.Exit(recErr.Error(), exitSourceError)
	case closeErr != nil:
		return cli.Exit(fmt.Sprintf("failed to write capture: %v", closeErr), exitSinkError)
	}
	return nil
}

// recordWriteError marks a failure writing the capture, as opposed to
// reading the source.
type recordWriteError struct {
	err error
}

func (e *recordWriteError) Error() string { return "write capture: " + e.err.Error() }

func (e *recordWriteError) Unwrap() error { return e.err }

// record copies datagrams from src to w until the source ends, ctx is
// canceled, or limit datagrams were written (0 means no limit).
// Cancellation, io.EOF and source.ErrIdle end recording cleanly.
func record(ctx context.Context, src source.Source, w *capture.Writer, limit int) (int, error) {
	n := 0
	for limit == 0 || n < limit {
		dg, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, source.ErrIdle) || ctx.Err() != nil {
				return n, nil
			}
			return n, err
		}
		if err := w.WriteDatagram(dg.Ts, dg.Addr, dg.Data); err != nil {
			return n, &recordWriteError{err: err}
		}
		n++
	}
	return n, nil
}
