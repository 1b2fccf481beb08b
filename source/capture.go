package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/camrelay/capture"
)

// Capture replays datagrams from a capture file.
type Capture struct {
	path   string
	file   *os.File
	reader *capture.Reader
}

// OpenCapture opens a capture file for replay.
func OpenCapture(path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return &Capture{
		path:   path,
		file:   f,
		reader: capture.NewReader(bufio.NewReader(f)),
	}, nil
}

// Next implements Source.
// A truncated trailing frame is reported as a fatal *capture.FrameError.
func (c *Capture) Next(ctx context.Context) (Datagram, error) {
	if err := ctx.Err(); err != nil {
		return Datagram{}, err
	}
	rec, err := c.reader.Read()
	if err != nil {
		if err == io.EOF {
			return Datagram{}, io.EOF
		}
		return Datagram{}, fmt.Errorf("read capture %s: %w", c.path, err)
	}
	return Datagram{Data: rec.Data, Addr: rec.Addr, Ts: rec.Time()}, nil
}

// Close implements Source.
func (c *Capture) Close() error {
	return c.file.Close()
}

// Describe implements Source.
func (c *Capture) Describe() string {
	return "capture://" + c.path
}

var _ Source = (*Capture)(nil)
