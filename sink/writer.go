package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/justapithecus/camrelay/types"
)

// Writer writes raw JPEG bytes to an io.Writer, one whole image per call.
// Images are concatenated without framing; JPEG's own markers delimit them.
type Writer struct {
	w *bufio.Writer
	c io.Closer
}

// NewWriter creates a sink writing to w.
// If w is an io.Closer other than os.Stdout, Close closes it.
func NewWriter(w io.Writer) *Writer {
	s := &Writer{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok && w != os.Stdout {
		s.c = c
	}
	return s
}

// WriteImage implements Sink. Each image is flushed before returning.
func (s *Writer) WriteImage(_ context.Context, img *types.Image) error {
	if _, err := s.w.Write(img.Data); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush image: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *Writer) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

var _ Sink = (*Writer)(nil)

// Dir writes each image to <root>/stream-<sid>/frame-<fid>.jpg.
// Files are written to a temp file and renamed, so readers never see partial images.
// A frame ID seen twice in one stream overwrites the earlier file.
type Dir struct {
	root string
}

// NewDir creates a directory sink rooted at root, creating it if needed.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// ImagePath returns the relative path for an image.
func ImagePath(img *types.Image) string {
	return filepath.Join(
		"stream-"+strconv.FormatUint(uint64(img.StreamID), 10),
		"frame-"+strconv.FormatUint(uint64(img.FrameID), 10)+".jpg",
	)
}

// Location implements Locator.
func (d *Dir) Location(img *types.Image) string {
	return filepath.Join(d.root, ImagePath(img))
}

// WriteImage implements Sink.
func (d *Dir) WriteImage(_ context.Context, img *types.Image) error {
	path := d.Location(img)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stream directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".frame-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(img.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Close implements Sink.
func (d *Dir) Close() error { return nil }

var (
	_ Sink    = (*Dir)(nil)
	_ Locator = (*Dir)(nil)
)
