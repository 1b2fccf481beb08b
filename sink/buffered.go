package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/justapithecus/camrelay/log"
	"github.com/justapithecus/camrelay/types"
)

// BufferedConfig configures a Buffered sink.
type BufferedConfig struct {
	// MaxImages flushes once this many images are held.
	// Zero means no count limit (use MaxBytes instead).
	MaxImages int

	// MaxBytes flushes once the held image bytes reach this size.
	// Zero means no size limit (use MaxImages instead).
	// At least one limit must be set.
	MaxBytes int64

	// Logger is an optional logger for flush failures.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// ErrInvalidBufferConfig is returned when BufferedConfig sets no limit.
var ErrInvalidBufferConfig = errors.New("invalid buffer config: at least one of MaxImages or MaxBytes must be set")

// BufferedStats reports Buffered sink activity.
type BufferedStats struct {
	// ImagesBuffered is the number of images accepted.
	ImagesBuffered int64
	// ImagesPersisted is the number of images written to the inner sink.
	ImagesPersisted int64
	// BufferBytes is the current held size in bytes.
	BufferBytes int64
	// FlushCount is the number of flush attempts.
	FlushCount int64
	// Errors is the number of failed flushes.
	Errors int64
}

// Buffered holds completed images and writes them to the inner sink in batches.
//
// Images are never dropped. On flush failure the held batch is kept intact
// and retried by the next flush, so an image may be written twice but is
// never lost. Close flushes before closing the inner sink unless Flush was
// already called after the last WriteImage.
type Buffered struct {
	inner  Sink
	config BufferedConfig
	logger *log.Logger

	mu        sync.Mutex
	buffer    []*types.Image
	bytes     int64
	stats     BufferedStats
	settled   bool
	persisted func(img *types.Image)
}

// NewBuffered wraps inner with a bounded batching buffer.
func NewBuffered(inner Sink, config BufferedConfig) (*Buffered, error) {
	if config.MaxImages <= 0 && config.MaxBytes <= 0 {
		return nil, ErrInvalidBufferConfig
	}
	return &Buffered{
		inner:  inner,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.Image, 0, max(config.MaxImages, 16)),
	}, nil
}

// WriteImage holds img and flushes when a limit is reached.
func (b *Buffered) WriteImage(ctx context.Context, img *types.Image) error {
	b.mu.Lock()
	b.buffer = append(b.buffer, img)
	b.bytes += img.Size()
	b.stats.ImagesBuffered++
	b.stats.BufferBytes = b.bytes
	b.settled = false
	full := b.fullLocked()
	b.mu.Unlock()

	if !full {
		return nil
	}
	return b.flush(ctx)
}

// OnPersisted registers fn to run for each image once the inner sink has
// accepted it. It replaces any earlier registration.
func (b *Buffered) OnPersisted(fn func(img *types.Image)) {
	b.mu.Lock()
	b.persisted = fn
	b.mu.Unlock()
}

// fullLocked reports whether a limit is reached. Caller must hold mu.
func (b *Buffered) fullLocked() bool {
	if b.config.MaxImages > 0 && len(b.buffer) >= b.config.MaxImages {
		return true
	}
	return b.config.MaxBytes > 0 && b.bytes >= b.config.MaxBytes
}

// Flush writes all held images to the inner sink, preserving order.
func (b *Buffered) Flush(ctx context.Context) error {
	b.mu.Lock()
	b.settled = true
	b.mu.Unlock()
	return b.flush(ctx)
}

func (b *Buffered) flush(ctx context.Context) error {
	b.mu.Lock()
	b.stats.FlushCount++
	batch := b.buffer
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := b.writeBatch(ctx, batch); err != nil {
		b.mu.Lock()
		b.stats.Errors++
		b.mu.Unlock()
		b.logFlushFailure(len(batch), err)
		return err
	}

	b.mu.Lock()
	b.stats.ImagesPersisted += int64(len(batch))
	b.buffer = b.buffer[len(batch):]
	b.bytes = 0
	for _, img := range b.buffer {
		b.bytes += img.Size()
	}
	b.stats.BufferBytes = b.bytes
	persisted := b.persisted
	b.mu.Unlock()

	if persisted != nil {
		for _, img := range batch {
			persisted(img)
		}
	}
	return nil
}

func (b *Buffered) writeBatch(ctx context.Context, batch []*types.Image) error {
	if bs, ok := b.inner.(BatchSink); ok {
		return bs.WriteImages(ctx, batch)
	}
	for _, img := range batch {
		if err := b.inner.WriteImage(ctx, img); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffered) logFlushFailure(n int, err error) {
	if b.logger == nil {
		return
	}
	b.logger.Error("image flush failed", map[string]any{
		"images": n,
		"error":  err.Error(),
	})
}

// Location delegates to the inner sink when it can locate images.
func (b *Buffered) Location(img *types.Image) string {
	if l, ok := b.inner.(Locator); ok {
		return l.Location(img)
	}
	return ""
}

// Stats returns a snapshot of buffer statistics.
func (b *Buffered) Stats() BufferedStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Close flushes held images, unless Flush already ran since the last
// WriteImage, and closes the inner sink. The inner sink is closed even if
// the final flush fails.
func (b *Buffered) Close() error {
	b.mu.Lock()
	settled := b.settled
	b.mu.Unlock()

	var flushErr error
	if !settled {
		flushErr = b.flush(context.Background())
	}
	return errors.Join(flushErr, b.inner.Close())
}

var (
	_ Sink     = (*Buffered)(nil)
	_ Flusher  = (*Buffered)(nil)
	_ Locator  = (*Buffered)(nil)
	_ Deferred = (*Buffered)(nil)
)
