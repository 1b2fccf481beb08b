// Package sink defines where completed images go.
//
// Sinks receive owned copies of completed images, in completion order.
// Implementations may write to stdout, a directory, Lode storage, or stub for testing.
package sink

import (
	"context"
	"sync"

	"github.com/justapithecus/camrelay/types"
)

// Sink persists completed images.
type Sink interface {
	// WriteImage persists one completed image.
	// Returns error on failure; the receiver terminates the session.
	WriteImage(ctx context.Context, img *types.Image) error

	// Close releases any resources held by the sink.
	Close() error
}

// BatchSink is implemented by sinks that can persist several images in one call.
// Buffered uses it when available.
type BatchSink interface {
	Sink

	// WriteImages persists a batch of images.
	// Must preserve ordering within the batch.
	WriteImages(ctx context.Context, imgs []*types.Image) error
}

// Flusher is implemented by sinks that hold images before persisting them.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Deferred is implemented by sinks whose WriteImage may return before the
// image is persisted. fn runs once for each image after it is persisted,
// in write order.
type Deferred interface {
	OnPersisted(fn func(img *types.Image))
}

// Locator is implemented by sinks that can report where an image was stored.
// The path is attached to completion notifications.
type Locator interface {
	Location(img *types.Image) string
}

// StubSink is a test sink that accepts writes without persisting.
type StubSink struct {
	mu sync.Mutex

	// Images stores all written images for inspection.
	Images []*types.Image
	// Batches is the number of WriteImage/WriteImages calls.
	Batches int
	// Closed indicates whether Close was called.
	Closed bool

	// ErrorOnWrite, if non-nil, is returned by WriteImage/WriteImages.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteImage records the image without persisting.
func (s *StubSink) WriteImage(_ context.Context, img *types.Image) error {
	return s.WriteImages(context.Background(), []*types.Image{img})
}

// WriteImages records the images without persisting.
func (s *StubSink) WriteImages(_ context.Context, imgs []*types.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.Images = append(s.Images, imgs...)
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Written returns a copy of the recorded images.
func (s *StubSink) Written() []*types.Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*types.Image(nil), s.Images...)
}

// SetError sets the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ErrorOnWrite = err
}

var _ BatchSink = (*StubSink)(nil)
