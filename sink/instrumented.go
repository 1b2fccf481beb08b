package sink

import (
	"context"

	"github.com/justapithecus/camrelay/metrics"
	"github.com/justapithecus/camrelay/types"
)

// Instrumented wraps a Sink and records write metrics.
// Each WriteImage or WriteImages call increments sink_write_success or sink_write_failure
// on the metrics collector.
type Instrumented struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumented wraps a sink with metrics instrumentation.
func NewInstrumented(inner Sink, collector *metrics.Collector) *Instrumented {
	return &Instrumented{inner: inner, collector: collector}
}

// WriteImage delegates to the inner sink and records success or failure.
func (s *Instrumented) WriteImage(ctx context.Context, img *types.Image) error {
	err := s.inner.WriteImage(ctx, img)
	if err != nil {
		s.collector.IncSinkWriteFailure()
	} else {
		s.collector.IncSinkWriteSuccess()
	}
	return err
}

// WriteImages delegates a batch to the inner sink and records one
// success or failure for the call.
func (s *Instrumented) WriteImages(ctx context.Context, imgs []*types.Image) error {
	var err error
	if bs, ok := s.inner.(BatchSink); ok {
		err = bs.WriteImages(ctx, imgs)
	} else {
		for _, img := range imgs {
			if err = s.inner.WriteImage(ctx, img); err != nil {
				break
			}
		}
	}
	if err != nil {
		s.collector.IncSinkWriteFailure()
	} else {
		s.collector.IncSinkWriteSuccess()
	}
	return err
}

// Location delegates to the inner sink when it can locate images.
func (s *Instrumented) Location(img *types.Image) string {
	if l, ok := s.inner.(Locator); ok {
		return l.Location(img)
	}
	return ""
}

// Close delegates to the inner sink.
func (s *Instrumented) Close() error {
	return s.inner.Close()
}

var (
	_ BatchSink = (*Instrumented)(nil)
	_ Locator   = (*Instrumented)(nil)
)
