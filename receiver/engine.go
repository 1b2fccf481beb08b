// Package receiver runs the receive loop: source, decoder, assembler, sink.
package receiver

import (
	"context"
	"errors"
	"io"

	"github.com/justapithecus/camrelay/adapter"
	"github.com/justapithecus/camrelay/assembler"
	"github.com/justapithecus/camrelay/log"
	"github.com/justapithecus/camrelay/metrics"
	"github.com/justapithecus/camrelay/sink"
	"github.com/justapithecus/camrelay/source"
	"github.com/justapithecus/camrelay/types"
	"github.com/justapithecus/camrelay/wire"
)

// ErrorKind classifies errors that end the receive loop.
type ErrorKind int

const (
	// ErrorSource indicates the datagram source failed.
	ErrorSource ErrorKind = iota
	// ErrorSink indicates a completed image could not be written.
	ErrorSink
	// ErrorCanceled indicates context cancellation.
	ErrorCanceled
)

// String returns the kind label used in logs.
func (k ErrorKind) String() string {
	switch k {
	case ErrorSource:
		return "source"
	case ErrorSink:
		return "sink"
	case ErrorCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is a classified receive loop error.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func isKind(err error, kind ErrorKind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// IsSourceError returns true if the loop ended on a source failure.
func IsSourceError(err error) bool { return isKind(err, ErrorSource) }

// IsSinkError returns true if the loop ended on a sink failure.
func IsSinkError(err error) bool { return isKind(err, ErrorSink) }

// IsCanceledError returns true if the loop ended on cancellation.
func IsCanceledError(err error) bool { return isKind(err, ErrorCanceled) }

// Notifier receives an event for each image the sink has persisted. With a
// sink.Deferred sink that happens when the sink reports it, not on write.
// Submit must not block; adapter.Dispatcher satisfies it.
type Notifier interface {
	Submit(event *adapter.ImageCompletedEvent)
}

// Engine reads datagrams and turns them into completed images.
//
// Decode rejections and ignored fragments are counted and dropped; they
// never stop the loop. Only source failures, sink failures and
// cancellation do.
type Engine struct {
	src       source.Source
	snk       sink.Sink
	asm       *assembler.Assembler
	logger    *log.Logger
	collector *metrics.Collector
	notifier  Notifier
	meta      *types.SessionMeta
	// deferred is set when the sink reports persistence through
	// sink.Deferred instead of on WriteImage return.
	deferred bool
}

// EngineConfig wires an Engine. Source, Sink and Meta are required.
type EngineConfig struct {
	Source    source.Source
	Sink      sink.Sink
	Assembler assembler.Options
	Meta      *types.SessionMeta
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Collector may be nil (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// Notifier may be nil.
	Notifier Notifier
}

// NewEngine creates an engine with an empty assembler.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	meta := cfg.Meta
	if meta == nil {
		meta = &types.SessionMeta{}
	}
	e := &Engine{
		src:       cfg.Source,
		snk:       cfg.Sink,
		asm:       assembler.New(cfg.Assembler),
		logger:    logger,
		collector: cfg.Collector,
		notifier:  cfg.Notifier,
		meta:      meta,
	}
	if d, ok := cfg.Sink.(sink.Deferred); ok {
		e.deferred = true
		d.OnPersisted(e.persisted)
	}
	return e
}

// Run reads until the source is exhausted or a fatal error occurs.
// Returns:
//   - nil: source ended cleanly (io.EOF or source.ErrIdle)
//   - *Error with Kind=ErrorSource: source read failure
//   - *Error with Kind=ErrorSink: sink write failure
//   - *Error with Kind=ErrorCanceled: context canceled
//
// An image still in progress when Run returns is dropped.
func (e *Engine) Run(ctx context.Context) error {
	defer e.asm.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: ErrorCanceled, Err: err}
		}

		dg, err := e.src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, source.ErrIdle):
				e.logger.Debug("source ended", map[string]any{
					"source": e.src.Describe(),
					"reason": err.Error(),
				})
				return nil
			case ctx.Err() != nil:
				return &Error{Kind: ErrorCanceled, Err: ctx.Err()}
			}
			e.collector.IncSourceReadError()
			e.logger.Error("source read failed", map[string]any{
				"source": e.src.Describe(),
				"error":  err.Error(),
			})
			return &Error{Kind: ErrorSource, Err: err}
		}

		if err := e.HandleDatagram(ctx, dg); err != nil {
			return err
		}
	}
}

// HandleDatagram feeds one datagram through the decoder and assembler.
// Returns a *Error with Kind=ErrorSink if a completed image could not be
// written; every other outcome is non-fatal.
func (e *Engine) HandleDatagram(ctx context.Context, dg source.Datagram) error {
	e.collector.ObserveDatagram(len(dg.Data))

	frag, err := wire.Decode(dg.Data)
	if err != nil {
		reason := "unknown"
		var de *wire.DecodeError
		if errors.As(err, &de) {
			reason = de.Kind.String()
		}
		e.collector.IncRejected(reason)
		e.logger.Debug("datagram rejected", map[string]any{
			"reason": reason,
			"length": len(dg.Data),
			"addr":   dg.Addr,
		})
		return nil
	}

	res := e.asm.Add(frag)
	switch res.Status {
	case assembler.StatusIgnored:
		e.collector.IncIgnored(res.Reason.String())
		e.logger.Debug("fragment ignored", map[string]any{
			"reason":    res.Reason.String(),
			"kind":      frag.Kind.String(),
			"frame_id":  frag.FrameID,
			"stream_id": frag.StreamID,
		})
		return nil

	case assembler.StatusStarted:
		e.collector.IncAccepted()
		e.collector.IncImageStarted(res.Fallback, res.Discarded)
		if res.Discarded {
			e.logger.Debug("unfinished image discarded", map[string]any{
				"frame_id": frag.FrameID,
			})
		}
		if res.Fallback {
			e.logger.Debug("start marker not found, keeping raw body", map[string]any{
				"frame_id":  frag.FrameID,
				"stream_id": frag.StreamID,
			})
		}
		return nil

	case assembler.StatusAppended:
		e.collector.IncAccepted()
		return nil

	case assembler.StatusCompleted:
		e.collector.IncAccepted()
		return e.complete(ctx, dg)
	}

	return nil
}

func (e *Engine) complete(ctx context.Context, dg source.Datagram) error {
	img := e.asm.Image(dg.Ts)
	if img == nil {
		return nil
	}
	e.collector.IncImageCompleted(img.Size())

	if err := e.snk.WriteImage(ctx, img); err != nil {
		e.logger.Error("image write failed", map[string]any{
			"stream_id": img.StreamID,
			"frame_id":  img.FrameID,
			"error":     err.Error(),
		})
		return &Error{Kind: ErrorSink, Err: err}
	}

	if e.deferred {
		e.logger.Debug("image held for batch write", map[string]any{
			"stream_id": img.StreamID,
			"frame_id":  img.FrameID,
		})
		return nil
	}
	e.persisted(img)
	return nil
}

// persisted logs and announces an image the sink has stored.
func (e *Engine) persisted(img *types.Image) {
	location := ""
	if l, ok := e.snk.(sink.Locator); ok {
		location = l.Location(img)
	}

	e.logger.Info("image completed", map[string]any{
		"stream_id": img.StreamID,
		"frame_id":  img.FrameID,
		"size":      img.Size(),
		"fragments": img.Fragments,
		"fallback":  img.Fallback,
		"location":  location,
	})

	if e.notifier != nil {
		e.notifier.Submit(adapter.NewImageCompletedEvent(e.meta, img, location))
	}
}
