package receiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/camrelay/assembler"
	"github.com/justapithecus/camrelay/log"
	"github.com/justapithecus/camrelay/metrics"
	"github.com/justapithecus/camrelay/sink"
	"github.com/justapithecus/camrelay/source"
	"github.com/justapithecus/camrelay/types"
)

// DefaultFlushTimeout bounds the best-effort sink flush at session end.
const DefaultFlushTimeout = 30 * time.Second

// Outcome is the terminal state of a session.
type Outcome string

const (
	// OutcomeCompleted means the source ended cleanly.
	OutcomeCompleted Outcome = "completed"
	// OutcomeCanceled means the session was stopped by its context.
	OutcomeCanceled Outcome = "canceled"
	// OutcomeSourceError means the source failed.
	OutcomeSourceError Outcome = "source_error"
	// OutcomeSinkError means an image could not be written or flushed.
	OutcomeSinkError Outcome = "sink_error"
)

// OK reports whether the outcome counts as a successful session.
// Cancellation is the normal way to stop a listener.
func (o Outcome) OK() bool {
	return o == OutcomeCompleted || o == OutcomeCanceled
}

// MetricsWriter persists the final metrics snapshot of a session.
type MetricsWriter interface {
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error
}

// SessionConfig configures a single receiver session.
type SessionConfig struct {
	// Meta is the session identity.
	Meta *types.SessionMeta
	// Source supplies datagrams. Closed when the session ends.
	Source source.Source
	// Sink receives completed images. Flushed and closed when the session ends.
	Sink sink.Sink
	// Assembler tunes fragment matching.
	Assembler assembler.Options
	// Logger defaults to a logger on stderr at info level.
	Logger *log.Logger
	// Collector is the metrics collector for this session.
	// If nil, no metrics are recorded.
	Collector *metrics.Collector
	// Notifier is optional. The caller owns its lifecycle.
	Notifier Notifier
	// MetricsWriter is optional; receives the final snapshot.
	MetricsWriter MetricsWriter
	// FlushTimeout defaults to DefaultFlushTimeout.
	FlushTimeout time.Duration
}

// SessionResult represents the result of a session.
type SessionResult struct {
	Meta     *types.SessionMeta
	Outcome  Outcome
	Message  string
	Duration time.Duration
	// Err is the error that ended the session, nil on clean completion.
	Err error
	// Metrics is the final snapshot, taken after outcome accounting.
	Metrics metrics.Snapshot
}

// Validate checks the config for required fields.
func (c *SessionConfig) Validate() error {
	switch {
	case c.Meta == nil:
		return errors.New("session meta is required")
	case c.Meta.SessionID == "":
		return errors.New("session_id is required")
	case c.Source == nil:
		return errors.New("source is required")
	case c.Sink == nil:
		return errors.New("sink is required")
	}
	return nil
}

// RunSession runs one session end-to-end.
//
// Execution flow:
//  1. Run the receive loop until EOF, idle timeout, error or cancellation
//  2. Flush and close the sink (best effort, survives cancellation)
//  3. Close the source
//  4. Classify the outcome and record it
//  5. Persist the final metrics snapshot if a MetricsWriter is set
func RunSession(ctx context.Context, cfg *SessionConfig) (*SessionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.Meta, log.InfoLevel)
	}
	flushTimeout := cfg.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}

	start := time.Now()
	logger.Info("session started", map[string]any{
		"input": cfg.Source.Describe(),
	})

	engine := NewEngine(EngineConfig{
		Source:    cfg.Source,
		Sink:      cfg.Sink,
		Assembler: cfg.Assembler,
		Meta:      cfg.Meta,
		Logger:    logger,
		Collector: cfg.Collector,
		Notifier:  cfg.Notifier,
	})
	runErr := engine.Run(ctx)

	// WithoutCancel keeps context values while ignoring parent cancellation.
	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	flushErr := closeSink(flushCtx, cfg.Sink)
	flushCancel()
	if flushErr != nil {
		logger.Warn("sink flush failed (best effort)", map[string]any{
			"error": flushErr.Error(),
		})
	}

	if err := cfg.Source.Close(); err != nil {
		logger.Warn("source close failed", map[string]any{
			"error": err.Error(),
		})
	}

	result := &SessionResult{Meta: cfg.Meta}
	switch {
	case runErr == nil && flushErr == nil:
		result.Outcome = OutcomeCompleted
		result.Message = "source exhausted"
	case IsCanceledError(runErr):
		result.Outcome = OutcomeCanceled
		result.Message = fmt.Sprintf("session canceled: %v", runErr)
		if flushErr != nil {
			result.Outcome = OutcomeSinkError
			result.Message = fmt.Sprintf("sink flush failed: %v", flushErr)
			runErr = &Error{Kind: ErrorSink, Err: flushErr}
		}
	case IsSourceError(runErr):
		result.Outcome = OutcomeSourceError
		result.Message = fmt.Sprintf("source error: %v", runErr)
	case IsSinkError(runErr):
		result.Outcome = OutcomeSinkError
		result.Message = fmt.Sprintf("sink error: %v", runErr)
	default:
		// Clean loop exit but the final flush failed.
		result.Outcome = OutcomeSinkError
		result.Message = fmt.Sprintf("sink flush failed: %v", flushErr)
		runErr = &Error{Kind: ErrorSink, Err: flushErr}
	}
	result.Err = runErr

	if result.Outcome.OK() {
		cfg.Collector.IncSessionCompleted()
	} else {
		cfg.Collector.IncSessionFailed()
	}
	result.Duration = time.Since(start)
	result.Metrics = cfg.Collector.Snapshot()

	if cfg.MetricsWriter != nil {
		writeCtx, writeCancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		if err := cfg.MetricsWriter.WriteMetrics(writeCtx, result.Metrics, time.Now()); err != nil {
			logger.Warn("metrics write failed (best effort)", map[string]any{
				"error": err.Error(),
			})
		}
		writeCancel()
	}

	fields := map[string]any{
		"outcome":          string(result.Outcome),
		"duration":         result.Duration.String(),
		"images_completed": result.Metrics.ImagesCompleted,
	}
	if result.Outcome.OK() {
		logger.Info("session ended", fields)
	} else {
		fields["message"] = result.Message
		logger.Error("session ended", fields)
	}

	return result, nil
}

// closeSink flushes buffered images then closes the sink.
func closeSink(ctx context.Context, s sink.Sink) error {
	var flushErr error
	if f, ok := s.(sink.Flusher); ok {
		flushErr = f.Flush(ctx)
	}
	return errors.Join(flushErr, s.Close())
}
