// Package assembler reassembles JPEG images from decoded fragments.
//
// One image is tracked at a time. A first fragment always starts a new
// image and discards whatever was in progress. Middle and end fragments
// are appended in arrival order when their frame id matches the image in
// progress; everything else is ignored. An end fragment completes the image.
//
// The transition itself is the pure function Step over an explicit State
// value. Assembler owns one State for callers that want a single live
// instance.
package assembler

import (
	"bytes"
	"slices"
	"time"

	"github.com/justapithecus/camrelay/types"
)

// startMarker is the JPEG start-of-image marker.
var startMarker = []byte{0xff, 0xd8}

// Status is the outcome of feeding one fragment.
type Status int

const (
	// StatusIgnored means the fragment left the state unchanged.
	StatusIgnored Status = iota
	// StatusStarted means a first fragment began a new image.
	StatusStarted
	// StatusAppended means a middle fragment was appended.
	StatusAppended
	// StatusCompleted means an end fragment was appended and the image is complete.
	StatusCompleted
)

// String returns the status label used in logs.
func (s Status) String() string {
	switch s {
	case StatusIgnored:
		return "ignored"
	case StatusStarted:
		return "started"
	case StatusAppended:
		return "appended"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Reason explains an ignored fragment.
type Reason int

const (
	// ReasonNone is set for every non-ignored result.
	ReasonNone Reason = iota
	// ReasonFrameMismatch means the fragment's frame id differs from the image in progress.
	ReasonFrameMismatch
	// ReasonStreamMismatch means the stream id differs (only with Options.MatchStream).
	ReasonStreamMismatch
	// ReasonNoImage means no image was in progress.
	ReasonNoImage
)

// String returns the reason label used in logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonFrameMismatch:
		return "frame_mismatch"
	case ReasonStreamMismatch:
		return "stream_mismatch"
	case ReasonNoImage:
		return "no_image"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one Step.
type Result struct {
	Status Status
	Reason Reason
	// Fallback is set on StatusStarted when the first fragment had no
	// start marker and its raw post-header bytes were kept.
	Fallback bool
	// Discarded is set on StatusStarted when an unfinished image was dropped.
	Discarded bool
}

// Completed returns true if the step completed an image.
func (r Result) Completed() bool {
	return r.Status == StatusCompleted
}

// Options tunes append matching.
type Options struct {
	// MatchStream also requires the stream id to match on append.
	// Off by default: fragments are matched on frame id alone.
	MatchStream bool
}

// State is the image in progress. The zero value is the empty state.
type State struct {
	// Active is false when no image is in progress. A completed image
	// leaves Active false with its fields and Buffer intact until the
	// next first fragment.
	Active         bool
	StreamID       uint32
	FrameID        uint32
	LastChunkIndex uint16
	Fragments      int
	Fallback       bool
	Buffer         []byte
}

// Step applies one fragment to state and returns the next state.
// The input state is never written to, so several steps may branch from
// the same state.
func Step(state State, frag *types.Fragment, opts Options) (State, Result) {
	return step(state, frag, opts, false)
}

// step appends into Buffer's spare capacity only when inPlace is set,
// which is safe when the caller owns the sole reference to state.
func step(state State, frag *types.Fragment, opts Options, inPlace bool) (State, Result) {
	if frag.Kind == types.KindFirst {
		body, found := trimToStart(frag.Payload)
		return State{
			Active:         true,
			StreamID:       frag.StreamID,
			FrameID:        frag.FrameID,
			LastChunkIndex: frag.ChunkIndex,
			Fragments:      1,
			Fallback:       !found,
			Buffer:         bytes.Clone(body),
		}, Result{Status: StatusStarted, Fallback: !found, Discarded: state.Active}
	}

	if !state.Active {
		return state, Result{Status: StatusIgnored, Reason: ReasonNoImage}
	}
	if frag.FrameID != state.FrameID {
		return state, Result{Status: StatusIgnored, Reason: ReasonFrameMismatch}
	}
	if opts.MatchStream && frag.StreamID != state.StreamID {
		return state, Result{Status: StatusIgnored, Reason: ReasonStreamMismatch}
	}

	if !inPlace {
		state.Buffer = slices.Clip(state.Buffer)
	}
	state.Buffer = append(state.Buffer, frag.Body()...)
	state.LastChunkIndex = frag.ChunkIndex
	state.Fragments++

	if frag.Kind == types.KindEnd {
		state.Active = false
		return state, Result{Status: StatusCompleted}
	}
	return state, Result{Status: StatusAppended}
}

// trimToStart returns payload from the first start marker at or after the
// header. When there is none it returns the bytes after the header and false.
func trimToStart(payload []byte) ([]byte, bool) {
	body := payload[types.HeaderSize:]
	if i := bytes.Index(body, startMarker); i >= 0 {
		return body[i:], true
	}
	return body, false
}

// Assembler owns a single image in progress.
// It is not safe for concurrent use.
type Assembler struct {
	opts  Options
	state State
	last  Result
}

// New creates an assembler with the given options.
func New(opts Options) *Assembler {
	return &Assembler{opts: opts}
}

// Add feeds one fragment.
func (a *Assembler) Add(frag *types.Fragment) Result {
	a.state, a.last = step(a.state, frag, a.opts, true)
	return a.last
}

// Data returns a read-only view of the current buffer.
// It holds a complete image only right after Add returned a completed result,
// and is invalidated by the next Add.
func (a *Assembler) Data() []byte {
	return a.state.Buffer
}

// State returns the current state. The buffer is shared, not copied.
func (a *Assembler) State() State {
	return a.state
}

// Image returns an owned copy of the image just completed, or nil if the
// last Add did not complete one.
func (a *Assembler) Image(receivedAt time.Time) *types.Image {
	if !a.last.Completed() {
		return nil
	}
	return &types.Image{
		StreamID:       a.state.StreamID,
		FrameID:        a.state.FrameID,
		LastChunkIndex: a.state.LastChunkIndex,
		Fragments:      a.state.Fragments,
		Fallback:       a.state.Fallback,
		ReceivedAt:     receivedAt,
		Data:           bytes.Clone(a.state.Buffer),
	}
}

// Reset drops any image in progress.
func (a *Assembler) Reset() {
	a.state = State{}
	a.last = Result{}
}
