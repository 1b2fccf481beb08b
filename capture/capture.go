// Package capture reads and writes raw datagram capture files.
//
// A capture file is a sequence of frames. Each frame is a 4-byte big-endian
// length prefix followed by a msgpack-encoded Record.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (1 MiB), including length prefix.
	MaxFrameSize = 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Record is one captured datagram.
type Record struct {
	// Ts is the receive timestamp in RFC 3339 UTC with nanoseconds.
	Ts string `msgpack:"ts"`
	// Addr is the sender address, if known.
	Addr string `msgpack:"addr,omitempty"`
	// Data is the raw datagram.
	Data []byte `msgpack:"data"`
}

// Time parses Ts. A malformed timestamp yields the zero time.
func (r *Record) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if this error is fatal (stop reading).
// Partial and oversized frames leave the stream unsynchronized.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// Reader decodes length-prefixed msgpack records from a stream.
type Reader struct {
	reader io.Reader
}

// NewReader creates a new capture reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: r}
}

// ReadFrame reads a single frame and returns its raw msgpack payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (r *Reader) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(r.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(r.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// Read reads and decodes the next record.
// Errors are as for ReadFrame, plus *FrameError with Kind=FrameErrorDecode.
func (r *Reader) Read() (*Record, error) {
	payload, err := r.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeRecord(payload)
}

// DecodeRecord decodes a frame payload as a Record.
func DecodeRecord(payload []byte) (*Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode capture record",
			Err:  err,
		}
	}
	return &rec, nil
}

// Writer encodes records as length-prefixed msgpack frames.
// It does not buffer; wrap the destination in a bufio.Writer if needed.
type Writer struct {
	writer io.Writer
}

// NewWriter creates a new capture writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{writer: w}
}

// Write encodes rec and writes it as one frame.
func (w *Writer) Write(rec *Record) error {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode capture record: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("capture record of %d bytes exceeds maximum %d", len(payload), MaxPayloadSize)
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(payload)))
	copy(frame[LengthPrefixSize:], payload)

	_, err = w.writer.Write(frame)
	return err
}

// WriteDatagram records one datagram received at ts from addr.
func (w *Writer) WriteDatagram(ts time.Time, addr string, data []byte) error {
	return w.Write(&Record{
		Ts:   ts.UTC().Format(time.RFC3339Nano),
		Addr: addr,
		Data: data,
	})
}
