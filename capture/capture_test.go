package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"
)

// encodeFrame encodes a payload with length prefix.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func TestWriterReader_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 2, 3, 12, 0, 0, 123456789, time.UTC)
	datagrams := [][]byte{
		{0x90, 0x60, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1, 0xff, 0xd8},
		{0x80, 0x60, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0x01},
		{0x80, 0xe0, 0, 2, 0, 0, 0, 1, 0, 0, 0, 1},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i, dg := range datagrams {
		if err := w.WriteDatagram(ts.Add(time.Duration(i)*time.Millisecond), "10.0.0.5:40000", dg); err != nil {
			t.Fatalf("WriteDatagram failed: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, want := range datagrams {
		rec, err := r.Read()
		if err != nil {
			t.Fatalf("record %d: Read failed: %v", i, err)
		}
		if diff := cmp.Diff(want, rec.Data); diff != "" {
			t.Errorf("record %d: data mismatch (-want +got):\n%s", i, diff)
		}
		if rec.Addr != "10.0.0.5:40000" {
			t.Errorf("record %d: Addr = %q", i, rec.Addr)
		}
		if got := rec.Time(); !got.Equal(ts.Add(time.Duration(i) * time.Millisecond)) {
			t.Errorf("record %d: Time = %v", i, got)
		}
	}

	if _, err := r.Read(); err != io.EOF {
		t.Errorf("expected io.EOF after last record, got %v", err)
	}
}

func TestReader_EmptyStream(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReader_PartialLengthPrefix(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x00, 0x00}))
	_, err := r.ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T: %v", err, err)
	}
	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %v, want FrameErrorPartial", frameErr.Kind)
	}
	if !IsFatalFrameError(err) {
		t.Error("partial frame should be fatal")
	}
}

func TestReader_PartialPayload(t *testing.T) {
	frame := encodeFrame([]byte("hello world"))
	r := NewReader(bytes.NewReader(frame[:len(frame)-3]))
	_, err := r.ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorPartial {
		t.Fatalf("expected partial FrameError, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected wrapped io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReader_TooLarge(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)

	_, err := NewReader(bytes.NewReader(prefix[:])).ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Fatalf("expected too-large FrameError, got %v", err)
	}
	if !frameErr.IsFatal() {
		t.Error("oversized frame should be fatal")
	}
}

func TestReader_DecodeError(t *testing.T) {
	frame := encodeFrame([]byte{0xc1}) // never-used msgpack code
	_, err := NewReader(bytes.NewReader(frame)).Read()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorDecode {
		t.Fatalf("expected decode FrameError, got %v", err)
	}
	if IsFatalFrameError(err) {
		t.Error("decode error should not be fatal")
	}
}

func TestReader_ForeignEncoder(t *testing.T) {
	// Records written by other tools only need the same msgpack keys.
	payload, err := msgpack.Marshal(map[string]any{
		"ts":   "2026-01-01T00:00:00Z",
		"data": []byte{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	rec, err := NewReader(bytes.NewReader(encodeFrame(payload))).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, rec.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	if rec.Addr != "" {
		t.Errorf("Addr = %q, want empty", rec.Addr)
	}
}

func TestRecord_TimeMalformed(t *testing.T) {
	rec := &Record{Ts: "yesterday"}
	if !rec.Time().IsZero() {
		t.Errorf("Time() = %v, want zero", rec.Time())
	}
}
