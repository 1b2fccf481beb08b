package wire

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/justapithecus/camrelay/types"
)

func TestDecode_HeaderFields(t *testing.T) {
	tests := []struct {
		name       string
		code       uint16
		chunkIndex uint16
		frameID    uint32
		streamID   uint32
		want       types.Kind
	}{
		{"first", TypeFirst, 0, 1, 7, types.KindFirst},
		{"middle", TypeMiddle, 1, 1, 7, types.KindMiddle},
		{"end", TypeEnd, 2, 1, 7, types.KindEnd},
		{"max values", TypeMiddle, 0xffff, 0xffffffff, 0xffffffff, types.KindMiddle},
		{"high bits", TypeEnd, 0x8001, 0x80000001, 0x00010000, types.KindEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dg := AppendHeader(nil, Header{
				TypeCode:   tt.code,
				ChunkIndex: tt.chunkIndex,
				FrameID:    tt.frameID,
				StreamID:   tt.streamID,
			})
			dg = append(dg, 0x01, 0x02)

			frag, err := Decode(dg)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if frag.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", frag.Kind, tt.want)
			}
			if frag.ChunkIndex != tt.chunkIndex {
				t.Errorf("ChunkIndex = %d, want %d", frag.ChunkIndex, tt.chunkIndex)
			}
			if frag.FrameID != tt.frameID {
				t.Errorf("FrameID = %d, want %d", frag.FrameID, tt.frameID)
			}
			if frag.StreamID != tt.streamID {
				t.Errorf("StreamID = %d, want %d", frag.StreamID, tt.streamID)
			}
			if diff := cmp.Diff(dg, frag.Payload); diff != "" {
				t.Errorf("Payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_ByteOrder(t *testing.T) {
	dg := []byte{
		0x90, 0x60, // first
		0x01, 0x02, // chunk 0x0102
		0x0a, 0x0b, 0x0c, 0x0d, // frame 0x0a0b0c0d
		0x10, 0x20, 0x30, 0x40, // stream 0x10203040
	}

	frag, err := Decode(dg)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if frag.ChunkIndex != 0x0102 {
		t.Errorf("ChunkIndex = 0x%04x, want 0x0102", frag.ChunkIndex)
	}
	if frag.FrameID != 0x0a0b0c0d {
		t.Errorf("FrameID = 0x%08x, want 0x0a0b0c0d", frag.FrameID)
	}
	if frag.StreamID != 0x10203040 {
		t.Errorf("StreamID = 0x%08x, want 0x10203040", frag.StreamID)
	}
}

func TestDecode_Short(t *testing.T) {
	for n := 0; n < types.HeaderSize; n++ {
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			dg := make([]byte, n)
			if n >= 2 {
				dg[0], dg[1] = 0x90, 0x60
			}

			frag, err := Decode(dg)
			if frag != nil {
				t.Fatalf("Decode returned fragment for %d-byte datagram", n)
			}

			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected *DecodeError, got %T: %v", err, err)
			}
			if decErr.Kind != DecodeErrorShort {
				t.Errorf("Kind = %v, want %v", decErr.Kind, DecodeErrorShort)
			}
			if decErr.Length != n {
				t.Errorf("Length = %d, want %d", decErr.Length, n)
			}
		})
	}
}

func TestDecode_HeaderOnly(t *testing.T) {
	dg, err := Encode(types.KindEnd, 3, 9, 1, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	frag, err := Decode(dg)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(frag.Body()) != 0 {
		t.Errorf("len(Body()) = %d, want 0", len(frag.Body()))
	}
}

func TestDecode_UnknownType(t *testing.T) {
	codes := []uint16{0x0000, 0x9061, 0x8061, 0x80e1, 0x60e0, 0xffff, 0x6090}

	for _, code := range codes {
		t.Run(fmt.Sprintf("0x%04x", code), func(t *testing.T) {
			dg := AppendHeader(nil, Header{TypeCode: code, FrameID: 1})

			frag, err := Decode(dg)
			if frag != nil {
				t.Fatal("Decode returned fragment for unknown type")
			}
			if !IsRejected(err) {
				t.Fatalf("IsRejected(%v) = false, want true", err)
			}

			var decErr *DecodeError
			errors.As(err, &decErr)
			if decErr.Kind != DecodeErrorUnknownType {
				t.Errorf("Kind = %v, want %v", decErr.Kind, DecodeErrorUnknownType)
			}
			if decErr.TypeCode != code {
				t.Errorf("TypeCode = 0x%04x, want 0x%04x", decErr.TypeCode, code)
			}
		})
	}
}

func TestIsRejected_OtherErrors(t *testing.T) {
	if IsRejected(nil) {
		t.Error("IsRejected(nil) = true")
	}
	if IsRejected(errors.New("boom")) {
		t.Error("IsRejected(plain error) = true")
	}
	wrapped := fmt.Errorf("wrapped: %w", &DecodeError{Kind: DecodeErrorShort})
	if !IsRejected(wrapped) {
		t.Error("IsRejected(wrapped DecodeError) = false")
	}
}

func TestDecodeErrorKind_String(t *testing.T) {
	if got := DecodeErrorShort.String(); got != "short" {
		t.Errorf("DecodeErrorShort.String() = %q", got)
	}
	if got := DecodeErrorUnknownType.String(); got != "unknown_type" {
		t.Errorf("DecodeErrorUnknownType.String() = %q", got)
	}
}
