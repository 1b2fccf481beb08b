// Package wire decodes the camera's fragment datagrams.
//
// Every datagram starts with a fixed 12-byte big-endian header:
//
//	offset 0  uint16 type code (0x9060 first, 0x8060 middle, 0x80e0 end)
//	offset 2  uint16 chunk index
//	offset 4  uint32 frame id
//	offset 8  uint32 stream id
//
// The remaining bytes are fragment payload.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/justapithecus/camrelay/types"
)

// Type codes carried in the first two header bytes.
const (
	TypeFirst  uint16 = 0x9060
	TypeMiddle uint16 = 0x8060
	TypeEnd    uint16 = 0x80e0
)

// DecodeErrorKind classifies why a datagram was rejected.
type DecodeErrorKind int

const (
	// DecodeErrorShort indicates a datagram shorter than the header.
	DecodeErrorShort DecodeErrorKind = iota
	// DecodeErrorUnknownType indicates an unrecognized type code.
	DecodeErrorUnknownType
)

// String returns the reason label used in logs and metrics.
func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeErrorShort:
		return "short"
	case DecodeErrorUnknownType:
		return "unknown_type"
	default:
		return "unknown"
	}
}

// DecodeError reports a rejected datagram.
// Rejections are never fatal: the caller drops the datagram and moves on.
type DecodeError struct {
	Kind DecodeErrorKind
	// Length is the datagram length.
	Length int
	// TypeCode is the offending type code (DecodeErrorUnknownType only).
	TypeCode uint16
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case DecodeErrorShort:
		return fmt.Sprintf("datagram too short: %d bytes, header needs %d", e.Length, types.HeaderSize)
	case DecodeErrorUnknownType:
		return fmt.Sprintf("unrecognized type code 0x%04x", e.TypeCode)
	default:
		return "datagram rejected"
	}
}

// IsRejected returns true if err is a datagram rejection.
func IsRejected(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr)
}

// KindFromType maps a header type code to a fragment kind.
// The second result is false for unrecognized codes.
func KindFromType(code uint16) (types.Kind, bool) {
	switch code {
	case TypeFirst:
		return types.KindFirst, true
	case TypeMiddle:
		return types.KindMiddle, true
	case TypeEnd:
		return types.KindEnd, true
	default:
		return 0, false
	}
}

// TypeFromKind maps a fragment kind to its header type code.
func TypeFromKind(kind types.Kind) (uint16, bool) {
	switch kind {
	case types.KindFirst:
		return TypeFirst, true
	case types.KindMiddle:
		return TypeMiddle, true
	case types.KindEnd:
		return TypeEnd, true
	default:
		return 0, false
	}
}

// Decode parses one datagram into a Fragment.
// The returned Fragment's Payload aliases datagram; the caller must not
// reuse the buffer while the Fragment is live.
//
// Errors:
//   - *DecodeError with Kind=DecodeErrorShort: fewer than 12 bytes
//   - *DecodeError with Kind=DecodeErrorUnknownType: unrecognized type code
func Decode(datagram []byte) (*types.Fragment, error) {
	if len(datagram) < types.HeaderSize {
		return nil, &DecodeError{Kind: DecodeErrorShort, Length: len(datagram)}
	}

	code := binary.BigEndian.Uint16(datagram[0:2])
	kind, ok := KindFromType(code)
	if !ok {
		return nil, &DecodeError{
			Kind:     DecodeErrorUnknownType,
			Length:   len(datagram),
			TypeCode: code,
		}
	}

	return &types.Fragment{
		Kind:       kind,
		ChunkIndex: binary.BigEndian.Uint16(datagram[2:4]),
		FrameID:    binary.BigEndian.Uint32(datagram[4:8]),
		StreamID:   binary.BigEndian.Uint32(datagram[8:12]),
		Payload:    datagram,
	}, nil
}
