package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/justapithecus/camrelay/types"
)

// Header is the decoded form of the 12-byte fragment header.
type Header struct {
	TypeCode   uint16
	ChunkIndex uint16
	FrameID    uint32
	StreamID   uint32
}

// AppendHeader appends the big-endian encoding of h to dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = binary.BigEndian.AppendUint16(dst, h.TypeCode)
	dst = binary.BigEndian.AppendUint16(dst, h.ChunkIndex)
	dst = binary.BigEndian.AppendUint32(dst, h.FrameID)
	dst = binary.BigEndian.AppendUint32(dst, h.StreamID)
	return dst
}

// Encode builds a datagram for the given fragment fields.
// Used by tests and the synthetic sender; the camera is the real producer.
func Encode(kind types.Kind, chunkIndex uint16, frameID, streamID uint32, body []byte) ([]byte, error) {
	code, ok := TypeFromKind(kind)
	if !ok {
		return nil, fmt.Errorf("cannot encode fragment kind %d", kind)
	}
	buf := make([]byte, 0, types.HeaderSize+len(body))
	buf = AppendHeader(buf, Header{
		TypeCode:   code,
		ChunkIndex: chunkIndex,
		FrameID:    frameID,
		StreamID:   streamID,
	})
	return append(buf, body...), nil
}

// Split fragments a JPEG into datagrams of at most maxSize bytes each,
// the way the camera does: a first fragment, zero or more middles, an end.
// preamble is prepended to the first fragment's body ahead of the image.
func Split(jpeg, preamble []byte, frameID, streamID uint32, maxSize int) ([][]byte, error) {
	chunk := maxSize - types.HeaderSize
	if chunk <= 0 {
		return nil, fmt.Errorf("max datagram size %d leaves no room for payload", maxSize)
	}

	body := append(append([]byte{}, preamble...), jpeg...)
	var parts [][]byte
	for start := 0; start < len(body) || len(parts) == 0; start += chunk {
		end := min(start+chunk, len(body))
		parts = append(parts, body[start:end])
	}
	// A single-part image still needs a first and an end fragment.
	if len(parts) == 1 {
		parts = append(parts, nil)
	}

	out := make([][]byte, 0, len(parts))
	for i, p := range parts {
		kind := types.KindMiddle
		switch i {
		case 0:
			kind = types.KindFirst
		case len(parts) - 1:
			kind = types.KindEnd
		}
		dg, err := Encode(kind, uint16(i), frameID, streamID, p)
		if err != nil {
			return nil, err
		}
		out = append(out, dg)
	}
	return out, nil
}
