// Package types defines the shared data model for camrelay.
package types

// HeaderSize is the size of the fixed fragment header in bytes.
const HeaderSize = 12

// Kind is the position of a fragment within an image's fragment sequence.
type Kind uint8

// Fragment kinds.
const (
	KindFirst Kind = iota + 1
	KindMiddle
	KindEnd
)

// String returns the wire-independent name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFirst:
		return "first"
	case KindMiddle:
		return "middle"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Fragment is one decoded datagram belonging to an image transfer.
// Payload holds the whole datagram, header included; consumers re-slice it.
type Fragment struct {
	Kind       Kind
	ChunkIndex uint16
	FrameID    uint32
	StreamID   uint32
	Payload    []byte
}

// Body returns the bytes following the fixed header.
func (f *Fragment) Body() []byte {
	return f.Payload[HeaderSize:]
}
