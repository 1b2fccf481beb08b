package types

import "time"

// ContentTypeJPEG is the content type of every emitted image.
const ContentTypeJPEG = "image/jpeg"

// Image is a completed frame handed to sinks.
// Data is owned by the Image; sinks may retain it.
type Image struct {
	StreamID       uint32
	FrameID        uint32
	LastChunkIndex uint16
	// Fragments is the number of fragments accepted into the image.
	Fragments int
	// Fallback is true when the first fragment carried no start-of-image
	// marker and the raw post-header bytes were used instead.
	Fallback   bool
	ReceivedAt time.Time
	Data       []byte
}

// Size returns the image size in bytes.
func (i *Image) Size() int64 {
	return int64(len(i.Data))
}
