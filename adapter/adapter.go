// Package adapter defines the notification boundary for completed images.
//
// Adapters publish image completion notifications to downstream systems.
// The receiver owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/justapithecus/camrelay/types"
)

// ContractVersion is the notification payload version.
const ContractVersion = "1.0.0"

// EventTypeImageCompleted is the event_type of every image notification.
const EventTypeImageCompleted = "image_completed"

// ImageCompletedEvent is the payload published when an image completes.
type ImageCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "image_completed"
	SessionID       string `json:"session_id"`
	Source          string `json:"source"`
	StreamID        uint32 `json:"stream_id"`
	FrameID         uint32 `json:"frame_id"`
	SizeBytes       int64  `json:"size_bytes"`
	Fragments       int    `json:"fragments"`
	Fallback        bool   `json:"fallback"`
	StoragePath     string `json:"storage_path,omitempty"`
	Timestamp       string `json:"timestamp"` // RFC 3339
}

// NewImageCompletedEvent builds the notification for a completed image.
// storagePath is where the sink put the image, empty if unknown.
func NewImageCompletedEvent(meta *types.SessionMeta, img *types.Image, storagePath string) *ImageCompletedEvent {
	return &ImageCompletedEvent{
		ContractVersion: ContractVersion,
		EventType:       EventTypeImageCompleted,
		SessionID:       meta.SessionID,
		Source:          meta.Source,
		StreamID:        img.StreamID,
		FrameID:         img.FrameID,
		SizeBytes:       img.Size(),
		Fragments:       img.Fragments,
		Fallback:        img.Fallback,
		StoragePath:     storagePath,
		Timestamp:       img.ReceivedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes image completion events to a downstream system.
type Adapter interface {
	// Publish sends an image completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ImageCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
