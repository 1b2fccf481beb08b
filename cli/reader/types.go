// Package reader provides the read-side data access layer for the camrelay CLI.
//
// Read-only commands (inspect, stats) get their data from here and hand it
// to render or tui unchanged, so every output format shows the same payload.
package reader

// FragmentRow is one datagram of an inspected capture.
type FragmentRow struct {
	Index      int    `json:"index" yaml:"index"`
	Ts         string `json:"ts" yaml:"ts"`
	Addr       string `json:"addr" yaml:"addr"`
	Length     int    `json:"length" yaml:"length"`
	Kind       string `json:"kind" yaml:"kind"`
	ChunkIndex uint16 `json:"chunk_index" yaml:"chunk_index"`
	FrameID    uint32 `json:"frame_id" yaml:"frame_id"`
	StreamID   uint32 `json:"stream_id" yaml:"stream_id"`
	// Status is the assembler outcome, or "rejected" for undecodable datagrams.
	Status string `json:"status" yaml:"status"`
	// Reason explains rejected and ignored rows.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// CaptureSummary aggregates an inspected capture.
type CaptureSummary struct {
	Input           string `json:"input" yaml:"input"`
	Datagrams       int    `json:"datagrams" yaml:"datagrams"`
	Rejected        int    `json:"rejected" yaml:"rejected"`
	Ignored         int    `json:"ignored" yaml:"ignored"`
	ImagesStarted   int    `json:"images_started" yaml:"images_started"`
	ImagesCompleted int    `json:"images_completed" yaml:"images_completed"`
	ImagesFallback  int    `json:"images_fallback" yaml:"images_fallback"`
	Streams         int    `json:"streams" yaml:"streams"`
}

// InspectCaptureResponse is the payload of `camrelay inspect`.
type InspectCaptureResponse struct {
	Summary   CaptureSummary `json:"summary" yaml:"summary"`
	Fragments []FragmentRow  `json:"fragments" yaml:"fragments"`
}

// SessionStats is the payload of `camrelay stats`.
type SessionStats struct {
	SessionID         string           `json:"session_id" yaml:"session_id"`
	Source            string           `json:"source" yaml:"source"`
	Input             string           `json:"input" yaml:"input"`
	Output            string           `json:"output" yaml:"output"`
	EndedAt           string           `json:"ended_at" yaml:"ended_at"`
	Outcome           string           `json:"outcome" yaml:"outcome"`
	DatagramsReceived int64            `json:"datagrams_received" yaml:"datagrams_received"`
	BytesReceived     int64            `json:"bytes_received" yaml:"bytes_received"`
	DatagramsRejected int64            `json:"datagrams_rejected" yaml:"datagrams_rejected"`
	RejectedByReason  map[string]int64 `json:"rejected_by_reason" yaml:"rejected_by_reason"`
	FragmentsAccepted int64            `json:"fragments_accepted" yaml:"fragments_accepted"`
	FragmentsIgnored  int64            `json:"fragments_ignored" yaml:"fragments_ignored"`
	IgnoredByReason   map[string]int64 `json:"ignored_by_reason" yaml:"ignored_by_reason"`
	ImagesStarted     int64            `json:"images_started" yaml:"images_started"`
	ImagesCompleted   int64            `json:"images_completed" yaml:"images_completed"`
	ImagesDiscarded   int64            `json:"images_discarded" yaml:"images_discarded"`
	ImagesFallback    int64            `json:"images_fallback" yaml:"images_fallback"`
	ImageBytes        int64            `json:"image_bytes" yaml:"image_bytes"`
	SinkWriteFailure  int64            `json:"sink_write_failure" yaml:"sink_write_failure"`
	NotifyFailure     int64            `json:"notify_failure" yaml:"notify_failure"`
}

// ImageItem is one stored image listed by `camrelay stats --images`.
type ImageItem struct {
	Ts        string `json:"ts" yaml:"ts"`
	StreamID  int64  `json:"stream_id" yaml:"stream_id"`
	FrameID   int64  `json:"frame_id" yaml:"frame_id"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Fragments int64  `json:"fragments" yaml:"fragments"`
	Fallback  bool   `json:"fallback" yaml:"fallback"`
	Path      string `json:"path" yaml:"path"`
}
