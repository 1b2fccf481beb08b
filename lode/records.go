package lode

import (
	"fmt"
	"time"

	"github.com/justapithecus/camrelay/metrics"
	"github.com/justapithecus/camrelay/types"
)

// RecordKind discriminator values. record_kind is also the last partition key.
const (
	RecordKindImage   = "image"
	RecordKindMetrics = "metrics"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"source", "day", "session_id", "record_kind"}

// imageFilename names an image file within the session's files/ prefix.
func imageFilename(img *types.Image) string {
	return fmt.Sprintf("stream-%d-frame-%d.jpg", img.StreamID, img.FrameID)
}

// toImageRecordMap converts a completed image to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any.
// Image bytes are stored as a file at path, not inline.
func toImageRecordMap(img *types.Image, path string, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":      RecordKindImage,
		"stream_id":        int64(img.StreamID),
		"frame_id":         int64(img.FrameID),
		"last_chunk_index": int64(img.LastChunkIndex),
		"fragments":        int64(img.Fragments),
		"fallback":         img.Fallback,
		"size_bytes":       img.Size(),
		"content_type":     types.ContentTypeJPEG,
		"path":             path,
		"ts":               img.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"source":           cfg.Source,
		"day":              cfg.Day,
		"session_id":       cfg.SessionID,
	}
}

// toMetricsRecordMap converts a session metrics snapshot to a map for Lode storage.
func toMetricsRecordMap(snap metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	return map[string]any{
		"record_kind": RecordKindMetrics,
		"ts":          completedAt.UTC().Format(time.RFC3339Nano),

		"datagrams_received_total": snap.DatagramsReceived,
		"bytes_received_total":     snap.BytesReceived,
		"datagrams_rejected_total": snap.DatagramsRejected,
		"rejected_by_reason":       copyCounts(snap.RejectedByReason),

		"fragments_accepted_total": snap.FragmentsAccepted,
		"fragments_ignored_total":  snap.FragmentsIgnored,
		"ignored_by_reason":        copyCounts(snap.IgnoredByReason),
		"images_started_total":     snap.ImagesStarted,
		"images_completed_total":   snap.ImagesCompleted,
		"images_discarded_total":   snap.ImagesDiscarded,
		"images_fallback_total":    snap.ImagesFallback,
		"image_bytes_total":        snap.ImageBytes,

		"sink_write_success_total": snap.SinkWriteSuccess,
		"sink_write_failure_total": snap.SinkWriteFailure,
		"notify_success_total":     snap.NotifySuccess,
		"notify_failure_total":     snap.NotifyFailure,
		"source_read_errors_total": snap.SourceReadErrors,
		"sessions_completed_total": snap.SessionsCompleted,
		"sessions_failed_total":    snap.SessionsFailed,

		"input":  snap.Input,
		"output": snap.Output,

		"source":     cfg.Source,
		"day":        cfg.Day,
		"session_id": cfg.SessionID,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
