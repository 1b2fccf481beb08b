package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/camrelay/metrics"
)

// ErrNoMetricsFound is returned when no metrics records exist in the dataset.
var ErrNoMetricsFound = errors.New("no metrics records found")

// SessionMetrics is a parsed metrics record.
type SessionMetrics struct {
	// Ts is when the session ended (RFC3339Nano).
	Ts string `json:"ts"`
	metrics.Snapshot
}

// QueryLatestMetrics finds and reads the most recent metrics record from Lode.
// Filters by sessionID and source if non-empty.
// Returns the raw record map or ErrNoMetricsFound if none exist.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, sessionID, source string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "camrelay/snapshots")
	}

	// Snapshots are ordered by creation time; walk latest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		if !snapshotHasKind(snap, RecordKindMetrics) {
			continue
		}
		if !snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}
		if !snapshotMatchesFilter(snap, "source", source) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("camrelay/snapshot/%s", snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are authoritative.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if record["record_kind"] != RecordKindMetrics {
				continue
			}
			if sessionID != "" && toString(record["session_id"]) != sessionID {
				continue
			}
			if source != "" && toString(record["source"]) != source {
				continue
			}
			return record, nil
		}
	}

	return nil, ErrNoMetricsFound
}

// QueryImages returns every image record of a session, oldest first.
// An empty sessionID returns images from all sessions.
func QueryImages(ctx context.Context, ds lode.Dataset, sessionID string) ([]map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "camrelay/snapshots")
	}

	var images []map[string]any
	for _, snap := range snapshots {
		if !snapshotHasKind(snap, RecordKindImage) {
			continue
		}
		if !snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("camrelay/snapshot/%s", snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindImage {
				continue
			}
			if sessionID != "" && toString(record["session_id"]) != sessionID {
				continue
			}
			images = append(images, record)
		}
	}
	return images, nil
}

// ParseMetricsRecord converts a metrics record to SessionMetrics.
// Handles both int64 (direct writes) and float64 (JSON round-trips) for numeric fields.
func ParseMetricsRecord(record map[string]any) (*SessionMetrics, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	m := &SessionMetrics{
		Ts: toString(record["ts"]),
		Snapshot: metrics.Snapshot{
			DatagramsReceived: toInt64(record["datagrams_received_total"]),
			BytesReceived:     toInt64(record["bytes_received_total"]),
			DatagramsRejected: toInt64(record["datagrams_rejected_total"]),
			RejectedByReason:  toCounts(record["rejected_by_reason"]),

			FragmentsAccepted: toInt64(record["fragments_accepted_total"]),
			FragmentsIgnored:  toInt64(record["fragments_ignored_total"]),
			IgnoredByReason:   toCounts(record["ignored_by_reason"]),
			ImagesStarted:     toInt64(record["images_started_total"]),
			ImagesCompleted:   toInt64(record["images_completed_total"]),
			ImagesDiscarded:   toInt64(record["images_discarded_total"]),
			ImagesFallback:    toInt64(record["images_fallback_total"]),
			ImageBytes:        toInt64(record["image_bytes_total"]),

			SinkWriteSuccess:  toInt64(record["sink_write_success_total"]),
			SinkWriteFailure:  toInt64(record["sink_write_failure_total"]),
			NotifySuccess:     toInt64(record["notify_success_total"]),
			NotifyFailure:     toInt64(record["notify_failure_total"]),
			SourceReadErrors:  toInt64(record["source_read_errors_total"]),
			SessionsCompleted: toInt64(record["sessions_completed_total"]),
			SessionsFailed:    toInt64(record["sessions_failed_total"]),

			Source:    toString(record["source"]),
			Input:     toString(record["input"]),
			Output:    toString(record["output"]),
			SessionID: toString(record["session_id"]),
		},
	}

	// The write path always populates these; missing values mean a malformed record.
	if m.Ts == "" {
		return nil, errors.New("metrics record missing required field: ts")
	}
	if m.SessionID == "" {
		return nil, errors.New("metrics record missing required field: session_id")
	}
	return m, nil
}

// ImageRecord is a parsed image record.
type ImageRecord struct {
	Ts        string
	StreamID  int64
	FrameID   int64
	SizeBytes int64
	Fragments int64
	Fallback  bool
	Path      string
	SessionID string
}

// ParseImageRecord converts an image record map to ImageRecord.
func ParseImageRecord(record map[string]any) (*ImageRecord, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}
	r := &ImageRecord{
		Ts:        toString(record["ts"]),
		StreamID:  toInt64(record["stream_id"]),
		FrameID:   toInt64(record["frame_id"]),
		SizeBytes: toInt64(record["size_bytes"]),
		Fragments: toInt64(record["fragments"]),
		Path:      toString(record["path"]),
		SessionID: toString(record["session_id"]),
	}
	r.Fallback, _ = record["fallback"].(bool)
	if r.Path == "" {
		return nil, errors.New("image record missing required field: path")
	}
	return r, nil
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a value to int64, handling float64 from JSON and int64 from direct writes.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// toCounts converts a reason-count map from either direct or JSON round-trip form.
func toCounts(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		out := make(map[string]int64, len(m))
		for k, val := range m {
			out[k] = toInt64(val)
		}
		return out
	default:
		return nil
	}
}
