package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/camrelay/assembler"
	camlode "github.com/justapithecus/camrelay/lode"
	"github.com/justapithecus/camrelay/source"
	"github.com/justapithecus/camrelay/wire"
)

// StatusRejected marks rows the decoder rejected.
const StatusRejected = "rejected"

// InspectCapture decodes every datagram of src and runs it through an
// assembler, recording what happened to each one. Nothing is written.
func InspectCapture(ctx context.Context, src source.Source, opts assembler.Options) (*InspectCaptureResponse, error) {
	resp := &InspectCaptureResponse{
		Summary:   CaptureSummary{Input: src.Describe()},
		Fragments: []FragmentRow{},
	}
	asm := assembler.New(opts)
	streams := make(map[uint32]struct{})

	for i := 0; ; i++ {
		dg, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read datagram %d: %w", i, err)
		}

		row := FragmentRow{Index: i, Addr: dg.Addr, Length: len(dg.Data)}
		if !dg.Ts.IsZero() {
			row.Ts = dg.Ts.UTC().Format(time.RFC3339Nano)
		}
		resp.Summary.Datagrams++

		frag, err := wire.Decode(dg.Data)
		if err != nil {
			row.Status = StatusRejected
			var de *wire.DecodeError
			if errors.As(err, &de) {
				row.Reason = de.Kind.String()
			}
			resp.Summary.Rejected++
			resp.Fragments = append(resp.Fragments, row)
			continue
		}

		row.Kind = frag.Kind.String()
		row.ChunkIndex = frag.ChunkIndex
		row.FrameID = frag.FrameID
		row.StreamID = frag.StreamID
		streams[frag.StreamID] = struct{}{}

		res := asm.Add(frag)
		row.Status = res.Status.String()
		switch res.Status {
		case assembler.StatusIgnored:
			row.Reason = res.Reason.String()
			resp.Summary.Ignored++
		case assembler.StatusStarted:
			resp.Summary.ImagesStarted++
			if res.Fallback {
				row.Reason = "fallback"
				resp.Summary.ImagesFallback++
			}
		case assembler.StatusCompleted:
			resp.Summary.ImagesCompleted++
		}
		resp.Fragments = append(resp.Fragments, row)
	}

	resp.Summary.Streams = len(streams)
	return resp, nil
}

// Reader abstracts read-only access to stored sessions.
type Reader interface {
	// StatsSession returns the latest metrics of a session.
	// Empty sessionID and source match any session.
	StatsSession(ctx context.Context, sessionID, source string) (*SessionStats, error)

	// ListImages returns stored images of a session, oldest first.
	ListImages(ctx context.Context, sessionID string) ([]ImageItem, error)
}

// LodeReader reads sessions from a Lode dataset.
type LodeReader struct {
	ds lode.Dataset
}

// NewLodeReader creates a reader over ds.
func NewLodeReader(ds lode.Dataset) *LodeReader {
	return &LodeReader{ds: ds}
}

// StatsSession implements Reader.
func (r *LodeReader) StatsSession(ctx context.Context, sessionID, source string) (*SessionStats, error) {
	record, err := camlode.QueryLatestMetrics(ctx, r.ds, sessionID, source)
	if err != nil {
		return nil, err
	}
	m, err := camlode.ParseMetricsRecord(record)
	if err != nil {
		return nil, err
	}

	outcome := "unknown"
	switch {
	case m.SessionsFailed > 0:
		outcome = "failed"
	case m.SessionsCompleted > 0:
		outcome = "completed"
	}

	return &SessionStats{
		SessionID:         m.SessionID,
		Source:            m.Source,
		Input:             m.Input,
		Output:            m.Output,
		EndedAt:           m.Ts,
		Outcome:           outcome,
		DatagramsReceived: m.DatagramsReceived,
		BytesReceived:     m.BytesReceived,
		DatagramsRejected: m.DatagramsRejected,
		RejectedByReason:  m.RejectedByReason,
		FragmentsAccepted: m.FragmentsAccepted,
		FragmentsIgnored:  m.FragmentsIgnored,
		IgnoredByReason:   m.IgnoredByReason,
		ImagesStarted:     m.ImagesStarted,
		ImagesCompleted:   m.ImagesCompleted,
		ImagesDiscarded:   m.ImagesDiscarded,
		ImagesFallback:    m.ImagesFallback,
		ImageBytes:        m.ImageBytes,
		SinkWriteFailure:  m.SinkWriteFailure,
		NotifyFailure:     m.NotifyFailure,
	}, nil
}

// ListImages implements Reader.
func (r *LodeReader) ListImages(ctx context.Context, sessionID string) ([]ImageItem, error) {
	records, err := camlode.QueryImages(ctx, r.ds, sessionID)
	if err != nil {
		return nil, err
	}
	items := make([]ImageItem, 0, len(records))
	for _, rec := range records {
		img, err := camlode.ParseImageRecord(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, ImageItem{
			Ts:        img.Ts,
			StreamID:  img.StreamID,
			FrameID:   img.FrameID,
			SizeBytes: img.SizeBytes,
			Fragments: img.Fragments,
			Fallback:  img.Fallback,
			Path:      img.Path,
		})
	}
	return items, nil
}

var _ Reader = (*LodeReader)(nil)
