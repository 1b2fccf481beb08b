// Package lode persists completed images and session metrics to Lode.
//
// Images land as JPEG files under the session's Hive partition; each image
// also gets an "image" record in the dataset so sessions can be queried
// without listing files. Session metrics are written as a "metrics" record
// when the session ends.
package lode

import (
	"context"
	"time"

	"github.com/justapithecus/camrelay/metrics"
	"github.com/justapithecus/camrelay/sink"
	"github.com/justapithecus/camrelay/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "camrelay"

// DeriveDay computes the partition day from session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration.
// All partition keys are required.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Source is the partition key for the camera or capture origin.
	Source string
	// Day is the partition key derived from session start time (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the receiver session.
	SessionID string
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteImages stores a batch of completed images.
	// Must preserve ordering within the batch.
	WriteImages(ctx context.Context, imgs []*types.Image) error

	// WriteMetrics stores a session metrics record.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error

	// ImagePath returns the storage path an image is written to.
	ImagePath(img *types.Image) string

	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed implementation of sink.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteImage implements sink.Sink.
func (s *Sink) WriteImage(ctx context.Context, img *types.Image) error {
	return s.client.WriteImages(ctx, []*types.Image{img})
}

// WriteImages implements sink.BatchSink.
func (s *Sink) WriteImages(ctx context.Context, imgs []*types.Image) error {
	return s.client.WriteImages(ctx, imgs)
}

// Location implements sink.Locator.
func (s *Sink) Location(img *types.Image) string {
	return s.client.ImagePath(img)
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var (
	_ sink.BatchSink = (*Sink)(nil)
	_ sink.Locator   = (*Sink)(nil)
)
