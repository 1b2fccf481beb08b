package lode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/camrelay/metrics"
	"github.com/justapithecus/camrelay/types"
)

// ErrMissingPartitionKey is returned when Config lacks a required partition key.
var ErrMissingPartitionKey = errors.New("lode config missing partition key")

// LodeClient is a Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys: source/day/session_id/record_kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// Validate checks that every partition key is set.
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return fmt.Errorf("%w: dataset", ErrMissingPartitionKey)
	case c.Source == "":
		return fmt.Errorf("%w: source", ErrMissingPartitionKey)
	case c.Day == "":
		return fmt.Errorf("%w: day", ErrMissingPartitionKey)
	case c.SessionID == "":
		return fmt.Errorf("%w: session_id", ErrMissingPartitionKey)
	}
	return nil
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}

	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// newDataset builds a dataset with the shared codec and layout.
func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// ImagePath returns the store path an image's JPEG is written to.
func (c *LodeClient) ImagePath(img *types.Image) string {
	return c.buildFilePath(imageFilename(img))
}

// WriteImages writes a batch of completed images to Lode.
//
// Every JPEG file is written before any image record, so a record never
// points at a missing file. If a file write fails no records are written;
// files already written stay and are overwritten on retry.
func (c *LodeClient) WriteImages(ctx context.Context, imgs []*types.Image) error {
	if len(imgs) == 0 {
		return nil
	}

	records := make([]any, 0, len(imgs))
	for _, img := range imgs {
		filename := imageFilename(img)
		if err := c.PutFile(ctx, filename, types.ContentTypeJPEG, img.Data); err != nil {
			return err
		}
		records = append(records, toImageRecordMap(img, c.buildFilePath(filename), c.config))
	}

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.Dataset)
	}
	return nil
}

// WriteMetrics writes a session metrics record to Lode.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	record := toMetricsRecordMap(snap, completedAt, c.config)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.Dataset)
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

var _ Client = (*LodeClient)(nil)

// StubClient is a test client that accepts writes without persisting.
type StubClient struct {
	mu sync.Mutex

	Images  []*types.Image
	Metrics []metrics.Snapshot
	Closed  bool

	// ErrorOnWrite, if non-nil, is returned by every write.
	ErrorOnWrite error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteImages implements Client.
func (c *StubClient) WriteImages(_ context.Context, imgs []*types.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrorOnWrite != nil {
		return c.ErrorOnWrite
	}
	c.Images = append(c.Images, imgs...)
	return nil
}

// WriteMetrics implements Client.
func (c *StubClient) WriteMetrics(_ context.Context, snap metrics.Snapshot, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrorOnWrite != nil {
		return c.ErrorOnWrite
	}
	c.Metrics = append(c.Metrics, snap)
	return nil
}

// ImagePath implements Client.
func (c *StubClient) ImagePath(img *types.Image) string {
	return "stub/" + imageFilename(img)
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
