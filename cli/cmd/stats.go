package cmd

import (
	"errors"
	"fmt"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/camrelay/cli/reader"
	"github.com/justapithecus/camrelay/cli/render"
	"github.com/justapithecus/camrelay/cli/tui"
	"github.com/justapithecus/camrelay/lode"
)

// StatsCommand returns the stats command.
// Stats reads a finished session back from Lode storage.
func StatsCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:     "session-id",
			Usage:    "Session to report",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Restrict the lookup to this source",
		},
		&cli.BoolFlag{
			Name:  "images",
			Usage: "List the stored images instead of session counters",
		},
	}
	flags = append(flags, storageFlags()...)
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show stored statistics for a session",
		Flags:  append(flags, TUIReadOnlyFlags()...),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	storage := resolveStorage(c, cfg)
	if err := validateStorage(storage); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ds, err := buildReadDataset(storage)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	rd := reader.NewLodeReader(ds)

	sessionID := c.String("session-id")
	if c.Bool("images") {
		items, err := rd.ListImages(c.Context, sessionID)
		if err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}
		if c.Bool("tui") {
			return r.RenderTUI(tui.ViewStatsImages, items)
		}
		return r.Render(items)
	}

	stats, err := rd.StatsSession(c.Context, sessionID, c.String("source"))
	if err != nil {
		if errors.Is(err, lode.ErrNoMetricsFound) {
			return cli.Exit(fmt.Sprintf("no metrics found for session %s", sessionID), exitUsage)
		}
		return fmt.Errorf("failed to read session stats: %w", err)
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsSession, stats)
	}
	return r.Render(stats)
}

// buildReadDataset opens the dataset for reading on the configured backend.
func buildReadDataset(s storageChoice) (lodelibrary.Dataset, error) {
	dataset := s.dataset
	if dataset == "" {
		dataset = lode.DefaultDataset
	}
	switch s.backend {
	case "fs", "":
		return lode.NewReadDatasetFS(dataset, s.path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(s.path)
		return lode.NewReadDatasetS3(dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.region,
			Endpoint:     s.endpoint,
			UsePathStyle: s.pathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", s.backend)
	}
}
