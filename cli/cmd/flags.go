// Package cmd provides CLI commands for the camrelay binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes shared by the receiving commands (listen, replay, record).
const (
	exitSuccess     = 0
	exitUsage       = 1
	exitSourceError = 2
	exitSinkError   = 3
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// Shared flags for commands that open a session.
var (
	// ConfigFlag points at a camrelay.yaml file whose values act as defaults.
	ConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to camrelay.yaml (flags override file values)",
	}

	// LogLevelFlag sets the minimum log level written to stderr.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
		Value: "info",
	}

	// SourceFlag names the camera or capture origin.
	SourceFlag = &cli.StringFlag{
		Name:  "source",
		Usage: "Source name recorded with every image (e.g. camera name)",
	}

	// SessionIDFlag overrides the generated session ID.
	SessionIDFlag = &cli.StringFlag{
		Name:  "session-id",
		Usage: "Session ID (default: random UUID)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// storageFlags returns the Lode storage flags shared by receiving and
// reading commands.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "storage-dataset",
			Usage: "Lode dataset ID",
			Value: "camrelay",
		},
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Storage backend: fs or s3",
			Value: "fs",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for S3 backend (uses default chain if empty)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint URL for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Force path-style addressing for S3",
		},
	}
}

// receiveFlags returns the flags shared by listen and replay.
func receiveFlags() []cli.Flag {
	flags := []cli.Flag{
		ConfigFlag,
		LogLevelFlag,
		SourceFlag,
		SessionIDFlag,
		&cli.BoolFlag{
			Name:  "match-stream",
			Usage: "Require middle and end fragments to match the stream ID of the first",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Image output: stdout, dir, lode",
			Value: "stdout",
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "Directory for --output dir",
		},
		&cli.IntFlag{
			Name:  "batch-images",
			Usage: "Buffer this many images before writing (0 disables)",
		},
		&cli.Int64Flag{
			Name:  "batch-bytes",
			Usage: "Buffer this many image bytes before writing (0 disables)",
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Notification adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or redis:// URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-notification timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Retry attempts per notification",
			Value: -1,
		},
		&cli.IntFlag{
			Name:  "adapter-queue-size",
			Usage: "Pending notifications before new ones are dropped",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress the session summary",
		},
	}
	return append(flags, storageFlags()...)
}
