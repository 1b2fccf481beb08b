package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/camrelay/adapter"
	"github.com/justapithecus/camrelay/adapter/redis"
	"github.com/justapithecus/camrelay/adapter/webhook"
	"github.com/justapithecus/camrelay/assembler"
	"github.com/justapithecus/camrelay/cli/config"
	"github.com/justapithecus/camrelay/lode"
	"github.com/justapithecus/camrelay/log"
	"github.com/justapithecus/camrelay/metrics"
	"github.com/justapithecus/camrelay/receiver"
	"github.com/justapithecus/camrelay/sink"
	"github.com/justapithecus/camrelay/source"
	"github.com/justapithecus/camrelay/types"
)

// notifyCloseTimeout bounds how long pending notifications may drain after
// the session ends.
const notifyCloseTimeout = 10 * time.Second

// storageChoice holds resolved Lode storage settings.
type storageChoice struct {
	dataset   string
	backend   string
	path      string // fs: directory, s3: bucket/prefix
	region    string
	endpoint  string
	pathStyle bool
}

// adapterChoice holds resolved notification adapter settings.
type adapterChoice struct {
	kind      string
	url       string
	channel   string
	headers   map[string]string
	timeout   time.Duration
	retries   int
	queueSize int
}

// receiveOptions holds everything a receiving command resolved from flags
// and the config file.
type receiveOptions struct {
	source      string
	sessionID   string
	logLevel    log.Level
	matchStream bool
	output      string
	outputDir   string
	batchImages int
	batchBytes  int64
	storage     storageChoice
	adapter     adapterChoice
	quiet       bool
}

// resolveReceiveOptions merges flags over cfg and validates the result.
// Errors are actionable and name the flag to fix.
func resolveReceiveOptions(c *cli.Context, cfg *config.Config) (*receiveOptions, error) {
	level, err := log.ParseLevel(resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.LogLevel })))
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	opts := &receiveOptions{
		source:      resolveString(c, "source", configVal(cfg, func(c *config.Config) string { return c.Source })),
		sessionID:   c.String("session-id"),
		logLevel:    level,
		matchStream: resolveBool(c, "match-stream", configVal(cfg, func(c *config.Config) bool { return c.Assembler.MatchStream })),
		output:      resolveString(c, "output", configVal(cfg, func(c *config.Config) string { return c.Output.Kind })),
		outputDir:   resolveString(c, "output-dir", configVal(cfg, func(c *config.Config) string { return c.Output.Dir })),
		batchImages: resolveInt(c, "batch-images", configVal(cfg, func(c *config.Config) int { return c.Output.BatchImages })),
		batchBytes:  resolveInt64(c, "batch-bytes", configVal(cfg, func(c *config.Config) int64 { return c.Output.BatchBytes })),
		storage:     resolveStorage(c, cfg),
		quiet:       c.Bool("quiet"),
	}
	if opts.sessionID == "" {
		opts.sessionID = uuid.NewString()
	}

	if opts.source == "" {
		return nil, errors.New("--source is required (or set source in config)")
	}
	if opts.batchImages < 0 || opts.batchBytes < 0 {
		return nil, errors.New("--batch-images and --batch-bytes must be >= 0")
	}

	switch opts.output {
	case "stdout":
	case "dir":
		if opts.outputDir == "" {
			return nil, errors.New("--output-dir is required when --output is dir")
		}
	case "lode":
		if err := validateStorage(opts.storage); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid --output %q (must be stdout, dir or lode)", opts.output)
	}

	ad, err := resolveAdapter(c, cfg)
	if err != nil {
		return nil, err
	}
	opts.adapter = ad
	return opts, nil
}

func resolveStorage(c *cli.Context, cfg *config.Config) storageChoice {
	return storageChoice{
		dataset:   resolveString(c, "storage-dataset", configVal(cfg, func(c *config.Config) string { return c.Storage.Dataset })),
		backend:   resolveString(c, "storage-backend", configVal(cfg, func(c *config.Config) string { return c.Storage.Backend })),
		path:      resolveString(c, "storage-path", configVal(cfg, func(c *config.Config) string { return c.Storage.Path })),
		region:    resolveString(c, "storage-region", configVal(cfg, func(c *config.Config) string { return c.Storage.Region })),
		endpoint:  resolveString(c, "storage-endpoint", configVal(cfg, func(c *config.Config) string { return c.Storage.Endpoint })),
		pathStyle: resolveBool(c, "storage-s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Storage.S3PathStyle })),
	}
}

func validateStorage(s storageChoice) error {
	if s.path == "" {
		return errors.New("--storage-path is required for lode storage")
	}
	switch s.backend {
	case "fs":
	case "s3":
		if bucket, _ := lode.ParseS3Path(s.path); bucket == "" {
			return fmt.Errorf("invalid --storage-path %q: s3 paths are bucket/prefix", s.path)
		}
	default:
		return fmt.Errorf("invalid --storage-backend %q (must be fs or s3)", s.backend)
	}
	return nil
}

func resolveAdapter(c *cli.Context, cfg *config.Config) (adapterChoice, error) {
	ad := adapterChoice{
		kind:      resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type })),
		url:       resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL })),
		channel:   resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
		timeout:   resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		queueSize: resolveInt(c, "adapter-queue-size", configVal(cfg, func(c *config.Config) int { return c.Adapter.QueueSize })),
		retries:   -1,
	}
	switch {
	case c.IsSet("adapter-retries"):
		ad.retries = c.Int("adapter-retries")
		if ad.retries < 0 {
			return ad, errors.New("--adapter-retries must be >= 0")
		}
	case cfg != nil && cfg.Adapter.Retries != nil:
		ad.retries = *cfg.Adapter.Retries
	}

	headers, err := parseHeaders(c.StringSlice("adapter-header"))
	if err != nil {
		return ad, err
	}
	ad.headers = configVal(cfg, func(c *config.Config) map[string]string { return c.Adapter.Headers })
	if len(headers) > 0 {
		merged := make(map[string]string, len(ad.headers)+len(headers))
		for k, v := range ad.headers {
			merged[k] = v
		}
		for k, v := range headers {
			merged[k] = v
		}
		ad.headers = merged
	}

	switch ad.kind {
	case "":
		if ad.url != "" {
			return ad, errors.New("--adapter-url requires --adapter")
		}
	case "webhook", "redis":
		if ad.url == "" {
			return ad, fmt.Errorf("--adapter-url is required for %s adapter", ad.kind)
		}
	default:
		return ad, fmt.Errorf("invalid --adapter %q (must be webhook or redis)", ad.kind)
	}
	return ad, nil
}

// parseHeaders parses key=value pairs.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (want key=value)", p)
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers, nil
}

// builtSink is the sink stack for one session.
type builtSink struct {
	sink sink.Sink
	// metrics persists the final snapshot; nil unless output is lode.
	metrics receiver.MetricsWriter
}

// buildSink assembles base sink, instrumentation and optional buffering.
// Buffered sits outermost so the session end flush reaches it.
func buildSink(opts *receiveOptions, meta *types.SessionMeta, stdout io.Writer, collector *metrics.Collector, logger *log.Logger) (*builtSink, error) {
	var (
		base    sink.Sink
		writer  receiver.MetricsWriter
		err     error
		lodeCfg = lode.Config{
			Dataset:   opts.storage.dataset,
			Source:    meta.Source,
			Day:       lode.DeriveDay(meta.StartedAt),
			SessionID: meta.SessionID,
		}
	)

	switch opts.output {
	case "stdout":
		base = sink.NewWriter(stdout)
	case "dir":
		base, err = sink.NewDir(opts.outputDir)
	case "lode":
		var client *lode.LodeClient
		client, err = buildLodeClient(lodeCfg, opts.storage)
		if err == nil {
			base = lode.NewSink(client)
			writer = client
		}
	default:
		err = fmt.Errorf("unknown output: %s", opts.output)
	}
	if err != nil {
		return nil, err
	}

	var s sink.Sink = sink.NewInstrumented(base, collector)
	if opts.batchImages > 0 || opts.batchBytes > 0 {
		s, err = sink.NewBuffered(s, sink.BufferedConfig{
			MaxImages: opts.batchImages,
			MaxBytes:  opts.batchBytes,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
	}
	return &builtSink{sink: s, metrics: writer}, nil
}

// buildLodeClient creates a Lode client for the configured backend.
func buildLodeClient(cfg lode.Config, s storageChoice) (*lode.LodeClient, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = lode.DefaultDataset
	}
	switch s.backend {
	case "fs", "":
		return lode.NewLodeClient(cfg, s.path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(s.path)
		return lode.NewLodeS3Client(cfg, lode.S3Config{
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

// buildAdapter creates the configured notification adapter, or nil.
func buildAdapter(ad adapterChoice) (adapter.Adapter, error) {
	switch ad.kind {
	case "":
		return nil, nil
	case "webhook":
		retries := ad.retries
		if retries < 0 {
			retries = webhook.DefaultRetries
		}
		return webhook.New(webhook.Config{
			URL:     ad.url,
			Headers: ad.headers,
			Timeout: ad.timeout,
			Retries: retries,
		})
	case "redis":
		retries := ad.retries
		if retries < 0 {
			retries = redis.DefaultRetries
		}
		return redis.New(redis.Config{
			URL:     ad.url,
			Channel: ad.channel,
			Timeout: ad.timeout,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter: %s", ad.kind)
	}
}

// newDispatcher wraps a in a Dispatcher that counts and logs results.
func newDispatcher(a adapter.Adapter, queueSize int, collector *metrics.Collector, logger *log.Logger) *adapter.Dispatcher {
	return adapter.NewDispatcher(a, queueSize, func(event *adapter.ImageCompletedEvent, err error) {
		collector.IncNotify(err == nil)
		if err != nil {
			logger.Warn("notification failed", map[string]any{
				"frame_id": event.FrameID,
				"error":    err.Error(),
			})
		}
	})
}

// withSignals returns a context canceled on SIGINT or SIGTERM.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runReceiver runs one session over src and maps the outcome to an exit code.
// src is owned by the session and closed when it ends.
func runReceiver(c *cli.Context, src source.Source, opts *receiveOptions) error {
	meta := &types.SessionMeta{
		SessionID: opts.sessionID,
		Source:    opts.source,
		Input:     src.Describe(),
		StartedAt: time.Now(),
	}
	logger := log.NewLogger(meta, opts.logLevel).WithOutput(c.App.ErrWriter)
	defer func() { _ = logger.Sync() }()

	collector := metrics.NewCollector(meta.Source, meta.Input, opts.output, meta.SessionID)

	built, err := buildSink(opts, meta, c.App.Writer, collector, logger)
	if err != nil {
		_ = src.Close()
		return cli.Exit(fmt.Sprintf("failed to create sink: %v", err), exitSinkError)
	}

	var dispatcher *adapter.Dispatcher
	ad, err := buildAdapter(opts.adapter)
	if err != nil {
		_ = src.Close()
		_ = built.sink.Close()
		return cli.Exit(fmt.Sprintf("failed to create adapter: %v", err), exitUsage)
	}
	if ad != nil {
		dispatcher = newDispatcher(ad, opts.adapter.queueSize, collector, logger)
	}

	ctx, stop := withSignals(c.Context)
	defer stop()

	cfg := &receiver.SessionConfig{
		Meta:          meta,
		Source:        src,
		Sink:          built.sink,
		Assembler:     assembler.Options{MatchStream: opts.matchStream},
		Logger:        logger,
		Collector:     collector,
		MetricsWriter: built.metrics,
	}
	// A nil *Dispatcher in the interface would not compare equal to nil.
	if dispatcher != nil {
		cfg.Notifier = dispatcher
	}

	result, err := receiver.RunSession(ctx, cfg)
	if dispatcher != nil {
		if cerr := dispatcher.Close(notifyCloseTimeout); cerr != nil {
			logger.Warn("adapter close failed", map[string]any{"error": cerr.Error()})
		}
	}
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	if !opts.quiet {
		printSessionResult(c.App.ErrWriter, result)
	}
	return cli.Exit("", outcomeToExitCode(result.Outcome))
}

func outcomeToExitCode(outcome receiver.Outcome) int {
	switch outcome {
	case receiver.OutcomeCompleted, receiver.OutcomeCanceled:
		return exitSuccess
	case receiver.OutcomeSourceError:
		return exitSourceError
	case receiver.OutcomeSinkError:
		return exitSinkError
	default:
		return exitSourceError
	}
}

func printSessionResult(w io.Writer, result *receiver.SessionResult) {
	m := result.Metrics
	fmt.Fprintf(w, "session %s: %s (%s)\n", result.Meta.SessionID, result.Outcome, result.Message)
	fmt.Fprintf(w, "  duration:  %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  datagrams: %d received, %d accepted, %d rejected\n",
		m.DatagramsReceived, m.FragmentsAccepted, m.DatagramsRejected)
	fmt.Fprintf(w, "  images:    %d started, %d completed, %d discarded, %d fallback\n",
		m.ImagesStarted, m.ImagesCompleted, m.ImagesDiscarded, m.ImagesFallback)
	if m.NotifySuccess+m.NotifyFailure > 0 {
		fmt.Fprintf(w, "  notify:    %d ok, %d failed\n", m.NotifySuccess, m.NotifyFailure)
	}
}
