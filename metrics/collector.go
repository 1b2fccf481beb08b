// Package metrics provides per-session receiver counters.
//
// The Collector accumulates counters during a single receiver session. It is
// a leaf package with no internal dependencies; reasons are plain strings so
// callers own their label vocabulary.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Input
	DatagramsReceived int64 `json:"datagrams_received"`
	BytesReceived     int64 `json:"bytes_received"`
	DatagramsRejected int64 `json:"datagrams_rejected"`
	// RejectedByReason maps decode rejection reasons to counts.
	RejectedByReason map[string]int64 `json:"rejected_by_reason"`

	// Assembly
	FragmentsAccepted int64 `json:"fragments_accepted"`
	FragmentsIgnored  int64 `json:"fragments_ignored"`
	// IgnoredByReason maps ignore reasons to counts.
	IgnoredByReason map[string]int64 `json:"ignored_by_reason"`
	ImagesStarted   int64            `json:"images_started"`
	ImagesCompleted int64            `json:"images_completed"`
	ImagesDiscarded int64            `json:"images_discarded"`
	ImagesFallback  int64            `json:"images_fallback"`
	ImageBytes      int64            `json:"image_bytes"`

	// Output
	SinkWriteSuccess  int64 `json:"sink_write_success"`
	SinkWriteFailure  int64 `json:"sink_write_failure"`
	NotifySuccess     int64 `json:"notify_success"`
	NotifyFailure     int64 `json:"notify_failure"`
	SourceReadErrors  int64 `json:"source_read_errors"`
	SessionsCompleted int64 `json:"sessions_completed"`
	SessionsFailed    int64 `json:"sessions_failed"`

	// Dimensions (informational, set at construction)
	Source    string `json:"source"`
	Input     string `json:"input"`
	Output    string `json:"output"`
	SessionID string `json:"session_id"`
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	datagramsReceived int64
	bytesReceived     int64
	datagramsRejected int64
	rejectedByReason  map[string]int64

	fragmentsAccepted int64
	fragmentsIgnored  int64
	ignoredByReason   map[string]int64
	imagesStarted     int64
	imagesCompleted   int64
	imagesDiscarded   int64
	imagesFallback    int64
	imageBytes        int64

	sinkWriteSuccess  int64
	sinkWriteFailure  int64
	notifySuccess     int64
	notifyFailure     int64
	sourceReadErrors  int64
	sessionsCompleted int64
	sessionsFailed    int64

	source    string
	input     string
	output    string
	sessionID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(source, input, output, sessionID string) *Collector {
	return &Collector{
		rejectedByReason: make(map[string]int64),
		ignoredByReason:  make(map[string]int64),
		source:           source,
		input:            input,
		output:           output,
		sessionID:        sessionID,
	}
}

// --- Input ---

// ObserveDatagram records one received datagram of n bytes.
func (c *Collector) ObserveDatagram(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.datagramsReceived++
	c.bytesReceived += int64(n)
	c.mu.Unlock()
}

// IncRejected records a datagram the decoder rejected.
func (c *Collector) IncRejected(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.datagramsRejected++
	c.rejectedByReason[reason]++
	c.mu.Unlock()
}

// IncSourceReadError records a failed read from the datagram source.
func (c *Collector) IncSourceReadError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sourceReadErrors++
	c.mu.Unlock()
}

// --- Assembly ---

// IncAccepted records a fragment that changed the image in progress.
func (c *Collector) IncAccepted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fragmentsAccepted++
	c.mu.Unlock()
}

// IncIgnored records a fragment the assembler ignored.
func (c *Collector) IncIgnored(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fragmentsIgnored++
	c.ignoredByReason[reason]++
	c.mu.Unlock()
}

// IncImageStarted records a new image. fallback and discarded mirror the
// assembler result flags.
func (c *Collector) IncImageStarted(fallback, discarded bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.imagesStarted++
	if fallback {
		c.imagesFallback++
	}
	if discarded {
		c.imagesDiscarded++
	}
	c.mu.Unlock()
}

// IncImageCompleted records a completed image of n bytes.
func (c *Collector) IncImageCompleted(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.imagesCompleted++
	c.imageBytes += n
	c.mu.Unlock()
}

// --- Output ---
// Sink counters are per-call. One WriteImage call is one image.

// IncSinkWriteSuccess records a successful sink write.
func (c *Collector) IncSinkWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkWriteSuccess++
	c.mu.Unlock()
}

// IncSinkWriteFailure records a failed sink write.
func (c *Collector) IncSinkWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkWriteFailure++
	c.mu.Unlock()
}

// IncNotify records a notification attempt outcome.
func (c *Collector) IncNotify(ok bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if ok {
		c.notifySuccess++
	} else {
		c.notifyFailure++
	}
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionCompleted records a session that ended cleanly.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsCompleted++
	c.mu.Unlock()
}

// IncSessionFailed records a session that ended on an error.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsFailed++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		DatagramsReceived: c.datagramsReceived,
		BytesReceived:     c.bytesReceived,
		DatagramsRejected: c.datagramsRejected,
		RejectedByReason:  copyCounts(c.rejectedByReason),

		FragmentsAccepted: c.fragmentsAccepted,
		FragmentsIgnored:  c.fragmentsIgnored,
		IgnoredByReason:   copyCounts(c.ignoredByReason),
		ImagesStarted:     c.imagesStarted,
		ImagesCompleted:   c.imagesCompleted,
		ImagesDiscarded:   c.imagesDiscarded,
		ImagesFallback:    c.imagesFallback,
		ImageBytes:        c.imageBytes,

		SinkWriteSuccess:  c.sinkWriteSuccess,
		SinkWriteFailure:  c.sinkWriteFailure,
		NotifySuccess:     c.notifySuccess,
		NotifyFailure:     c.notifyFailure,
		SourceReadErrors:  c.sourceReadErrors,
		SessionsCompleted: c.sessionsCompleted,
		SessionsFailed:    c.sessionsFailed,

		Source:    c.source,
		Input:     c.input,
		Output:    c.output,
		SessionID: c.sessionID,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
