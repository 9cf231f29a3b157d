package uplink

import (
	"context"
	"time"
)

const (
	// DefaultContainerName is the append-blob container archived transfer
	// batches are written to.
	DefaultContainerName = "cyphal-archive"
	// DefaultQueueName is the Azure Storage Queue alerts are pushed to.
	DefaultQueueName = "cyphal-alerts"
	// DefaultTableName is the table holding the per-node registry.
	DefaultTableName = "cyphalnodes"

	// DefaultAlertThreshold is the number of new errors within
	// DefaultAlertWindow that triggers a fleet-monitoring alert.
	DefaultAlertThreshold = 16
	// DefaultAlertWindow is the rolling window the error threshold is
	// measured over.
	DefaultAlertWindow = time.Minute

	// DefaultFastPoll is the tick interval right after activity.
	DefaultFastPoll = 200 * time.Millisecond
	// DefaultSteadyPoll is the tick interval once the bus has been quiet.
	DefaultSteadyPoll = 5 * time.Second

	// DefaultRingCapacity bounds how many completed transfers a Recorder
	// buffers in memory between archive flushes.
	DefaultRingCapacity = 256
)

// Option configures a Recorder.
type Option func(*config)

type config struct {
	ctx context.Context

	containerName string
	queueName     string
	tableName     string

	alertThreshold uint64
	alertWindow    time.Duration

	fastPoll   time.Duration
	steadyPoll time.Duration

	ringCapacity int

	metrics Metrics
	encrypt bool
}

func defaultConfig() *config {
	return &config{
		ctx:            context.Background(),
		containerName:  DefaultContainerName,
		queueName:      DefaultQueueName,
		tableName:      DefaultTableName,
		alertThreshold: DefaultAlertThreshold,
		alertWindow:    DefaultAlertWindow,
		fastPoll:       DefaultFastPoll,
		steadyPoll:     DefaultSteadyPoll,
		ringCapacity:   DefaultRingCapacity,
		metrics:        NewDefaultMetrics(),
		encrypt:        true,
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithContext sets the base context for every SDK call the Recorder
// makes.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithNames overrides the archive container, alert queue, and registry
// table names. An empty string leaves the corresponding default in
// place.
func WithNames(container, queue, table string) Option {
	return func(c *config) {
		if container != "" {
			c.containerName = container
		}
		if queue != "" {
			c.queueName = queue
		}
		if table != "" {
			c.tableName = table
		}
	}
}

// WithAlertThreshold sets how many new errors within the alert window
// trigger a queued alert.
func WithAlertThreshold(n uint64) Option {
	return func(c *config) {
		if n > 0 {
			c.alertThreshold = n
		}
	}
}

// WithAlertWindow sets the rolling window the alert threshold is
// measured over.
func WithAlertWindow(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.alertWindow = d
		}
	}
}

// WithPoll sets the fast (post-activity) and steady (idle) tick
// intervals of the Recorder's adaptive poller.
func WithPoll(fast, steady time.Duration) Option {
	return func(c *config) {
		if fast > 0 {
			c.fastPoll = fast
		}
		if steady > 0 {
			c.steadyPoll = steady
		}
	}
}

// WithRingCapacity sets how many completed transfers the Recorder
// buffers between archive flushes. Older records are dropped once full.
func WithRingCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.ringCapacity = n
		}
	}
}

// WithMetrics installs a custom Metrics implementation. The default is
// DefaultMetrics, backed by atomic counters.
func WithMetrics(m Metrics) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithoutEncryption disables the Noise-encrypted envelope around
// archived batches, writing plain framed bytes instead. Intended for
// local debugging against an emulator only.
func WithoutEncryption() Option {
	return func(c *config) { c.encrypt = false }
}
