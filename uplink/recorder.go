package uplink

import (
	"context"
	"fmt"
	"time"

	"github.com/atsika/cyphalcan/cyphal"
)

// Recorder is the black-box flight recorder: it buffers completed
// transfers, periodically archives them (encrypted) to blob storage,
// raises a queued alert when the receiver's error rate crosses a
// threshold, and keeps a node-sighting registry table up to date. It
// owns no socket and never touches cyphal.Receiver.Accept directly —
// the caller's pump loop feeds it via Observe and drives it via Tick,
// mirroring how the teacher's metricsDriver wraps a Driver rather than
// replacing its call sites.
type Recorder struct {
	cfg *config

	archive  *archiver
	alert    *alerter
	registry *registry
	cipher   *archiveCipher

	poll *adaptivePoll

	ring []Record

	registered map[registryKey]nodeEntry

	lastErrorCount  uint64
	errorWindowBase uint64
	windowStart     time.Time
}

type registryKey struct {
	port cyphal.PortId
	node cyphal.NodeId
}

// NewRecorder opens the archive container, alert queue, and registry
// table at the given storage endpoint and returns a ready Recorder.
func NewRecorder(ep *Endpoint, opts ...Option) (*Recorder, error) {
	cfg := applyOptions(opts)

	archive, err := newArchiver(cfg.ctx, ep, cfg.containerName)
	if err != nil {
		return nil, fmt.Errorf("uplink: open archive: %w", err)
	}
	alert, err := newAlerter(cfg.ctx, ep, cfg.queueName)
	if err != nil {
		return nil, fmt.Errorf("uplink: open alert queue: %w", err)
	}
	reg, err := newRegistry(cfg.ctx, ep, cfg.tableName)
	if err != nil {
		return nil, fmt.Errorf("uplink: open registry table: %w", err)
	}

	var cipher *archiveCipher
	if cfg.encrypt {
		cipher, err = newArchiveCipher()
		if err != nil {
			return nil, fmt.Errorf("uplink: establish archive cipher: %w", err)
		}
	}

	return &Recorder{
		cfg:        cfg,
		archive:    archive,
		alert:      alert,
		registry:   reg,
		cipher:     cipher,
		poll:       newAdaptivePoll(cfg.fastPoll, cfg.steadyPoll),
		ring:       make([]Record, 0, cfg.ringCapacity),
		registered: make(map[registryKey]nodeEntry),
	}, nil
}

// Observe buffers one completed transfer for the next archive flush and
// updates its source node's registry entry in memory. A full ring drops
// the oldest record rather than blocking the caller's Accept loop.
func (r *Recorder) Observe(tr *cyphal.Transfer) {
	rec := RecordFromTransfer(tr)
	if len(r.ring) >= r.cfg.ringCapacity {
		r.ring = r.ring[1:]
	}
	r.ring = append(r.ring, rec)
	r.poll.reset()

	if rec.Source != nil {
		key := registryKey{port: rec.Port, node: *rec.Source}
		entry := r.registered[key]
		entry.LastSeen = uint32(rec.Timestamp)
		entry.TransferCount++
		r.registered[key] = entry
	}
}

// Metrics returns the Metrics implementation this Recorder reports into,
// so a caller can wire it into its own telemetry export (e.g. a
// PrometheusCollector) without reaching into unexported config.
func (r *Recorder) Metrics() Metrics {
	return r.cfg.metrics
}

// NextTick reports how long the caller should wait before calling Tick
// again, backing off toward the steady interval when nothing has been
// Observed recently.
func (r *Recorder) NextTick() time.Duration {
	return r.poll.next()
}

// Tick flushes any buffered transfers to the archive, checks the error
// counter against the alert threshold, and upserts the in-memory
// registry deltas. now is used only for the alert window (registry
// last-seen values come from the transfers' own timestamps); it is
// caller-supplied so tests never depend on wall-clock time.
func (r *Recorder) Tick(ctx context.Context, now time.Time, transferCount, errorCount uint64) error {
	if err := r.flushArchive(ctx); err != nil {
		return err
	}
	if err := r.checkAlert(ctx, now, errorCount); err != nil {
		return err
	}
	return r.flushRegistry(ctx)
}

func (r *Recorder) flushArchive(ctx context.Context) error {
	if len(r.ring) == 0 {
		return nil
	}
	framed := encodeRecords(r.ring)
	payload := framed
	if r.cipher != nil {
		sealed, err := r.cipher.Seal(framed)
		if err != nil {
			return fmt.Errorf("uplink: seal archive batch: %w", err)
		}
		payload = sealed
	}
	if err := r.archive.Append(ctx, payload); err != nil {
		return fmt.Errorf("uplink: archive batch: %w", err)
	}
	r.cfg.metrics.IncrementArchiveWrite()
	r.cfg.metrics.IncrementBytesArchived(int64(len(payload)))
	r.ring = r.ring[:0]
	return nil
}

func (r *Recorder) checkAlert(ctx context.Context, now time.Time, errorCount uint64) error {
	if r.windowStart.IsZero() || now.Sub(r.windowStart) > r.cfg.alertWindow {
		r.windowStart = now
		r.errorWindowBase = errorCount
	}
	delta := errorCount - r.errorWindowBase
	if delta < r.cfg.alertThreshold {
		r.lastErrorCount = errorCount
		return nil
	}
	msg := fmt.Sprintf("error_count crossed %d within %s (total %d)", r.cfg.alertThreshold, r.cfg.alertWindow, errorCount)
	if err := r.alert.Alert(ctx, msg); err != nil {
		return fmt.Errorf("uplink: send alert: %w", err)
	}
	r.cfg.metrics.IncrementAlertSent()
	// Re-arm the window so a sustained error rate alerts again instead of
	// going silent after the first notification.
	r.windowStart = now
	r.errorWindowBase = errorCount
	r.lastErrorCount = errorCount
	return nil
}

// flushRegistry re-upserts every known node's current counters. The map
// is never cleared: TransferCount in the registry is cumulative for the
// life of the Recorder, not a per-tick delta, so every row must be
// rewritten with its running total each time.
func (r *Recorder) flushRegistry(ctx context.Context) error {
	for key, entry := range r.registered {
		if err := r.registry.Upsert(ctx, uint16(key.port), uint8(key.node), entry); err != nil {
			return fmt.Errorf("uplink: upsert registry row: %w", err)
		}
		r.cfg.metrics.IncrementRegistryUpsert()
	}
	return nil
}
