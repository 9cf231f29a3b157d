package cyphal

import "log/slog"

// subscribeConfig carries the tunable knobs of a subscription. It plays
// the role of the teacher library's Config struct: a private, defaulted
// value built by applying a chain of SubscribeOption closures, modeled on
// aznet's Option/applyConfig pattern.
type subscribeConfig struct {
	payloadSizeMax int
	timeout        Duration
}

// SubscribeOption configures a call to SubscribeMessage, SubscribeRequest
// or SubscribeResponse.
type SubscribeOption func(*subscribeConfig)

// WithPayloadSizeMax sets the maximum assembled payload size in bytes,
// excluding the transfer CRC. Transfers longer than this are dropped and
// counted as errors. The zero value (the default if this option is
// omitted) accepts only empty payloads, so callers normally set this
// explicitly.
func WithPayloadSizeMax(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		if n >= 0 {
			c.payloadSizeMax = n
		}
	}
}

// WithTransferIDTimeout sets the transfer-id timeout duration: the
// maximum time between the first and last frame of a transfer, and the
// window within which a repeated transfer ID is treated as a duplicate.
// Zero is valid and means "no multi-frame assembly survives past the next
// frame, and dedup expires immediately" — it must never be used as a
// divisor, and this package never does.
func WithTransferIDTimeout(d Duration) SubscribeOption {
	return func(c *subscribeConfig) {
		c.timeout = d
	}
}

func applySubscribeOptions(opts []SubscribeOption) subscribeConfig {
	var cfg subscribeConfig
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// ReceiverOption configures a Receiver at construction time.
type ReceiverOption func(*Receiver)

// WithLogger attaches a structured logger used for optional debug traces
// of dropped, duplicate, and CRC-failed frames (spec section 7: "the
// engine never logs to the outside world beyond optional debug traces").
// The default is a no-op logger; passing nil restores it.
func WithLogger(logger *slog.Logger) ReceiverOption {
	return func(r *Receiver) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		r.log = logger
	}
}
