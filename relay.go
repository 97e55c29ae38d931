package virtualcam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/gllmAR/freenect-virtualcam/internal/pipeline"
)

const (
	defaultRetryDelay   = 5 * time.Second
	defaultPollInterval = 10 * time.Millisecond
)

// Relay is the reconnect supervisor. It owns one device session at a
// time, retries on any failure with a fixed delay, and re-enters the
// forwarding loop on success. There is no terminal state: Run loops
// until its context is cancelled.
//
// State machine:
//
//	Disconnected → Opening → Configuring → Streaming
//	      ↑ ________________ (any failure) ________↲
type Relay struct {
	mode    StreamMode
	depth   bool
	factory DeviceFactory
	sink    Sink

	retryDelay   time.Duration
	pollInterval time.Duration
	clk          clock.Clock

	frames    *pipeline.Frames
	forwarder *pipeline.Forwarder

	state      atomic.Int32
	attempts   atomic.Uint64
	reconnects atomic.Uint64
}

// NewRelay creates a relay with fail-fast validation: at least one of
// video or depth must be enabled, and the device factory and sink are
// required. Zero durations and a nil clock take defaults.
func NewRelay(cfg RelayConfig) (*Relay, error) {
	if cfg.Mode == ModeNone && !cfg.Depth {
		return nil, fmt.Errorf("virtualcam: no stream enabled (need a video mode or depth)")
	}
	if cfg.Mode != ModeNone && cfg.Mode != ModeInfrared && cfg.Mode != ModeColorRGB {
		return nil, fmt.Errorf("virtualcam: invalid stream mode %d", cfg.Mode)
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("virtualcam: device factory is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("virtualcam: sink is required")
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	frames := pipeline.NewFrames()
	r := &Relay{
		mode:         cfg.Mode,
		depth:        cfg.Depth,
		factory:      cfg.Factory,
		sink:         cfg.Sink,
		retryDelay:   retryDelay,
		pollInterval: pollInterval,
		clk:          clk,
		frames:       frames,
		forwarder: pipeline.NewForwarder(pipeline.ForwarderConfig{
			Frames:   frames,
			Sink:     cfg.Sink,
			Video:    cfg.Mode != ModeNone,
			Depth:    cfg.Depth,
			Interval: pollInterval,
			Clock:    clk,
		}),
	}
	r.state.Store(int32(StateDisconnected))
	return r, nil
}

// Run executes reconnect cycles until ctx is cancelled. Every failure —
// open, negotiation, stream start, or a runtime event while streaming —
// tears down the session symmetrically and retries after the fixed
// delay. Run never returns on its own; the return value is ctx.Err().
func (r *Relay) Run(ctx context.Context) error {
	slog.Info("relay: starting",
		"mode", r.mode.String(),
		"depth", r.depth,
		"retry_delay", r.retryDelay,
	)

	for {
		if err := ctx.Err(); err != nil {
			r.setState(StateDisconnected)
			return err
		}

		attempt := uuid.New().String()
		r.attempts.Add(1)
		r.setState(StateOpening)

		dev, err := r.factory(r.frames)
		if err != nil {
			slog.Error("relay: device session creation failed", "error", err, "attempt", attempt)
			if !r.backoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		if err := dev.Open(); err != nil {
			slog.Error("relay: device open failed, retrying",
				"error", err,
				"attempt", attempt,
				"retry_delay", r.retryDelay,
			)
			r.teardown(dev, attempt)
			if !r.backoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		r.setState(StateConfiguring)
		if err := r.configure(dev); err != nil {
			slog.Error("relay: stream setup failed, reconnecting",
				"error", err,
				"attempt", attempt,
			)
			r.teardown(dev, attempt)
			if !r.backoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		r.setState(StateStreaming)
		slog.Info("relay: device connected, streaming to virtual sink",
			"attempt", attempt,
			"mode", r.mode.String(),
			"depth", r.depth,
		)

		err = r.forwarder.Run(ctx, dev)
		r.teardown(dev, attempt)

		if ctxErr := ctx.Err(); ctxErr != nil {
			r.setState(StateDisconnected)
			return ctxErr
		}

		r.reconnects.Add(1)
		slog.Warn("relay: device connection lost, reconnecting",
			"error", err,
			"attempt", attempt,
			"retry_delay", r.retryDelay,
		)
		if !r.backoff(ctx) {
			return ctx.Err()
		}
	}
}

// configure negotiates and starts whichever of video and depth are
// enabled, video first. Any error leaves already-started streams for
// the caller's teardown.
func (r *Relay) configure(dev Device) error {
	if r.mode != ModeNone {
		if err := dev.ConfigureVideo(r.mode); err != nil {
			return err
		}
	}
	if r.depth {
		if err := dev.ConfigureDepth(); err != nil {
			return err
		}
	}
	return dev.StartStreams()
}

// teardown releases the session in reverse acquisition order: stop
// streams, then close the device and driver context. Errors are
// combined and logged, never propagated — teardown always completes.
func (r *Relay) teardown(dev Device, attempt string) {
	err := multierr.Append(dev.StopStreams(), dev.Close())
	if err != nil {
		slog.Warn("relay: session teardown reported errors", "error", err, "attempt", attempt)
	}
}

// backoff re-enters Disconnected and waits out the fixed retry delay.
// Returns false when ctx was cancelled during the wait.
func (r *Relay) backoff(ctx context.Context) bool {
	r.setState(StateDisconnected)
	select {
	case <-ctx.Done():
		return false
	case <-r.clk.After(r.retryDelay):
		return true
	}
}

func (r *Relay) setState(s State) {
	r.state.Store(int32(s))
}

// State returns the current supervisor state.
func (r *Relay) State() State {
	return State(r.state.Load())
}

// Stats returns a snapshot of relay operational state. Thread-safe;
// counters are read atomically and accumulate across reconnect cycles.
func (r *Relay) Stats() RelayStats {
	return RelayStats{
		State:             r.State(),
		Attempts:          r.attempts.Load(),
		Reconnects:        r.reconnects.Load(),
		VideoFrames:       r.forwarder.VideoFrames(),
		DepthFrames:       r.forwarder.DepthFrames(),
		VideoDrops:        r.frames.VideoDrops(),
		DepthDrops:        r.frames.DepthDrops(),
		SinkWriteFailures: r.forwarder.WriteFailures(),
	}
}

// IsRetryable reports whether err belongs to the retried taxonomy.
// Everything the device layer produces is retryable; the relay never
// treats a device fault as fatal.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable) ||
		errors.Is(err, ErrModeNegotiation) ||
		errors.Is(err, ErrStreamStart) ||
		errors.Is(err, ErrRuntimeEvent)
}
