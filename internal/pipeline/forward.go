package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// EventSource drives one round of device event processing per call.
// An error return is the runtime-event signal: the forwarding loop
// terminates and the caller tears down and reconnects.
type EventSource interface {
	PollEvents() error
}

// Sink consumes complete frames. Write failures (including short
// writes) are logged and never abort the loop.
type Sink interface {
	Write(frame []byte) error
}

// Forwarder is the single-threaded poller that drives device events,
// drains the mailboxes, converts formats, and writes to the sink.
//
// This is a busy-poll design: one iteration per cycle followed by a
// short fixed sleep, trading bounded CPU use for added latency. It is
// deliberately not event-driven wakeup.
//
// The Forwarder outlives device sessions; its counters accumulate
// across reconnect cycles.
type Forwarder struct {
	frames   *Frames
	sink     Sink
	video    bool
	depth    bool
	interval time.Duration
	clk      clock.Clock

	// scratch buffers, reused across cycles; touched only by Run
	videoBuf []byte
	depthRaw []uint16
	depthOut []byte

	videoFrames   atomic.Uint64
	depthFrames   atomic.Uint64
	writeFailures atomic.Uint64
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	Frames   *Frames
	Sink     Sink
	Video    bool          // drain the video mailbox
	Depth    bool          // drain and convert the depth mailbox
	Interval time.Duration // cycle sleep
	Clock    clock.Clock
}

// NewForwarder creates a forwarder over the given mailbox pair.
func NewForwarder(cfg ForwarderConfig) *Forwarder {
	return &Forwarder{
		frames:   cfg.Frames,
		sink:     cfg.Sink,
		video:    cfg.Video,
		depth:    cfg.Depth,
		interval: cfg.Interval,
		clk:      cfg.Clock,
	}
}

// Run executes the forwarding loop until the device reports a runtime
// event (the error is returned for the caller to act on) or ctx is
// cancelled (external shutdown, returns ctx.Err()).
//
// Per cycle:
//  1. Poll device events; a negative status ends the loop.
//  2. Drain the video mailbox and forward the bytes unmodified.
//  3. Drain the depth mailbox, convert samples to 8-bit grayscale,
//     forward the result.
//  4. Sleep the poll interval.
//
// Mailbox locks are held only for the copy; conversion and sink writes
// happen outside any lock.
func (f *Forwarder) Run(ctx context.Context, dev EventSource) error {
	for {
		if err := dev.PollEvents(); err != nil {
			return err
		}

		if f.video {
			if buf, ok := f.frames.video.Drain(f.videoBuf); ok {
				f.videoBuf = buf
				if err := f.sink.Write(buf); err != nil {
					f.writeFailures.Add(1)
					slog.Error("pipeline: video frame write failed", "error", err, "size", len(buf))
				} else {
					f.videoFrames.Add(1)
				}
			}
		}

		if f.depth {
			if raw, ok := f.frames.depth.Drain(f.depthRaw); ok {
				f.depthRaw = raw
				f.depthOut = DepthToGrey(f.depthOut, raw)
				if err := f.sink.Write(f.depthOut); err != nil {
					f.writeFailures.Add(1)
					slog.Error("pipeline: depth frame write failed", "error", err, "size", len(f.depthOut))
				} else {
					f.depthFrames.Add(1)
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.clk.After(f.interval):
		}
	}
}

// VideoFrames returns the count of video frames forwarded to the sink.
func (f *Forwarder) VideoFrames() uint64 { return f.videoFrames.Load() }

// DepthFrames returns the count of depth frames forwarded to the sink.
func (f *Forwarder) DepthFrames() uint64 { return f.depthFrames.Load() }

// WriteFailures returns the count of failed sink writes.
func (f *Forwarder) WriteFailures() uint64 { return f.writeFailures.Load() }
