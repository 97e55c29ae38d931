package virtualcam

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Frame dimensions are fixed by the sensor's medium resolution mode.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// StreamMode selects the video variant carried on the virtual sink.
// Infrared and ColorRGB are mutually exclusive; depth streaming is an
// independent toggle (RelayConfig.Depth) that may combine with either.
type StreamMode int

const (
	// ModeNone disables the video stream (depth-only operation).
	ModeNone StreamMode = iota
	// ModeInfrared streams 8-bit grayscale infrared frames.
	ModeInfrared
	// ModeColorRGB streams 24-bit interleaved RGB frames.
	ModeColorRGB
)

// String returns a human-readable string representation of the mode.
func (m StreamMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeInfrared:
		return "ir"
	case ModeColorRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// PixelFormat is the wire format negotiated with the virtual sink.
type PixelFormat int

const (
	// PixelGrey8 is 8-bit grayscale, one byte per pixel.
	PixelGrey8 PixelFormat = iota
	// PixelRGB24 is 24-bit interleaved RGB, three bytes per pixel.
	PixelRGB24
)

// BytesPerPixel returns the per-pixel byte width of the format.
func (p PixelFormat) BytesPerPixel() int {
	if p == PixelRGB24 {
		return 3
	}
	return 1
}

// String returns a human-readable string representation of the format.
func (p PixelFormat) String() string {
	if p == PixelRGB24 {
		return "RGB24"
	}
	return "GREY8"
}

// SinkConfig describes the resolution and pixel format the virtual sink
// must negotiate before any frame write.
type SinkConfig struct {
	Width  int
	Height int
	Format PixelFormat
}

// FrameSize returns the exact byte count of one complete frame. Every
// sink write must consume exactly this many bytes; anything less is a
// short write and therefore a failure.
func (c SinkConfig) FrameSize() int {
	return c.Width * c.Height * c.Format.BytesPerPixel()
}

// SinkConfigFor derives the sink configuration from the enabled streams:
// infrared and depth-only map to 8-bit grayscale, RGB maps to 24-bit
// interleaved RGB. Resolution is always 640×480.
//
// Note: with RGB video and depth enabled on the same sink, depth frames
// do not match the negotiated RGB frame size and their writes will be
// reported as short-write failures. Sharing one virtual device between
// two formats is not recommended.
func SinkConfigFor(mode StreamMode, depth bool) SinkConfig {
	cfg := SinkConfig{Width: FrameWidth, Height: FrameHeight, Format: PixelGrey8}
	if mode == ModeColorRGB {
		cfg.Format = PixelRGB24
	}
	return cfg
}

// State is the reconnect supervisor state.
type State int32

const (
	// StateDisconnected means no device session exists (initial state,
	// and the state re-entered after every failure while the retry delay
	// elapses).
	StateDisconnected State = iota
	// StateOpening means a session is being created and opened.
	StateOpening
	// StateConfiguring means stream modes are being negotiated and started.
	StateConfiguring
	// StateStreaming means the forwarding loop is running.
	StateStreaming
)

// String returns a human-readable string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateOpening:
		return "opening"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// RelayConfig contains configuration for the relay supervisor.
type RelayConfig struct {
	// Mode is the video variant to stream (required unless Depth is set).
	Mode StreamMode
	// Depth enables the depth stream alongside (or instead of) video.
	Depth bool
	// Factory constructs a fresh device session per reconnect attempt
	// (required). Sessions are never reused across attempts.
	Factory DeviceFactory
	// Sink receives complete frames (required). Must be initialized by
	// the caller; initialization failure is deliberately not fatal.
	Sink Sink
	// RetryDelay is the fixed delay between reconnect attempts.
	// Defaults to 5 seconds.
	RetryDelay time.Duration
	// PollInterval is the forwarding loop cycle interval.
	// Defaults to 10 milliseconds.
	PollInterval time.Duration
	// Clock allows tests to inject a mock clock for the retry delay and
	// poll interval. Defaults to the wall clock.
	Clock clock.Clock
}

// RelayStats is a snapshot of relay operational state.
//
// Counters are process-lifetime: they accumulate across reconnect cycles.
type RelayStats struct {
	// State is the current supervisor state.
	State State
	// Attempts counts reconnect cycles begun (including the first).
	Attempts uint64
	// Reconnects counts teardowns triggered by a runtime event while
	// streaming (device unplugged or protocol error).
	Reconnects uint64
	// VideoFrames and DepthFrames count frames forwarded to the sink.
	VideoFrames uint64
	DepthFrames uint64
	// VideoDrops and DepthDrops count mailbox overwrites of an unread
	// frame (consumer slower than the driver). Lossy by design.
	VideoDrops uint64
	DepthDrops uint64
	// SinkWriteFailures counts failed or short sink writes. The loop
	// continues to the next cycle after each one.
	SinkWriteFailures uint64
}
