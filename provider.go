package virtualcam

// FrameHandler receives raw frames from the device driver.
//
// Both methods are invoked asynchronously relative to the forwarding
// loop, in whatever thread context the driver chooses — a separate driver
// thread or reentrant invocation inside PollEvents. Implementations must
// be safe under either assumption.
//
// The slices are only valid for the duration of the call (the driver
// reuses its buffers); implementations must copy before returning.
type FrameHandler interface {
	// OnVideoFrame delivers one complete video frame (IR or RGB bytes).
	OnVideoFrame(data []byte)
	// OnDepthFrame delivers one complete depth frame as 11-bit samples
	// (expected domain 0–2047) in uint16 containers.
	OnDepthFrame(samples []uint16)
}

// Device is one sensor session: context plus device handle, exclusively
// owned by the relay for the session's lifetime.
//
// Lifecycle: Open → ConfigureVideo/ConfigureDepth → StartStreams →
// PollEvents (repeated) → StopStreams → Close. After any configuration or
// start failure the relay immediately stops whatever was already started
// and closes the session; no partial session survives a failed setup.
//
// Implementations must tolerate StopStreams and Close after partial
// setup (idempotent, release exactly what was acquired).
type Device interface {
	// Open initializes the driver context and opens the device.
	// Failure wraps ErrDeviceUnavailable.
	Open() error

	// ConfigureVideo negotiates the video mode (ModeInfrared or
	// ModeColorRGB). Failure wraps ErrModeNegotiation.
	ConfigureVideo(mode StreamMode) error

	// ConfigureDepth negotiates the 11-bit depth mode.
	// Failure wraps ErrModeNegotiation.
	ConfigureDepth() error

	// StartStreams starts every configured stream, video before depth.
	// Failure wraps ErrStreamStart; streams already started remain the
	// caller's responsibility to stop via StopStreams.
	StartStreams() error

	// PollEvents drives one round of driver event processing. Frame
	// callbacks may fire during or asynchronously around this call.
	// A negative driver status is returned wrapping ErrRuntimeEvent and
	// is the single trigger for full teardown and reconnect.
	PollEvents() error

	// StopStreams stops every started stream, depth before video
	// (reverse start order). Safe when nothing was started.
	StopStreams() error

	// Close releases the device and shuts down the driver context.
	// Safe after a failed Open.
	Close() error
}

// DeviceFactory constructs a fresh device session wired to the given
// frame handler. The relay calls it at the start of every reconnect
// attempt and destroys the result on any failure — sessions never
// survive a reconnect.
type DeviceFactory func(h FrameHandler) (Device, error)

// Sink is the OS-level virtual video device contract. Platform-specific
// beyond this interface; selected at composition time.
type Sink interface {
	// Init negotiates the target resolution and pixel format. May fail
	// (e.g. unsupported device), in which case the relay keeps running
	// and every subsequent Write fails and is logged — a deliberate
	// choice, not a fatal condition. Failure wraps ErrSinkInit.
	Init(cfg SinkConfig) error

	// Write consumes exactly one complete frame. A short write is a
	// failure (wrapping ErrShortWrite), never a partial success.
	Write(frame []byte) error
}
