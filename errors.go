package virtualcam

import "errors"

// Error taxonomy. Every device-level fault maps to one of these
// sentinels and is handled by full reconnection with a fixed delay;
// sink faults are logged and skipped. None of them is fatal.
var (
	// ErrDeviceUnavailable signals that driver init or device open
	// failed (no sensor present). Retried indefinitely.
	ErrDeviceUnavailable = errors.New("virtualcam: device unavailable")

	// ErrModeNegotiation signals that the driver rejected a video or
	// depth mode during configuration.
	ErrModeNegotiation = errors.New("virtualcam: mode negotiation rejected")

	// ErrStreamStart signals that the driver rejected starting a
	// configured stream.
	ErrStreamStart = errors.New("virtualcam: stream start rejected")

	// ErrRuntimeEvent signals that event processing reported a negative
	// status while streaming (device unplugged or protocol error).
	// Treated as a disconnect, not a crash.
	ErrRuntimeEvent = errors.New("virtualcam: device event processing failed")

	// ErrSinkInit signals that the virtual sink could not be negotiated.
	// Logged once; the acquisition pipeline keeps operating.
	ErrSinkInit = errors.New("virtualcam: sink initialization failed")

	// ErrShortWrite signals that a sink write consumed fewer bytes than
	// one complete frame.
	ErrShortWrite = errors.New("virtualcam: short frame write")
)
