// Package virtualcam relays depth and video frames from a Kinect-class
// sensor into an OS-level virtual video device, surviving device
// disconnects indefinitely.
//
// The package implements the acquisition/buffering/forwarding pipeline and
// the reconnect state machine. Frames arrive asynchronously from the
// device driver into single-slot overwrite mailboxes (lossy, latest-wins),
// a single forwarding goroutine drains them, converts depth samples to
// 8-bit grayscale, and writes complete frames to the virtual sink.
//
// # Quick Start
//
//	sink := loopback.New("/dev/video2")
//	if err := sink.Init(virtualcam.SinkConfigFor(virtualcam.ModeColorRGB, true)); err != nil {
//	    slog.Warn("virtual sink unavailable, continuing", "error", err)
//	}
//
//	relay, err := virtualcam.NewRelay(virtualcam.RelayConfig{
//	    Mode:    virtualcam.ModeColorRGB,
//	    Depth:   true,
//	    Factory: freenect.New,
//	    Sink:    sink,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	relay.Run(ctx) // blocks until ctx is cancelled
//
// # Architecture
//
// Two capability interfaces decouple the pipeline from the platform:
// Device (the sensor session, constructed fresh on every reconnect
// attempt) and Sink (the virtual video device, selected at composition
// time per platform). The Relay owns the state machine
// Disconnected → Opening → Configuring → Streaming and tears down
// symmetrically on any failure before retrying with a fixed delay.
//
// There is no fatal condition in steady state: device faults trigger a
// full reconnect cycle, sink faults are logged and skipped. The process
// is designed to run unattended until externally terminated.
package virtualcam
