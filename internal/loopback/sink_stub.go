//go:build !linux

// Package loopback writes frames into an OS-level virtual video device.
// Only the Linux v4l2loopback backend is implemented; on other
// platforms Init fails and the acquisition pipeline keeps running with
// every write reported as a failure.
package loopback

import (
	"fmt"
	"runtime"

	virtualcam "github.com/gllmAR/freenect-virtualcam"
)

// Sink is the unimplemented virtual device stub for non-Linux targets.
type Sink struct {
	path string
}

// New creates a stub sink for the given device path.
func New(path string) *Sink {
	return &Sink{path: path}
}

// Init always fails on this platform.
func (s *Sink) Init(cfg virtualcam.SinkConfig) error {
	return fmt.Errorf("%w: virtual device registration not implemented on %s", virtualcam.ErrSinkInit, runtime.GOOS)
}

// Write always fails on this platform.
func (s *Sink) Write(frame []byte) error {
	return fmt.Errorf("loopback: virtual device not available on %s", runtime.GOOS)
}

// Close is a no-op.
func (s *Sink) Close() error { return nil }
