//go:build !linux || !cgo

package freenect

import (
	"fmt"

	virtualcam "github.com/gllmAR/freenect-virtualcam"
)

// New reports that the libfreenect backend is unavailable on this
// platform. The simulated backend (internal/sim) works everywhere.
func New(h virtualcam.FrameHandler) (virtualcam.Device, error) {
	return nil, fmt.Errorf("freenect: device support requires linux with cgo enabled")
}
