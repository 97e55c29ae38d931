// Package sim is a simulated device backend: it drives the same session
// contract as the libfreenect backend from an in-process generator, so
// the relay can run end-to-end without Kinect hardware. Video frames
// are a moving test pattern, depth frames sweep the 11-bit domain.
//
// Frames are produced on the simulator's own goroutine, asynchronously
// relative to the forwarding loop — the same producer/consumer boundary
// the real driver exercises.
package sim

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"

	virtualcam "github.com/gllmAR/freenect-virtualcam"
)

const frameInterval = 33 * time.Millisecond // ~30 fps, matching the sensor

// Device is one simulated sensor session.
type Device struct {
	handler virtualcam.FrameHandler

	mode         virtualcam.StreamMode
	depthEnabled bool

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New constructs a simulated session wired to the given frame handler.
// Matches the virtualcam.DeviceFactory signature.
func New(h virtualcam.FrameHandler) (virtualcam.Device, error) {
	if h == nil {
		return nil, fmt.Errorf("sim: frame handler is required")
	}
	return &Device{handler: h}, nil
}

// Open always succeeds; the simulator has no hardware to find.
func (d *Device) Open() error { return nil }

// ConfigureVideo accepts the infrared and RGB modes.
func (d *Device) ConfigureVideo(mode virtualcam.StreamMode) error {
	if mode != virtualcam.ModeInfrared && mode != virtualcam.ModeColorRGB {
		return fmt.Errorf("%w: unsupported video mode %q", virtualcam.ErrModeNegotiation, mode)
	}
	d.mode = mode
	return nil
}

// ConfigureDepth enables the simulated depth stream.
func (d *Device) ConfigureDepth() error {
	d.depthEnabled = true
	return nil
}

// StartStreams launches the generator goroutine for the configured
// streams.
func (d *Device) StartStreams() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("%w: sim streams already started", virtualcam.ErrStreamStart)
	}
	d.stop = make(chan struct{})
	d.started = true
	d.wg.Add(1)
	go d.generate()
	return nil
}

// PollEvents always reports a healthy device; the simulator never
// disconnects on its own.
func (d *Device) PollEvents() error { return nil }

// StopStreams stops the generator and waits for it to exit. Safe when
// nothing was started.
func (d *Device) StopStreams() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}
	close(d.stop)
	d.wg.Wait()
	d.started = false
	return nil
}

// Close is a no-op; the simulator holds no external resources.
func (d *Device) Close() error { return nil }

// generate emits frames on a fixed cadence until stopped.
func (d *Device) generate() {
	defer d.wg.Done()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			tick++
			switch d.mode {
			case virtualcam.ModeColorRGB:
				d.handler.OnVideoFrame(rgbFrame(tick))
			case virtualcam.ModeInfrared:
				d.handler.OnVideoFrame(irFrame(tick))
			}
			if d.depthEnabled {
				d.handler.OnDepthFrame(depthFrame(tick))
			}
		}
	}
}

// rgbFrame renders the moving RGB test pattern: a dark gradient
// background with an orbiting circle.
func rgbFrame(tick int) []byte {
	const w, h = virtualcam.FrameWidth, virtualcam.FrameHeight

	dc := gg.NewContext(w, h)
	dc.SetRGB(0.08, 0.10, 0.18)
	dc.Clear()

	angle := float64(tick) * 0.08
	cx := float64(w)/2 + math.Cos(angle)*float64(w)/4
	cy := float64(h)/2 + math.Sin(angle)*float64(h)/4
	dc.SetRGB(0.95, 0.55, 0.10)
	dc.DrawCircle(cx, cy, 60)
	dc.Fill()

	rgba := dc.Image().(*image.RGBA)
	frame := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		frame[i*3+0] = rgba.Pix[i*4+0]
		frame[i*3+1] = rgba.Pix[i*4+1]
		frame[i*3+2] = rgba.Pix[i*4+2]
	}
	return frame
}

// irFrame computes a drifting diagonal gradient in 8-bit grayscale.
func irFrame(tick int) []byte {
	const w, h = virtualcam.FrameWidth, virtualcam.FrameHeight
	frame := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			frame[y*w+x] = uint8((x + y + tick*4) & 0xFF)
		}
	}
	return frame
}

// depthFrame sweeps a ramp across the 11-bit depth domain (0–2047).
func depthFrame(tick int) []uint16 {
	const w, h = virtualcam.FrameWidth, virtualcam.FrameHeight
	frame := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			frame[y*w+x] = uint16((x + y + tick*16) & 0x7FF)
		}
	}
	return frame
}
