//go:build linux && cgo

// Package freenect is the libfreenect device backend. It owns the
// driver context and device handle for one session and pushes raw
// frames into the injected frame handler from driver callback context.
package freenect

/*
#cgo LDFLAGS: -lfreenect
#include <stdlib.h>
#include <libfreenect.h>

void freenectVideoBridge(freenect_device *dev, void *video, uint32_t timestamp);
void freenectDepthBridge(freenect_device *dev, void *depth, uint32_t timestamp);

static void attach_stream_callbacks(freenect_device *dev) {
	freenect_set_video_callback(dev, freenectVideoBridge);
	freenect_set_depth_callback(dev, freenectDepthBridge);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"

	pointer "github.com/mattn/go-pointer"
	"go.uber.org/multierr"

	virtualcam "github.com/gllmAR/freenect-virtualcam"
)

// Device is one libfreenect session. Exclusively owned by the relay;
// created fresh per reconnect attempt and never reused.
type Device struct {
	handler virtualcam.FrameHandler

	ctx  *C.freenect_context
	dev  *C.freenect_device
	user unsafe.Pointer // pointer.Save ref handed to the driver via freenect_set_user

	videoMode    C.freenect_frame_mode
	depthMode    C.freenect_frame_mode
	videoEnabled bool
	depthEnabled bool
	videoStarted bool
	depthStarted bool
}

// New constructs a session wired to the given frame handler. Matches
// the virtualcam.DeviceFactory signature.
func New(h virtualcam.FrameHandler) (virtualcam.Device, error) {
	if h == nil {
		return nil, fmt.Errorf("freenect: frame handler is required")
	}
	return &Device{handler: h}, nil
}

// Open initializes the freenect context and opens device index 0. On
// failure everything acquired so far is released before returning.
func (d *Device) Open() error {
	if ret := C.freenect_init(&d.ctx, nil); ret < 0 {
		d.ctx = nil
		return fmt.Errorf("%w: freenect_init returned %d", virtualcam.ErrDeviceUnavailable, int(ret))
	}

	if ret := C.freenect_open_device(d.ctx, &d.dev, 0); ret < 0 {
		d.dev = nil
		C.freenect_shutdown(d.ctx)
		d.ctx = nil
		return fmt.Errorf("%w: freenect_open_device returned %d", virtualcam.ErrDeviceUnavailable, int(ret))
	}

	// The driver carries an opaque user pointer; callbacks restore it
	// to find this session.
	d.user = pointer.Save(d)
	C.freenect_set_user(d.dev, d.user)
	C.attach_stream_callbacks(d.dev)

	slog.Debug("freenect: device opened")
	return nil
}

// ConfigureVideo negotiates the medium-resolution video mode: 8-bit IR
// or 24-bit RGB.
func (d *Device) ConfigureVideo(mode virtualcam.StreamMode) error {
	var format C.freenect_video_format
	switch mode {
	case virtualcam.ModeInfrared:
		format = C.FREENECT_VIDEO_IR_8BIT
	case virtualcam.ModeColorRGB:
		format = C.FREENECT_VIDEO_RGB
	default:
		return fmt.Errorf("%w: unsupported video mode %q", virtualcam.ErrModeNegotiation, mode)
	}

	fm := C.freenect_find_video_mode(C.FREENECT_RESOLUTION_MEDIUM, format)
	if fm.is_valid == 0 {
		return fmt.Errorf("%w: no valid video mode for %q", virtualcam.ErrModeNegotiation, mode)
	}
	if ret := C.freenect_set_video_mode(d.dev, fm); ret < 0 {
		return fmt.Errorf("%w: freenect_set_video_mode returned %d", virtualcam.ErrModeNegotiation, int(ret))
	}

	d.videoMode = fm
	d.videoEnabled = true
	slog.Debug("freenect: video mode negotiated", "mode", mode.String(), "bytes", int(fm.bytes))
	return nil
}

// ConfigureDepth negotiates the medium-resolution 11-bit depth mode
// (uint16 containers, sample domain 0–2047).
func (d *Device) ConfigureDepth() error {
	fm := C.freenect_find_depth_mode(C.FREENECT_RESOLUTION_MEDIUM, C.FREENECT_DEPTH_11BIT)
	if fm.is_valid == 0 {
		return fmt.Errorf("%w: no valid 11-bit depth mode", virtualcam.ErrModeNegotiation)
	}
	if ret := C.freenect_set_depth_mode(d.dev, fm); ret < 0 {
		return fmt.Errorf("%w: freenect_set_depth_mode returned %d", virtualcam.ErrModeNegotiation, int(ret))
	}

	d.depthMode = fm
	d.depthEnabled = true
	slog.Debug("freenect: depth mode negotiated", "bytes", int(fm.bytes))
	return nil
}

// StartStreams starts every configured stream, video before depth. A
// depth start failure leaves the video stream running; the caller's
// StopStreams releases it.
func (d *Device) StartStreams() error {
	if d.videoEnabled {
		if ret := C.freenect_start_video(d.dev); ret < 0 {
			return fmt.Errorf("%w: freenect_start_video returned %d", virtualcam.ErrStreamStart, int(ret))
		}
		d.videoStarted = true
	}
	if d.depthEnabled {
		if ret := C.freenect_start_depth(d.dev); ret < 0 {
			return fmt.Errorf("%w: freenect_start_depth returned %d", virtualcam.ErrStreamStart, int(ret))
		}
		d.depthStarted = true
	}
	return nil
}

// PollEvents drives one round of libusb event processing. Frame
// callbacks fire synchronously inside this call on the polling thread.
func (d *Device) PollEvents() error {
	if ret := C.freenect_process_events(d.ctx); ret < 0 {
		return fmt.Errorf("%w: freenect_process_events returned %d", virtualcam.ErrRuntimeEvent, int(ret))
	}
	return nil
}

// StopStreams stops started streams in reverse start order. Safe when
// nothing was started.
func (d *Device) StopStreams() error {
	var err error
	if d.depthStarted {
		if ret := C.freenect_stop_depth(d.dev); ret < 0 {
			err = multierr.Append(err, fmt.Errorf("freenect: freenect_stop_depth returned %d", int(ret)))
		}
		d.depthStarted = false
	}
	if d.videoStarted {
		if ret := C.freenect_stop_video(d.dev); ret < 0 {
			err = multierr.Append(err, fmt.Errorf("freenect: freenect_stop_video returned %d", int(ret)))
		}
		d.videoStarted = false
	}
	return err
}

// Close releases the device handle and shuts down the driver context.
// Safe after a failed Open; idempotent.
func (d *Device) Close() error {
	if d.dev != nil {
		C.freenect_close_device(d.dev)
		d.dev = nil
	}
	if d.user != nil {
		pointer.Unref(d.user)
		d.user = nil
	}
	if d.ctx != nil {
		C.freenect_shutdown(d.ctx)
		d.ctx = nil
	}
	return nil
}
