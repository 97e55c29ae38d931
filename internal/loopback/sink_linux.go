//go:build linux

// Package loopback writes frames into a v4l2loopback virtual video
// device, making them appear as the output of a real camera. It
// implements the virtualcam.Sink contract; platform selection happens
// at composition time, not inside the pipeline.
package loopback

import (
	"fmt"
	"log/slog"
	"os"
	"unsafe"

	virtualcam "github.com/gllmAR/freenect-virtualcam"
)

// Sink writes complete frames to a v4l2loopback device.
type Sink struct {
	path      string
	f         *os.File
	frameSize int
}

// New creates a sink for the given loopback device path (e.g.
// /dev/video2). The device is not touched until Init.
func New(path string) *Sink {
	return &Sink{path: path}
}

// Init opens the device write-only and negotiates resolution and pixel
// format via VIDIOC_S_FMT. Failure wraps ErrSinkInit; the caller is
// expected to log it once and keep the acquisition pipeline running.
func (s *Sink) Init(cfg virtualcam.SinkConfig) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", virtualcam.ErrSinkInit, s.path, err)
	}

	pix := pixFmtGrey
	if cfg.Format == virtualcam.PixelRGB24 {
		pix = pixFmtRGB24
	}

	format := v4l2Format{
		Type: bufTypeVideoOutput,
		Pix: v4l2PixFormat{
			Width:        uint32(cfg.Width),
			Height:       uint32(cfg.Height),
			PixelFormat:  pix,
			Field:        fieldNone,
			BytesPerLine: uint32(cfg.Width * cfg.Format.BytesPerPixel()),
			SizeImage:    uint32(cfg.FrameSize()),
		},
	}
	if err := ioctl(f.Fd(), vidiocSetFmt, unsafe.Pointer(&format)); err != nil {
		f.Close()
		return fmt.Errorf("%w: VIDIOC_S_FMT on %s: %v", virtualcam.ErrSinkInit, s.path, err)
	}

	s.f = f
	s.frameSize = cfg.FrameSize()
	slog.Info("loopback: device configured",
		"path", s.path,
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"format", cfg.Format.String(),
		"frame_size", s.frameSize,
	)
	return nil
}

// Write sends one complete frame to the device. Anything short of the
// full byte count is a failure, not a partial success.
func (s *Sink) Write(frame []byte) error {
	if s.f == nil {
		return fmt.Errorf("loopback: device %s not initialized", s.path)
	}
	n, err := s.f.Write(frame)
	if err != nil {
		return fmt.Errorf("loopback: writing frame to %s: %w", s.path, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: wrote %d of %d bytes to %s", virtualcam.ErrShortWrite, n, len(frame), s.path)
	}
	return nil
}

// Close releases the device handle. Safe when Init never succeeded.
func (s *Sink) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
