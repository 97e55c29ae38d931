//go:build linux && cgo

package freenect

/*
#include <libfreenect.h>
*/
import "C"

import (
	"unsafe"

	pointer "github.com/mattn/go-pointer"
)

// The bridges below run in driver callback context, during
// freenect_process_events on the polling thread. They hand the driver's
// buffer to the frame handler, which must copy before returning — the
// slice aliases driver-owned memory that is reused for the next frame.

//export freenectVideoBridge
func freenectVideoBridge(dev *C.freenect_device, video unsafe.Pointer, timestamp C.uint32_t) {
	d, ok := pointer.Restore(C.freenect_get_user(dev)).(*Device)
	if !ok || video == nil {
		return
	}
	n := int(d.videoMode.bytes)
	if n <= 0 {
		return
	}
	d.handler.OnVideoFrame(unsafe.Slice((*byte)(video), n))
}

//export freenectDepthBridge
func freenectDepthBridge(dev *C.freenect_device, depth unsafe.Pointer, timestamp C.uint32_t) {
	d, ok := pointer.Restore(C.freenect_get_user(dev)).(*Device)
	if !ok || depth == nil {
		return
	}
	// 11-bit samples in uint16 containers, two bytes each.
	n := int(d.depthMode.bytes) / 2
	if n <= 0 {
		return
	}
	d.handler.OnDepthFrame(unsafe.Slice((*uint16)(depth), n))
}
