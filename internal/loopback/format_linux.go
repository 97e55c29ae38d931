//go:build linux

package loopback

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Hand-laid V4L2 UAPI pieces (linux/videodev2.h). Only what the output
// path needs: VIDIOC_S_FMT on a VIDEO_OUTPUT buffer with a pix format.
// Pure Go, no cgo, so the binary cross-compiles for any Linux arch.

const (
	bufTypeVideoOutput = 2 // V4L2_BUF_TYPE_VIDEO_OUTPUT
	fieldNone          = 1 // V4L2_FIELD_NONE
)

// fourcc packs a V4L2 pixel format code, least significant byte first.
func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	pixFmtGrey  = fourcc('G', 'R', 'E', 'Y') // 8-bit grayscale
	pixFmtRGB24 = fourcc('R', 'G', 'B', '3') // 24-bit interleaved RGB
)

// v4l2PixFormat mirrors struct v4l2_pix_format: twelve u32 fields, the
// enc field standing in for the ycbcr_enc/hsv_enc union.
type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	Enc          uint32
	Quantization uint32
	XferFunc     uint32
}

// v4l2Format mirrors struct v4l2_format: the type discriminator and a
// 200-byte union, of which we populate only the pix member. The union
// holds struct v4l2_window, whose clip-list and bitmap pointers make it
// pointer-aligned: pix starts at offset 8 and the struct is 208 bytes
// on 64-bit targets, offset 4 and 204 bytes on 32-bit. The ioctl
// dispatcher matches the full request code including the size, so the
// layout must agree with the kernel's exactly.
type v4l2Format struct {
	Type uint32
	_    [unsafe.Sizeof(uintptr(0)) - 4]byte
	Pix  v4l2PixFormat
	_    [200 - unsafe.Sizeof(v4l2PixFormat{})]byte
}

// _IOWR('V', 5, struct v4l2_format)
var vidiocSetFmt = iowr('V', 5, unsafe.Sizeof(v4l2Format{}))

func iowr(typ byte, nr, size uintptr) uintptr {
	const dirReadWrite = 3
	return dirReadWrite<<30 | size<<16 | uintptr(typ)<<8 | nr
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
