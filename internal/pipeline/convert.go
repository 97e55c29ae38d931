package pipeline

// depthMax is the top of the sensor's 11-bit depth domain.
const depthMax = 2047

// DepthToGrey converts 11-bit depth samples to 8-bit grayscale via
// s*255/2047 with truncating integer division (not rounding), matching
// the sensor's established scaling: 0→0, 1024→127, 2047→255.
//
// dst is reused when large enough; the returned slice holds the result.
func DepthToGrey(dst []byte, src []uint16) []byte {
	if cap(dst) < len(src) {
		dst = make([]byte, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		dst[i] = uint8(uint32(s) * 255 / depthMax)
	}
	return dst
}
