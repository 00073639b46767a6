package oto

import (
	"encoding/binary"
	"math"
)

// bytesPerFrame is one stereo frame of little endian float32 samples.
const bytesPerFrame = 8

// MonoToStereoFloat32LE writes every sample of src twice, as the left and
// right channel, into dst and returns the number of bytes written. dst must
// hold at least len(src)*8 bytes.
func MonoToStereoFloat32LE(dst []byte, src []float32) int {
	for i, v := range src {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(dst[i*bytesPerFrame:], bits)
		binary.LittleEndian.PutUint32(dst[i*bytesPerFrame+4:], bits)
	}
	return len(src) * bytesPerFrame
}
