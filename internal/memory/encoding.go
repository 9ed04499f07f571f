package memory

import (
	"encoding/binary"
	"math"
)

// float32sToBytes and bytesToFloat32s round-trip an embedding through the
// export/import payload's base64 field, little-endian per float32 lane.
func float32sToBytes(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32s(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
