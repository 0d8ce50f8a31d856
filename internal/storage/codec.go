package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeFloats packs a float64 slice into a little-endian blob. A nil or
// empty slice encodes to nil, which the schema stores as NULL.
func encodeFloats(data []float64) []byte {
	if len(data) == 0 {
		return nil
	}
	blob := make([]byte, len(data)*8)
	for i, v := range data {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// decodeFloats unpacks a little-endian blob written by encodeFloats.
func decodeFloats(blob []byte) ([]float64, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("malformed float blob: %d bytes is not a multiple of 8", len(blob))
	}
	data := make([]float64, len(blob)/8)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return data, nil
}
