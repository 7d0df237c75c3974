package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidEmbedding is returned when a stored embedding blob is empty or
// its length is not a multiple of 4.
var ErrInvalidEmbedding = errors.New("invalid embedding blob")

// EncodeEmbedding packs vec as little-endian float32 values.
func EncodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding unpacks a blob written by EncodeEmbedding.
func DecodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidEmbedding, len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}
