// Package vector provides the embedding BLOB codec and the similarity
// primitives used by the semantic cache. Embeddings are stored as a
// little-endian sequence of IEEE 754 float32 values without a length
// prefix; the dimension is derived from the BLOB size on decode.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode encodes a float32 vector into its BLOB representation.
func Encode(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// Decode decodes a BLOB produced by Encode back into a float32 vector.
func Decode(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// Dot returns the inner product of two vectors. For unit-length vectors
// this equals their cosine similarity.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Normalize returns a copy of vec scaled to unit L2 length. A
// zero-magnitude vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	mag = math.Sqrt(mag)
	out := make([]float32, len(vec))
	if mag == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / mag)
	}
	return out
}
