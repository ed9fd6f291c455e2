package store

import (
	"encoding/binary"
	"math"

	ierrors "github.com/indexchat/indexchat/internal/errors"
)

// EncodeEmbedding encodes a float32 vector into the BLOB stored in
// the row-table: a little-endian sequence of IEEE 754 float32 values
// with no length prefix. The length is derived from the BLOB size on
// decode; the row's embedding_dimensions column records it for
// consumers that never decode.
func EncodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, ierrors.New(ierrors.ErrCodeDecodeFailed, "embedding blob length not a multiple of 4", nil)
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// cosineSimilarity computes the cosine similarity of two equal-length
// vectors. Inserted embeddings are unit length, so this reduces to a
// dot product, but the linear-scan fallback does not rely on that.
func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
