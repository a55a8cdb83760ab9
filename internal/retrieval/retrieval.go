// Package retrieval finds the passages most relevant to a query.
//
// The index is a plain SQLite file: one row per passage with its embedding
// stored as a little-endian float32 blob. Search embeds the query, scans the
// rows and ranks by cosine similarity. Corpora here are thousands of chunks,
// not millions, so a brute-force scan stays well under the latency budget and
// keeps the index a single dependency-free file.
package retrieval

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// Passage is one retrieved chunk of a source document.
type Passage struct {
	ID        string  `json:"id"`
	SourceDoc string  `json:"source_doc"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// Retriever returns the k passages most similar to the query, ordered by
// descending score.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

// cosine returns the cosine similarity of two vectors, 0 when either has no
// magnitude or the dimensions disagree.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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

// encodeVector packs a float32 vector into a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a blob written by encodeVector.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
