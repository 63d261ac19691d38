// Package segment groups ordered page chunks into topic-coherent
// segments without ever reordering them. A segment grows while the next
// chunk stays close in both content (cosine similarity against the
// running centroid) and position (page gap).
package segment

import (
	"fmt"
	"math"

	"ai-docassist-be/pkg/docloader"
)

const (
	// SimThreshold is the minimum cosine similarity for a chunk to join
	// the current segment.
	SimThreshold = 0.78

	// MaxGapPages is the largest page jump allowed inside one segment.
	MaxGapPages = 1
)

// EmbedFunc turns chunk text into a vector. One call per chunk.
type EmbedFunc func(text string) ([]float32, error)

// Segment is a run of consecutive chunks judged to share a topic. Pages
// holds the page number of each member chunk, index-aligned with Chunks.
type Segment struct {
	Pages  []int
	Chunks []docloader.PageChunk
}

// InOrder partitions chunks into segments, preserving input order
// exactly: concatenating the segments' chunk lists reproduces the input.
//
// The running centroid is updated as the elementwise mean of the old
// centroid and the newest member's vector only. This two-point average
// weights recent chunks over early ones; downstream tutorial output
// depends on that exact behavior, so it must not be replaced with a
// full-members mean.
func InOrder(chunks []docloader.PageChunk, embed EmbedFunc) ([]Segment, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		v, err := embed(c.Text)
		if err != nil {
			return nil, fmt.Errorf("segment: embed chunk %d: %w", i, err)
		}
		vecs[i] = v
	}

	var segments []Segment
	cur := Segment{
		Pages:  []int{chunks[0].Page},
		Chunks: []docloader.PageChunk{chunks[0]},
	}
	centroid := vecs[0]

	for i := 1; i < len(chunks); i++ {
		ck, v := chunks[i], vecs[i]
		gap := ck.Page - cur.Pages[len(cur.Pages)-1]
		sim := Cosine(centroid, v)

		if sim >= SimThreshold && gap <= MaxGapPages {
			cur.Pages = append(cur.Pages, ck.Page)
			cur.Chunks = append(cur.Chunks, ck)
			centroid = twoPointMean(centroid, v)
		} else {
			segments = append(segments, cur)
			cur = Segment{Pages: []int{ck.Page}, Chunks: []docloader.PageChunk{ck}}
			centroid = v
		}
	}
	return append(segments, cur), nil
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths or
// zero vectors yield 0 rather than an error; a degenerate embedding
// should start a new segment, not abort segmentation.
func Cosine(a, b []float32) float64 {
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

func twoPointMean(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = (a[i] + b[i]) / 2
	}
	return out
}
