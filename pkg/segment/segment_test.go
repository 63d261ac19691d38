package segment

import (
	"testing"

	"ai-docassist-be/pkg/docloader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embedByTable returns fixed vectors keyed by chunk text.
func embedByTable(table map[string][]float32) EmbedFunc {
	return func(text string) ([]float32, error) {
		return table[text], nil
	}
}

func chunk(page int, text string) docloader.PageChunk {
	return docloader.NewPageChunk(page, text, nil)
}

func TestEmptyInput(t *testing.T) {
	segs, err := InOrder(nil, embedByTable(nil))
	require.NoError(t, err)
	assert.Nil(t, segs)
}

func TestSimilarConsecutiveChunksFormOneSegment(t *testing.T) {
	table := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0.99, 0.05, 0},
		"c": {0.98, 0.1, 0},
	}
	chunks := []docloader.PageChunk{chunk(0, "a"), chunk(0, "b"), chunk(1, "c")}

	segs, err := InOrder(chunks, embedByTable(table))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, []int{0, 0, 1}, segs[0].Pages)
}

func TestDissimilarChunkStartsNewSegment(t *testing.T) {
	table := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0}, // orthogonal to a
	}
	chunks := []docloader.PageChunk{chunk(0, "a"), chunk(0, "b")}

	segs, err := InOrder(chunks, embedByTable(table))
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "a", segs[0].Chunks[0].Text)
	assert.Equal(t, "b", segs[1].Chunks[0].Text)
}

func TestPageGapBreaksSegmentDespiteSimilarity(t *testing.T) {
	table := map[string][]float32{
		"a": {1, 0},
		"b": {1, 0}, // identical content, but far away
	}
	chunks := []docloader.PageChunk{chunk(0, "a"), chunk(3, "b")}

	segs, err := InOrder(chunks, embedByTable(table))
	require.NoError(t, err)
	require.Len(t, segs, 2)
}

func TestOrderIsPreservedAcrossSegments(t *testing.T) {
	table := map[string][]float32{
		"t0": {1, 0}, "t1": {1, 0}, "t2": {0, 1}, "t3": {0, 1}, "t4": {1, 0},
	}
	var chunks []docloader.PageChunk
	for i, text := range []string{"t0", "t1", "t2", "t3", "t4"} {
		chunks = append(chunks, chunk(i/2, text))
	}

	segs, err := InOrder(chunks, embedByTable(table))
	require.NoError(t, err)

	var flat []string
	for _, s := range segs {
		require.Len(t, s.Pages, len(s.Chunks))
		for _, c := range s.Chunks {
			flat = append(flat, c.Text)
		}
	}
	assert.Equal(t, []string{"t0", "t1", "t2", "t3", "t4"}, flat)
}

// The centroid is the mean of the previous centroid and the newest
// member only, not a mean over all members. With chunks at 0°, 90°, 45°:
// a full mean of the first two would sit at 45° (similarity 1.0 with the
// third), while the two-point rule keeps drifting towards the latest
// member. This pins the two-point behavior.
func TestTwoPointCentroidRegression(t *testing.T) {
	// First two chunks are just similar enough to merge, and the
	// two-point centroid ends up closer to the second than a full mean
	// over a longer run would be.
	a := []float32{1, 0}
	b := []float32{0.85, 0.55} // cos(a,b) ≈ 0.84 — merges
	c := []float32{0, 1}       // orthogonal to a

	table := map[string][]float32{"a": a, "b": b, "c": c}
	chunks := []docloader.PageChunk{chunk(0, "a"), chunk(0, "b"), chunk(0, "c")}

	segs, err := InOrder(chunks, embedByTable(table))
	require.NoError(t, err)

	// centroid after merging b = mean(a, b) = (0.925, 0.275);
	// cos(centroid, c) ≈ 0.285 < 0.78, so "c" starts a new segment.
	require.Len(t, segs, 2)
	assert.Equal(t, 2, len(segs[0].Chunks))
	assert.Equal(t, "c", segs[1].Chunks[0].Text)

	// Sanity-check the centroid arithmetic itself.
	got := twoPointMean(a, b)
	assert.InDelta(t, 0.925, float64(got[0]), 1e-6)
	assert.InDelta(t, 0.275, float64(got[1]), 1e-6)
}

func TestCosineEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.InDelta(t, 1.0, Cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
}
