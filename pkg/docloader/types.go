// Package docloader fetches a source PDF and turns it into ordered page
// chunks. The heavy lifting (layout analysis, OCR) happens in an external
// extractor service; this package only downloads, delegates, splits and
// attaches figure URLs.
package docloader

import (
	"context"

	"github.com/google/uuid"
)

// Figure is a stored figure crop: the URL it is served under and the
// caption produced by the vision model (may be the fallback caption).
type Figure struct {
	URL     string
	Caption string
}

// PageChunk is one text chunk with its page number and the figures that
// should be shown alongside it. Page is 0-based.
type PageChunk struct {
	Id   string
	Page int
	Text string
	Figs []Figure
}

func NewPageChunk(page int, text string, figs []Figure) PageChunk {
	return PageChunk{
		Id:   uuid.NewString(),
		Page: page,
		Text: text,
		Figs: figs,
	}
}

// Texts projects the chunk list onto plain text, preserving order.
func Texts(chunks []PageChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Loader is the narrow contract the pipelines depend on. withFigures
// controls whether figure extraction and captioning runs; the summary
// pipeline skips it, the tutorial pipeline needs it.
type Loader interface {
	Load(ctx context.Context, url string, withFigures bool) ([]PageChunk, error)
}
