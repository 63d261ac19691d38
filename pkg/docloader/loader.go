package docloader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"ai-docassist-be/pkg/utils"
)

const (
	maxPDFSize = 50 * 1024 * 1024 // reject anything above 50 MB

	chunkSize    = 1500
	chunkOverlap = 200
)

// extractedElement mirrors the extractor sidecar's response schema. Text
// elements carry plain text; figure elements carry a base64 PNG crop.
type extractedElement struct {
	Kind  string `json:"kind"` // "text" or "figure"
	Page  int    `json:"page"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type extractResponse struct {
	Elements []extractedElement `json:"elements"`
}

// PDFLoader downloads a PDF and sends it to the extractor service, then
// splits the page text into overlapping chunks. Figures are persisted to
// the figure store and captioned; their URLs attach to the chunks of the
// same page.
type PDFLoader struct {
	extractorURL string
	client       *http.Client
	figures      *FigureStore
	captioner    *Captioner
}

var _ Loader = &PDFLoader{}

func NewPDFLoader(extractorURL string, figures *FigureStore, captioner *Captioner) *PDFLoader {
	return &PDFLoader{
		extractorURL: extractorURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		figures:   figures,
		captioner: captioner,
	}
}

func (l *PDFLoader) Load(ctx context.Context, url string, withFigures bool) ([]PageChunk, error) {
	pdfBytes, err := l.download(ctx, url)
	if err != nil {
		return nil, err
	}

	elements, err := l.extract(ctx, pdfBytes, withFigures)
	if err != nil {
		return nil, err
	}

	chunks, err := l.assemble(ctx, url, elements, withFigures)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("docloader: no text extracted from %s", url)
	}
	return chunks, nil
}

func (l *PDFLoader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("docloader: create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docloader: download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docloader: download status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFSize+1))
	if err != nil {
		return nil, fmt.Errorf("docloader: read body: %w", err)
	}
	if len(body) > maxPDFSize {
		return nil, fmt.Errorf("docloader: PDF too large (> 50 MB)")
	}
	return body, nil
}

func (l *PDFLoader) extract(ctx context.Context, pdfBytes []byte, withFigures bool) ([]extractedElement, error) {
	endpoint := fmt.Sprintf("%s/extract?figures=%t", l.extractorURL, withFigures)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(pdfBytes))
	if err != nil {
		return nil, fmt.Errorf("docloader: create extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docloader: extractor request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("docloader: read extractor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docloader: extractor status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed extractResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("docloader: unmarshal extractor response: %w", err)
	}
	return parsed.Elements, nil
}

// assemble groups elements per page, splits text into chunks and links
// figure URLs to every chunk of the owning page.
func (l *PDFLoader) assemble(ctx context.Context, url string, elements []extractedElement, withFigures bool) ([]PageChunk, error) {
	pageText := map[int][]string{}
	pageImages := map[int][][]byte{}
	var pages []int

	for _, el := range elements {
		if _, seen := pageText[el.Page]; !seen {
			if _, seenImg := pageImages[el.Page]; !seenImg {
				pages = append(pages, el.Page)
			}
		}
		switch el.Kind {
		case "text":
			if el.Text != "" {
				pageText[el.Page] = append(pageText[el.Page], el.Text)
			}
		case "figure":
			img, err := base64.StdEncoding.DecodeString(el.Image)
			if err != nil {
				// a broken figure crop should not sink the whole document
				continue
			}
			pageImages[el.Page] = append(pageImages[el.Page], img)
		}
	}
	sort.Ints(pages)

	fileKey := utils.HashKey(url)

	var chunks []PageChunk
	for _, page := range pages {
		var figs []Figure
		if withFigures && len(pageImages[page]) > 0 {
			stored, err := l.storeFigures(ctx, fileKey, pageImages[page])
			if err != nil {
				return nil, err
			}
			figs = stored
		}

		joined := ""
		for i, t := range pageText[page] {
			if i > 0 {
				joined += "\n\n"
			}
			joined += t
		}
		if joined == "" {
			continue
		}
		for _, piece := range utils.SplitText(joined, chunkSize, chunkOverlap) {
			chunks = append(chunks, NewPageChunk(page, piece, figs))
		}
	}
	return chunks, nil
}

func (l *PDFLoader) storeFigures(ctx context.Context, fileKey string, images [][]byte) ([]Figure, error) {
	urls, err := l.figures.SaveMany(fileKey, images)
	if err != nil {
		return nil, fmt.Errorf("docloader: store figures: %w", err)
	}

	captions := make([]string, len(images))
	if l.captioner != nil {
		captions = l.captioner.Caption(ctx, images, "", 64)
	} else {
		for i := range captions {
			captions[i] = FallbackCaption
		}
	}

	figs := make([]Figure, len(urls))
	for i, u := range urls {
		figs[i] = Figure{URL: u, Caption: captions[i]}
	}
	return figs, nil
}
