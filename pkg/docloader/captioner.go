package docloader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// FallbackCaption is used when the caption service is unreachable or
// returns an error; figure rendering must never fail the pipeline.
const FallbackCaption = "figure"

const defaultCaptionPrompt = "Describe this image in 1-2 sentences."

// Captioner calls a multimodal captioning endpoint (TGI-style REST) for
// a batch of images. Failures degrade to FallbackCaption per image.
type Captioner struct {
	endpoint string
	client   *http.Client
}

func NewCaptioner(endpoint string, timeout time.Duration) *Captioner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Captioner{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type captionRequest struct {
	Prompt       string   `json:"prompt"`
	Images       []string `json:"images"`
	MaxNewTokens int      `json:"max_new_tokens"`
}

type captionResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Caption returns one caption per image, index-aligned with the input.
// Images are captioned concurrently; any per-image failure yields the
// fallback caption for that slot only.
func (c *Captioner) Caption(ctx context.Context, images [][]byte, prompt string, maxTokens int) []string {
	if len(images) == 0 {
		return nil
	}
	if prompt == "" {
		prompt = defaultCaptionPrompt
	}
	if maxTokens <= 0 {
		maxTokens = 64
	}

	captions := make([]string, len(images))
	g := new(errgroup.Group)
	g.SetLimit(4)
	for i, img := range images {
		g.Go(func() error {
			caption, err := c.captionOne(ctx, img, prompt, maxTokens)
			if err != nil {
				captions[i] = FallbackCaption
				return nil
			}
			captions[i] = caption
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; fallback handled per slot
	return captions
}

func (c *Captioner) captionOne(ctx context.Context, img []byte, prompt string, maxTokens int) (string, error) {
	payload := captionRequest{
		Prompt:       prompt,
		Images:       []string{base64.StdEncoding.EncodeToString(img)},
		MaxNewTokens: maxTokens,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption service status %d", resp.StatusCode)
	}

	var parsed captionResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", err
	}
	text := strings.TrimSpace(parsed.GeneratedText)
	if text == "" {
		return "", fmt.Errorf("empty caption")
	}
	return text, nil
}
