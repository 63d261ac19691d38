// Package websearch wraps the web search service used to augment
// retrieval when the document alone cannot answer a query.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the narrow search contract. Results are plain snippet
// strings ready to concatenate with vector-store chunks.
type Client interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// SearxClient talks to a SearxNG instance's JSON API.
type SearxClient struct {
	baseURL string
	client  *http.Client
}

var _ Client = &SearxClient{}

func NewSearxClient(baseURL string) *SearxClient {
	return &SearxClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

func (c *SearxClient) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = 5
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("websearch: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed searxResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("websearch: unmarshal response: %w", err)
	}

	snippets := make([]string, 0, k)
	for _, r := range parsed.Results {
		if len(snippets) == k {
			break
		}
		if r.Content == "" {
			continue
		}
		snippets = append(snippets, fmt.Sprintf("%s: %s (%s)", r.Title, r.Content, r.URL))
	}
	return snippets, nil
}
