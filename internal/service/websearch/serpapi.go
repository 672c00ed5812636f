// Package websearch exposes live web search as a collaborator interface
// returning a plain text snippet, possibly empty.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultSerpAPIBaseURL = "https://serpapi.com/search.json"

// snippetLimit caps how many organic results feed the web block.
const snippetLimit = 3

// Searcher looks up a query on the web and returns a snippet.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SerpAPIClient implements Searcher against the SerpAPI Google engine.
type SerpAPIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerpAPIClient creates the client.
func NewSerpAPIClient(apiKey string) *SerpAPIClient {
	return &SerpAPIClient{
		apiKey:  apiKey,
		baseURL: defaultSerpAPIBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type serpResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search implements Searcher. The top organic snippets are joined into one
// block; no results is an empty snippet, not an error.
func (c *SerpAPIClient) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build serpapi request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("serpapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("serpapi returned status %d", resp.StatusCode)
	}

	var payload serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode serpapi response: %w", err)
	}

	snippets := make([]string, 0, snippetLimit)
	for _, result := range payload.OrganicResults {
		if result.Snippet == "" {
			continue
		}
		snippets = append(snippets, result.Snippet)
		if len(snippets) == snippetLimit {
			break
		}
	}
	return strings.Join(snippets, "\n"), nil
}
