// Package search queries web search APIs for candidate lead URLs.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/amosWeiskopf/leadsmith/internal/config"
	"github.com/amosWeiskopf/leadsmith/pkg/utils"
)

// MaxResults is the hard ceiling of results per provider call.
const MaxResults = 10

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 4 << 10

// ErrProviderStatus is returned when the provider answers with a non-200 status.
var ErrProviderStatus = errors.New("search provider returned an error status")

// Result is one organic search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Query describes a single search call.
type Query struct {
	Text       string
	MarketCode string
	Language   string
	MaxResults int
}

// Provider runs search queries against an external API.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Result, error)
}

// New builds the provider selected in cfg.Search.Provider.
func New(cfg *config.Config) (Provider, error) {
	client := &http.Client{Timeout: cfg.Search.Timeout}
	switch cfg.Search.Provider {
	case "google":
		return NewGoogle(cfg.APIs.Google, client), nil
	case "serpapi":
		return NewSerpAPI(cfg.APIs.SerpAPI, client), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}
}

func clampResults(n int) int {
	if n <= 0 || n > MaxResults {
		return MaxResults
	}
	return n
}

// getJSON issues a GET and decodes a 200 response into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: HTTP %d: %s", ErrProviderStatus, resp.StatusCode,
			utils.TruncateText(utils.CleanText(string(body)), 200))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
