package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amosWeiskopf/leadsmith/internal/config"
)

// SerpAPI queries Google through serpapi.com.
type SerpAPI struct {
	cfg    config.SerpAPIConfig
	client *http.Client
}

// NewSerpAPI creates a SerpAPI provider.
func NewSerpAPI(cfg config.SerpAPIConfig, client *http.Client) *SerpAPI {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://serpapi.com/search.json"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SerpAPI{cfg: cfg, client: client}
}

func (s *SerpAPI) Name() string { return "serpapi" }

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

func (s *SerpAPI) Search(ctx context.Context, q Query) ([]Result, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("api_key", s.cfg.APIKey)
	params.Set("q", q.Text)
	params.Set("num", strconv.Itoa(clampResults(q.MaxResults)))
	if q.MarketCode != "" {
		params.Set("gl", strings.ToLower(q.MarketCode))
	}
	if q.Language != "" {
		params.Set("hl", strings.ToLower(q.Language))
	}

	var resp serpResponse
	if err := getJSON(ctx, s.client, s.cfg.Endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("serpapi search: %w", err)
	}
	// SerpAPI reports "no results" as an error string with a 200 status.
	if resp.Error != "" && len(resp.OrganicResults) == 0 {
		if strings.Contains(strings.ToLower(resp.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, fmt.Errorf("serpapi search: %w: %s", ErrProviderStatus, resp.Error)
	}

	limit := clampResults(q.MaxResults)
	results := make([]Result, 0, len(resp.OrganicResults))
	for _, item := range resp.OrganicResults {
		if len(results) == limit {
			break
		}
		results = append(results, Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}
