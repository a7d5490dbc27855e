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

// Google queries the Custom Search JSON API.
type Google struct {
	cfg    config.GoogleConfig
	client *http.Client
}

// NewGoogle creates a Google Custom Search provider.
func NewGoogle(cfg config.GoogleConfig, client *http.Client) *Google {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://www.googleapis.com/customsearch/v1"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Google{cfg: cfg, client: client}
}

func (g *Google) Name() string { return "google" }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search geolocates results to the market code and restricts them to the
// market language.
func (g *Google) Search(ctx context.Context, q Query) ([]Result, error) {
	params := url.Values{}
	params.Set("key", g.cfg.APIKey)
	params.Set("cx", g.cfg.SearchEngineID)
	params.Set("q", q.Text)
	params.Set("num", strconv.Itoa(clampResults(q.MaxResults)))
	if q.MarketCode != "" {
		params.Set("gl", strings.ToLower(q.MarketCode))
	}
	if q.Language != "" {
		params.Set("lr", "lang_"+strings.ToLower(q.Language))
	}
	if g.cfg.DateRestrict != "" {
		params.Set("dateRestrict", g.cfg.DateRestrict)
	}

	var resp googleResponse
	if err := getJSON(ctx, g.client, g.cfg.Endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}
