package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/leadsmith/internal/config"
)

func TestGoogleSearch(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"title":"Acme Descalcificadores","link":"https://www.acme.es/","snippet":"Venta de descalcificadores"},
			{"title":"Agua Pura","link":"https://shop.aguapura.es/contacto","snippet":"Filtros"}
		]}`))
	}))
	defer server.Close()

	g := NewGoogle(config.GoogleConfig{
		APIKey:         "k",
		SearchEngineID: "cx1",
		Endpoint:       server.URL,
		DateRestrict:   "y1",
	}, server.Client())

	results, err := g.Search(context.Background(), Query{Text: "descalcificador", MarketCode: "ES", Language: "es", MaxResults: 25})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://www.acme.es/", results[0].URL)
	assert.Equal(t, "Filtros", results[1].Snippet)

	assert.Equal(t, "descalcificador", got["q"])
	assert.Equal(t, "10", got["num"])
	assert.Equal(t, "es", got["gl"])
	assert.Equal(t, "lang_es", got["lr"])
	assert.Equal(t, "y1", got["dateRestrict"])
	assert.Equal(t, "cx1", got["cx"])
}

func TestGoogleSearchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Quota exceeded"}}`))
	}))
	defer server.Close()

	g := NewGoogle(config.GoogleConfig{Endpoint: server.URL}, server.Client())
	_, err := g.Search(context.Background(), Query{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderStatus)
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestGoogleSearchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := server.Client()
	client.Timeout = 20 * time.Millisecond
	g := NewGoogle(config.GoogleConfig{Endpoint: server.URL}, client)

	_, err := g.Search(context.Background(), Query{Text: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrProviderStatus))
}

func TestSerpAPISearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "fr", r.URL.Query().Get("hl"))
		w.Write([]byte(`{"organic_results":[
			{"title":"A","link":"https://a.fr","snippet":"a"},
			{"title":"B","link":"https://b.fr","snippet":"b"},
			{"title":"C","link":"https://c.fr","snippet":"c"}
		]}`))
	}))
	defer server.Close()

	s := NewSerpAPI(config.SerpAPIConfig{APIKey: "k", Endpoint: server.URL}, server.Client())
	results, err := s.Search(context.Background(), Query{Text: "adoucisseur", MarketCode: "fr", Language: "fr", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://b.fr", results[1].URL)
}

func TestSerpAPINoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Google hasn't returned any results for this query."}`))
	}))
	defer server.Close()

	s := NewSerpAPI(config.SerpAPIConfig{Endpoint: server.URL}, server.Client())
	results, err := s.Search(context.Background(), Query{Text: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.Search.Provider = "serpapi"
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "serpapi", p.Name())

	cfg.Search.Provider = "bing"
	_, err = New(cfg)
	assert.Error(t, err)
}
