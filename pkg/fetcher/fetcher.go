// Package fetcher downloads single HTML pages for the contact crawler and the
// keyword miner.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/amosWeiskopf/leadsmith/internal/config"
	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/models"
)

var (
	// ErrStatus is returned for any non-200 response.
	ErrStatus = errors.New("unexpected status")
	// ErrNotHTML is returned when the response is not a web page.
	ErrNotHTML = errors.New("not an html page")
	// ErrDisallowed is returned when robots.txt forbids the URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Getter fetches a single page.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*models.Page, error)
}

// Options configures a Fetcher.
type Options struct {
	UserAgent       string
	AcceptLanguage  string
	Timeout         time.Duration
	MaxBodyBytes    int64
	FollowRobotsTxt bool
}

// OptionsFromConfig builds fetcher options from the crawler section.
func OptionsFromConfig(cfg config.CrawlerConfig) Options {
	return Options{
		UserAgent:       cfg.UserAgent,
		AcceptLanguage:  cfg.AcceptLanguage,
		Timeout:         cfg.Timeout,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		FollowRobotsTxt: cfg.FollowRobotsTxt,
	}
}

// Fetcher is an http client with a declared user agent, a body size cap and
// an optional robots.txt gate.
type Fetcher struct {
	opts   Options
	client *http.Client
	log    logger.Logger

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

// New creates a Fetcher.
func New(opts Options, log logger.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if log == nil {
		log = logger.NewNop()
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Fetcher{
		opts:   opts,
		client: &http.Client{Transport: transport, Timeout: opts.Timeout, Jar: jar},
		log:    log,
		robots: make(map[string]*robotstxt.Group),
	}
}

// Get downloads rawURL and returns its body decoded to UTF-8.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*models.Page, error) {
	if f.opts.FollowRobotsTxt && !f.allowed(ctx, rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %w: %d", rawURL, ErrStatus, resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !isWebpageMIME(contentType) {
		return nil, fmt.Errorf("fetch %s: %w: %s", rawURL, ErrNotHTML, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	return &models.Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        toUTF8(body, contentType),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", acceptHeader)
	if f.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	}
}

// allowed reports whether robots.txt of the URL's host permits the fetch.
// Unreachable or malformed robots files allow everything.
func (f *Fetcher) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	key := u.Scheme + "://" + u.Host

	f.mu.Lock()
	group, cached := f.robots[key]
	f.mu.Unlock()

	if !cached {
		group = f.loadRobots(ctx, key)
		f.mu.Lock()
		f.robots[key] = group
		f.mu.Unlock()
	}
	if group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (f *Fetcher) loadRobots(ctx context.Context, origin string) *robotstxt.Group {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Debug("robots.txt unreachable", logger.String("origin", origin), logger.Error(err))
		return nil
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return robots.FindGroup(f.opts.UserAgent)
}

func isWebpageMIME(contentType string) bool {
	mimeType := strings.TrimSpace(strings.Split(strings.ToLower(contentType), ";")[0])
	switch mimeType {
	case "text/html", "application/xhtml+xml", "application/xhtml":
		return true
	}
	return false
}

// toUTF8 converts body using the charset declared in the header or the
// document, leaving it untouched when it is already UTF-8 or undecodable.
func toUTF8(body []byte, contentType string) []byte {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if enc == nil || name == "utf-8" {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}
