// Package crawler visits a lead's home page and a fixed list of contact pages
// and extracts its email, phone and tax id.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/amosWeiskopf/leadsmith/internal/config"
	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/metrics"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/pkg/extractor"
	"github.com/amosWeiskopf/leadsmith/pkg/fetcher"
)

// Crawler implements ContactExtractor on top of a page fetcher.
type Crawler struct {
	fetch   fetcher.Getter
	extract *extractor.Extractor
	opts    Options
	log     logger.Logger
	metrics *metrics.Metrics
}

// New creates a contact crawler.
func New(fetch fetcher.Getter, extract *extractor.Extractor, opts Options, log logger.Logger, m *metrics.Metrics) *Crawler {
	if len(opts.ContactPaths) == 0 {
		opts.ContactPaths = config.DefaultContactPaths
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 3
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Crawler{
		fetch:   fetch,
		extract: extract,
		opts:    opts,
		log:     log,
		metrics: m,
	}
}

// BaseURL reduces rawURL to scheme://host/, assuming https when no scheme is
// given.
func BaseURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url: no host in %q", rawURL)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}

// pagesFor lists the home page followed by the first maxPages-1 contact paths.
func (c *Crawler) pagesFor(base string, maxPages int) []string {
	pages := []string{base}
	baseURL, _ := url.Parse(base)
	for _, p := range c.opts.ContactPaths {
		if len(pages) >= maxPages {
			break
		}
		ref, err := url.Parse(p)
		if err != nil {
			continue
		}
		pages = append(pages, baseURL.ResolveReference(ref).String())
	}
	return pages
}

// ExtractContact crawls at most maxPages pages of the site. Pages that fail to
// load are skipped. The crawl stops early once an email, a phone and a tax id
// have all been seen.
func (c *Crawler) ExtractContact(ctx context.Context, rawURL string, maxPages int) *models.ContactResult {
	result := &models.ContactResult{
		EmailsFound:  []string{},
		PhonesFound:  []string{},
		PagesVisited: []string{},
		Success:      true,
	}
	if maxPages <= 0 {
		maxPages = c.opts.MaxPages
	}

	base, err := BaseURL(rawURL)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.opts.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.opts.PageDelay), 1)
	}

	var emails, phones []string
	for _, page := range c.pagesFor(base, maxPages) {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		result.PagesVisited = append(result.PagesVisited, page)

		found, ok := c.scrape(ctx, page)
		if ok {
			emails = append(emails, found.Emails...)
			phones = append(phones, found.Phones...)
			if result.TaxID == "" {
				result.TaxID = found.TaxID
			}
		}
		if len(emails) > 0 && len(phones) > 0 && result.TaxID != "" {
			break
		}
	}

	result.Email = c.extract.SelectBestEmail(emails)
	result.Phone = c.extract.SelectBestPhone(phones)
	result.EmailsFound = unique(emails)
	result.PhonesFound = unique(phones)
	c.recordFound(result)

	c.log.Debug("Contact crawl finished",
		logger.String("url", base),
		logger.Int("pages", len(result.PagesVisited)),
		logger.Bool("email", result.Email != ""),
		logger.Bool("phone", result.Phone != ""),
		logger.Bool("tax_id", result.TaxID != ""),
	)
	return result
}

func (c *Crawler) scrape(ctx context.Context, pageURL string) (extractor.Contacts, bool) {
	page, err := c.fetch.Get(ctx, pageURL)
	if err != nil {
		c.metrics.RecordPage(false)
		c.log.Debug("Skipped page", logger.String("url", pageURL), logger.Error(err))
		return extractor.Contacts{}, false
	}
	c.metrics.RecordPage(true)

	found, err := c.extract.ExtractPage(page.Body)
	if err != nil {
		c.log.Debug("Unparsable page", logger.String("url", pageURL), logger.Error(err))
		return extractor.Contacts{}, false
	}
	return found, true
}

func (c *Crawler) recordFound(r *models.ContactResult) {
	if r.Email != "" {
		c.metrics.RecordContact("email")
	}
	if r.Phone != "" {
		c.metrics.RecordContact("phone")
	}
	if r.TaxID != "" {
		c.metrics.RecordContact("tax_id")
	}
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
