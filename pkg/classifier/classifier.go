package classifier

import (
	"context"
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/models"
)

// Class is the outcome of classifying a domain.
type Class string

const (
	// Candidate domains become ordinary new leads.
	Candidate Class = "candidate"
	// Marketplace domains become leads tagged marketplace so they stay auditable.
	Marketplace Class = "marketplace"
	// Excluded domains are dropped without creating a lead.
	Excluded Class = "excluded"
)

// Tab returns the lead tab a freshly discovered domain of this class starts in.
func (c Class) Tab() models.Tab {
	if c == Marketplace {
		return models.TabMarketplace
	}
	return models.TabNew
}

// Registry supplies the persisted marketplace domains.
type Registry interface {
	MarketplaceDomains(ctx context.Context) ([]string, error)
}

// Classifier assigns domains to a Class. Checks run in order: persisted
// marketplace registry, configured marketplace keywords, configured excluded
// domains. All matching is case-insensitive substring matching.
type Classifier struct {
	registry     Registry
	marketplaces *substrings
	excluded     *substrings
	log          logger.Logger

	mu     sync.RWMutex
	loaded bool
	stored []string
}

// New creates a classifier. registry may be nil.
func New(registry Registry, marketplaces, excluded []string, log logger.Logger) *Classifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Classifier{
		registry:     registry,
		marketplaces: newSubstrings(marketplaces),
		excluded:     newSubstrings(excluded),
		log:          log,
	}
}

// Reload refreshes the cached registry entries. Classify loads them lazily on
// first use; call Reload at the start of a run to pick up new entries.
func (c *Classifier) Reload(ctx context.Context) error {
	if c.registry == nil {
		return nil
	}
	domains, err := c.registry.MarketplaceDomains(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.stored = lowerAll(domains)
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Classify never fails: registry errors fall back to the configured lists and
// anything unmatched is a Candidate.
func (c *Classifier) Classify(ctx context.Context, domain string) Class {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return Candidate
	}

	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if !loaded {
		if err := c.Reload(ctx); err != nil {
			c.log.Warn("Marketplace registry unavailable, using configured lists",
				logger.Error(err))
			c.mu.Lock()
			c.loaded = true
			c.mu.Unlock()
		}
	}

	c.mu.RLock()
	stored := c.stored
	c.mu.RUnlock()
	for _, entry := range stored {
		if strings.Contains(entry, domain) || strings.Contains(domain, entry) {
			return Marketplace
		}
	}
	if c.marketplaces.in(domain) {
		return Marketplace
	}
	if c.excluded.in(domain) {
		return Excluded
	}
	return Candidate
}

// substrings matches a fixed dictionary against a string in a single pass.
type substrings struct {
	matcher *ahocorasick.Matcher
}

func newSubstrings(words []string) *substrings {
	words = lowerAll(words)
	if len(words) == 0 {
		return &substrings{}
	}
	return &substrings{matcher: ahocorasick.NewStringMatcher(words)}
}

// in reports whether any dictionary word occurs in s.
func (d *substrings) in(s string) bool {
	if d.matcher == nil {
		return false
	}
	return len(d.matcher.MatchThreadSafe([]byte(s))) > 0
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
