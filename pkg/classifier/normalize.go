// Package classifier turns search result URLs into comparable root domains and
// sorts them into marketplaces, excluded platforms and candidate leads.
package classifier

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Normalizer canonicalizes URLs into the domain string used as the lead dedup key.
type Normalizer struct {
	prefixes []string
}

// NewNormalizer returns a normalizer that strips the given host prefixes
// (e.g. "www.", "shop.").
func NewNormalizer(prefixes []string) *Normalizer {
	ps := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.HasSuffix(p, ".") {
			p += "."
		}
		ps = append(ps, p)
	}
	return &Normalizer{prefixes: ps}
}

// Normalize returns the lower-cased host of raw with known throwaway prefixes
// removed. It accepts full URLs as well as bare hosts and reports false when
// no host can be parsed. Prefixes are stripped repeatedly, so the result is a
// fixed point: normalizing it again returns it unchanged. A prefix is kept
// when removing it would leave only a public suffix.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || strings.ContainsAny(host, " /\\@") {
		return "", false
	}
	if net.ParseIP(host) != nil {
		return host, true
	}

	for stripped := true; stripped; {
		stripped = false
		for _, p := range n.prefixes {
			rest, ok := strings.CutPrefix(host, p)
			if !ok || !strings.Contains(rest, ".") || isPublicSuffix(rest) {
				continue
			}
			host = rest
			stripped = true
		}
	}
	return host, true
}

func isPublicSuffix(host string) bool {
	suffix, _ := publicsuffix.PublicSuffix(host)
	return suffix == host
}
