// Package extractor finds contact data in HTML pages.
package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/net/html"

	"github.com/amosWeiskopf/leadsmith/internal/config"
)

var (
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneSeparator = regexp.MustCompile(`[\s.-]`)
	nonDigit       = regexp.MustCompile(`\D`)
)

const (
	minPhoneDigits  = 9
	nationalLeading = "6789"
)

// Contacts is the raw contact data found on a single page.
type Contacts struct {
	Emails []string
	Phones []string
	TaxID  string
}

// Extractor applies the email, phone and tax id heuristics.
type Extractor struct {
	deny         *ahocorasick.Matcher
	priority     []string
	phones       []*regexp.Regexp
	taxID        *regexp.Regexp
	mobileDigits string
	prefixes     []string
	countryCode  string
}

// New compiles the extractor heuristics from the crawler configuration.
func New(cfg config.CrawlerConfig) (*Extractor, error) {
	e := &Extractor{
		priority:     cfg.EmailPriority,
		mobileDigits: cfg.MobileDigits,
		prefixes:     cfg.CountryPrefixes,
		countryCode:  cfg.DefaultCountryCode,
	}

	var deny []string
	for _, d := range cfg.EmailDenyList {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			deny = append(deny, d)
		}
	}
	if len(deny) > 0 {
		e.deny = ahocorasick.NewStringMatcher(deny)
	}

	for _, p := range cfg.PhonePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("phone pattern %q: %w", p, err)
		}
		e.phones = append(e.phones, re)
	}

	pattern := cfg.TaxIDPattern
	if pattern == "" {
		pattern = config.DefaultTaxIDPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("tax id pattern: %w", err)
	}
	e.taxID = re
	return e, nil
}

// ExtractPage parses body and returns the contact data it holds.
func (e *Extractor) ExtractPage(body []byte) (Contacts, error) {
	text, err := VisibleText(body)
	if err != nil {
		return Contacts{}, err
	}
	return e.ExtractText(text), nil
}

// ExtractText applies all heuristics to plain text.
func (e *Extractor) ExtractText(text string) Contacts {
	return Contacts{
		Emails: e.FindEmails(text),
		Phones: e.FindPhones(text),
		TaxID:  e.FindTaxID(text),
	}
}

// FindEmails returns lower-cased addresses not matching the deny list, in
// order of appearance.
func (e *Extractor) FindEmails(text string) []string {
	var emails []string
	for _, match := range emailPattern.FindAllString(text, -1) {
		email := strings.ToLower(match)
		if e.deny != nil && len(e.deny.MatchThreadSafe([]byte(email))) > 0 {
			continue
		}
		emails = append(emails, email)
	}
	return emails
}

// FindPhones runs every phone pattern over text and keeps matches with at
// least nine characters once separators are removed.
func (e *Extractor) FindPhones(text string) []string {
	var phones []string
	for _, re := range e.phones {
		for _, match := range re.FindAllString(text, -1) {
			clean := phoneSeparator.ReplaceAllString(match, "")
			if len(clean) >= minPhoneDigits {
				phones = append(phones, clean)
			}
		}
	}
	return phones
}

// FindTaxID returns the first tax id in text, upper-cased.
func (e *Extractor) FindTaxID(text string) string {
	return strings.ToUpper(e.taxID.FindString(text))
}

// SelectBestEmail picks the first address starting with the highest priority
// prefix, falling back to the first address.
func (e *Extractor) SelectBestEmail(emails []string) string {
	if len(emails) == 0 {
		return ""
	}
	for _, prefix := range e.priority {
		for _, email := range emails {
			if strings.HasPrefix(email, prefix) {
				return email
			}
		}
	}
	return emails[0]
}

// SelectBestPhone prefers the first mobile number and formats the choice for
// display.
func (e *Extractor) SelectBestPhone(phones []string) string {
	if len(phones) == 0 {
		return ""
	}
	for _, phone := range phones {
		if e.isMobile(phone) {
			return e.FormatPhone(phone)
		}
	}
	return e.FormatPhone(phones[0])
}

func (e *Extractor) isMobile(phone string) bool {
	digits := nonDigit.ReplaceAllString(phone, "")
	if len(digits) < minPhoneDigits {
		return false
	}
	for _, prefix := range e.prefixes {
		if strings.HasPrefix(digits, prefix) && len(digits) >= len(prefix)+minPhoneDigits {
			return strings.IndexByte(e.mobileDigits, digits[len(prefix)]) >= 0
		}
	}
	return strings.IndexByte(e.mobileDigits, digits[0]) >= 0
}

// FormatPhone renders national nine digit numbers and numbers already carrying
// the default country code as "+CC XXX XX XX XX". Anything else is returned
// unchanged.
func (e *Extractor) FormatPhone(phone string) string {
	digits := nonDigit.ReplaceAllString(phone, "")
	cc := e.countryCode

	if len(digits) == minPhoneDigits && strings.IndexByte(nationalLeading, digits[0]) >= 0 && cc != "" {
		return fmt.Sprintf("+%s %s %s %s %s", cc, digits[:3], digits[3:5], digits[5:7], digits[7:])
	}
	if cc != "" && len(digits) >= len(cc)+minPhoneDigits && strings.HasPrefix(digits, cc) {
		n := digits[len(cc):]
		return fmt.Sprintf("+%s %s %s %s %s", cc, n[:3], n[3:5], n[5:7], n[7:])
	}
	return phone
}

// VisibleText returns the text nodes of an HTML document joined by spaces,
// followed by the targets of mailto: and tel: links. Script and style content
// is skipped.
func VisibleText(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var text, targets []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				text = append(text, s)
			}
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "a":
				for _, attr := range n.Attr {
					if attr.Key != "href" {
						continue
					}
					href := strings.TrimSpace(attr.Val)
					if rest, ok := cutPrefixFold(href, "mailto:"); ok {
						targets = append(targets, strings.SplitN(rest, "?", 2)[0])
					} else if rest, ok := cutPrefixFold(href, "tel:"); ok {
						targets = append(targets, rest)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(append(text, targets...), " "), nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
