package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tab is the review classification of a lead. The zero value is not a valid tab.
type Tab string

const (
	TabNew         Tab = "new"
	TabAccepted    Tab = "accepted"
	TabUncertain   Tab = "uncertain"
	TabRejected    Tab = "rejected"
	TabMarketplace Tab = "marketplace"
)

var (
	// ErrUnknownTab is returned when parsing a tab name that is not one of the known tabs
	ErrUnknownTab = errors.New("unknown lead tab")
	// ErrInvalidTransition is returned when a lead is moved to a tab it may not enter
	ErrInvalidTransition = errors.New("invalid lead tab transition")
)

var allTabs = []Tab{TabNew, TabAccepted, TabUncertain, TabRejected, TabMarketplace}

// Tabs returns every tab in review order.
func Tabs() []Tab { return append([]Tab(nil), allTabs...) }

// ParseTab converts a tab name into a Tab
func ParseTab(s string) (Tab, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range allTabs {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
}

// Valid reports whether t is one of the known tabs
func (t Tab) Valid() bool {
	for _, known := range allTabs {
		if t == known {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a lead in tab t may be moved to next.
// Leads leave "new" exactly once and never return to it.
func (t Tab) CanTransitionTo(next Tab) bool {
	if !t.Valid() || !next.Valid() {
		return false
	}
	if next == TabNew {
		return t == TabNew
	}
	return true
}

// Transition returns next when the move from t is allowed
func (t Tab) Transition(next Tab) (Tab, error) {
	if !t.CanTransitionTo(next) {
		return t, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t, next)
	}
	return next, nil
}

// Lead is a business website discovered by a search, unique per market and domain
type Lead struct {
	ID                 int64      `db:"id" json:"id"`
	MarketID           int64      `db:"market_id" json:"market_id"`
	KeywordID          *int64     `db:"keyword_id" json:"keyword_id,omitempty"`
	StatusID           *int64     `db:"status_id" json:"status_id,omitempty"`
	Name               string     `db:"name" json:"name"`
	URL                string     `db:"url" json:"url"`
	Domain             string     `db:"domain" json:"domain"`
	Snippet            string     `db:"snippet" json:"snippet"`
	Email              *string    `db:"email" json:"email,omitempty"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	TaxID              *string    `db:"tax_id" json:"tax_id,omitempty"`
	Tab                Tab        `db:"tab" json:"tab"`
	Reviewed           bool       `db:"reviewed" json:"reviewed"`
	FoundAt            time.Time  `db:"found_at" json:"found_at"`
	ReviewedAt         *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ContactExtracted   bool       `db:"contact_extracted" json:"contact_extracted"`
	ContactExtractedAt *time.Time `db:"contact_extracted_at" json:"contact_extracted_at,omitempty"`
}

// ContactUpdate describes the contact fields to fill on a lead. Empty values are ignored.
type ContactUpdate struct {
	Email string
	Phone string
	TaxID string
	At    time.Time
}
