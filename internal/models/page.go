package models

import "time"

// Page represents a single fetched web page
type Page struct {
	URL         string    `json:"url"`
	FinalURL    string    `json:"final_url"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"-"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ContactResult contains the outcome of a bounded contact crawl
type ContactResult struct {
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	TaxID        string   `json:"tax_id,omitempty"`
	EmailsFound  []string `json:"emails_found"`
	PhonesFound  []string `json:"phones_found"`
	PagesVisited []string `json:"pages_visited"`
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
}

// SiteKeywords holds the keyword material extracted from one website
type SiteKeywords struct {
	URL          string         `json:"url"`
	Domain       string         `json:"domain"`
	MetaKeywords []string       `json:"meta_keywords"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Headings     []string       `json:"headings"`
	Terms        map[string]int `json:"terms"`
}
