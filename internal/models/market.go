package models

import "time"

// Market is a country/locale scope that owns keywords and leads
type Market struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Language  string    `db:"language" json:"language"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Keyword is a search term issued against the search provider for one market
type Keyword struct {
	ID               int64      `db:"id" json:"id"`
	MarketID         int64      `db:"market_id" json:"market_id"`
	Text             string     `db:"text" json:"text"`
	Category         string     `db:"category" json:"category"`
	ResultsPerSearch int        `db:"results_per_search" json:"results_per_search"`
	Active           bool       `db:"active" json:"active"`
	TotalSearches    int        `db:"total_searches" json:"total_searches"`
	TotalResults     int        `db:"total_results" json:"total_results"`
	LastSearchAt     *time.Time `db:"last_search_at" json:"last_search_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// SearchAudit is the immutable log entry written for every search attempt
type SearchAudit struct {
	ID            int64     `db:"id" json:"id"`
	MarketID      *int64    `db:"market_id" json:"market_id,omitempty"`
	KeywordID     *int64    `db:"keyword_id" json:"keyword_id,omitempty"`
	KeywordText   string    `db:"keyword_text" json:"keyword_text"`
	ResultsCount  int       `db:"results_count" json:"results_count"`
	NewLeadsCount int       `db:"new_leads_count" json:"new_leads_count"`
	Success       bool      `db:"success" json:"success"`
	ErrorMessage  *string   `db:"error_message" json:"error_message,omitempty"`
	SearchedAt    time.Time `db:"searched_at" json:"searched_at"`
}

// MarketplaceEntry is a known third-party sales platform domain
type MarketplaceEntry struct {
	ID        int64     `db:"id" json:"id"`
	Domain    string    `db:"domain" json:"domain"`
	Name      string    `db:"name" json:"name"`
	IsSystem  bool      `db:"is_system" json:"is_system"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SuggestionSource records where a suggested keyword was observed
type SuggestionSource string

const (
	SourceMeta    SuggestionSource = "meta"
	SourceContent SuggestionSource = "content"
)

// KeywordSuggestion is a candidate keyword mined from accepted leads' websites
type KeywordSuggestion struct {
	ID            int64            `db:"id" json:"id"`
	MarketID      int64            `db:"market_id" json:"market_id"`
	Text          string           `db:"text" json:"text"`
	Source        SuggestionSource `db:"source" json:"source"`
	Frequency     int              `db:"frequency" json:"frequency"`
	WebsitesCount int              `db:"websites_count" json:"websites_count"`
	Ignored       bool             `db:"ignored" json:"ignored"`
	Added         bool             `db:"added" json:"added"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// SearchStats summarises today's quota usage
type SearchStats struct {
	SearchesToday int  `json:"searches_today"`
	MaxSearches   int  `json:"max_searches"`
	Remaining     int  `json:"remaining"`
	IsUnlimited   bool `json:"is_unlimited"`
}
