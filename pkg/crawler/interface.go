package crawler

import (
	"context"
	"time"

	"github.com/amosWeiskopf/leadsmith/internal/config"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/internal/storage"
)

// ContactExtractor defines the interface for bounded contact crawls
type ContactExtractor interface {
	// ExtractContact visits up to maxPages pages of the site behind url and
	// returns the best email, phone and tax id found
	ExtractContact(ctx context.Context, url string, maxPages int) *models.ContactResult
}

// LeadStore is the persistence the enrichment jobs need
type LeadStore interface {
	GetLead(ctx context.Context, id int64) (*models.Lead, error)
	ListLeads(ctx context.Context, f storage.LeadFilter) ([]models.Lead, error)
	ApplyLeadContact(ctx context.Context, id int64, u models.ContactUpdate) error
}

// Options contains configuration for the contact crawler
type Options struct {
	ContactPaths []string      // Paths tried after the home page, in order
	MaxPages     int           // Default page budget per site
	PageDelay    time.Duration // Pause between pages of one site
	SiteDelay    time.Duration // Pause between sites in batch enrichment
}

// OptionsFromConfig builds crawler options from the crawler section
func OptionsFromConfig(cfg config.CrawlerConfig) Options {
	return Options{
		ContactPaths: cfg.ContactPaths,
		MaxPages:     cfg.MaxPages,
		PageDelay:    cfg.PageDelay,
		SiteDelay:    cfg.SiteDelay,
	}
}
