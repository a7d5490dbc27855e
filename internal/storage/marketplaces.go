package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amosWeiskopf/leadsmith/internal/models"
)

// AddMarketplace registers a marketplace domain. Registering an existing
// domain is a no-op and reports false.
func (s *Store) AddMarketplace(ctx context.Context, domain, name string, system bool) (bool, error) {
	return addMarketplace(ctx, s.db, s.now, domain, name, system)
}

// SeedMarketplaces registers each name as a system marketplace entry.
func (s *Store) SeedMarketplaces(ctx context.Context, names []string) (int, error) {
	added := 0
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, name := range names {
			ok, err := addMarketplace(ctx, tx, s.now, name, name, true)
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		return nil
	})
	return added, err
}

func addMarketplace(ctx context.Context, ext sqlx.ExtContext, now func() time.Time, domain, name string, system bool) (bool, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false, fmt.Errorf("add marketplace: empty domain")
	}
	res, err := ext.ExecContext(ctx, ext.Rebind(`
		INSERT INTO marketplaces (domain, name, is_system, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (domain) DO NOTHING`), domain, name, system, now())
	if err != nil {
		return false, fmt.Errorf("add marketplace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add marketplace: %w", err)
	}
	return n > 0, nil
}

// ListMarketplaces returns every registered marketplace entry.
func (s *Store) ListMarketplaces(ctx context.Context) ([]models.MarketplaceEntry, error) {
	var entries []models.MarketplaceEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT id, domain, name, is_system, created_at FROM marketplaces ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("list marketplaces: %w", err)
	}
	return entries, nil
}

// MarketplaceDomains returns the registered marketplace domains.
func (s *Store) MarketplaceDomains(ctx context.Context) ([]string, error) {
	var domains []string
	if err := s.db.SelectContext(ctx, &domains, `SELECT domain FROM marketplaces`); err != nil {
		return nil, fmt.Errorf("list marketplace domains: %w", err)
	}
	return domains, nil
}

// DeleteMarketplace removes a user-registered entry. System entries are kept.
func (s *Store) DeleteMarketplace(ctx context.Context, domain string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM marketplaces WHERE domain = ? AND is_system = ?`),
		strings.ToLower(strings.TrimSpace(domain)), false)
	if err != nil {
		return fmt.Errorf("delete marketplace: %w", err)
	}
	return expectAffected(res, "marketplace")
}
