package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/amosWeiskopf/leadsmith/internal/models"
)

const leadColumns = `id, market_id, keyword_id, status_id, name, url, domain, snippet,
	email, phone, tax_id, tab, reviewed, found_at, reviewed_at,
	contact_extracted, contact_extracted_at`

// CreateLeadIfAbsent inserts l unless a lead already exists for the same market
// and domain. The check and insert are a single statement, so concurrent
// callers cannot create two leads for one domain. On return l.ID holds the id of
// the new or existing row.
func (s *Store) CreateLeadIfAbsent(ctx context.Context, l *models.Lead) (bool, error) {
	if !l.Tab.Valid() {
		l.Tab = models.TabNew
	}
	l.FoundAt = s.now()

	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO leads (market_id, keyword_id, name, url, domain, snippet, tab, found_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_id, domain) DO NOTHING
		RETURNING id`),
		l.MarketID, l.KeywordID, l.Name, l.URL, l.Domain, l.Snippet, l.Tab, l.FoundAt,
	).Scan(&l.ID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("create lead: %w", err)
	}

	if err := s.db.GetContext(ctx, &l.ID,
		s.q(`SELECT id FROM leads WHERE market_id = ? AND domain = ?`), l.MarketID, l.Domain); err != nil {
		return false, fmt.Errorf("find existing lead: %w", err)
	}
	return false, nil
}

// GetLead returns the lead with the given id.
func (s *Store) GetLead(ctx context.Context, id int64) (*models.Lead, error) {
	var l models.Lead
	if err := s.db.GetContext(ctx, &l, s.q(`SELECT `+leadColumns+` FROM leads WHERE id = ?`), id); err != nil {
		return nil, notFound(err, "lead")
	}
	return &l, nil
}

// LeadFilter narrows ListLeads. Zero values match everything.
type LeadFilter struct {
	MarketID int64
	Tab      models.Tab
	// PendingContact restricts to leads whose contact extraction has not run.
	PendingContact bool
	Limit          int
}

// ListLeads returns leads matching f, newest first.
func (s *Store) ListLeads(ctx context.Context, f LeadFilter) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1 = 1`
	var args []any
	if f.MarketID != 0 {
		query += ` AND market_id = ?`
		args = append(args, f.MarketID)
	}
	if f.Tab != "" {
		query += ` AND tab = ?`
		args = append(args, f.Tab)
	}
	if f.PendingContact {
		query += ` AND contact_extracted = ?`
		args = append(args, false)
	}
	query += ` ORDER BY found_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var leads []models.Lead
	if err := s.db.SelectContext(ctx, &leads, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

// CountLeadsByTab returns the number of leads per tab for a market.
func (s *Store) CountLeadsByTab(ctx context.Context, marketID int64) (map[models.Tab]int, error) {
	var rows []struct {
		Tab   models.Tab `db:"tab"`
		Count int        `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows,
		s.q(`SELECT tab, COUNT(*) AS n FROM leads WHERE market_id = ? GROUP BY tab`), marketID)
	if err != nil {
		return nil, fmt.Errorf("count leads: %w", err)
	}
	counts := map[models.Tab]int{
		models.TabNew: 0, models.TabAccepted: 0, models.TabUncertain: 0,
		models.TabRejected: 0, models.TabMarketplace: 0,
	}
	for _, r := range rows {
		counts[r.Tab] = r.Count
	}
	return counts, nil
}

// ApplyLeadContact fills the lead's empty contact fields from u and marks the
// extraction attempted. Fields that already hold a value are left untouched.
func (s *Store) ApplyLeadContact(ctx context.Context, id int64, u models.ContactUpdate) error {
	at := u.At
	if at.IsZero() {
		at = s.now()
	}
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE leads SET
			email = COALESCE(NULLIF(email, ''), NULLIF(?, '')),
			phone = COALESCE(NULLIF(phone, ''), NULLIF(?, '')),
			tax_id = COALESCE(NULLIF(tax_id, ''), NULLIF(?, '')),
			contact_extracted = ?,
			contact_extracted_at = ?
		WHERE id = ?`),
		u.Email, u.Phone, u.TaxID, true, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update lead contact: %w", err)
	}
	return expectAffected(res, "lead")
}

// ReviewLead moves a lead to another tab and marks it reviewed. Moves that
// the tab state machine forbids return models.ErrInvalidTransition.
func (s *Store) ReviewLead(ctx context.Context, id int64, next models.Tab) (*models.Lead, error) {
	var lead models.Lead
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &lead, tx.Rebind(`SELECT `+leadColumns+` FROM leads WHERE id = ?`), id); err != nil {
			return notFound(err, "lead")
		}
		tab, err := lead.Tab.Transition(next)
		if err != nil {
			return err
		}
		at := s.now()
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE leads SET tab = ?, reviewed = ?, reviewed_at = ? WHERE id = ?`),
			tab, true, at, id); err != nil {
			return fmt.Errorf("review lead: %w", err)
		}
		lead.Tab = tab
		lead.Reviewed = true
		lead.ReviewedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// DeleteLead removes a single lead.
func (s *Store) DeleteLead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM leads WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return expectAffected(res, "lead")
}
