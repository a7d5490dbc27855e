package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amosWeiskopf/leadsmith/internal/models"
)

const auditColumns = `id, market_id, keyword_id, keyword_text, results_count,
	new_leads_count, success, error_message, searched_at`

// InsertAudit appends a search audit record. SearchedAt defaults to now.
func (s *Store) InsertAudit(ctx context.Context, a *models.SearchAudit) error {
	return insertAudit(ctx, s.db, s.now(), a)
}

// RecordSearch stores the outcome of a successful search: the keyword's running
// counters are incremented and the audit record appended in one transaction.
func (s *Store) RecordSearch(ctx context.Context, keywordID int64, a *models.SearchAudit) error {
	now := s.now()
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE keywords SET
				total_searches = total_searches + 1,
				total_results = total_results + ?,
				last_search_at = ?
			WHERE id = ?`), a.ResultsCount, now, keywordID)
		if err != nil {
			return fmt.Errorf("increment keyword counters: %w", err)
		}
		if err := expectAffected(res, "keyword"); err != nil {
			return err
		}
		return insertAudit(ctx, tx, now, a)
	})
}

func insertAudit(ctx context.Context, ext sqlx.ExtContext, now time.Time, a *models.SearchAudit) error {
	if a.SearchedAt.IsZero() {
		a.SearchedAt = now
	}
	err := sqlx.GetContext(ctx, ext, &a.ID, ext.Rebind(`
		INSERT INTO search_audit
			(market_id, keyword_id, keyword_text, results_count, new_leads_count, success, error_message, searched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		a.MarketID, a.KeywordID, a.KeywordText, a.ResultsCount, a.NewLeadsCount,
		a.Success, a.ErrorMessage, a.SearchedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert search audit: %w", err)
	}
	return nil
}

// CountAuditsSince counts audit records of any outcome at or after since.
func (s *Store) CountAuditsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		s.q(`SELECT COUNT(*) FROM search_audit WHERE searched_at >= ?`), since.UTC())
	if err != nil {
		return 0, fmt.Errorf("count search audit: %w", err)
	}
	return n, nil
}

// ListAudits returns the most recent audit records, optionally for one market.
func (s *Store) ListAudits(ctx context.Context, marketID int64, limit int) ([]models.SearchAudit, error) {
	query := `SELECT ` + auditColumns + ` FROM search_audit`
	var args []any
	if marketID != 0 {
		query += ` WHERE market_id = ?`
		args = append(args, marketID)
	}
	query += ` ORDER BY searched_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var audits []models.SearchAudit
	if err := s.db.SelectContext(ctx, &audits, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list search audit: %w", err)
	}
	return audits, nil
}
