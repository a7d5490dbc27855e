package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/amosWeiskopf/leadsmith/internal/models"
)

const marketColumns = `id, name, code, language, active, created_at`

// CreateMarket inserts m and sets its ID and CreatedAt. Codes are unique.
func (s *Store) CreateMarket(ctx context.Context, m *models.Market) error {
	m.Code = strings.ToLower(strings.TrimSpace(m.Code))
	m.Language = strings.ToLower(strings.TrimSpace(m.Language))
	m.CreatedAt = s.now()

	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO markets (name, code, language, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING
		RETURNING id`),
		m.Name, m.Code, m.Language, m.Active, m.CreatedAt,
	).Scan(&m.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("market %q: %w", m.Code, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create market: %w", err)
	}
	return nil
}

// GetMarket returns the market with the given id.
func (s *Store) GetMarket(ctx context.Context, id int64) (*models.Market, error) {
	var m models.Market
	err := s.db.GetContext(ctx, &m, s.q(`SELECT `+marketColumns+` FROM markets WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "market")
	}
	return &m, nil
}

// GetMarketByCode returns the market with the given code.
func (s *Store) GetMarketByCode(ctx context.Context, code string) (*models.Market, error) {
	var m models.Market
	err := s.db.GetContext(ctx, &m,
		s.q(`SELECT `+marketColumns+` FROM markets WHERE code = ?`),
		strings.ToLower(strings.TrimSpace(code)))
	if err != nil {
		return nil, notFound(err, "market")
	}
	return &m, nil
}

// ListMarkets returns markets ordered by name.
func (s *Store) ListMarkets(ctx context.Context, activeOnly bool) ([]models.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets`
	var args []any
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name, id`

	var markets []models.Market
	if err := s.db.SelectContext(ctx, &markets, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	return markets, nil
}

// SetMarketActive toggles whether the market takes part in batch runs.
func (s *Store) SetMarketActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE markets SET active = ? WHERE id = ?`), active, id)
	if err != nil {
		return fmt.Errorf("update market: %w", err)
	}
	return expectAffected(res, "market")
}

// DeleteMarket removes a market together with its keywords, leads and
// suggestions. Audit records survive with their market reference cleared.
func (s *Store) DeleteMarket(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			`UPDATE search_audit SET market_id = NULL, keyword_id = NULL WHERE market_id = ?`,
			`DELETE FROM keyword_suggestions WHERE market_id = ?`,
			`DELETE FROM leads WHERE market_id = ?`,
			`DELETE FROM keywords WHERE market_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return fmt.Errorf("delete market children: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM markets WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete market: %w", err)
		}
		return expectAffected(res, "market")
	})
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
