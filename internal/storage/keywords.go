package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/amosWeiskopf/leadsmith/internal/models"
)

const keywordColumns = `id, market_id, text, category, results_per_search, active,
	total_searches, total_results, last_search_at, created_at`

// MaxResultsPerSearch is the search provider's hard ceiling per call.
const MaxResultsPerSearch = 10

// CreateKeyword inserts k and sets its ID and CreatedAt. Texts are unique per market.
func (s *Store) CreateKeyword(ctx context.Context, k *models.Keyword) error {
	k.Text = strings.TrimSpace(k.Text)
	if k.Text == "" {
		return fmt.Errorf("create keyword: empty text")
	}
	if k.ResultsPerSearch == 0 {
		k.ResultsPerSearch = MaxResultsPerSearch
	}
	if k.ResultsPerSearch < 1 || k.ResultsPerSearch > MaxResultsPerSearch {
		return fmt.Errorf("create keyword: results per search must be between 1 and %d", MaxResultsPerSearch)
	}
	k.CreatedAt = s.now()

	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO keywords (market_id, text, category, results_per_search, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_id, text) DO NOTHING
		RETURNING id`),
		k.MarketID, k.Text, k.Category, k.ResultsPerSearch, k.Active, k.CreatedAt,
	).Scan(&k.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("keyword %q: %w", k.Text, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create keyword: %w", err)
	}
	return nil
}

// GetKeyword returns the keyword with the given id.
func (s *Store) GetKeyword(ctx context.Context, id int64) (*models.Keyword, error) {
	var k models.Keyword
	if err := s.db.GetContext(ctx, &k, s.q(`SELECT `+keywordColumns+` FROM keywords WHERE id = ?`), id); err != nil {
		return nil, notFound(err, "keyword")
	}
	return &k, nil
}

// FindKeywordByText looks a keyword up by case-insensitive text within a market.
func (s *Store) FindKeywordByText(ctx context.Context, marketID int64, text string) (*models.Keyword, error) {
	var k models.Keyword
	err := s.db.GetContext(ctx, &k, s.q(`
		SELECT `+keywordColumns+` FROM keywords
		WHERE market_id = ? AND LOWER(text) = LOWER(?)
		ORDER BY id LIMIT 1`), marketID, strings.TrimSpace(text))
	if err != nil {
		return nil, notFound(err, "keyword")
	}
	return &k, nil
}

// ListKeywords returns a market's keywords in creation order.
func (s *Store) ListKeywords(ctx context.Context, marketID int64, activeOnly bool) ([]models.Keyword, error) {
	query := `SELECT ` + keywordColumns + ` FROM keywords WHERE market_id = ?`
	args := []any{marketID}
	if activeOnly {
		query += ` AND active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id`

	var keywords []models.Keyword
	if err := s.db.SelectContext(ctx, &keywords, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	return keywords, nil
}

// ActiveKeywordTexts returns the lower-cased texts of a market's active keywords.
func (s *Store) ActiveKeywordTexts(ctx context.Context, marketID int64) (map[string]bool, error) {
	var texts []string
	err := s.db.SelectContext(ctx, &texts,
		s.q(`SELECT LOWER(text) FROM keywords WHERE market_id = ? AND active = ?`), marketID, true)
	if err != nil {
		return nil, fmt.Errorf("list keyword texts: %w", err)
	}
	set := make(map[string]bool, len(texts))
	for _, t := range texts {
		set[t] = true
	}
	return set, nil
}

// ListKeywordsByResults returns a market's keywords ranked by total results.
func (s *Store) ListKeywordsByResults(ctx context.Context, marketID int64) ([]models.Keyword, error) {
	var keywords []models.Keyword
	err := s.db.SelectContext(ctx, &keywords, s.q(`
		SELECT `+keywordColumns+` FROM keywords
		WHERE market_id = ?
		ORDER BY total_results DESC, id`), marketID)
	if err != nil {
		return nil, fmt.Errorf("rank keywords: %w", err)
	}
	return keywords, nil
}

// SetKeywordActive toggles whether the keyword is searched in batch runs.
func (s *Store) SetKeywordActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE keywords SET active = ? WHERE id = ?`), active, id)
	if err != nil {
		return fmt.Errorf("update keyword: %w", err)
	}
	return expectAffected(res, "keyword")
}
