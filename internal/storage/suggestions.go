package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/amosWeiskopf/leadsmith/internal/models"
)

const suggestionColumns = `id, market_id, text, source, frequency, websites_count,
	ignored, added, created_at, updated_at`

const (
	// PromotedCategory is the category given to keywords created from suggestions
	PromotedCategory = "sugerida"
	// PromotedResults is the result count given to keywords created from suggestions
	PromotedResults = 5
)

// UpsertSuggestion inserts a suggestion or, when one already exists for the same
// market and text, raises its frequency and site count to the larger of the
// stored and observed values. It reports whether a new row was created.
func (s *Store) UpsertSuggestion(ctx context.Context, sg *models.KeywordSuggestion) (bool, error) {
	now := s.now()
	sg.CreatedAt, sg.UpdatedAt = now, now

	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO keyword_suggestions
			(market_id, text, source, frequency, websites_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_id, text) DO NOTHING
		RETURNING id`),
		sg.MarketID, sg.Text, sg.Source, sg.Frequency, sg.WebsitesCount, now, now,
	).Scan(&sg.ID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("insert suggestion: %w", err)
	}

	err = s.db.QueryRowxContext(ctx, s.q(`
		UPDATE keyword_suggestions SET
			frequency = CASE WHEN frequency > ? THEN frequency ELSE ? END,
			websites_count = CASE WHEN websites_count > ? THEN websites_count ELSE ? END,
			updated_at = ?
		WHERE market_id = ? AND text = ?
		RETURNING `+suggestionColumns),
		sg.Frequency, sg.Frequency, sg.WebsitesCount, sg.WebsitesCount, now, sg.MarketID, sg.Text,
	).StructScan(sg)
	if err != nil {
		return false, fmt.Errorf("update suggestion: %w", err)
	}
	return false, nil
}

// GetSuggestion returns the suggestion with the given id.
func (s *Store) GetSuggestion(ctx context.Context, id int64) (*models.KeywordSuggestion, error) {
	var sg models.KeywordSuggestion
	err := s.db.GetContext(ctx, &sg, s.q(`SELECT `+suggestionColumns+` FROM keyword_suggestions WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "suggestion")
	}
	return &sg, nil
}

// ListSuggestions returns a market's open suggestions (neither ignored nor
// added), most frequent first.
func (s *Store) ListSuggestions(ctx context.Context, marketID int64, limit int) ([]models.KeywordSuggestion, error) {
	return s.selectSuggestions(ctx, `
		SELECT `+suggestionColumns+` FROM keyword_suggestions
		WHERE market_id = ? AND ignored = ? AND added = ?
		ORDER BY frequency DESC, websites_count DESC, id
		LIMIT ?`, marketID, false, false, limit)
}

// RankSuggestions returns a market's non-ignored suggestions, added or not,
// most frequent first.
func (s *Store) RankSuggestions(ctx context.Context, marketID int64, limit int) ([]models.KeywordSuggestion, error) {
	return s.selectSuggestions(ctx, `
		SELECT `+suggestionColumns+` FROM keyword_suggestions
		WHERE market_id = ? AND ignored = ?
		ORDER BY frequency DESC, websites_count DESC, id
		LIMIT ?`, marketID, false, limit)
}

func (s *Store) selectSuggestions(ctx context.Context, query string, args ...any) ([]models.KeywordSuggestion, error) {
	var out []models.KeywordSuggestion
	if err := s.db.SelectContext(ctx, &out, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return out, nil
}

// IgnoreSuggestion hides a suggestion from future listings.
func (s *Store) IgnoreSuggestion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE keyword_suggestions SET ignored = ?, updated_at = ? WHERE id = ?`), true, s.now(), id)
	if err != nil {
		return fmt.Errorf("ignore suggestion: %w", err)
	}
	return expectAffected(res, "suggestion")
}

// PromoteSuggestion turns a suggestion into a search keyword of its market and
// marks it added. When the market already has that keyword the existing one is
// returned and created is false.
func (s *Store) PromoteSuggestion(ctx context.Context, id int64) (*models.Keyword, bool, error) {
	var (
		kw      models.Keyword
		created bool
	)
	now := s.now()
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var sg models.KeywordSuggestion
		if err := tx.GetContext(ctx, &sg,
			tx.Rebind(`SELECT `+suggestionColumns+` FROM keyword_suggestions WHERE id = ?`), id); err != nil {
			return notFound(err, "suggestion")
		}

		err := tx.GetContext(ctx, &kw, tx.Rebind(`
			SELECT `+keywordColumns+` FROM keywords
			WHERE market_id = ? AND LOWER(text) = LOWER(?)
			ORDER BY id LIMIT 1`), sg.MarketID, sg.Text)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			kw = models.Keyword{
				MarketID:         sg.MarketID,
				Text:             sg.Text,
				Category:         PromotedCategory,
				ResultsPerSearch: PromotedResults,
				Active:           true,
				CreatedAt:        now,
			}
			if err := tx.GetContext(ctx, &kw.ID, tx.Rebind(`
				INSERT INTO keywords (market_id, text, category, results_per_search, active, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
				RETURNING id`),
				kw.MarketID, kw.Text, kw.Category, kw.ResultsPerSearch, kw.Active, kw.CreatedAt); err != nil {
				return fmt.Errorf("create keyword from suggestion: %w", err)
			}
			created = true
		case err != nil:
			return fmt.Errorf("find keyword: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE keyword_suggestions SET added = ?, updated_at = ? WHERE id = ?`), true, now, id); err != nil {
			return fmt.Errorf("mark suggestion added: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &kw, created, nil
}
