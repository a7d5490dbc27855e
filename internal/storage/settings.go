package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// SettingMaxSearches overrides the configured daily search ceiling.
const SettingMaxSearches = "max_searches"

// GetSetting returns a persisted setting and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.q(`SELECT value FROM app_settings WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores a setting, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, value, s.now())
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// MaxSearches returns the persisted daily ceiling, or fallback when none is
// stored or the stored value is not a non-negative integer.
func (s *Store) MaxSearches(ctx context.Context, fallback int) (int, error) {
	value, ok, err := s.GetSetting(ctx, SettingMaxSearches)
	if err != nil || !ok {
		return fallback, err
	}
	n, convErr := strconv.Atoi(value)
	if convErr != nil || n < 0 {
		return fallback, nil
	}
	return n, nil
}

// SetMaxSearches persists the daily search ceiling. Zero means unlimited.
func (s *Store) SetMaxSearches(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%s must not be negative, got %d", SettingMaxSearches, n)
	}
	return s.SetSetting(ctx, SettingMaxSearches, strconv.Itoa(n))
}
