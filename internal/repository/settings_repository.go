package repository

import (
	"context"
	"database/sql"

	"humormapper/internal/model"
)

// SettingsRepository stores process-wide key/value settings.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	Set(ctx context.Context, key, value string) error
	// SetIfAbsent stores value only when key has no row yet and returns the
	// value that is stored afterwards.
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
}

type settingsRepository struct {
	db dbtx
}

func NewSettingsRepository(db dbtx) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	row := r.db.QueryRowContext(ctx, `SELECT key, value, updated_at FROM settings WHERE key = ?`, key)

	var s model.Setting
	var updatedAt string
	if err := row.Scan(&s.Key, &s.Value, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.UpdatedAt, _ = parseTime(updatedAt)
	return &s, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(now()))
	return err
}

func (r *settingsRepository) SetIfAbsent(ctx context.Context, key, value string) (string, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, value, formatTime(now())); err != nil {
		return "", err
	}
	s, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", sql.ErrNoRows
	}
	return s.Value, nil
}
