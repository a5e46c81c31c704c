package repository

import (
	"context"

	"humormapper/internal/model"
	"humormapper/internal/snowflake"
)

// TranslationRepository persists saved joke adaptations. Records are append-only.
type TranslationRepository interface {
	Insert(ctx context.Context, record model.TranslationRecord) (model.TranslationRecord, error)
	ListRecentByUser(ctx context.Context, userID int64, limit int) ([]model.TranslationRecord, error)
}

type translationRepository struct {
	db dbtx
}

func NewTranslationRepository(db dbtx) TranslationRepository {
	return &translationRepository{db: db}
}

// Insert assigns ID and CreatedAt and returns the stored record.
func (r *translationRepository) Insert(ctx context.Context, rec model.TranslationRecord) (model.TranslationRecord, error) {
	rec.ID = snowflake.NextID()
	rec.CreatedAt = now()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO humor_translations
		   (id, user_id, user_email, original_text, target_culture, translated_text, model_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.UserEmail, rec.OriginalText, rec.TargetCulture,
		rec.TranslatedText, rec.ModelUsed, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return model.TranslationRecord{}, err
	}
	return rec, nil
}

// ListRecentByUser returns up to limit records owned by userID, newest first.
func (r *translationRepository) ListRecentByUser(ctx context.Context, userID int64, limit int) ([]model.TranslationRecord, error) {
	if limit <= 0 {
		return []model.TranslationRecord{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, user_email, original_text, target_culture, translated_text, model_used, created_at
		 FROM humor_translations
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.TranslationRecord, 0, limit)
	for rows.Next() {
		var rec model.TranslationRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.UserEmail, &rec.OriginalText,
			&rec.TargetCulture, &rec.TranslatedText, &rec.ModelUsed, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = parseTime(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
