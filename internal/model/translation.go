package model

import "time"

// TranslationRecord is a saved joke adaptation. Records are only written after
// a model produced an accepted response, so ModelUsed is always set.
type TranslationRecord struct {
	ID             int64
	UserID         int64
	UserEmail      string
	OriginalText   string
	TargetCulture  string
	TranslatedText string
	ModelUsed      string
	CreatedAt      time.Time
}
