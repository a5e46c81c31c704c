package model

import "time"

// User is an account that can sign in and own saved translations.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is a signed-in token. Deleting the row revokes the token.
type Session struct {
	ID        string
	UserID    int64
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Setting is a key/value row used for process-wide secrets.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
