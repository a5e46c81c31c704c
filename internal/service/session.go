package service

import (
	"context"
	"time"
)

// Session identifies the signed-in user for one request. It is created by the
// auth middleware and passed explicitly to service calls.
type Session struct {
	TokenID   string
	UserID    int64
	Email     string
	ExpiresAt time.Time
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
