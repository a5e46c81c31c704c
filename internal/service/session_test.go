package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"humormapper/internal/service"
)

func TestSessionContext(t *testing.T) {
	require.Nil(t, service.SessionFromContext(context.Background()))

	s := &service.Session{TokenID: "t", UserID: 7, Email: "u@example.com"}
	ctx := service.WithSession(context.Background(), s)
	require.Same(t, s, service.SessionFromContext(ctx))
}
