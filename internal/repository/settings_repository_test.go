package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"humormapper/internal/repository"
	"humormapper/internal/repository/testutil"
)

func TestSettingsRepository_SetAndGet(t *testing.T) {
	repo := repository.NewSettingsRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	missing, err := repo.Get(ctx, "auth.jwt_secret")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, repo.Set(ctx, "auth.jwt_secret", "one"))
	require.NoError(t, repo.Set(ctx, "auth.jwt_secret", "two"))

	s, err := repo.Get(ctx, "auth.jwt_secret")
	require.NoError(t, err)
	require.Equal(t, "two", s.Value)
}

func TestSettingsRepository_SetIfAbsentKeepsFirstValue(t *testing.T) {
	repo := repository.NewSettingsRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	v, err := repo.SetIfAbsent(ctx, "k", "first")
	require.NoError(t, err)
	require.Equal(t, "first", v)

	v, err = repo.SetIfAbsent(ctx, "k", "second")
	require.NoError(t, err)
	require.Equal(t, "first", v)
}
