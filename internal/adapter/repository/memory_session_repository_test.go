package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibomarket/internal/domain/entity"
	"bibomarket/pkg/errors"
)

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	_, err := repo.Get(ctx, "default")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	session := &entity.Session{Profile: "default", Token: "t1", User: entity.User{ID: "u1"}}
	require.NoError(t, repo.Save(ctx, session))

	// Stored by value: later changes to the caller's copy are not visible.
	session.Token = "mutated"
	got, err := repo.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Token)

	require.NoError(t, repo.Delete(ctx, "default"))
	require.NoError(t, repo.Delete(ctx, "default"))
	_, err = repo.Get(ctx, "default")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	err = repo.Save(ctx, &entity.Session{Token: "t"})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}
