package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-admin/internal/models"
)

func newGroups(ordering Ordering) *Collection[models.Group] {
	return NewCollection[models.Group](func(g *models.Group, id int64) { g.ID = id }, ordering)
}

func names(items []models.Group) []string {
	out := make([]string, 0, len(items))
	for _, g := range items {
		out = append(out, g.Name)
	}
	return out
}

func TestCollectionPaging(t *testing.T) {
	ctx := context.Background()
	repo := newGroups(OldestFirst)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := repo.Insert(ctx, models.Group{Name: name})
		require.NoError(t, err)
	}

	page, total, err := repo.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"a", "b"}, names(page))

	page, _, err = repo.List(ctx, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, names(page))

	page, _, err = repo.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestCollectionNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newGroups(NewestFirst)
	for _, name := range []string{"a", "b", "c"} {
		_, err := repo.Insert(ctx, models.Group{Name: name})
		require.NoError(t, err)
	}
	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, names(all))
}

func TestCollectionMutations(t *testing.T) {
	ctx := context.Background()
	repo := newGroups(OldestFirst)
	created, err := repo.Insert(ctx, models.Group{Name: "a", ID: 99})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	updated, err := repo.Update(ctx, 1, models.Group{Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.ID)

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, repo.Delete(ctx, 1))
	assert.ErrorIs(t, repo.Delete(ctx, 1), ErrNotFound)
	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Update(ctx, 1, models.Group{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, repo.Exists(ctx, 1))

	next, err := repo.Insert(ctx, models.Group{Name: "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.ID)
}

func TestMemoryTokenRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()
	require.NoError(t, repo.Create(ctx, &models.RefreshToken{ID: "1", Token: "abc", ExpiresAt: time.Now().Add(time.Hour)}))

	token, err := repo.Find(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, token.Revoked)

	require.NoError(t, repo.Revoke(ctx, "abc"))
	token, err = repo.Find(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, token.Revoked)

	_, err = repo.Find(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
