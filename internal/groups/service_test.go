package groups

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooking/internal/access"
	"roombooking/internal/database"
	"roombooking/internal/models"
	"roombooking/internal/repository"
)

func TestGroups(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "groups.db"), time.UTC, &logger)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	for _, code := range []string{"alice", "bob", "carol", "dave"} {
		require.NoError(t, db.UpsertUser(ctx, &models.User{Code: code, TypeID: 1}))
	}
	alice := &models.User{Code: "alice"}
	dave := &models.User{Code: "dave"}
	svc := NewService(db, db, 3, &logger)

	_, err = svc.Create(ctx, alice, "  ")
	assert.ErrorIs(t, err, ErrInvalidGroup)

	g, err := svc.Create(ctx, alice, "thesis")
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, dave, g.ID, "dave")
	assert.True(t, access.IsAccessDenied(err), "non-members cannot invite")

	_, err = svc.AddMember(ctx, alice, g.ID, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.AddMember(ctx, alice, g.ID, "bob")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, alice, g.ID, "bob")
	assert.ErrorIs(t, err, models.ErrAlreadyMember)

	got, err := svc.AddMember(ctx, alice, g.ID, "carol")
	require.NoError(t, err)
	assert.Len(t, got.Members, 3)

	_, err = svc.AddMember(ctx, alice, g.ID, "dave")
	assert.ErrorIs(t, err, models.ErrGroupFull)

	mine, err := svc.ForUser(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "thesis", mine[0].Name)
}
