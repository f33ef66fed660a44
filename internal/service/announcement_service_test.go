package service

import (
	"context"
	"strings"
	"testing"

	"blogpage/internal/models"
	"blogpage/internal/repository"
	"blogpage/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncementService(t *testing.T) {
	fx := testutil.NewFixture(t)
	root := fx.Staff("root")
	alice := fx.User("alice")

	users := NewUserService(repository.NewUserRepository(fx.DB), repository.NewProfileRepository(fx.DB), nil, 0)
	svc := NewAnnouncementService(repository.NewAnnouncementRepository(fx.DB), users.IsStaff)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateAnnouncementInput{ActorID: alice.ID, Title: "t", Context: "c"})
	assertForbiddenError(t, err)

	_, err = svc.Create(ctx, CreateAnnouncementInput{ActorID: root.ID, Title: strings.Repeat("x", models.AnnouncementTitleMaxLen+1), Context: "c"})
	appErr := assertValidationError(t, err)
	assert.Contains(t, appErr.Fields, "title")

	first, err := svc.Create(ctx, CreateAnnouncementInput{ActorID: root.ID, Title: "first", Context: "one"})
	require.NoError(t, err)
	assert.Equal(t, root.ID, first.AuthorID)
	second, err := svc.Create(ctx, CreateAnnouncementInput{ActorID: root.ID, Title: "second", Context: "two"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	assertForbiddenError(t, svc.Delete(ctx, alice.ID, first.ID))
	require.NoError(t, svc.Delete(ctx, root.ID, first.ID))
	assert.True(t, models.IsNotFound(svc.Delete(ctx, root.ID, first.ID)))
}

func TestAnnouncementService_NoStaffCheckDenies(t *testing.T) {
	svc := NewAnnouncementService(nil, nil)
	_, err := svc.Create(context.Background(), CreateAnnouncementInput{ActorID: 1, Title: "t", Context: "c"})
	assertForbiddenError(t, err)
}
