package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"blogpage/internal/config"
	"blogpage/internal/models"
	"blogpage/internal/repository"
	"blogpage/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(t *testing.T) (*UserService, *testutil.DBFixture, *ImageService) {
	t.Helper()
	fx := testutil.NewFixture(t)
	images := NewImageService(&config.Config{MediaRoot: t.TempDir(), ImageMaxUploadSizeMB: 1})
	svc := NewUserService(
		repository.NewUserRepository(fx.DB),
		repository.NewProfileRepository(fx.DB),
		images,
		bcrypt.MinCost,
	)
	return svc, fx, images
}

func TestRegister(t *testing.T) {
	svc, fx, _ := newTestUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		Password1: "abcabc12",
		Password2: "abcabc12",
	})
	require.NoError(t, err)
	require.NotNil(t, user.Profile)
	assert.Equal(t, models.DefaultProfileImage, user.Profile.Image)
	assert.NotEqual(t, "abcabc12", user.Password)

	var profiles int64
	fx.DB.Model(&models.Profile{}).Where("user_id = ?", user.ID).Count(&profiles)
	assert.Equal(t, int64(1), profiles)

	_, err = svc.Register(ctx, RegisterInput{
		Username:  "ALICE",
		Email:     "other@example.com",
		Password1: "abcabc12",
		Password2: "abcabc12",
	})
	appErr := assertValidationError(t, err)
	assert.Equal(t, usernameTakenMsg, appErr.Fields["username"])
}

func TestRegister_FieldErrors(t *testing.T) {
	svc, fx, _ := newTestUserService(t)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username:  "bad name",
		Email:     "nope",
		Password1: "abcabc12",
		Password2: "different",
	})
	appErr := assertValidationError(t, err)
	assert.Contains(t, appErr.Fields, "username")
	assert.Contains(t, appErr.Fields, "email")
	assert.Contains(t, appErr.Fields, "password2")

	var users int64
	fx.DB.Model(&models.User{}).Count(&users)
	assert.Zero(t, users, "nothing is persisted on validation failure")
}

func TestAuthenticate(t *testing.T) {
	svc, fx, _ := newTestUserService(t)
	ctx := context.Background()
	alice := fx.User("alice")

	user, err := svc.Authenticate(ctx, "alice", testutil.Password("alice"))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong-password")
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	_, err = svc.Authenticate(ctx, "ghost", "whatever")
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
}

func TestGetProfile_CreatesMissingProfile(t *testing.T) {
	svc, fx, _ := newTestUserService(t)
	user := &models.User{Username: "noprofile", Password: "x"}
	require.NoError(t, fx.DB.Create(user).Error)

	got, err := svc.GetProfile(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Profile)
	assert.NotZero(t, got.Profile.ID)
	assert.Equal(t, models.DefaultProfileImage, got.Profile.Image)
}

func TestUpdateProfile_StoresAndNormalizesAvatar(t *testing.T) {
	svc, fx, images := newTestUserService(t)
	alice := fx.User("alice")

	user, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
		ActorID:   alice.ID,
		Username:  "alice2",
		Email:     "alice2@example.com",
		FirstName: "Alice",
		LastName:  "Liddell",
		Image: &AvatarUpload{
			Filename:    "big.png",
			ContentType: "image/png",
			Content:     testutil.PNGBytes(t, 800, 600),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", user.Username)
	assert.NotEqual(t, models.DefaultProfileImage, user.Profile.Image)

	full, err := images.Path(user.Profile.Image)
	require.NoError(t, err)
	w, h := testutil.ImageSize(t, full)
	assert.Equal(t, 300, w)
	assert.Equal(t, 225, h)

	reloaded, err := svc.GetProfile(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Profile.Image, reloaded.Profile.Image)
	assert.Equal(t, "Liddell", reloaded.LastName)
}

func TestUpdateProfile_ValidationPersistsNothing(t *testing.T) {
	svc, fx, images := newTestUserService(t)
	alice := fx.User("alice")
	fx.User("bob")

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
		ActorID:   alice.ID,
		Username:  "bob",
		Email:     "alice@example.com",
		FirstName: "",
		LastName:  "Liddell",
		Image:     &AvatarUpload{Filename: "x.png", Content: testutil.PNGBytes(t, 10, 10)},
	})
	appErr := assertValidationError(t, err)
	assert.Equal(t, usernameTakenMsg, appErr.Fields["username"])
	assert.Contains(t, appErr.Fields, "first_name")

	reloaded, err := svc.GetProfile(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", reloaded.Username)
	assert.Equal(t, models.DefaultProfileImage, reloaded.Profile.Image)

	entries, _ := os.ReadDir(images.MediaRoot())
	assert.Empty(t, entries, "no file is written for a rejected form")
}

func TestUpdateProfile_BadImageIsFieldError(t *testing.T) {
	svc, fx, _ := newTestUserService(t)
	alice := fx.User("alice")

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
		ActorID:   alice.ID,
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Liddell",
		Image:     &AvatarUpload{Filename: "notes.txt", Content: []byte("hello there")},
	})
	appErr := assertValidationError(t, err)
	assert.Contains(t, appErr.Fields, "image")
}

func TestChangePassword(t *testing.T) {
	svc, fx, _ := newTestUserService(t)
	ctx := context.Background()
	alice := fx.User("alice")

	_, err := svc.ChangePassword(ctx, ChangePasswordInput{
		ActorID:      alice.ID,
		OldPassword:  "wrong",
		NewPassword1: "abcabc12",
		NewPassword2: "abcabc99",
	})
	appErr := assertValidationError(t, err)
	assert.Contains(t, appErr.Fields, "old_password")
	assert.Contains(t, appErr.Fields, "new_password2")

	_, err = svc.ChangePassword(ctx, ChangePasswordInput{
		ActorID:      alice.ID,
		OldPassword:  testutil.Password("alice"),
		NewPassword1: "abcabc12",
		NewPassword2: "abcabc12",
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice", "abcabc12")
	assert.NoError(t, err)
	_, err = svc.Authenticate(ctx, "alice", testutil.Password("alice"))
	assert.Error(t, err)
}

func TestStaffAndDelete(t *testing.T) {
	svc, fx, _ := newTestUserService(t)
	ctx := context.Background()
	alice := fx.User("alice")
	fx.PostAt(alice, "hello", alice.CreatedAt)

	staff, err := svc.IsStaff(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, staff)

	require.NoError(t, svc.SetStaff(ctx, alice.ID, true))
	staff, err = svc.IsStaff(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, staff)

	staff, err = svc.IsStaff(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, staff)

	require.NoError(t, svc.DeleteUser(ctx, alice.ID))
	var posts int64
	fx.DB.Model(&models.Post{}).Count(&posts)
	assert.Zero(t, posts)
}

func TestUpdateProfile_TruncatedAvatarPersistsNothing(t *testing.T) {
	svc, fx, images := newTestUserService(t)
	alice := fx.User("alice")
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, UpdateProfileInput{
		ActorID:   alice.ID,
		Username:  "alice2",
		Email:     "alice2@example.com",
		FirstName: "Alice",
		LastName:  "Liddell",
		Image:     &AvatarUpload{Filename: "x.png", ContentType: "image/png", Content: halfPNG(t, 400, 400)},
	})
	appErr := assertValidationError(t, err)
	assert.Contains(t, appErr.Fields, "image")

	reloaded, err := svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", reloaded.Username)
	assert.Empty(t, reloaded.FirstName)
	assert.Equal(t, models.DefaultProfileImage, reloaded.Profile.Image)

	entries, _ := os.ReadDir(filepath.Join(images.MediaRoot(), models.ProfileImageDir))
	assert.Empty(t, entries, "the rejected upload is not left on disk")

	// The account is still editable afterwards.
	user, err := svc.UpdateProfile(ctx, UpdateProfileInput{
		ActorID:   alice.ID,
		Username:  "alice2",
		Email:     "alice2@example.com",
		FirstName: "Alice",
		LastName:  "Liddell",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", user.Username)
}

func TestUpdateProfile_ReplacingAvatarRemovesOldFile(t *testing.T) {
	svc, fx, images := newTestUserService(t)
	alice := fx.User("alice")
	ctx := context.Background()

	save := func(name string) string {
		user, err := svc.UpdateProfile(ctx, UpdateProfileInput{
			ActorID:   alice.ID,
			Username:  "alice",
			Email:     "alice@example.com",
			FirstName: "Alice",
			LastName:  "Liddell",
			Image:     &AvatarUpload{Filename: name, ContentType: "image/png", Content: testutil.PNGBytes(t, 40, 40)},
		})
		require.NoError(t, err)
		return user.Profile.Image
	}

	first := save("one.png")
	second := save("two.png")
	require.NotEqual(t, first, second)

	firstPath, err := images.Path(first)
	require.NoError(t, err)
	_, err = os.Stat(firstPath)
	assert.True(t, os.IsNotExist(err), "the replaced avatar is deleted")

	secondPath, err := images.Path(second)
	require.NoError(t, err)
	_, err = os.Stat(secondPath)
	assert.NoError(t, err)
}
