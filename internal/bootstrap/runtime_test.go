package bootstrap

import (
	"testing"

	"blogpage/internal/config"
	"blogpage/internal/models"
	"blogpage/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootUsername:  "blog_root",
		DevRootEmail:     "Root@Blogpage.Local",
		DevRootPassword:  "root-password-123",
	}
}

func TestEnsureDevRootStaff_CreatesUserWithProfile(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, ensureDevRootStaff(devConfig(), db, bcrypt.MinCost))

	var root models.User
	require.NoError(t, db.Preload("Profile").Where("username = ?", "blog_root").First(&root).Error)
	assert.True(t, root.IsStaff)
	assert.Equal(t, "root@blogpage.local", root.Email)
	require.NotNil(t, root.Profile)
	assert.Equal(t, models.DefaultProfileImage, root.Profile.Image)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.Password), []byte("root-password-123")))

	// A second run is idempotent.
	require.NoError(t, ensureDevRootStaff(devConfig(), db, bcrypt.MinCost))
	var n int64
	db.Model(&models.User{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestEnsureDevRootStaff_PromotesExistingUser(t *testing.T) {
	fx := testutil.NewFixture(t)
	existing := fx.User("blog_root")

	require.NoError(t, ensureDevRootStaff(devConfig(), fx.DB, bcrypt.MinCost))

	var root models.User
	require.NoError(t, fx.DB.First(&root, existing.ID).Error)
	assert.True(t, root.IsStaff)
	// Credentials of an existing account are left alone.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.Password), []byte(testutil.Password("blog_root"))))
}

func TestEnsureDevRootStaff_Disabled(t *testing.T) {
	db := testutil.NewDB(t)

	cfg := devConfig()
	cfg.Env = "production"
	require.NoError(t, ensureDevRootStaff(cfg, db, bcrypt.MinCost))

	cfg = devConfig()
	cfg.DevBootstrapRoot = false
	require.NoError(t, ensureDevRootStaff(cfg, db, bcrypt.MinCost))

	var n int64
	db.Model(&models.User{}).Count(&n)
	assert.Zero(t, n)
}

func TestEnsureDevRootStaff_RequiresPassword(t *testing.T) {
	cfg := devConfig()
	cfg.DevRootPassword = ""
	assert.Error(t, ensureDevRootStaff(cfg, testutil.NewDB(t), bcrypt.MinCost))
}

func TestSeedIfEmpty(t *testing.T) {
	fx := testutil.NewFixture(t)

	require.NoError(t, seedIfEmpty(fx.DB))
	var posts int64
	fx.DB.Model(&models.Post{}).Count(&posts)
	assert.Equal(t, int64(25), posts)

	// Existing content is never reseeded.
	require.NoError(t, seedIfEmpty(fx.DB))
	fx.DB.Model(&models.Post{}).Count(&posts)
	assert.Equal(t, int64(25), posts)
}
