// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"blogpage/internal/database"
	"blogpage/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection; every new connection would get an empty database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with a default profile. The password is hashed at
// bcrypt.MinCost.
func CreateUser(t testing.TB, db *gorm.DB, username, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
	}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.Profile{UserID: user.ID, Image: models.DefaultProfileImage}).Error)
	return user
}

// CreatePost inserts a post by author.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, title, content string) *models.Post {
	t.Helper()

	post := &models.Post{Title: title, Content: content, AuthorID: author.ID}
	require.NoError(t, db.Omit("Author").Create(post).Error)
	return post
}

// DBFixture bundles a fresh database with helpers for common rows.
type DBFixture struct {
	t  testing.TB
	DB *gorm.DB
}

// NewFixture returns a fixture over NewDB.
func NewFixture(t testing.TB) *DBFixture {
	return &DBFixture{t: t, DB: NewDB(t)}
}

// User creates a user whose password is "<username>-pass-123".
func (f *DBFixture) User(username string) *models.User {
	f.t.Helper()
	return CreateUser(f.t, f.DB, username, Password(username))
}

// Staff creates a staff user.
func (f *DBFixture) Staff(username string) *models.User {
	f.t.Helper()
	u := f.User(username)
	require.NoError(f.t, f.DB.Model(u).Update("is_staff", true).Error)
	u.IsStaff = true
	return u
}

// PostAt creates a post with an explicit posted date.
func (f *DBFixture) PostAt(author *models.User, title string, at time.Time) *models.Post {
	f.t.Helper()
	post := &models.Post{Title: title, Content: title + " content", AuthorID: author.ID, DatePosted: at}
	require.NoError(f.t, f.DB.Omit("Author").Create(post).Error)
	return post
}

// Password is the fixture password for username.
func Password(username string) string {
	return username + "-pass-123"
}
