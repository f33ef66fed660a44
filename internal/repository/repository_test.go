package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"blogpage/internal/models"
	"blogpage/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.False(t, isUniqueConstraintError(nil))
	assert.True(t, isUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueConstraintError(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, isUniqueConstraintError(errors.New("UNIQUE constraint failed: users.username")))
	assert.False(t, isUniqueConstraintError(errors.New("connection reset")))
}

func TestUserRepository_GetByID_Mock(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(1, "alice", "alice@example.com")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).WillReturnRows(rows)

		user, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).WillReturnError(gorm.ErrRecordNotFound)

		user, err := repo.GetByID(ctx, 99)
		assert.Nil(t, user)
		assert.True(t, models.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).WillReturnError(errors.New("connection timeout"))

		_, err := repo.GetByID(ctx, 1)
		assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostRepository_List_Mock(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "posts" ORDER BY date_posted DESC, id DESC LIMIT \$1 OFFSET \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).AddRow(7, "Hello", 3))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(3, "bob"))
	mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE "profiles"."user_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "image"}).AddRow(1, 3, "profile_pics/bob.png"))

	posts, err := repo.List(context.Background(), 5, 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "bob", posts[0].Author.Username)
	require.NotNil(t, posts[0].Author.Profile)
	assert.Equal(t, "profile_pics/bob.png", posts[0].Author.Profile.Image)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SQLite(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "Alice", Email: "alice@example.com", Password: "hash"}
	require.NoError(t, repo.CreateWithProfile(ctx, user, &models.Profile{}))
	require.NotZero(t, user.ID)
	require.NotNil(t, user.Profile)
	assert.Equal(t, models.DefaultProfileImage, user.Profile.Image)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByUsername(ctx, "ghost")
	assert.True(t, models.IsNotFound(err))

	taken, err := repo.UsernameTaken(ctx, "ALICE", 0)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.UsernameTaken(ctx, "alice", user.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	dup := &models.User{Username: "Alice", Password: "hash"}
	err = repo.CreateWithProfile(ctx, dup, &models.Profile{})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	var profiles int64
	db.Model(&models.Profile{}).Count(&profiles)
	assert.Equal(t, int64(1), profiles, "failed registration must not leave a profile behind")

	require.NoError(t, repo.SetStaff(ctx, user.ID, true))
	staff, err := repo.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.True(t, staff[0].IsStaff)

	user.FirstName = "Al"
	user.Profile.Image = "profile_pics/alice_0a1b2c3d.png"
	require.NoError(t, repo.Update(ctx, user))
	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "newhash"))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Al", got.FirstName)
	assert.Equal(t, "newhash", got.Password)

	var profile models.Profile
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.Equal(t, "profile_pics/alice_0a1b2c3d.png", profile.Image)

	require.NoError(t, repo.Delete(ctx, user.ID))
	assert.True(t, models.IsNotFound(repo.Delete(ctx, user.ID)))
}

func TestPostRepository_SQLite(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", "pw")
	bob := testutil.CreateUser(t, db, "bob", "pw")

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		author := alice
		if i%2 == 1 {
			author = bob
		}
		p := &models.Post{
			Title:      fmt.Sprintf("post %d", i),
			Content:    "body",
			AuthorID:   author.ID,
			DatePosted: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Create(ctx, p))
	}

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)

	page1, err := repo.List(ctx, 5, offsetFor(1, 5))
	require.NoError(t, err)
	require.Len(t, page1, 5)
	assert.Equal(t, "post 6", page1[0].Title)
	assert.Equal(t, "post 2", page1[4].Title)
	assert.Equal(t, "alice", page1[0].Author.Username)

	page2, err := repo.List(ctx, 5, offsetFor(2, 5))
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "post 0", page2[1].Title)

	latest, err := repo.Latest(ctx, 4)
	require.NoError(t, err)
	require.Len(t, latest, 4)
	assert.Equal(t, "post 6", latest[0].Title)
	assert.Equal(t, "post 3", latest[3].Title)

	byBob, err := repo.ListByAuthor(ctx, bob.ID, 5, 0)
	require.NoError(t, err)
	require.Len(t, byBob, 3)
	for _, p := range byBob {
		assert.Equal(t, bob.ID, p.AuthorID)
	}
	n, err := repo.CountByAuthor(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	post, err := repo.GetByID(ctx, byBob[0].ID)
	require.NoError(t, err)
	posted := post.DatePosted
	post.Title = "edited"
	require.NoError(t, repo.Update(ctx, post))

	post, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", post.Title)
	assert.True(t, posted.Equal(post.DatePosted))

	require.NoError(t, repo.Delete(ctx, post.ID))
	_, err = repo.GetByID(ctx, post.ID)
	assert.True(t, models.IsNotFound(err))
	assert.True(t, models.IsNotFound(repo.Delete(ctx, post.ID)))
}

func TestAnnouncementRepository_SQLite(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAnnouncementRepository(db)
	ctx := context.Background()

	staff := testutil.CreateUser(t, db, "root", "pw")
	older := &models.Announcement{Title: "old", Context: "a", AuthorID: staff.ID, DatePosted: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &models.Announcement{Title: "new", Context: "b", AuthorID: staff.ID, DatePosted: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Title)
	assert.Equal(t, "root", list[0].Author.Username)

	require.NoError(t, repo.Delete(ctx, older.ID))
	_, err = repo.GetByID(ctx, older.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestProfileRepository_SQLite(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "carol", Password: "x"}
	require.NoError(t, db.Create(user).Error)

	_, err := repo.GetByUserID(ctx, user.ID)
	assert.True(t, models.IsNotFound(err))

	profile := &models.Profile{UserID: user.ID}
	require.NoError(t, repo.Create(ctx, profile))
	assert.Equal(t, models.DefaultProfileImage, profile.Image)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(repo.Create(ctx, &models.Profile{UserID: user.ID})))
}

func TestUserRepository_UpdateIsAtomic(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "dora", Email: "dora@example.com", Password: "hash"}
	require.NoError(t, repo.CreateWithProfile(ctx, user, &models.Profile{}))

	// A profile row that does not belong to the user rolls the account change back.
	user.FirstName = "Dora"
	user.Profile = &models.Profile{ID: user.Profile.ID + 100, Image: "profile_pics/x.png"}
	err := repo.Update(ctx, user)
	assert.True(t, models.IsNotFound(err))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FirstName)
}
