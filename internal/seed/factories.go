// Package seed provides helpers to create demo data for the blog database.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"blogpage/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Password is the login password of every seeded user.
const Password = "password123"

// SeedOptions tune how the factory builds and persists rows.
type SeedOptions struct {
	// DryRun assigns synthetic IDs instead of writing to the database.
	DryRun bool
	// SkipBcrypt hashes at bcrypt.MinCost, for tests and fast local runs.
	SkipBcrypt bool
	// MaxDays bounds how far back post dates are spread. Defaults to 90.
	MaxDays int
	// RandSeed fixes the faker output when non-zero.
	RandSeed int64
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db    *gorm.DB
	opts  SeedOptions
	faker *gofakeit.Faker
	// synthetic ID counter when running in DryRun mode
	nextID uint
	hash   string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed), nextID: 1000}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(Password), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(b)
	return f.hash, nil
}

// CreateUser persists a fake user together with its default profile.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}

	first, last := f.faker.FirstName(), f.faker.LastName()
	username := usernameFor(first, last, f.faker.Number(100, 9999))
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  hash,
		FirstName: clip(first, 30),
		LastName:  clip(last, 30),
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s", user.Username)
		return user, nil
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Create(user).Error; err != nil {
			return err
		}
		profile := &models.Profile{UserID: user.ID, Image: models.DefaultProfileImage}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post by author with a date spread over the last
// MaxDays. It is not persisted.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.faker.Number(0, maxDays-1))*24*time.Hour +
		time.Duration(f.faker.Number(0, 23))*time.Hour +
		time.Duration(f.faker.Number(0, 59))*time.Minute

	post := &models.Post{
		Title:      clip(strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), "."), models.PostTitleMaxLen),
		Content:    f.faker.Paragraph(f.faker.Number(1, 3), 4, 10, "\n\n"),
		AuthorID:   author.ID,
		DatePosted: time.Now().UTC().Add(-back),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.Omit("Author").CreateInBatches(posts, 100).Error
}

// CreateAnnouncement persists a fake announcement by author.
func (f *Factory) CreateAnnouncement(author *models.User, overrides ...func(*models.Announcement)) (*models.Announcement, error) {
	a := &models.Announcement{
		Title:    clip(f.faker.HipsterSentence(4), models.AnnouncementTitleMaxLen),
		Context:  f.faker.Paragraph(1, 3, 12, " "),
		AuthorID: author.ID,
	}
	for _, override := range overrides {
		override(a)
	}

	if f.opts.DryRun {
		f.nextID++
		a.ID = f.nextID
		return a, nil
	}
	if err := f.db.Omit("Author").Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// usernameFor keeps only characters the registration form accepts.
func usernameFor(first, last string, n int) string {
	keep := func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}
	return fmt.Sprintf("%s_%s%d",
		strings.Map(keep, strings.ToLower(first)),
		strings.Map(keep, strings.ToLower(last)), n)
}

// clip truncates s to at most n characters.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
