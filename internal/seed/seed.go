package seed

import (
	"errors"
	"fmt"
	"log"

	"blogpage/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers         int
	NumPosts         int
	NumAnnouncements int
	ShouldClean      bool
}

// Seeder fills the database with demo users, posts and announcements.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder returns a Seeder writing through a fresh Factory.
func NewSeeder(db *gorm.DB, opts SeedOptions) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// Seed runs the full pipeline described by opts.
func (s *Seeder) Seed(opts Options) error {
	log.Printf("Seeding %d users, %d posts and %d announcements", opts.NumUsers, opts.NumPosts, opts.NumAnnouncements)

	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("clear data: %w", err)
		}
	}

	users, err := s.SeedUsers(opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("%d users created", len(users))

	if err := s.SeedPosts(users, opts.NumPosts); err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("%d posts created", opts.NumPosts)

	if opts.NumAnnouncements > 0 {
		n, err := s.SeedAnnouncements(users, opts.NumAnnouncements)
		if err != nil {
			return fmt.Errorf("failed to create announcements: %w", err)
		}
		log.Printf("%d announcements created", n)
	}
	return nil
}

// ClearAll deletes every blog row. Child tables go first so it also works
// without cascading foreign keys.
func (s *Seeder) ClearAll() error {
	if s.factory.opts.DryRun {
		log.Println("[dry-run] ClearAll skipped")
		return nil
	}
	log.Println("Clearing existing data...")
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Announcement{}, &models.Post{}, &models.Profile{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SeedUsers creates count users, each with a default profile. Username
// collisions are logged and skipped.
func (s *Seeder) SeedUsers(count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, *u)
	}
	if count > 0 && len(users) == 0 {
		return nil, errors.New("no users could be created")
	}
	return users, nil
}

// SeedPosts spreads count posts round-robin over users.
func (s *Seeder) SeedPosts(users []models.User, count int) error {
	if count <= 0 {
		return nil
	}
	if len(users) == 0 {
		return errors.New("posts need at least one user")
	}
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		posts = append(posts, s.factory.BuildPost(&users[i%len(users)]))
	}
	return s.factory.CreatePostsBatch(posts)
}

// SeedAnnouncements promotes the first user to staff and authors count
// announcements as that user.
func (s *Seeder) SeedAnnouncements(users []models.User, count int) (int, error) {
	if len(users) == 0 {
		return 0, errors.New("announcements need at least one user")
	}
	author := &users[0]
	if !s.factory.opts.DryRun {
		if err := s.db.Model(&models.User{}).Where("id = ?", author.ID).Update("is_staff", true).Error; err != nil {
			return 0, err
		}
	}
	author.IsStaff = true

	for i := 0; i < count; i++ {
		if _, err := s.factory.CreateAnnouncement(author); err != nil {
			return i, err
		}
	}
	return count, nil
}
