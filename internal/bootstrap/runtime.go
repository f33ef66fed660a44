// Package bootstrap wires the process-wide runtime: database, Redis and the
// optional development staff account.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"blogpage/internal/cache"
	"blogpage/internal/config"
	"blogpage/internal/database"
	"blogpage/internal/middleware"
	"blogpage/internal/models"
	"blogpage/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with demo users, posts and announcements.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo content.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// May leave a nil client when Redis is unreachable.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootStaff(cfg, db, bcrypt.DefaultCost); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development staff account: %w", err)
	}

	if opts.SeedDemo {
		if err := seedIfEmpty(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo content: %w", err)
		}
	}

	return db, r, nil
}

func seedIfEmpty(db *gorm.DB) error {
	var n int64
	if err := db.Model(&models.Post{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return seed.NewSeeder(db, seed.SeedOptions{}).Seed(seed.Options{NumUsers: 5, NumPosts: 25, NumAnnouncements: 2})
}

// ensureDevRootStaff creates (or promotes) the configured development staff
// user. It is a no-op outside development or when DEV_BOOTSTRAP_ROOT is off.
func ensureDevRootStaff(cfg *config.Config, db *gorm.DB, cost int) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "blog_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@blogpage.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("LOWER(username) = ?", strings.ToLower(username)).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hashedPassword),
				IsStaff:  true,
			}
			if err := tx.Omit("Profile").Create(&root).Error; err != nil {
				return err
			}
			return tx.Create(&models.Profile{UserID: root.ID, Image: models.DefaultProfileImage}).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&models.User{}).Where("id = ?", root.ID).Update("is_staff", true).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development staff account ensured", slog.String("username", username))
	return nil
}
