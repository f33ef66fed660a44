// Command seed fills the blog database with demo users, posts and announcements.
package main

import (
	"flag"
	"log"

	"blogpage/internal/config"
	"blogpage/internal/database"
	"blogpage/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 60, "Number of posts to create")
	numAnnouncements := flag.Int("announcements", 3, "Number of announcements to create")
	shouldClean := flag.Bool("clean", false, "Delete existing blog data before seeding")
	dryRun := flag.Bool("dry-run", false, "Build rows without writing them")
	fast := flag.Bool("fast", false, "Hash the seed password at minimum bcrypt cost")
	maxDays := flag.Int("max-days", 90, "Spread post dates over this many past days")
	flag.Parse()

	log.Printf("Target: %d users, %d posts, %d announcements, clean=%v",
		*numUsers, *numPosts, *numAnnouncements, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.SeedOptions{
		DryRun:     *dryRun,
		SkipBcrypt: *fast,
		MaxDays:    *maxDays,
	})
	if err := s.Seed(seed.Options{
		NumUsers:         *numUsers,
		NumPosts:         *numPosts,
		NumAnnouncements: *numAnnouncements,
		ShouldClean:      *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Done. All seeded users have the password:", seed.Password)
}
