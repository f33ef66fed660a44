// Command admin manages staff accounts and announcements from the shell.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"blogpage/internal/config"
	"blogpage/internal/database"
	"blogpage/internal/models"
	"blogpage/internal/repository"
	"blogpage/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  admin promote <username>                 - Grant staff access")
	fmt.Println("  admin demote <username>                  - Revoke staff access")
	fmt.Println("  admin list-staff                         - List staff accounts")
	fmt.Println("  admin announce <username> <title> <text> - Publish an announcement as a staff user")
	fmt.Println("  admin delete-user <username>             - Delete a user with their profile and posts")
}

type app struct {
	users         repository.UserRepository
	userService   *service.UserService
	announcements *service.AnnouncementService
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	users := repository.NewUserRepository(db)
	userService := service.NewUserService(users, repository.NewProfileRepository(db), service.NewImageService(cfg), 0)
	a := &app{
		users:         users,
		userService:   userService,
		announcements: service.NewAnnouncementService(repository.NewAnnouncementRepository(db), userService.IsStaff),
	}

	if err := a.run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			usage()
			return fmt.Errorf("%s: expected %d argument(s)", command, n)
		}
		return nil
	}

	switch command {
	case "promote", "demote":
		if err := need(1); err != nil {
			return err
		}
		return a.setStaff(ctx, args[0], command == "promote")
	case "list-staff":
		return a.listStaff(ctx)
	case "announce":
		if err := need(3); err != nil {
			return err
		}
		return a.announce(ctx, args[0], args[1], strings.Join(args[2:], " "))
	case "delete-user":
		if err := need(1); err != nil {
			return err
		}
		return a.deleteUser(ctx, args[0])
	default:
		usage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) lookup(ctx context.Context, username string) (*models.User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, fmt.Errorf("user %q not found", username)
		}
		return nil, err
	}
	return user, nil
}

func (a *app) setStaff(ctx context.Context, username string, staff bool) error {
	user, err := a.lookup(ctx, username)
	if err != nil {
		return err
	}
	if user.IsStaff == staff {
		fmt.Printf("User %s (ID: %d) already has staff=%t\n", user.Username, user.ID, staff)
		return nil
	}
	if err := a.userService.SetStaff(ctx, user.ID, staff); err != nil {
		return err
	}
	fmt.Printf("User %s (ID: %d) staff=%t\n", user.Username, user.ID, staff)
	return nil
}

func (a *app) listStaff(ctx context.Context) error {
	staff, err := a.userService.ListStaff(ctx)
	if err != nil {
		return err
	}
	if len(staff) == 0 {
		fmt.Println("No staff accounts")
		return nil
	}
	fmt.Printf("%-6s %-20s %s\n", "ID", "USERNAME", "EMAIL")
	for _, u := range staff {
		fmt.Printf("%-6d %-20s %s\n", u.ID, u.Username, u.Email)
	}
	return nil
}

func (a *app) announce(ctx context.Context, username, title, text string) error {
	user, err := a.lookup(ctx, username)
	if err != nil {
		return err
	}
	ann, err := a.announcements.Create(ctx, service.CreateAnnouncementInput{
		ActorID: user.ID,
		Title:   title,
		Context: text,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Announcement %d published by %s\n", ann.ID, user.Username)
	return nil
}

func (a *app) deleteUser(ctx context.Context, username string) error {
	user, err := a.lookup(ctx, username)
	if err != nil {
		return err
	}
	if err := a.userService.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted user %s (ID: %d)\n", user.Username, user.ID)
	return nil
}
