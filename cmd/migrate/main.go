// Command migrate inspects and applies the blog database schema.
//
//	migrate status          show the schema policy and pending SQL migrations
//	migrate up              apply pending SQL migrations
//	migrate auto            run GORM AutoMigrate regardless of DB_SCHEMA_MODE
//	migrate down <version>  roll back one SQL migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"blogpage/internal/config"
	"blogpage/internal/database"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate <status|up|auto|down> [version]")

type command func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var commands = map[string]command{
	"status": status,
	"up":     up,
	"auto":   auto,
	"down":   down,
}

func main() {
	flag.Parse()
	if err := run(context.Background(), flag.Args()); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]
	if !ok {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	return cmd(ctx, db, cfg, args[1:])
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	fmt.Printf("mode:        %s\n", st.Mode)
	fmt.Printf("environment: %s\n", st.Environment)
	fmt.Printf("sql:         %t\n", st.WillRunSQL)
	fmt.Printf("automigrate: %t\n", st.WillRunAutoMigrate)
	fmt.Printf("applied:     %v\n", st.AppliedVersions)
	for _, m := range st.PendingMigrations {
		fmt.Printf("pending:     %s\n", m.String())
	}
	return nil
}

func up(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	if cfg.UsesSQLite() {
		return errors.New("sql migrations target PostgreSQL; use `migrate auto` for SQLite")
	}
	n, err := database.MigrateUp(ctx, db)
	if err != nil {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	log.Printf("%d sql migration(s) applied", n)
	return nil
}

func auto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("auto schema apply failed: %w", err)
	}
	log.Println("automigrations applied")
	return nil
}

func down(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: migrate down <version>")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := database.MigrateDown(ctx, db, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	log.Printf("rolled back migration %d", version)
	return nil
}
