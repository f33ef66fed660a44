package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"blogpage/internal/config"
	"blogpage/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// schemaPlan says which of the two schema paths run for a configuration.
type schemaPlan struct {
	mode string
	sql  bool
	auto bool
}

// SchemaStatus is what `migrate status` prints.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// liveEnv reports environments that hold real blog content.
func liveEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// planSchema maps DB_SCHEMA_MODE to a plan. SQLite always uses AutoMigrate
// because the SQL scripts are written for PostgreSQL. Hybrid skips
// AutoMigrate on live environments, and auto is refused there unless
// destructive changes are explicitly allowed.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	p := schemaPlan{mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if p.mode == "" {
		p.mode = SchemaModeHybrid
	}

	switch p.mode {
	case SchemaModeSQL, SchemaModeAuto, SchemaModeHybrid:
	default:
		return p, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", p.mode)
	}

	live := liveEnv(cfg.Env)
	switch {
	case cfg.UsesSQLite():
		p.auto = true
	case p.mode == SchemaModeSQL:
		p.sql = true
	case p.mode == SchemaModeAuto:
		if live && !cfg.DBAutoMigrateAllowDestructive {
			return p, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		p.auto = true
	default:
		p.sql, p.auto = true, !live
	}
	return p, nil
}

// AutoMigrate creates or alters the users, profiles, posts and announcements tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the blog schema up to date on connect.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	p, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if p.sql {
		n, err := MigrateUp(ctx, db)
		if err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		if n > 0 {
			middleware.Logger.InfoContext(ctx, "blog sql migrations applied", slog.Int("count", n))
		}
	}

	if p.auto {
		if p.mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.WarnContext(ctx, "AutoMigrate running with DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", slog.String("env", cfg.Env))
		}
		middleware.Logger.InfoContext(ctx, "blog AutoMigrate", slog.String("mode", p.mode), slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan for cfg and, when SQL migrations are in
// play, which versions are applied and which are pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	p, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               p.mode,
		Environment:        cfg.Env,
		WillRunSQL:         p.sql,
		WillRunAutoMigrate: p.auto,
	}
	if !p.sql {
		return status, nil
	}

	m := &migrator{store: NewMigrationStore(db), known: GetMigrations()}
	status.AppliedVersions, status.PendingMigrations, err = m.plan(ctx)
	if err != nil {
		return nil, err
	}
	return status, nil
}
