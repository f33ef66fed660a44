package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"blogpage/internal/middleware"

	"gorm.io/gorm"
)

// schemaMigration is one row of the schema_migrations ledger.
type schemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

// MigrationStore records which blog schema versions have been applied.
type MigrationStore interface {
	Applied(ctx context.Context) ([]int, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type gormMigrationStore struct {
	db *gorm.DB
}

// NewMigrationStore returns a MigrationStore backed by the schema_migrations table.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &gormMigrationStore{db: db}
}

// Applied lists applied versions in ascending order. A database that has
// never been migrated reports none.
func (s *gormMigrationStore) Applied(ctx context.Context) ([]int, error) {
	var versions []int
	err := s.db.WithContext(ctx).Model(&schemaMigration{}).Order("version").Pluck("version", &versions).Error
	switch {
	case err == nil:
		return versions, nil
	case errors.Is(err, gorm.ErrRecordNotFound), missingTable(err):
		return []int{}, nil
	default:
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
}

func missingTable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

// Apply runs the up script and records the version atomically.
func (s *gormMigrationStore) Apply(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("migrate %s up: %w", m.String(), err)
		}
		if err := tx.Create(&schemaMigration{Version: m.Version, Name: m.Name}).Error; err != nil {
			return fmt.Errorf("record %s: %w", m.String(), err)
		}
		return nil
	})
}

// Revert runs the down script and forgets the version atomically.
func (s *gormMigrationStore) Revert(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("migrate %s down: %w", m.String(), err)
		}
		if err := tx.Where("version = ?", m.Version).Delete(&schemaMigration{}).Error; err != nil {
			return fmt.Errorf("forget %s: %w", m.String(), err)
		}
		return nil
	})
}

// migrator walks the shipped migrations against a store's ledger.
type migrator struct {
	store MigrationStore
	known []Migration
}

// plan returns the applied versions and the migrations still to run.
func (m *migrator) plan(ctx context.Context) ([]int, []Migration, error) {
	applied, err := m.store.Applied(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := checkLedger(applied, m.known); err != nil {
		return nil, nil, err
	}

	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	var todo []Migration
	for _, mig := range m.known {
		if !done[mig.Version] {
			todo = append(todo, mig)
		}
	}
	return applied, todo, nil
}

// up applies pending migrations in version order and stops at the first failure.
func (m *migrator) up(ctx context.Context) (int, error) {
	_, todo, err := m.plan(ctx)
	if err != nil {
		return 0, err
	}
	for i, mig := range todo {
		if err := m.store.Apply(ctx, mig); err != nil {
			return i, err
		}
		middleware.Logger.InfoContext(ctx, "blog schema migrated", slog.String("migration", mig.String()))
	}
	return len(todo), nil
}

func (m *migrator) down(ctx context.Context, version int) error {
	var target *Migration
	for i := range m.known {
		if m.known[i].Version == version {
			target = &m.known[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no migration with version %d", version)
	}

	applied, err := m.store.Applied(ctx)
	if err != nil {
		return err
	}
	if i := sort.SearchInts(applied, version); i == len(applied) || applied[i] != version {
		return fmt.Errorf("migration %s is not applied", target.String())
	}

	if err := m.store.Revert(ctx, *target); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "blog schema rolled back", slog.String("migration", target.String()))
	return nil
}

// checkLedger fails when the ledger holds versions this build does not ship,
// which means the database is ahead of the binary.
func checkLedger(applied []int, known []Migration) error {
	shipped := make(map[int]bool, len(known))
	for _, mig := range known {
		shipped[mig.Version] = true
	}

	var unknown []int
	for _, v := range applied {
		if !shipped[v] {
			unknown = append(unknown, v)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Ints(unknown)
	labels := make([]string, len(unknown))
	for i, v := range unknown {
		labels[i] = fmt.Sprintf("%06d", v)
	}
	return fmt.Errorf("schema_migrations lists versions this build does not ship: %s", strings.Join(labels, ", "))
}

func postgresMigrator(ctx context.Context, db *gorm.DB) (*migrator, error) {
	if name := db.Dialector.Name(); name != "postgres" {
		return nil, fmt.Errorf("blog SQL migrations target postgres, got %q (use DB_SCHEMA_MODE=auto)", name)
	}
	if err := db.WithContext(ctx).AutoMigrate(&schemaMigration{}); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	return &migrator{store: NewMigrationStore(db), known: GetMigrations()}, nil
}

// MigrateUp applies every pending SQL migration and reports how many ran.
func MigrateUp(ctx context.Context, db *gorm.DB) (int, error) {
	m, err := postgresMigrator(ctx, db)
	if err != nil {
		return 0, err
	}
	return m.up(ctx)
}

// MigrateDown reverts one applied SQL migration.
func MigrateDown(ctx context.Context, db *gorm.DB, version int) error {
	m, err := postgresMigrator(ctx, db)
	if err != nil {
		return err
	}
	return m.down(ctx, version)
}
