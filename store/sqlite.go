package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const plansTable = "cache_plans"

// SQLite keeps plans in a single table, one row per session.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies pending migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("plan database path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening plan database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening plan database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite3 migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("initializing migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func (s *SQLite) LoadPlan(ctx context.Context, sessionID string) ([]int, error) {
	query, args, err := sq.Select("boundaries").
		From(plansTable).
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var raw string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading plan: %w", err)
	}

	var plan []int
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("decoding plan for %s: %w", sessionID, err)
	}
	if err := validPlan(plan); err != nil {
		return nil, fmt.Errorf("plan for %s: %w", sessionID, err)
	}
	return clonePlan(plan), nil
}

func (s *SQLite) SavePlan(ctx context.Context, sessionID string, plan []int) error {
	if err := validPlan(plan); err != nil {
		return err
	}
	if plan == nil {
		plan = []int{}
	}
	encoded, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}

	query, args, err := sq.Insert(plansTable).
		Columns("session_id", "boundaries", "updated_at").
		Values(sessionID, string(encoded), s.now().UnixNano()).
		Suffix("ON CONFLICT(session_id) DO UPDATE SET boundaries = excluded.boundaries, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}
	return nil
}

func (s *SQLite) Prune(ctx context.Context, cutoff time.Time, dryRun bool) (PruneResult, error) {
	var result PruneResult
	stale := sq.Lt{"updated_at": cutoff.UnixNano()}

	if dryRun {
		query, args, err := sq.Select("COUNT(*)").From(plansTable).Where(stale).ToSql()
		if err != nil {
			return result, fmt.Errorf("build query: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&result.Deleted); err != nil {
			return result, fmt.Errorf("counting stale plans: %w", err)
		}
		return result, nil
	}

	query, args, err := sq.Delete(plansTable).Where(stale).ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("pruning plans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("pruning plans: %w", err)
	}
	result.Deleted = int(n)
	return result, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
