package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	database "github.com/tera-bt/teraland-gateway/internal"
	"github.com/tera-bt/teraland-gateway/internal/config"
	"github.com/tera-bt/teraland-gateway/internal/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)
	if cfg.DB.DSN == "" {
		logging.Fatal("db.dsn is required (TERALAND_DB_DSN)")
	}
	db, err := database.Connect(context.Background(), cfg.DB.DSN)
	if err != nil {
		logging.Fatal("%v", err)
	}
	defer db.Close()

	n, err := migrate(db, migrations)
	if err != nil {
		logging.Fatal("%v", err)
	}
	logging.Info("migrations applied: %d", n)
}

// migrate applies every not yet applied file under migrations/ in name order.
func migrate(db *sqlx.DB, fsys fs.FS) (int, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, err
	}
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(files)
	applied, err := getAppliedMigrations(db)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		name := path.Base(f)
		if applied[name] {
			continue
		}
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return n, err
		}
		upSQL := extractGooseUp(string(b))
		if strings.TrimSpace(upSQL) != "" {
			logging.Info("applying migration: %s", name)
			if err := execStatements(db, upSQL); err != nil {
				return n, fmt.Errorf("migration %s: %w", name, err)
			}
		}
		if err := markApplied(db, name); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func ensureMigrationsTable(db *sqlx.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func getAppliedMigrations(db *sqlx.DB) (map[string]bool, error) {
	var versions []string
	if err := db.Select(&versions, `SELECT version FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func markApplied(db *sqlx.DB, version string) error {
	_, err := db.Exec(`INSERT INTO schema_migrations(version, applied_at) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING`, version, time.Now())
	if err != nil {
		return fmt.Errorf("mark %s applied: %w", version, err)
	}
	return nil
}

// extractGooseUp returns the text between "-- +goose Up" and "-- +goose Down".
// A file without markers is all Up.
func extractGooseUp(content string) string {
	lower := strings.ToLower(content)
	upIdx := strings.Index(lower, "-- +goose up")
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx:]
	if nl := strings.Index(rest, "\n"); nl != -1 {
		rest = rest[nl+1:]
	} else {
		rest = ""
	}
	if down := strings.Index(strings.ToLower(rest), "-- +goose down"); down != -1 {
		rest = rest[:down]
	}
	return rest
}

// execStatements splits on ';' and runs each statement, tolerating objects
// that already exist.
func execStatements(db *sqlx.DB, sql string) error {
	for _, raw := range strings.Split(sql, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			msg := strings.ToLower(err.Error())
			if strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate") {
				logging.Warn("ignoring idempotent error for statement: %s -> %v", short(stmt), err)
				continue
			}
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}

func short(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
