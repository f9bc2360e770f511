package database

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Connect opens the database selected by dbType ("postgres" or "sqlite")
// and initializes the schema. For sqlite, dsn is the database file path;
// for postgres it is a connection URL.
func Connect(dbType, dsn string) (*sqlx.DB, error) {
	switch dbType {
	case "sqlite":
		return connectSQLite(dsn)
	case "postgres":
		return connectPostgres(dsn)
	}
	return nil, errors.Errorf("unsupported DB_TYPE %q", dbType)
}

func connectSQLite(path string) (*sqlx.DB, error) {
	if !strings.Contains(path, ":memory:") {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create database directory")
			}
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "connect sqlite")
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	// SQLite does not support multiple writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func connectPostgres(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initSchema creates the tables and indexes if they do not exist. The
// partial unique index on revisions is what enforces at most one pending
// revision per (topic, stage) pair at the persistence boundary.
func initSchema(db *sqlx.DB) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS study_topics (
			id ` + idColumn + `,
			user_id BIGINT NOT NULL,
			theme TEXT NOT NULL,
			discipline TEXT NOT NULL DEFAULT '',
			planned_date DATE NOT NULL,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_study_topics_user ON study_topics (user_id)`,
		`CREATE TABLE IF NOT EXISTS revisions (
			id ` + idColumn + `,
			user_id BIGINT NOT NULL,
			topic_id BIGINT NOT NULL REFERENCES study_topics (id),
			stage TEXT NOT NULL,
			scheduled_date DATE NOT NULL,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			is_refused BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_user ON revisions (user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_revisions_pending_stage
			ON revisions (topic_id, stage)
			WHERE NOT is_completed AND NOT is_refused`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrap(err, "initialize schema")
		}
	}
	return nil
}
