package postgres

import (
	"database/sql"
	"errors"
	stdlog "log"

	"github.com/lib/pq"

	"guides-server/stores/sqlstore"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		subject TEXT UNIQUE,
		role TEXT NOT NULL DEFAULT 'user',
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guides (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		published BOOLEAN NOT NULL DEFAULT FALSE,
		slug TEXT UNIQUE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_guides_owner ON guides(owner_id)`,
	`CREATE TABLE IF NOT EXISTS elements (
		id TEXT PRIMARY KEY,
		guide_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		x DOUBLE PRECISION NOT NULL,
		y DOUBLE PRECISION NOT NULL,
		width DOUBLE PRECISION,
		height DOUBLE PRECISION,
		font_size DOUBLE PRECISION,
		color TEXT,
		background_color TEXT,
		border_color TEXT,
		border_width DOUBLE PRECISION,
		rotation DOUBLE PRECISION,
		layer INTEGER,
		href TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_elements_guide ON elements(guide_id, position)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS media (id TEXT PRIMARY KEY, content_type TEXT NOT NULL, data BYTEA)`,
}

// uniqueViolation is the SQLSTATE postgres reports for a duplicate key.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// NewStore connects to postgres and creates the tables.
func NewStore(databaseURL string) *sqlstore.Store {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		stdlog.Fatalf("failed to open postgres database: %v", err)
	}
	if err := db.Ping(); err != nil {
		stdlog.Fatalf("failed to connect to postgres: %v", err)
	}

	store, err := sqlstore.New(db, sqlstore.Dialect{
		Name:              "postgres",
		Numbered:          true,
		Schema:            schema,
		IsUniqueViolation: isUniqueViolation,
	})
	if err != nil {
		stdlog.Fatalf("failed to create postgres tables: %v", err)
	}
	return store
}
