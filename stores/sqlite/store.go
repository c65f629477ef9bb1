package sqlite

import (
	"database/sql"
	stdlog "log"

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
		approved INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS guides (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		published INTEGER NOT NULL DEFAULT 0,
		slug TEXT UNIQUE,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_guides_owner ON guides(owner_id);`,
	`CREATE TABLE IF NOT EXISTS elements (
		id TEXT PRIMARY KEY,
		guide_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		x REAL NOT NULL,
		y REAL NOT NULL,
		width REAL,
		height REAL,
		font_size REAL,
		color TEXT,
		background_color TEXT,
		border_color TEXT,
		border_width REAL,
		rotation REAL,
		layer INTEGER,
		href TEXT,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_elements_guide ON elements(guide_id, position);`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS media (id TEXT PRIMARY KEY, content_type TEXT NOT NULL, data BLOB);`,
}

// NewStore opens (or creates) the sqlite database and its tables.
func NewStore(dataSourceName string) *sqlstore.Store {
	db, err := sql.Open(DriverName, dataSourceName)
	if err != nil {
		stdlog.Fatalf("failed to open sqlite database: %v", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	store, err := sqlstore.New(db, sqlstore.Dialect{
		Name:              "sqlite",
		Schema:            schema,
		IsUniqueViolation: isUniqueViolation,
	})
	if err != nil {
		stdlog.Fatalf("failed to create sqlite tables: %v", err)
	}
	return store
}
