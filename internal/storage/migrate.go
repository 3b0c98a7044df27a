package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is a single schema migration step.
type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of schema migrations.
// Each migration is applied exactly once, tracked in the schema_version table.
var migrations = []migration{
	{
		Version:     1,
		Description: "base schema: tickets",
		SQL: `
		CREATE TABLE IF NOT EXISTS tickets (
			ticket_id            TEXT PRIMARY KEY,
			description          TEXT NOT NULL,
			tenant_phone         TEXT NOT NULL,
			category             TEXT NOT NULL,
			priority             TEXT NOT NULL,
			status               TEXT NOT NULL,
			apartment_number     TEXT DEFAULT '',
			access_instructions  TEXT DEFAULT '',
			assigned_to          TEXT DEFAULT '',
			estimated_completion DATETIME,
			image_paths          TEXT DEFAULT '[]',
			notes                TEXT DEFAULT '[]',
			created_at           DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at           DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tickets_phone ON tickets(tenant_phone, created_at);
		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		`,
	},
	{
		Version:     2,
		Description: "v2: documents, document_chunks, chunk FTS index",
		SQL: `
		CREATE TABLE IF NOT EXISTS documents (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			mime_type   TEXT DEFAULT '',
			size        INTEGER DEFAULT 0,
			chunk_count INTEGER DEFAULT 0,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS document_chunks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content     TEXT NOT NULL,
			tokens      INTEGER DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(document_id, chunk_index);

		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			content,
			content='document_chunks',
			content_rowid='id'
		);

		CREATE TRIGGER IF NOT EXISTS chunks_fts_insert AFTER INSERT ON document_chunks BEGIN
			INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
		END;
		CREATE TRIGGER IF NOT EXISTS chunks_fts_delete AFTER DELETE ON document_chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.id, old.content);
		END;
		`,
	},
}

// RunMigrations applies all pending schema migrations, tracked in the
// schema_version table.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	currentVersion := 0
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		logger.Info("applying migration",
			"version", m.Version,
			"description", m.Description,
		)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.Version, err)
		}

		logger.Info("migration applied", "version", m.Version)
	}

	return nil
}

// SchemaVersion returns the current schema version from the database.
func SchemaVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err != nil {
		return 0, nil
	}

	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
