package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"warranty-sync-service/internal/config"
)

// SQLiteStore is the embedded, file-backed state store. It uses the cgo-free
// sqlite driver, so the service stays a single static binary.
type SQLiteStore struct {
	sqlStore
}

func NewSQLiteStore(cfg config.StateStorage) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", cfg.FilePath, err)
	}

	// One writer at a time; sqlite locks the whole file anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{sqlStore{db: db}}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_records (
			audit_id           TEXT PRIMARY KEY,
			source_modified_at TIMESTAMP NOT NULL,
			unit_sn            TEXT,
			model_number       TEXT,
			ums_sn             TEXT,
			tm_device_id       TEXT,
			audit_date         TIMESTAMP,
			warranty_expiry    TIMESTAMP,
			payload            BLOB,
			created_at         TIMESTAMP NOT NULL,
			updated_at         TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_records_modified ON audit_records(source_modified_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_records_unit_sn ON audit_records(unit_sn)`,
		`CREATE TABLE IF NOT EXISTS sync_cursors (
			template_id    TEXT PRIMARY KEY,
			last_synced_at TIMESTAMP NOT NULL,
			updated_at     TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id            TEXT PRIMARY KEY,
			template_id   TEXT NOT NULL,
			mode          TEXT NOT NULL,
			verify_only   INTEGER NOT NULL DEFAULT 0,
			started_at    TIMESTAMP NOT NULL,
			completed_at  TIMESTAMP,
			processed     INTEGER NOT NULL DEFAULT 0,
			added         INTEGER NOT NULL DEFAULT 0,
			updated       INTEGER NOT NULL DEFAULT 0,
			skipped       INTEGER NOT NULL DEFAULT 0,
			errors        INTEGER NOT NULL DEFAULT 0,
			new_cursor    TIMESTAMP,
			status        TEXT NOT NULL,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
