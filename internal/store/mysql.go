package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"warranty-sync-service/internal/config"
)

type MySQLStore struct {
	sqlStore
}

func NewMySQLStore(cfg config.StateStorage, log *zap.Logger) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	// Retry loop for Ping
	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		log.Info("Waiting for state DB...", zap.Error(err), zap.Int("attempt", i+1))
		time.Sleep(1 * time.Second)
	}

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql after retries: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &MySQLStore{sqlStore{db: db}}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create mysql schema: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_records (
			audit_id           VARCHAR(64) PRIMARY KEY,
			source_modified_at DATETIME(6) NOT NULL,
			unit_sn            VARCHAR(64),
			model_number       VARCHAR(16),
			ums_sn             VARCHAR(9),
			tm_device_id       VARCHAR(32),
			audit_date         DATE,
			warranty_expiry    DATE,
			payload            JSON,
			created_at         DATETIME(6) NOT NULL,
			updated_at         DATETIME(6) NOT NULL,
			INDEX idx_audit_records_modified (source_modified_at),
			INDEX idx_audit_records_unit_sn (unit_sn)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_cursors (
			template_id    VARCHAR(64) PRIMARY KEY,
			last_synced_at DATETIME(6) NOT NULL,
			updated_at     DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id            VARCHAR(36) PRIMARY KEY,
			template_id   VARCHAR(64) NOT NULL,
			mode          VARCHAR(16) NOT NULL,
			verify_only   TINYINT(1) NOT NULL DEFAULT 0,
			started_at    DATETIME(6) NOT NULL,
			completed_at  DATETIME(6),
			processed     INT NOT NULL DEFAULT 0,
			added         INT NOT NULL DEFAULT 0,
			updated       INT NOT NULL DEFAULT 0,
			skipped       INT NOT NULL DEFAULT 0,
			errors        INT NOT NULL DEFAULT 0,
			new_cursor    DATETIME(6),
			status        VARCHAR(16) NOT NULL,
			error_message TEXT,
			INDEX idx_sync_runs_started (started_at)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
