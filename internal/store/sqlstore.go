package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqlStore implements Store on top of database/sql using portable SQL, so the
// MySQL and SQLite backends differ only in how they open the handle and in
// their DDL. Record writes are serialized by the orchestrator's run-level
// lock, so upserts use plain read-then-write instead of driver-specific
// ON CONFLICT clauses.
type sqlStore struct {
	db *sql.DB
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *sqlStore) UpsertRecord(ctx context.Context, rec *AuditRecord) (UpsertOutcome, error) {
	now := time.Now().UTC()

	var existing sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT source_modified_at FROM audit_records WHERE audit_id = ?`,
		rec.AuditID).Scan(&existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO audit_records
				(audit_id, source_modified_at, unit_sn, model_number, ums_sn,
				 tm_device_id, audit_date, warranty_expiry, payload, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.AuditID, rec.SourceModifiedAt.UTC(), rec.UnitSN, rec.ModelNumber,
			rec.UMSSN, rec.TMDeviceID, rec.AuditDate, rec.WarrantyExpiry,
			rec.Payload, now, now)
		if err != nil {
			return Skipped, fmt.Errorf("failed to insert record %s: %w", rec.AuditID, err)
		}
		return Added, nil

	case err != nil:
		return Skipped, fmt.Errorf("failed to read record %s: %w", rec.AuditID, err)
	}

	// Newer-wins: a stored record at least as new as the incoming one stays.
	if existing.Valid && !rec.SourceModifiedAt.After(existing.Time) {
		return Skipped, nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE audit_records SET
			source_modified_at = ?, unit_sn = ?, model_number = ?, ums_sn = ?,
			tm_device_id = ?, audit_date = ?, warranty_expiry = ?, payload = ?,
			updated_at = ?
		WHERE audit_id = ?`,
		rec.SourceModifiedAt.UTC(), rec.UnitSN, rec.ModelNumber, rec.UMSSN,
		rec.TMDeviceID, rec.AuditDate, rec.WarrantyExpiry, rec.Payload,
		now, rec.AuditID)
	if err != nil {
		return Skipped, fmt.Errorf("failed to update record %s: %w", rec.AuditID, err)
	}
	return Updated, nil
}

func (s *sqlStore) GetRecord(ctx context.Context, auditID string) (*AuditRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT audit_id, source_modified_at, unit_sn, model_number, ums_sn,
		       tm_device_id, audit_date, warranty_expiry, payload, created_at, updated_at
		FROM audit_records WHERE audit_id = ?`, auditID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *sqlStore) ListRecords(ctx context.Context, limit, offset int) ([]*AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, source_modified_at, unit_sn, model_number, ums_sn,
		       tm_device_id, audit_date, warranty_expiry, payload, created_at, updated_at
		FROM audit_records
		ORDER BY source_modified_at DESC, audit_id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*AuditRecord, error) {
	var rec AuditRecord
	var unitSN, modelNumber, umsSN, tmDeviceID sql.NullString
	var auditDate, warrantyExpiry sql.NullTime

	err := row.Scan(
		&rec.AuditID,
		&rec.SourceModifiedAt,
		&unitSN,
		&modelNumber,
		&umsSN,
		&tmDeviceID,
		&auditDate,
		&warrantyExpiry,
		&rec.Payload,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.UnitSN = nullString(unitSN)
	rec.ModelNumber = nullString(modelNumber)
	rec.UMSSN = nullString(umsSN)
	rec.TMDeviceID = nullString(tmDeviceID)
	rec.AuditDate = nullTime(auditDate)
	rec.WarrantyExpiry = nullTime(warrantyExpiry)

	return &rec, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func (s *sqlStore) GetCursor(ctx context.Context, templateID string) (*time.Time, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_synced_at FROM sync_cursors WHERE template_id = ?`,
		templateID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ts = ts.UTC()
	return &ts, nil
}

func (s *sqlStore) SetCursor(ctx context.Context, templateID string, ts time.Time) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_cursors SET last_synced_at = ?, updated_at = ? WHERE template_id = ?`,
		ts.UTC(), now, templateID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO sync_cursors (template_id, last_synced_at, updated_at) VALUES (?, ?, ?)`,
			templateID, ts.UTC(), now)
	}
	return err
}

func (s *sqlStore) CreateSyncRun(ctx context.Context, run *SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs
			(id, template_id, mode, verify_only, started_at, completed_at,
			 processed, added, updated, skipped, errors, new_cursor, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TemplateID, run.Mode, run.VerifyOnly, run.StartedAt.UTC(),
		run.CompletedAt, run.Processed, run.Added, run.Updated, run.Skipped,
		run.Errors, run.NewCursor, run.Status, run.ErrorMsg)
	return err
}

func (s *sqlStore) FinishSyncRun(ctx context.Context, run *SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET
			completed_at = ?, processed = ?, added = ?, updated = ?, skipped = ?,
			errors = ?, new_cursor = ?, status = ?, error_message = ?
		WHERE id = ?`,
		run.CompletedAt, run.Processed, run.Added, run.Updated, run.Skipped,
		run.Errors, run.NewCursor, run.Status, run.ErrorMsg, run.ID)
	return err
}

func (s *sqlStore) ListSyncRuns(ctx context.Context, limit, offset int) ([]*SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, mode, verify_only, started_at, completed_at,
		       processed, added, updated, skipped, errors, new_cursor, status, error_message
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*SyncRun
	for rows.Next() {
		var run SyncRun
		err := rows.Scan(
			&run.ID,
			&run.TemplateID,
			&run.Mode,
			&run.VerifyOnly,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Processed,
			&run.Added,
			&run.Updated,
			&run.Skipped,
			&run.Errors,
			&run.NewCursor,
			&run.Status,
			&run.ErrorMsg,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
