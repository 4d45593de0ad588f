package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"warranty-sync-service/internal/config"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(config.StateStorage{
		Type:     "sqlite",
		FilePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func testRecord(auditID string, modified time.Time) *AuditRecord {
	auditDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return &AuditRecord{
		AuditID:          auditID,
		SourceModifiedAt: modified,
		UnitSN:           strPtr("IG1AB12345"),
		ModelNumber:      strPtr("IG1"),
		UMSSN:            strPtr("1234-5678"),
		AuditDate:        &auditDate,
		WarrantyExpiry:   timePtr(auditDate.AddDate(3, 0, 0)),
		Payload:          json.RawMessage(`{"audit_id":"` + auditID + `"}`),
	}
}

func TestUpsertRecordOutcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1 := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	outcome, err := s.UpsertRecord(ctx, testRecord("audit_1", t1))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Added {
		t.Fatalf("first upsert = %v, want Added", outcome)
	}

	outcome, err = s.UpsertRecord(ctx, testRecord("audit_1", t2))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Updated {
		t.Fatalf("newer upsert = %v, want Updated", outcome)
	}

	// Same timestamp is not newer
	outcome, err = s.UpsertRecord(ctx, testRecord("audit_1", t2))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Skipped {
		t.Fatalf("equal-timestamp upsert = %v, want Skipped", outcome)
	}
}

func TestUpsertOutOfOrderProtection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1 := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	newer := testRecord("audit_1", t2)
	newer.UnitSN = strPtr("IG1NEWER")
	if _, err := s.UpsertRecord(ctx, newer); err != nil {
		t.Fatal(err)
	}

	stale := testRecord("audit_1", t1)
	stale.UnitSN = strPtr("IG1STALE")
	outcome, err := s.UpsertRecord(ctx, stale)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Skipped {
		t.Fatalf("stale upsert = %v, want Skipped", outcome)
	}

	rec, err := s.GetRecord(ctx, "audit_1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.UnitSN == nil || *rec.UnitSN != "IG1NEWER" {
		t.Errorf("stored record = %+v, want the newer version kept", rec)
	}
	if !rec.SourceModifiedAt.Equal(t2) {
		t.Errorf("SourceModifiedAt = %v, want %v", rec.SourceModifiedAt, t2)
	}
}

func TestGetRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	modified := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	in := testRecord("audit_1", modified)
	if _, err := s.UpsertRecord(ctx, in); err != nil {
		t.Fatal(err)
	}

	rec, err := s.GetRecord(ctx, "audit_1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("record not found")
	}
	if *rec.UnitSN != "IG1AB12345" || *rec.ModelNumber != "IG1" || *rec.UMSSN != "1234-5678" {
		t.Errorf("identifiers = %v %v %v", rec.UnitSN, rec.ModelNumber, rec.UMSSN)
	}
	if rec.TMDeviceID != nil {
		t.Errorf("TMDeviceID = %v, want nil", rec.TMDeviceID)
	}
	if rec.AuditDate == nil || !rec.AuditDate.Equal(*in.AuditDate) {
		t.Errorf("AuditDate = %v", rec.AuditDate)
	}
	if len(rec.Payload) == 0 {
		t.Error("payload not persisted")
	}

	missing, err := s.GetRecord(ctx, "audit_nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("missing record = %+v, want nil", missing)
	}
}

func TestListRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"audit_a", "audit_b", "audit_c"} {
		if _, err := s.UpsertRecord(ctx, testRecord(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.ListRecords(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	// Most recently modified first
	if records[0].AuditID != "audit_c" {
		t.Errorf("first record = %s, want audit_c", records[0].AuditID)
	}
}

func TestCursorSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cursor, err := s.GetCursor(ctx, "template_1")
	if err != nil {
		t.Fatal(err)
	}
	if cursor != nil {
		t.Fatalf("cursor = %v, want nil before first sync", cursor)
	}

	ts := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	if err := s.SetCursor(ctx, "template_1", ts); err != nil {
		t.Fatal(err)
	}
	cursor, err = s.GetCursor(ctx, "template_1")
	if err != nil {
		t.Fatal(err)
	}
	if cursor == nil || !cursor.Equal(ts) {
		t.Fatalf("cursor = %v, want %v", cursor, ts)
	}

	// Overwrite, and make sure templates do not interfere
	ts2 := ts.Add(24 * time.Hour)
	if err := s.SetCursor(ctx, "template_1", ts2); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCursor(ctx, "template_2", ts); err != nil {
		t.Fatal(err)
	}
	cursor, _ = s.GetCursor(ctx, "template_1")
	if cursor == nil || !cursor.Equal(ts2) {
		t.Fatalf("cursor = %v, want %v", cursor, ts2)
	}
	other, _ := s.GetCursor(ctx, "template_2")
	if other == nil || !other.Equal(ts) {
		t.Fatalf("template_2 cursor = %v, want %v", other, ts)
	}
}

func TestSyncRunHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	run := &SyncRun{
		ID:         "run-1",
		TemplateID: "template_1",
		Mode:       "incremental",
		StartedAt:  started,
		Status:     "running",
	}
	if err := s.CreateSyncRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	run.CompletedAt = sql.NullTime{Time: started.Add(time.Minute), Valid: true}
	run.Processed = 5
	run.Added = 3
	run.Updated = 1
	run.Skipped = 1
	run.Status = "done"
	run.NewCursor = sql.NullTime{Time: started, Valid: true}
	if err := s.FinishSyncRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListSyncRuns(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != "done" || got.Processed != 5 || got.Added != 3 {
		t.Errorf("run = %+v", got)
	}
	if !got.CompletedAt.Valid || !got.NewCursor.Valid {
		t.Error("completed_at / new_cursor not persisted")
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}
