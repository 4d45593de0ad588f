package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks store failures caused by an unreachable backend.
// The orchestrator promotes these to a run-level abort; other store errors
// stay per-record.
var ErrUnavailable = errors.New("store unavailable")

type Store interface {
	// Records
	UpsertRecord(ctx context.Context, rec *AuditRecord) (UpsertOutcome, error)
	GetRecord(ctx context.Context, auditID string) (*AuditRecord, error)
	ListRecords(ctx context.Context, limit, offset int) ([]*AuditRecord, error)

	// Cursor slot, one watermark per template.
	GetCursor(ctx context.Context, templateID string) (*time.Time, error)
	SetCursor(ctx context.Context, templateID string, ts time.Time) error

	// Run history
	CreateSyncRun(ctx context.Context, run *SyncRun) error
	FinishSyncRun(ctx context.Context, run *SyncRun) error
	ListSyncRuns(ctx context.Context, limit, offset int) ([]*SyncRun, error)

	// General
	Ping(ctx context.Context) error
	Close() error
}
