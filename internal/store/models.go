package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// UpsertOutcome classifies the result of an AuditRecord upsert.
type UpsertOutcome int

const (
	// Added means no record existed for the audit id.
	Added UpsertOutcome = iota
	// Updated means an older record was overwritten.
	Updated
	// Skipped means the stored record was at least as new as the incoming
	// one; nothing was written.
	Skipped
)

func (o UpsertOutcome) String() string {
	switch o {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// AuditRecord is the flat, derived row persisted per remote audit.
// AuditID is the stable upsert key; every other field is replaceable on each
// sync, newest source_modified_at wins.
type AuditRecord struct {
	AuditID          string          `json:"audit_id"`
	SourceModifiedAt time.Time       `json:"source_modified_at"`
	UnitSN           *string         `json:"unit_sn,omitempty"`
	ModelNumber      *string         `json:"model_number,omitempty"`
	UMSSN            *string         `json:"ums_sn,omitempty"`
	TMDeviceID       *string         `json:"tm_device_id,omitempty"`
	AuditDate        *time.Time      `json:"audit_date,omitempty"`
	WarrantyExpiry   *time.Time      `json:"warranty_expiry,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SyncRun is one persisted row per sync run, finalized when the run ends.
type SyncRun struct {
	ID          string         `json:"id"`
	TemplateID  string         `json:"template_id"`
	Mode        string         `json:"mode"`
	VerifyOnly  bool           `json:"verify_only"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt sql.NullTime   `json:"completed_at"`
	Processed   int            `json:"processed"`
	Added       int            `json:"added"`
	Updated     int            `json:"updated"`
	Skipped     int            `json:"skipped"`
	Errors      int            `json:"errors"`
	NewCursor   sql.NullTime   `json:"new_cursor"`
	Status      string         `json:"status"`
	ErrorMsg    sql.NullString `json:"error_message"`
}
