package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warranty-sync-service/internal/scclient"
)

// ErrAlreadyRunning is returned when a run is requested for a template that
// already has one in flight.
var ErrAlreadyRunning = errors.New("sync already running for template")

type Mode string

const (
	// ModeIncremental fetches only audits modified since the saved cursor.
	ModeIncremental Mode = "incremental"
	// ModeFull fetches every audit for the template regardless of cursor,
	// restoring locally-deleted records and establishing a fresh watermark.
	ModeFull Mode = "full"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeIncremental, ModeFull:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid sync mode %q", s)
	}
}

type RunStatus string

const (
	StatusDone    RunStatus = "done"
	StatusAborted RunStatus = "aborted"
)

type RunOptions struct {
	TemplateID string
	Mode       Mode
	// VerifyOnly runs the full fetch/extract logic but performs no store
	// mutations and no cursor write.
	VerifyOnly bool
}

// AuditClient is the remote fetch dependency of the orchestrator. Implemented
// by scclient.Client; tests substitute scripted fakes.
type AuditClient interface {
	FetchPage(ctx context.Context, templateID string, modifiedSince *time.Time, pageToken string) (*scclient.Page, error)
}

// Summary is the per-run accounting returned to the caller in every terminal
// state. Processed always equals Added+Updated+Skipped+Errors.
type Summary struct {
	TemplateID  string     `json:"template_id"`
	Incremental bool       `json:"incremental"`
	VerifyOnly  bool       `json:"verify_only"`
	Processed   int        `json:"processed"`
	Added       int        `json:"added"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	Errors      int        `json:"errors"`
	NewCursor   *time.Time `json:"new_cursor,omitempty"`
	Status      RunStatus  `json:"status"`
	AbortReason string     `json:"abort_reason,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
}

// LogLine renders the one-per-run summary line consumed by log tooling. The
// shape is a stable contract; do not reword it.
func (s *Summary) LogLine() string {
	cursor := "none"
	if s.NewCursor != nil {
		cursor = s.NewCursor.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("SC sync summary: incremental=%t processed=%d added=%d updated=%d skipped=%d errors=%d cursor=%s",
		s.Incremental, s.Processed, s.Added, s.Updated, s.Skipped, s.Errors, cursor)
}
