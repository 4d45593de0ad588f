package sync

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warranty-sync-service/internal/extract"
	"warranty-sync-service/internal/store"
)

// Manager drives sync runs: mode selection, the page loop, per-payload
// extraction and upsert, summary accounting and cursor finalization. At most
// one run per template executes at a time; the per-template lock is held for
// the run's full duration, which also makes the cursor's read-then-write
// atomic relative to other runs.
type Manager struct {
	client    AuditClient
	extractor *extract.Extractor
	store     store.Store
	log       *zap.Logger

	mu      sync.Mutex
	running map[string]bool
	last    map[string]*Summary
}

func NewManager(client AuditClient, extractor *extract.Extractor, st store.Store, log *zap.Logger) *Manager {
	return &Manager{
		client:    client,
		extractor: extractor,
		store:     st,
		log:       log,
		running:   make(map[string]bool),
		last:      make(map[string]*Summary),
	}
}

// Status reports whether a run is in flight for the template and the summary
// of the most recent completed run, if any.
func (m *Manager) Status(templateID string) (bool, *Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[templateID], m.last[templateID]
}

// RunSync executes one sync run. It returns ErrAlreadyRunning when the
// template is busy; every other outcome, including aborts, is reported
// through the returned Summary.
func (m *Manager) RunSync(ctx context.Context, opts RunOptions) (*Summary, error) {
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if !m.acquire(opts.TemplateID) {
		return nil, ErrAlreadyRunning
	}
	defer m.release(opts.TemplateID)

	sum := &Summary{
		TemplateID:  opts.TemplateID,
		Incremental: opts.Mode == ModeIncremental,
		VerifyOnly:  opts.VerifyOnly,
		StartedAt:   time.Now().UTC(),
	}

	m.log.Info("sync run starting",
		zap.String("template_id", opts.TemplateID),
		zap.String("mode", string(opts.Mode)),
		zap.Bool("verify_only", opts.VerifyOnly),
	)

	var run *store.SyncRun
	if !opts.VerifyOnly {
		run = &store.SyncRun{
			ID:         uuid.NewString(),
			TemplateID: opts.TemplateID,
			Mode:       string(opts.Mode),
			VerifyOnly: false,
			StartedAt:  sum.StartedAt,
			Status:     "running",
		}
		if err := m.store.CreateSyncRun(ctx, run); err != nil {
			return m.finish(sum, nil, StatusAborted, "store unreachable: "+err.Error()), nil
		}
	}

	// Incremental resolves the saved watermark; a missing cursor degrades
	// transparently to a full fetch. Full ignores the cursor entirely and
	// leaves it untouched until successful completion.
	var modifiedSince *time.Time
	if opts.Mode == ModeIncremental {
		cursor, err := m.store.GetCursor(ctx, opts.TemplateID)
		if err != nil {
			return m.finish(sum, run, StatusAborted, "cursor read failed: "+err.Error()), nil
		}
		modifiedSince = cursor
	}

	var maxSeen, minFailed *time.Time
	pageToken := ""
	for {
		if err := ctx.Err(); err != nil {
			return m.finish(sum, run, StatusAborted, "canceled: "+err.Error()), nil
		}

		page, err := m.client.FetchPage(ctx, opts.TemplateID, modifiedSince, pageToken)
		if err != nil {
			return m.finish(sum, run, StatusAborted, "fetch failed: "+err.Error()), nil
		}

		for _, raw := range page.Audits {
			sum.Processed++

			rec, err := m.extractor.Extract(raw)
			if err != nil {
				sum.Errors++
				if ts, ok := extract.ModifiedAt(raw); ok {
					minFailed = minTime(minFailed, ts)
				}
				m.log.Warn("audit payload rejected", zap.Error(err))
				continue
			}

			if opts.VerifyOnly {
				sum.Skipped++
				maxSeen = maxTime(maxSeen, rec.SourceModifiedAt)
				continue
			}

			outcome, err := m.store.UpsertRecord(ctx, rec)
			if err != nil {
				// A dead store aborts the run; a live store demotes the
				// failure to a per-record error.
				if pingErr := m.store.Ping(ctx); pingErr != nil {
					return m.finish(sum, run, StatusAborted, "store unreachable: "+err.Error()), nil
				}
				sum.Errors++
				minFailed = minTime(minFailed, rec.SourceModifiedAt)
				m.log.Warn("record upsert failed",
					zap.String("audit_id", rec.AuditID), zap.Error(err))
				continue
			}

			switch outcome {
			case store.Added:
				sum.Added++
			case store.Updated:
				sum.Updated++
			case store.Skipped:
				sum.Skipped++
			}
			maxSeen = maxTime(maxSeen, rec.SourceModifiedAt)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	// Finalizing. The new watermark is the max modified timestamp over
	// successfully processed records, capped below the oldest failed payload
	// with a readable timestamp: the modified_since filter is inclusive, so
	// the capped cursor re-fetches that audit on the next incremental run.
	newCursor := maxSeen
	if minFailed != nil && (newCursor == nil || minFailed.Before(*newCursor)) {
		newCursor = minFailed
	}
	if newCursor != nil && !opts.VerifyOnly {
		if err := m.store.SetCursor(ctx, opts.TemplateID, *newCursor); err != nil {
			return m.finish(sum, run, StatusAborted, "cursor write failed: "+err.Error()), nil
		}
		sum.NewCursor = newCursor
	}

	return m.finish(sum, run, StatusDone, ""), nil
}

// finish records the terminal state, emits the summary log line (exactly once
// per run, after all processing) and remembers the summary for Status.
func (m *Manager) finish(sum *Summary, run *store.SyncRun, status RunStatus, reason string) *Summary {
	sum.Status = status
	sum.AbortReason = reason
	sum.CompletedAt = time.Now().UTC()

	if run != nil {
		run.CompletedAt = sql.NullTime{Time: sum.CompletedAt, Valid: true}
		run.Processed = sum.Processed
		run.Added = sum.Added
		run.Updated = sum.Updated
		run.Skipped = sum.Skipped
		run.Errors = sum.Errors
		run.Status = string(status)
		if sum.NewCursor != nil {
			run.NewCursor = sql.NullTime{Time: *sum.NewCursor, Valid: true}
		}
		if reason != "" {
			run.ErrorMsg = sql.NullString{String: reason, Valid: true}
		}

		// The run's own context may already be canceled; history still gets
		// finalized.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.FinishSyncRun(ctx, run); err != nil {
			m.log.Warn("failed to finalize run history", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	if status == StatusAborted {
		m.log.Warn("sync run aborted", zap.String("template_id", sum.TemplateID), zap.String("reason", reason))
	}
	m.log.Info(sum.LogLine())

	m.mu.Lock()
	m.last[sum.TemplateID] = sum
	m.mu.Unlock()

	return sum
}

func (m *Manager) acquire(templateID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[templateID] {
		return false
	}
	m.running[templateID] = true
	return true
}

func (m *Manager) release(templateID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, templateID)
}

func minTime(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.Before(*cur) {
		return &t
	}
	return cur
}

func maxTime(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.After(*cur) {
		return &t
	}
	return cur
}
