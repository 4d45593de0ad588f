package sync

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"warranty-sync-service/internal/config"
)

// Scheduler triggers periodic incremental runs for the configured template.
type Scheduler struct {
	cfg        config.SchedulerConfig
	templateID string
	manager    *Manager
	cron       *cron.Cron
	entryID    cron.EntryID
	log        *zap.Logger
}

func NewScheduler(cfg config.SchedulerConfig, templateID string, manager *Manager, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		templateID: templateID,
		manager:    manager,
		cron:       cron.New(),
		log:        log,
	}
}

func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		s.log.Info("Scheduler is disabled")
		return
	}

	s.log.Info("Starting scheduler", zap.String("interval", s.cfg.Interval))

	id, err := s.cron.AddFunc(s.cfg.Interval, s.triggerSync)
	if err != nil {
		s.log.Error("Failed to schedule job", zap.Error(err))
		return
	}

	s.entryID = id
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.log.Info("Stopped scheduler")
}

func (s *Scheduler) triggerSync() {
	s.log.Info("Triggering scheduled sync", zap.String("template_id", s.templateID))

	sum, err := s.manager.RunSync(context.Background(), RunOptions{
		TemplateID: s.templateID,
		Mode:       ModeIncremental,
	})
	if errors.Is(err, ErrAlreadyRunning) {
		s.log.Info("Sync already running, skipping scheduled run")
		return
	}
	if err != nil {
		s.log.Error("Failed to run scheduled sync", zap.Error(err))
		return
	}
	if sum.Status == StatusAborted {
		s.log.Warn("Scheduled sync aborted", zap.String("reason", sum.AbortReason))
	}
}
