// Package schedule runs cleanup passes on a cron schedule using
// robfig/cron/v3. It backs the long-running serve command; one-shot
// commands call the manager directly.
package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/sessmaint/internal/logger"
	"github.com/aatumaykin/sessmaint/internal/maintain"
)

// Scheduler drives periodic cleanup passes.
type Scheduler struct {
	spec    string
	manager *maintain.Manager
	log     *logger.Logger
	cron    *cron.Cron
}

// New creates a scheduler for the standard five-field cron spec.
func New(spec string, manager *maintain.Manager, log *logger.Logger) *Scheduler {
	return &Scheduler{
		spec:    spec,
		manager: manager,
		log:     log,
		cron:    cron.New(),
	}
}

// Run starts the schedule and blocks until the context is cancelled. The
// pass in flight, if any, finishes before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, s.runCleanup); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.log.Info("cleanup schedule started", logger.Field{Key: "cron", Value: s.spec})

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("cleanup schedule stopped")
	return nil
}

func (s *Scheduler) runCleanup() {
	report, err := s.manager.Cleanup()
	if err != nil {
		if maintain.IsStoreMissing(err) {
			s.log.Debug("store file absent, skipping scheduled cleanup")
			return
		}
		s.log.Error("scheduled cleanup failed", err)
		return
	}
	s.log.Info("scheduled cleanup finished",
		logger.Field{Key: "removed", Value: report.RemovedCount},
		logger.Field{Key: "optimized", Value: report.OptimizedCount},
		logger.Field{Key: "bytes_saved", Value: report.BytesSaved})
}
