// Package maintain orchestrates maintenance passes over the session store:
// analyze (read-only), cleanup (evict and compact) and migrate (schema
// normalization). Every destructive pass is backup-guarded and the store
// file is only ever replaced atomically.
package maintain

import (
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/sessmaint/internal/backup"
	"github.com/aatumaykin/sessmaint/internal/config"
	"github.com/aatumaykin/sessmaint/internal/logger"
	"github.com/aatumaykin/sessmaint/internal/metrics"
	"github.com/aatumaykin/sessmaint/internal/migrate"
	"github.com/aatumaykin/sessmaint/internal/optimize"
	"github.com/aatumaykin/sessmaint/internal/policy"
	"github.com/aatumaykin/sessmaint/internal/stats"
	"github.com/aatumaykin/sessmaint/internal/store"
)

// Options configures one manager instance.
type Options struct {
	StorePath          string
	BackupDir          string
	Policy             policy.Config
	Optimizer          optimize.Config
	SizeThresholdBytes int
	AcceptancePercent  float64
}

// OptionsFromConfig converts the loaded configuration into manager options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StorePath: cfg.Store.Path,
		BackupDir: cfg.Backup.Dir,
		Policy: policy.Config{
			MaxSessionAge:  time.Duration(cfg.Policy.MaxSessionAgeHours) * time.Hour,
			MaxInactiveAge: time.Duration(cfg.Policy.MaxInactiveAgeHours) * time.Hour,
		},
		Optimizer: optimize.Config{
			MaxProductQuantities: cfg.Optimizer.MaxProductQuantities,
			QuantitiesRetain:     cfg.Optimizer.ProductQuantitiesRetain,
			MaxCartItems:         cfg.Optimizer.MaxCartItems,
			CartItemsRetain:      cfg.Optimizer.CartItemsRetain,
		},
		SizeThresholdBytes: cfg.Optimizer.SessionSizeThresholdBytes,
		AcceptancePercent:  cfg.Optimizer.AcceptancePercent,
	}
}

// Manager runs maintenance passes. One pass owns the store file exclusively;
// there is no concurrent writer to guard against.
type Manager struct {
	opts      Options
	log       *logger.Logger
	metrics   *metrics.Metrics
	policy    *policy.Policy
	optimizer *optimize.Optimizer
	backups   *backup.Manager
	migrator  *migrate.Migrator
	now       func() time.Time
	writeFile func(path string, data []byte, perm os.FileMode) error
}

// New creates a manager. Metrics may be nil for one-shot commands.
func New(opts Options, log *logger.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		opts:      opts,
		log:       log,
		metrics:   m,
		policy:    policy.New(opts.Policy),
		optimizer: optimize.New(opts.Optimizer),
		backups:   backup.New(opts.BackupDir),
		migrator:  migrate.New(),
		now:       time.Now,
		writeFile: backup.WriteFileAtomic,
	}
}

// Analyze inspects the store without touching it: current summary plus an
// estimate of what a cleanup pass would remove and save.
func (m *Manager) Analyze() (report *AnalyzeReport, err error) {
	started := m.now()
	passID := uuid.NewString()

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.ObservePass("analyze", status, m.now().Sub(started))
	}()

	st, _, err := store.LoadFile(m.opts.StorePath)
	if err != nil {
		return nil, err
	}

	now := m.now()
	summary, err := stats.Summarize(st.Sessions, now, m.opts.SizeThresholdBytes, m.policy)
	if err != nil {
		return nil, err
	}

	report = &AnalyzeReport{PassID: passID, Summary: summary}
	for _, sess := range st.Sessions {
		if m.policy.Classify(sess.Data, now) != policy.Keep {
			size, err := store.CanonicalSize(sess.Data)
			if err != nil {
				return nil, err
			}
			report.EstimatedRemovals++
			report.EstimatedSavingsBytes += size
			continue
		}
		size, err := store.CanonicalSize(sess.Data)
		if err != nil {
			return nil, err
		}
		if size <= m.opts.SizeThresholdBytes {
			continue
		}
		result, err := m.optimizer.Optimize(sess.Data)
		if err != nil {
			return nil, err
		}
		if result.RatioPercent > m.opts.AcceptancePercent {
			report.EstimatedOptimized++
			report.EstimatedSavingsBytes += result.OriginalSize - result.OptimizedSize
		}
	}

	m.log.Info("analyze pass finished",
		logger.Field{Key: "pass_id", Value: passID},
		logger.Field{Key: "sessions", Value: summary.Total},
		logger.Field{Key: "estimated_removals", Value: report.EstimatedRemovals},
		logger.Field{Key: "estimated_savings_bytes", Value: report.EstimatedSavingsBytes})
	return report, nil
}

// Cleanup runs one destructive maintenance pass: snapshot, evict, compact,
// atomic rewrite. Any failure after the snapshot restores the original file
// before the error is surfaced.
func (m *Manager) Cleanup() (report *CleanupReport, err error) {
	started := m.now()
	passID := uuid.NewString()
	log := m.log.With(logger.Field{Key: "pass_id", Value: passID})

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.ObservePass("cleanup", status, m.now().Sub(started))
	}()

	st, _, err := store.LoadFile(m.opts.StorePath)
	if err != nil {
		return nil, err
	}

	backupPath, err := m.backups.Snapshot(m.opts.StorePath)
	if err != nil {
		// Refuse to touch the store without a snapshot on disk.
		return nil, err
	}
	log.Info("store snapshot created", logger.Field{Key: "backup", Value: backupPath})

	defer func() {
		if err == nil {
			return
		}
		if restoreErr := m.backups.Restore(backupPath, m.opts.StorePath); restoreErr != nil {
			log.Error("restore after failed pass also failed", restoreErr)
			err = errors.Join(err, restoreErr)
			return
		}
		log.Warn("pass failed, store restored from snapshot")
	}()

	now := m.now()
	before, err := stats.Summarize(st.Sessions, now, m.opts.SizeThresholdBytes, m.policy)
	if err != nil {
		return nil, err
	}

	report = &CleanupReport{PassID: passID, BackupPath: backupPath, Before: before}
	kept := make([]store.Session, 0, len(st.Sessions))
	for _, sess := range st.Sessions {
		verdict := m.policy.Classify(sess.Data, now)
		if verdict != policy.Keep {
			log.Info("evicting session",
				logger.Field{Key: "session_id", Value: sess.IDString()},
				logger.Field{Key: "reason", Value: verdict.String()})
			if verdict == policy.ExpireOld {
				report.RemovedOld++
			} else {
				report.RemovedIdle++
			}
			continue
		}

		size, err := store.CanonicalSize(sess.Data)
		if err != nil {
			return nil, err
		}
		if size > m.opts.SizeThresholdBytes {
			result, err := m.optimizer.Optimize(sess.Data)
			if err != nil {
				return nil, err
			}
			// Keep the compacted form only when it is worth the data loss.
			if result.RatioPercent > m.opts.AcceptancePercent {
				log.Debug("session compacted",
					logger.Field{Key: "session_id", Value: sess.IDString()},
					logger.Field{Key: "before_bytes", Value: result.OriginalSize},
					logger.Field{Key: "after_bytes", Value: result.OptimizedSize},
					logger.Field{Key: "dropped", Value: result.Dropped})
				sess.Data = result.Record
				report.OptimizedCount++
			}
		}
		kept = append(kept, sess)
	}
	st.Sessions = kept

	if err = m.writeStore(st); err != nil {
		return nil, err
	}

	after, err := stats.Summarize(st.Sessions, now, m.opts.SizeThresholdBytes, m.policy)
	if err != nil {
		return nil, err
	}
	report.After = after
	report.RemovedCount = report.RemovedOld + report.RemovedIdle
	report.BytesSaved = before.TotalSizeBytes - after.TotalSizeBytes
	report.Duration = m.now().Sub(started)

	m.metrics.AddRemoved(policy.ExpireOld.String(), report.RemovedOld)
	m.metrics.AddRemoved(policy.ExpireIdle.String(), report.RemovedIdle)
	m.metrics.AddOptimized(report.OptimizedCount)
	m.metrics.AddBytesFreed(report.BytesSaved)

	log.Info("cleanup pass finished",
		logger.Field{Key: "removed", Value: report.RemovedCount},
		logger.Field{Key: "optimized", Value: report.OptimizedCount},
		logger.Field{Key: "bytes_saved", Value: report.BytesSaved},
		logger.Field{Key: "duration_ms", Value: report.Duration.Milliseconds()})
	return report, nil
}

// Migrate rewrites every record into canonical shape. A record that fails
// migration is kept in its original form and counted; the pass never drops
// or compacts anything.
func (m *Manager) Migrate() (report *MigrateReport, err error) {
	started := m.now()
	passID := uuid.NewString()
	log := m.log.With(logger.Field{Key: "pass_id", Value: passID})

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.ObservePass("migrate", status, m.now().Sub(started))
	}()

	st, _, err := store.LoadFile(m.opts.StorePath)
	if err != nil {
		return nil, err
	}

	backupPath, err := m.backups.Snapshot(m.opts.StorePath)
	if err != nil {
		return nil, err
	}
	log.Info("store snapshot created", logger.Field{Key: "backup", Value: backupPath})

	defer func() {
		if err == nil {
			return
		}
		if restoreErr := m.backups.Restore(backupPath, m.opts.StorePath); restoreErr != nil {
			log.Error("restore after failed pass also failed", restoreErr)
			err = errors.Join(err, restoreErr)
			return
		}
		log.Warn("pass failed, store restored from snapshot")
	}()

	report = &MigrateReport{PassID: passID, BackupPath: backupPath}
	for i := range st.Sessions {
		sess := &st.Sessions[i]
		migrated, migrateErr := m.migrator.Migrate(sess.Data)
		if migrateErr != nil {
			recordErr := &migrate.RecordTransformError{ID: sess.IDString(), Err: migrateErr}
			log.Warn("record migration failed, keeping original",
				logger.Field{Key: "session_id", Value: sess.IDString()},
				logger.Field{Key: "error", Value: recordErr.Error()})
			report.Failed++
			continue
		}
		sess.Data = migrated
		report.Migrated++
	}

	if err = m.writeStore(st); err != nil {
		return nil, err
	}

	report.Duration = m.now().Sub(started)
	log.Info("migrate pass finished",
		logger.Field{Key: "migrated", Value: report.Migrated},
		logger.Field{Key: "failed", Value: report.Failed},
		logger.Field{Key: "duration_ms", Value: report.Duration.Milliseconds()})
	return report, nil
}

func (m *Manager) writeStore(st *store.Store) error {
	data, err := store.Encode(st)
	if err != nil {
		return err
	}
	return m.writeFile(m.opts.StorePath, data, 0644)
}

// IsStoreMissing reports whether err means the store file does not exist,
// which maintenance commands treat as a no-op.
func IsStoreMissing(err error) bool {
	var notFound *store.StoreNotFoundError
	return errors.As(err, &notFound)
}
