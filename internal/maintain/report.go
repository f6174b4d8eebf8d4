package maintain

import (
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/sessmaint/internal/stats"
)

// AnalyzeReport is the read-only inspection result.
type AnalyzeReport struct {
	PassID                string        `json:"pass_id" yaml:"pass_id"`
	Summary               stats.Summary `json:"summary" yaml:"summary"`
	EstimatedRemovals     int           `json:"estimated_removals" yaml:"estimated_removals"`
	EstimatedOptimized    int           `json:"estimated_optimized" yaml:"estimated_optimized"`
	EstimatedSavingsBytes int           `json:"estimated_savings_bytes" yaml:"estimated_savings_bytes"`
}

func (r *AnalyzeReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session store analysis (pass %s)\n\n", r.PassID)
	b.WriteString(r.Summary.String())
	fmt.Fprintf(&b, "\nA cleanup pass would remove %d and compact %d sessions,\nsaving an estimated %s.\n",
		r.EstimatedRemovals, r.EstimatedOptimized, stats.FormatBytes(r.EstimatedSavingsBytes))
	return b.String()
}

// CleanupReport describes one destructive pass.
type CleanupReport struct {
	PassID         string        `json:"pass_id" yaml:"pass_id"`
	BackupPath     string        `json:"backup_path" yaml:"backup_path"`
	Before         stats.Summary `json:"before" yaml:"before"`
	After          stats.Summary `json:"after" yaml:"after"`
	RemovedOld     int           `json:"removed_old" yaml:"removed_old"`
	RemovedIdle    int           `json:"removed_idle" yaml:"removed_idle"`
	RemovedCount   int           `json:"removed_count" yaml:"removed_count"`
	OptimizedCount int           `json:"optimized_count" yaml:"optimized_count"`
	BytesSaved     int           `json:"bytes_saved" yaml:"bytes_saved"`
	Duration       time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

func (r *CleanupReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cleanup pass %s finished in %s\n\n", r.PassID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "removed:   %d (%d expired, %d idle)\n", r.RemovedCount, r.RemovedOld, r.RemovedIdle)
	fmt.Fprintf(&b, "optimized: %d\n", r.OptimizedCount)
	fmt.Fprintf(&b, "saved:     %s", stats.FormatBytes(r.BytesSaved))
	if r.Before.TotalSizeBytes > 0 {
		fmt.Fprintf(&b, " (%.1f%%)", float64(r.BytesSaved)/float64(r.Before.TotalSizeBytes)*100)
	}
	fmt.Fprintf(&b, "\nbackup:    %s\n", r.BackupPath)
	fmt.Fprintf(&b, "\nBefore:\n%s\nAfter:\n%s", r.Before.String(), r.After.String())
	return b.String()
}

// MigrateReport describes one schema migration pass.
type MigrateReport struct {
	PassID     string        `json:"pass_id" yaml:"pass_id"`
	BackupPath string        `json:"backup_path" yaml:"backup_path"`
	Migrated   int           `json:"migrated" yaml:"migrated"`
	Failed     int           `json:"failed" yaml:"failed"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

func (r *MigrateReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Migration pass %s finished in %s\n\n", r.PassID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "migrated: %d\n", r.Migrated)
	fmt.Fprintf(&b, "failed:   %d (kept in original form)\n", r.Failed)
	fmt.Fprintf(&b, "backup:   %s\n", r.BackupPath)
	return b.String()
}
