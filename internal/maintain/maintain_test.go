package maintain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aatumaykin/sessmaint/internal/backup"
	"github.com/aatumaykin/sessmaint/internal/config"
	"github.com/aatumaykin/sessmaint/internal/logger"
	"github.com/aatumaykin/sessmaint/internal/optimize"
	"github.com/aatumaykin/sessmaint/internal/policy"
	"github.com/aatumaykin/sessmaint/internal/store"
)

func quietLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestManager(t *testing.T, storePath string, now time.Time) *Manager {
	t.Helper()
	m := New(Options{
		StorePath:          storePath,
		Policy:             policy.DefaultConfig(),
		Optimizer:          optimize.DefaultConfig(),
		SizeThresholdBytes: 10240,
		AcceptancePercent:  10,
	}, quietLogger(t), nil)
	m.now = func() time.Time { return now }
	return m
}

func writeTestStore(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "sessions.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write store: %v", err)
	}
	return path
}

func sessionJSON(id string, updatedAt time.Time, extra string) string {
	data := fmt.Sprintf(`{"language": "en", "cart": {"items": [], "updatedAt": %q}`, updatedAt.UTC().Format(time.RFC3339))
	if extra != "" {
		data += ", " + extra
	}
	data += "}"
	return fmt.Sprintf(`{"id": %q, "data": %s}`, id, data)
}

func mixedAgeStore(now time.Time) string {
	fresh := sessionJSON("user:fresh", now.Add(-2*time.Hour), "")
	// The idle session carries a large simplifiable payload; eviction must
	// win before optimization is even considered.
	idle := sessionJSON("user:idle", now.Add(-30*time.Hour),
		`"products": ["`+strings.Repeat("p", 20000)+`"]`)
	ancient := sessionJSON("user:ancient", now.Add(-8*24*time.Hour), "")
	return fmt.Sprintf(`{"sessions": [%s, %s, %s]}`, fresh, idle, ancient)
}

func countBackups(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	n := 0
	for _, e := range entries {
		if strings.Contains(e.Name(), ".backup.") {
			n++
		}
	}
	return n
}

func TestCleanupEvictsExpiredSessions(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	storePath := writeTestStore(t, dir, mixedAgeStore(now))

	report, err := newTestManager(t, storePath, now).Cleanup()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if report.RemovedCount != 2 || report.RemovedOld != 1 || report.RemovedIdle != 1 {
		t.Errorf("removed = %d (old %d, idle %d), want 2 (1, 1)",
			report.RemovedCount, report.RemovedOld, report.RemovedIdle)
	}
	if report.OptimizedCount != 0 {
		t.Errorf("optimized = %d, want 0 for small sessions", report.OptimizedCount)
	}
	if report.BytesSaved <= 0 {
		t.Errorf("bytes saved = %d, want > 0", report.BytesSaved)
	}

	st, _, err := store.LoadFile(storePath)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if len(st.Sessions) != 1 || st.Sessions[0].IDString() != "user:fresh" {
		t.Fatalf("surviving sessions: %d, want only user:fresh", len(st.Sessions))
	}
	if st.Sessions[0].Data.Language == nil || *st.Sessions[0].Data.Language != "en" {
		t.Error("surviving session was modified")
	}

	if countBackups(t, dir) != 1 {
		t.Error("expected exactly one snapshot next to the store")
	}
	if report.After.Total != 1 || report.Before.Total != 3 {
		t.Errorf("summaries: before %d after %d, want 3 and 1", report.Before.Total, report.After.Total)
	}
}

func TestCleanupCompactsOversizedSession(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()

	var products []string
	for i := 0; i < 40; i++ {
		products = append(products, fmt.Sprintf(`{"id": %d, "name": {"en": "Product %d"}, "description": "%s"}`,
			i, i, strings.Repeat("d", 120)))
	}
	big := sessionJSON("user:big", now.Add(-time.Hour),
		`"products": [`+strings.Join(products, ",")+`], "step": "menu"`)
	storePath := writeTestStore(t, dir, `{"sessions": [`+big+`]}`)

	m := newTestManager(t, storePath, now)
	m.opts.SizeThresholdBytes = 1024

	report, err := m.Cleanup()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if report.OptimizedCount != 1 {
		t.Fatalf("optimized = %d, want 1", report.OptimizedCount)
	}
	if report.BytesSaved <= 0 {
		t.Errorf("bytes saved = %d, want > 0", report.BytesSaved)
	}

	st, _, err := store.LoadFile(storePath)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	rec := st.Sessions[0].Data
	if _, ok := rec.Extra["products"]; ok {
		t.Error("products catalog survived compaction")
	}
	if _, ok := rec.Extra["step"]; ok {
		t.Error("transient step survived compaction")
	}
}

func TestCleanupRespectsAcceptanceThreshold(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()

	// Only a tiny transient flag is removable; the bulk is the address,
	// which optimization never touches. Savings stay under 10%.
	heavy := sessionJSON("user:heavy", now.Add(-time.Hour),
		`"address": "`+strings.Repeat("a", 4000)+`", "step": "menu"`)
	storePath := writeTestStore(t, dir, `{"sessions": [`+heavy+`]}`)

	m := newTestManager(t, storePath, now)
	m.opts.SizeThresholdBytes = 1024

	report, err := m.Cleanup()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if report.OptimizedCount != 0 {
		t.Errorf("optimized = %d, want 0 when savings are below the threshold", report.OptimizedCount)
	}

	st, _, err := store.LoadFile(storePath)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if _, ok := st.Sessions[0].Data.Extra["step"]; !ok {
		t.Error("record was modified despite rejected optimization")
	}
}

func TestCleanupMalformedStoreTakesNoBackup(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	storePath := writeTestStore(t, dir, `{"sessions": "not an array"}`)

	_, err := newTestManager(t, storePath, now).Cleanup()
	var malformed *store.MalformedStoreError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedStoreError, got %v", err)
	}

	if countBackups(t, dir) != 0 {
		t.Error("backup taken for a store that was never parsed")
	}
	data, _ := os.ReadFile(storePath)
	if string(data) != `{"sessions": "not an array"}` {
		t.Error("malformed store was modified")
	}
}

func TestCleanupMissingStore(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	storePath := filepath.Join(t.TempDir(), "sessions.json")

	_, err := newTestManager(t, storePath, now).Cleanup()
	if !IsStoreMissing(err) {
		t.Errorf("expected missing-store error, got %v", err)
	}
}

// failingWrite simulates a torn final write: it corrupts the target file
// and reports a write failure, so the deferred restore has real damage to
// undo.
func failingWrite(path string, data []byte, perm os.FileMode) error {
	_ = os.WriteFile(path, []byte("torn write"), perm)
	return &backup.WriteFailedError{Path: path, Err: errors.New("disk full")}
}

func TestCleanupRestoresSnapshotOnWriteFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	content := mixedAgeStore(now)
	storePath := writeTestStore(t, dir, content)

	m := newTestManager(t, storePath, now)
	m.writeFile = failingWrite

	_, err := m.Cleanup()
	var failed *backup.WriteFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected WriteFailedError, got %v", err)
	}

	data, readErr := os.ReadFile(storePath)
	if readErr != nil {
		t.Fatalf("read store: %v", readErr)
	}
	if string(data) != content {
		t.Errorf("store not restored from snapshot after failed write: %s", data)
	}
	if countBackups(t, dir) != 1 {
		t.Error("snapshot must remain on disk after the rollback")
	}
}

func TestMigrateRestoresSnapshotOnWriteFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	content := `{"sessions": [{"id": "user:1", "data": {"language": "ru-RU", "registered": "yes"}}]}`
	storePath := writeTestStore(t, dir, content)

	m := newTestManager(t, storePath, now)
	m.writeFile = failingWrite

	_, err := m.Migrate()
	var failed *backup.WriteFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected WriteFailedError, got %v", err)
	}

	data, readErr := os.ReadFile(storePath)
	if readErr != nil {
		t.Fatalf("read store: %v", readErr)
	}
	if string(data) != content {
		t.Errorf("store not restored from snapshot after failed write: %s", data)
	}
}

func TestAnalyzeIsReadOnly(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	content := mixedAgeStore(now)
	storePath := writeTestStore(t, dir, content)

	report, err := newTestManager(t, storePath, now).Analyze()
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if report.Summary.Total != 3 {
		t.Errorf("total = %d, want 3", report.Summary.Total)
	}
	if report.EstimatedRemovals != 2 {
		t.Errorf("estimated removals = %d, want 2", report.EstimatedRemovals)
	}
	if report.EstimatedSavingsBytes <= 0 {
		t.Errorf("estimated savings = %d, want > 0", report.EstimatedSavingsBytes)
	}

	data, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if string(data) != content {
		t.Error("analyze modified the store file")
	}
	if countBackups(t, dir) != 0 {
		t.Error("analyze created a backup")
	}
}

func TestMigrateNormalizesRecords(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	storePath := writeTestStore(t, dir, `{
		"sessions": [
			{"id": "user:1", "data": {"language": "ru-RU", "registered": "yes", "selectedCity": "4"}},
			{"id": "user:2", "data": {"language": "fr", "phone": null}}
		]
	}`)

	report, err := newTestManager(t, storePath, now).Migrate()
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if report.Migrated != 2 || report.Failed != 0 {
		t.Errorf("migrated %d, failed %d; want 2 and 0", report.Migrated, report.Failed)
	}

	st, _, err := store.LoadFile(storePath)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}

	first := st.Sessions[0].Data
	if first.Language == nil || *first.Language != "ru" {
		t.Errorf("language = %v, want ru", first.Language)
	}
	if first.Registered == nil || !*first.Registered {
		t.Error("registered must coerce to true")
	}
	if first.SelectedCity == nil || *first.SelectedCity != 4 {
		t.Errorf("selectedCity = %v, want 4", first.SelectedCity)
	}

	second := st.Sessions[1].Data
	if second.Language == nil || *second.Language != "en" {
		t.Errorf("unsupported language = %v, want en fallback", second.Language)
	}
	if _, ok := second.Extra["phone"]; ok {
		t.Error("null phone carried through migration")
	}

	if countBackups(t, dir) != 1 {
		t.Error("expected exactly one snapshot next to the store")
	}
}

func TestOptionsFromConfigDurations(t *testing.T) {
	opts := OptionsFromConfig(config.Default())
	if opts.Policy.MaxSessionAge != 168*time.Hour {
		t.Errorf("max session age = %v, want 168h", opts.Policy.MaxSessionAge)
	}
	if opts.Policy.MaxInactiveAge != 24*time.Hour {
		t.Errorf("max inactive age = %v, want 24h", opts.Policy.MaxInactiveAge)
	}
	if opts.SizeThresholdBytes != 10240 {
		t.Errorf("size threshold = %d, want 10240", opts.SizeThresholdBytes)
	}
}

func TestReportRendering(t *testing.T) {
	report := &CleanupReport{
		PassID:       "abc",
		RemovedOld:   1,
		RemovedIdle:  2,
		RemovedCount: 3,
		BytesSaved:   2048,
		Duration:     1500 * time.Millisecond,
	}
	out := report.String()
	if !strings.Contains(out, "removed:   3 (1 expired, 2 idle)") {
		t.Errorf("missing removal line in %q", out)
	}
	if !strings.Contains(out, "2.00 KB") {
		t.Errorf("missing saved size in %q", out)
	}

	var decoded CleanupReport
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if decoded.RemovedCount != 3 {
		t.Errorf("decoded removed = %d, want 3", decoded.RemovedCount)
	}
}
