package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/goleak"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
	"fitforge/workout-engine/internal/repository/file"
	"fitforge/workout-engine/internal/service"
	"fitforge/workout-engine/internal/storage"
	"fitforge/workout-engine/internal/telemetry"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	goleak.VerifyTestMain(m)
}

var baseTime = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

// fakeClock moves forward by step on every reading so snapshot keys stay
// unique.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, step: time.Microsecond}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	dataDir   string
	legacyDir string
	clock     *fakeClock
	metrics   *telemetry.Metrics
	repo      repository.WorkoutDataRepository
	events    repository.EventRepository
	backups   storage.BackupStorage
	store     service.RecordStore
	sessions  service.SessionService
	migration service.MigrationService
}

type fixtureOption func(f *fixture)

func withBackups(b storage.BackupStorage) fixtureOption {
	return func(f *fixture) { f.backups = b }
}

func withEvents(e repository.EventRepository) fixtureOption {
	return func(f *fixture) { f.events = e }
}

func withClockAt(start time.Time) fixtureOption {
	return func(f *fixture) { f.clock = newFakeClock(start) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		dataDir:   t.TempDir(),
		legacyDir: t.TempDir(),
		clock:     newFakeClock(baseTime),
	}
	f.metrics, _ = telemetry.NewTestMetricsAndRegistry()
	f.repo = file.NewFileWorkoutDataRepository(f.dataDir)
	f.events = file.NewFileEventRepository(f.dataDir, 100)
	f.backups = storage.NewLocalStorage(t.TempDir())
	for _, opt := range opts {
		opt(f)
	}

	clock := service.WithClock(f.clock.Now)
	f.store = service.NewRecordStore(f.repo, f.backups, f.metrics, clock)
	f.sessions = service.NewSessionService(f.store, f.events, f.metrics, clock)
	f.migration = service.NewMigrationService(f.store, file.NewLegacySource(f.legacyDir), f.events, f.metrics, clock)
	return f
}

// logHook captures entries of the standard logger for one test.
func logHook(t *testing.T) *logrustest.Hook {
	t.Helper()
	hook := logrustest.NewGlobal()
	t.Cleanup(func() {
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	})
	return hook
}

func hasEntry(hook *logrustest.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

var errUnavailable = errors.New("backend unavailable")

// failingBackups rejects every snapshot.
type failingBackups struct{}

func (failingBackups) PutSnapshot(context.Context, string, time.Time, []byte) (string, error) {
	return "", errUnavailable
}

func (failingBackups) ListSnapshots(context.Context, string, time.Time) ([]string, error) {
	return nil, errUnavailable
}

func (failingBackups) GetSnapshot(context.Context, string) ([]byte, error) {
	return nil, errUnavailable
}

// failingEvents rejects every append.
type failingEvents struct{}

func (failingEvents) AppendLifecycleEvent(context.Context, domain.LifecycleEvent) error {
	return errUnavailable
}

func (failingEvents) AppendSetLogEvent(context.Context, domain.SetLogEvent) error {
	return errUnavailable
}

func (failingEvents) LifecycleEvents(context.Context, string) ([]domain.LifecycleEvent, error) {
	return nil, errUnavailable
}

func (failingEvents) SetLogEvents(context.Context, string) ([]domain.SetLogEvent, error) {
	return nil, errUnavailable
}

func (failingEvents) SaveMigrationAudit(context.Context, domain.MigrationAudit) error {
	return errUnavailable
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
