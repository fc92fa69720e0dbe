package sessionstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/resonantfield/tapedeck/internal/conf"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	settings := &conf.Settings{}
	settings.SessionStore.Driver = "sqlite"
	settings.SessionStore.SQLite.Path = filepath.Join(t.TempDir(), "sessions.db")

	store, err := Open(settings)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_CreatesSchema(t *testing.T) {
	store := newTestStore(t)
	if !store.db.Migrator().HasTable(&ProjectRecord{}) {
		t.Fatal("expected project_records table to exist after Open")
	}
	if !store.db.Migrator().HasTable(&SessionRecord{}) {
		t.Fatal("expected session_records table to exist after Open")
	}
	if !store.db.Migrator().HasTable(&BackupRunRecord{}) {
		t.Fatal("expected backup_run_records table to exist after Open")
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	settings := &conf.Settings{}
	settings.SessionStore.Driver = "postgres"

	if _, err := Open(settings); err == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}

func TestRecordProjectSave_UpsertsByPath(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordProjectSave("/tmp/a.proj", "Song A"); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.RecordProjectSave("/tmp/a.proj", "Song A Renamed"); err != nil {
		t.Fatalf("second save: %v", err)
	}

	recent, err := store.RecentProjects(10)
	if err != nil {
		t.Fatalf("RecentProjects: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected exactly one project row after two saves to the same path, got %d", len(recent))
	}
	if recent[0].Name != "Song A Renamed" {
		t.Fatalf("expected name to be updated, got %q", recent[0].Name)
	}
}

func TestRecentProjects_OrdersBySavedAtDescending(t *testing.T) {
	store := newTestStore(t)

	_ = store.RecordProjectSave("/tmp/old.proj", "Old")
	_ = store.RecordProjectSave("/tmp/new.proj", "New")

	recent, err := store.RecentProjects(10)
	if err != nil {
		t.Fatalf("RecentProjects: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(recent))
	}
}

func TestRecordSession_AndQuery(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordSession(SessionRecord{ProjectID: 1, TrackID: 7, TrackName: "Vox"}); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	sessions, err := store.RecordingSessions(1, 10)
	if err != nil {
		t.Fatalf("RecordingSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].TrackID != 7 {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}

	other, err := store.RecordingSessions(2, 10)
	if err != nil {
		t.Fatalf("RecordingSessions for other project: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no sessions for unrelated project, got %d", len(other))
	}
}

func TestRecordBackupRun_AndHistory(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordBackupRun(BackupRunRecord{ProjectPath: "/tmp/a.proj", Destination: "local", Succeeded: true}); err != nil {
		t.Fatalf("RecordBackupRun: %v", err)
	}
	if err := store.RecordBackupRun(BackupRunRecord{ProjectPath: "/tmp/a.proj", Destination: "sftp", Succeeded: false, Error: "timeout"}); err != nil {
		t.Fatalf("RecordBackupRun: %v", err)
	}

	history, err := store.BackupHistory("/tmp/a.proj", 10)
	if err != nil {
		t.Fatalf("BackupHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 backup runs, got %d", len(history))
	}
}

func TestOptimize_RunsAgainstOpenStore(t *testing.T) {
	store := newTestStore(t)
	if err := store.Optimize(context.Background()); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
}

func TestOptimize_RejectsCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Optimize(ctx); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
