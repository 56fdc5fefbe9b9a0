package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touchArtifact(t *testing.T, dest, name string, age time.Duration, now time.Time) {
	t.Helper()
	path := filepath.Join(dest, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
	mtime := now.Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestCleanupDeletesOlderThanRetention(t *testing.T) {
	dest := t.TempDir()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	touchArtifact(t, dest, "myapp_old", 40*24*time.Hour, now)
	touchArtifact(t, dest, "myapp_new", 1*24*time.Hour, now)

	result, err := Cleanup(Options{
		Destination:   dest,
		RetentionDays: 30,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0] != "myapp_old" {
		t.Fatalf("expected myapp_old deleted, got %v", result.Deleted)
	}
	if len(result.Retained) != 1 || result.Retained[0] != "myapp_new" {
		t.Fatalf("expected myapp_new retained, got %v", result.Retained)
	}
	if _, err := os.Stat(filepath.Join(dest, "myapp_old")); !os.IsNotExist(err) {
		t.Error("expected myapp_old to be removed from disk")
	}
}

func TestCleanupRefusesToDeleteEverything(t *testing.T) {
	dest := t.TempDir()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	touchArtifact(t, dest, "myapp_a", 40*24*time.Hour, now)
	touchArtifact(t, dest, "myapp_b", 50*24*time.Hour, now)

	_, err := Cleanup(Options{
		Destination:   dest,
		RetentionDays: 30,
		Now:           func() time.Time { return now },
	})
	if err == nil {
		t.Fatal("expected a SafetyAbort error when cleanup would delete every artifact")
	}
	if _, statErr := os.Stat(filepath.Join(dest, "myapp_a")); statErr != nil {
		t.Error("expected myapp_a to survive an aborted cleanup")
	}
}

func TestCleanupZeroRetentionDaysNeverDeletes(t *testing.T) {
	dest := t.TempDir()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	touchArtifact(t, dest, "myapp_old", 400*24*time.Hour, now)

	result, err := Cleanup(Options{Destination: dest, RetentionDays: 0, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(result.Deleted) != 0 {
		t.Errorf("expected no deletions with RetentionDays=0, got %v", result.Deleted)
	}
}

func TestCleanupHonorsNameFilter(t *testing.T) {
	dest := t.TempDir()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	touchArtifact(t, dest, "myapp_old", 40*24*time.Hour, now)
	touchArtifact(t, dest, "otherapp_old", 40*24*time.Hour, now)

	result, err := Cleanup(Options{
		Destination:   dest,
		RetentionDays: 30,
		NameFilter:    "myapp",
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0] != "myapp_old" {
		t.Fatalf("expected only myapp_old deleted, got %v", result.Deleted)
	}
	if _, err := os.Stat(filepath.Join(dest, "otherapp_old")); err != nil {
		t.Error("expected otherapp_old (excluded by name filter) to survive")
	}
}
