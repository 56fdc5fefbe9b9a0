package restore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/fileguardian/internal/fingerprint"
	"github.com/example/fileguardian/internal/metadata"
	"github.com/example/fileguardian/internal/snapshot"
)

func writeBackupArtifact(t *testing.T, dest, backupID string, backupType metadata.BackupType, parent *string, files map[string]string, deleted []string) {
	t.Helper()
	root := filepath.Join(dest, backupID)
	var entries []snapshot.FileEntry
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		sum, err := fingerprint.HashReader(strings.NewReader(content))
		if err != nil {
			t.Fatal(err)
		}
		entries = append(entries, snapshot.FileEntry{
			RelativePath: rel,
			SizeBytes:    uint64(len(content)),
			ModifiedAt:   time.Now().UTC(),
			ContentHash:  sum,
		})
	}
	ts := strings.TrimPrefix(backupID, "myapp_")
	meta := &metadata.BackupMetadata{
		BackupName:   "myapp",
		BackupType:   backupType,
		Timestamp:    ts,
		SourcePath:   "/src",
		ParentBackup: parent,
		DeletedFiles: deleted,
		Entries:      entries,
	}
	if err := metadata.Save(filepath.Join(root, metadata.FileName()), meta); err != nil {
		t.Fatal(err)
	}
}

func TestRestoreAppliesFullThenIncrementalChain(t *testing.T) {
	dest := t.TempDir()
	target := filepath.Join(t.TempDir(), "out")

	writeBackupArtifact(t, dest, "myapp_20260101_000000", metadata.Full, nil,
		map[string]string{"a.txt": "v1", "b.txt": "v1"}, nil)
	parent := "myapp_20260101_000000"
	writeBackupArtifact(t, dest, "myapp_20260102_000000", metadata.Incremental, &parent,
		map[string]string{"a.txt": "v2"}, []string{"b.txt"})

	result, err := Restore(Options{Destination: dest, Target: target})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.State != Done {
		t.Fatalf("expected Done, got %s", result.State)
	}
	if len(result.ChainIDs) != 2 {
		t.Fatalf("expected a 2-member chain, got %v", result.ChainIDs)
	}

	got, err := os.ReadFile(filepath.Join(target, "a.txt"))
	if err != nil {
		t.Fatalf("read a.txt: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("expected a.txt to be v2, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(target, "b.txt")); !os.IsNotExist(err) {
		t.Error("expected b.txt to be deleted by the incremental's deleted_files")
	}
	if _, err := os.Stat(filepath.Join(target, metadata.FileName())); !os.IsNotExist(err) {
		t.Error("expected no .backup-metadata.json to survive into the restored tree")
	}
}

func TestRestoreFailsIntegrityCheckOnCorruptedMember(t *testing.T) {
	dest := t.TempDir()
	target := filepath.Join(t.TempDir(), "out")

	writeBackupArtifact(t, dest, "myapp_20260101_000000", metadata.Full, nil,
		map[string]string{"a.txt": "v1"}, nil)
	if err := os.WriteFile(filepath.Join(dest, "myapp_20260101_000000", "a.txt"), []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := Restore(Options{Destination: dest, Target: target})
	if err == nil {
		t.Fatal("expected an integrity error")
	}
	if result.State != Failed {
		t.Errorf("expected Failed, got %s", result.State)
	}
}

func TestRestoreHonorsPointInTime(t *testing.T) {
	dest := t.TempDir()
	target := filepath.Join(t.TempDir(), "out")

	writeBackupArtifact(t, dest, "myapp_20260101_000000", metadata.Full, nil,
		map[string]string{"a.txt": "v1"}, nil)
	parent := "myapp_20260101_000000"
	writeBackupArtifact(t, dest, "myapp_20260103_000000", metadata.Incremental, &parent,
		map[string]string{"a.txt": "v3"}, nil)

	cutoff := time.Date(2026, 1, 2, 0, 0, 0, 0, time.Local)
	result, err := Restore(Options{Destination: dest, Target: target, PointInTime: &cutoff})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(result.ChainIDs) != 1 || result.ChainIDs[0] != "myapp_20260101_000000" {
		t.Fatalf("expected only the Full before the cutoff, got %v", result.ChainIDs)
	}
	got, err := os.ReadFile(filepath.Join(target, "a.txt"))
	if err != nil {
		t.Fatalf("read a.txt: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("expected a.txt to remain v1 at the point-in-time cutoff, got %q", got)
	}
}
