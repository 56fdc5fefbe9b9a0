package writer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/fileguardian/internal/metadata"
	"github.com/example/fileguardian/internal/snapshot"
)

func buildSnapshot(t *testing.T, root string, files map[string]string) *snapshot.Snapshot {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	snap, _, err := snapshot.Walk(snapshot.WalkOptions{SourceRoot: root, HashWorkers: 2})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	return snap
}

func TestWriteDirectoryProducesMetadataAndFiles(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	snap := buildSnapshot(t, src, map[string]string{
		"a.txt":        "hello",
		"nested/b.txt": "world",
	})

	result, err := Write(Options{
		SourceRoot:  src,
		Destination: dst,
		BackupName:  "testbackup",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		BackupType:  metadata.Full,
		SelectedRel: snap.SortedPaths(),
		Snapshot:    snap,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, copy errors: %v", result.CopyErrors)
	}
	if result.BackupID != "testbackup_20260102_030405" {
		t.Errorf("unexpected backup id: %s", result.BackupID)
	}

	for rel, want := range map[string]string{"a.txt": "hello", "nested/b.txt": "world"} {
		got, err := os.ReadFile(filepath.Join(result.ArtifactPath, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("%s: got %q want %q", rel, got, want)
		}
	}

	meta, err := metadata.Load(filepath.Join(result.ArtifactPath, metadata.FileName()))
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	if len(meta.Entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(meta.Entries))
	}
	if meta.BackupType != metadata.Full {
		t.Errorf("expected Full, got %s", meta.BackupType)
	}
}

func TestWriteArchiveRoundTrips(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	snap := buildSnapshot(t, src, map[string]string{"only.txt": "payload"})

	result, err := Write(Options{
		SourceRoot:  src,
		Destination: dst,
		BackupName:  "zipped",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		BackupType:  metadata.Full,
		Compress:    true,
		SelectedRel: snap.SortedPaths(),
		Snapshot:    snap,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, copy errors: %v", result.CopyErrors)
	}
	if filepath.Ext(result.ArtifactPath) != ".zip" {
		t.Errorf("expected .zip artifact, got %s", result.ArtifactPath)
	}
	if _, err := os.Stat(result.ArtifactPath); err != nil {
		t.Fatalf("archive not written: %v", err)
	}
}

func TestWriteReportsCopyErrorsWithoutAborting(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	snap := buildSnapshot(t, src, map[string]string{"present.txt": "data"})

	result, err := Write(Options{
		SourceRoot:  src,
		Destination: dst,
		BackupName:  "partial",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		BackupType:  metadata.Full,
		SelectedRel: append(snap.SortedPaths(), "missing.txt"),
		Snapshot:    snap,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.Success {
		t.Fatal("expected Success=false when a selected file is missing")
	}
	if len(result.CopyErrors) != 1 {
		t.Fatalf("expected 1 copy error, got %d: %v", len(result.CopyErrors), result.CopyErrors)
	}
	if _, err := os.Stat(filepath.Join(result.ArtifactPath, metadata.FileName())); err == nil {
		t.Error("metadata sidecar should not be written when Success is false")
	}
}
