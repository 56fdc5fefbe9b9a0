package verify

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/fileguardian/internal/fingerprint"
	"github.com/example/fileguardian/internal/metadata"
	"github.com/example/fileguardian/internal/snapshot"
)

func writeArtifactDir(t *testing.T, files map[string]string) (string, *metadata.BackupMetadata) {
	t.Helper()
	root := t.TempDir()
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
	meta := &metadata.BackupMetadata{
		BackupName:   "t",
		BackupType:   metadata.Full,
		Timestamp:    "20260101_000000",
		SourcePath:   "/src",
		DeletedFiles: []string{},
		Entries:      entries,
	}
	if err := metadata.Save(filepath.Join(root, metadata.FileName()), meta); err != nil {
		t.Fatal(err)
	}
	return root, meta
}

func TestVerifyIntactArtifact(t *testing.T) {
	root, meta := writeArtifactDir(t, map[string]string{"a.txt": "hello", "b.txt": "world"})

	res, err := Verify(root, meta, "backup-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != Intact {
		t.Fatalf("expected Intact, got %s (corrupted=%v missing=%v extra=%v)", res.Status, res.CorruptedPaths, res.MissingPaths, res.ExtraPaths)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	root, meta := writeArtifactDir(t, map[string]string{"a.txt": "hello"})
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Verify(root, meta, "backup-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != Corrupted {
		t.Fatalf("expected Corrupted, got %s", res.Status)
	}
	if len(res.CorruptedPaths) != 1 || res.CorruptedPaths[0] != "a.txt" {
		t.Errorf("expected a.txt flagged corrupted, got %v", res.CorruptedPaths)
	}
}

func TestVerifyDetectsMissingAndExtra(t *testing.T) {
	root, meta := writeArtifactDir(t, map[string]string{"a.txt": "hello"})
	if err := os.Remove(filepath.Join(root, "a.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "unexpected.txt"), []byte("surprise"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Verify(root, meta, "backup-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != Missing {
		t.Fatalf("expected Missing (it takes priority over Extra when both are present), got %s", res.Status)
	}
	if len(res.MissingPaths) != 1 || res.MissingPaths[0] != "a.txt" {
		t.Errorf("expected a.txt missing, got %v", res.MissingPaths)
	}
	if len(res.ExtraPaths) != 1 || res.ExtraPaths[0] != "unexpected.txt" {
		t.Errorf("expected unexpected.txt flagged extra, got %v", res.ExtraPaths)
	}
}

func TestVerifyDetectsExtraOnlyAsExtraNotIntact(t *testing.T) {
	root, meta := writeArtifactDir(t, map[string]string{"a.txt": "hello"})
	if err := os.WriteFile(filepath.Join(root, "unexpected.txt"), []byte("surprise"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Verify(root, meta, "backup-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != Extra {
		t.Fatalf("expected Extra, got %s", res.Status)
	}
}

func TestVerifyDetectsMissingOnlyAsMissingNotCorrupted(t *testing.T) {
	root, meta := writeArtifactDir(t, map[string]string{"a.txt": "hello", "b.txt": "world"})
	if err := os.Remove(filepath.Join(root, "a.txt")); err != nil {
		t.Fatal(err)
	}

	res, err := Verify(root, meta, "backup-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != Missing {
		t.Fatalf("expected Missing, got %s", res.Status)
	}
}

func TestVerifyWorksOnZipArtifact(t *testing.T) {
	root, meta := writeArtifactDir(t, map[string]string{"a.txt": "hello"})
	archivePath := root + ".zip"
	if err := zipDir(root, archivePath); err != nil {
		t.Fatal(err)
	}

	res, err := Verify(archivePath, meta, "backup-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != Intact {
		t.Fatalf("expected Intact, got %s", res.Status)
	}

	loaded, err := LoadMetadata(archivePath)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if len(loaded.Entries) != len(meta.Entries) {
		t.Errorf("expected %d entries, got %d", len(meta.Entries), len(loaded.Entries))
	}
}

func TestSweepVerifiesEachCandidateIndependently(t *testing.T) {
	rootOK, metaOK := writeArtifactDir(t, map[string]string{"a.txt": "hello"})
	rootBad, metaBad := writeArtifactDir(t, map[string]string{"b.txt": "world"})
	if err := os.WriteFile(filepath.Join(rootBad, "b.txt"), []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	sweep, err := Sweep([]Candidate{
		{BackupID: "ok", ArtifactPath: rootOK, Metadata: metaOK},
		{BackupID: "bad", ArtifactPath: rootBad, Metadata: metaBad},
	})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(sweep.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(sweep.Results))
	}
	byID := map[string]Result{}
	for _, r := range sweep.Results {
		byID[r.BackupID] = r
	}
	if byID["ok"].Status != Intact {
		t.Errorf("expected ok to be Intact, got %s", byID["ok"].Status)
	}
	if byID["bad"].Status != Corrupted {
		t.Errorf("expected bad to be Corrupted, got %s", byID["bad"].Status)
	}
}

func zipDir(root, archivePath string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	defer zw.Close()

	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
}
