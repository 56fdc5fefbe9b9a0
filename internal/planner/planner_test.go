package planner

import (
	"testing"
	"time"

	"github.com/example/fileguardian/internal/errs"
	"github.com/example/fileguardian/internal/snapshot"
)

func entry(rel string, size uint64, hash string) snapshot.FileEntry {
	return snapshot.FileEntry{RelativePath: rel, SizeBytes: size, ModifiedAt: time.Now().UTC(), ContentHash: hash}
}

func snapOf(entries ...snapshot.FileEntry) *snapshot.Snapshot {
	s := snapshot.New()
	for _, e := range entries {
		s.Entries[e.RelativePath] = e
	}
	return s
}

func TestDiffSnapshotsClassifiesNewModifiedDeletedUnchanged(t *testing.T) {
	old := snapOf(
		entry("a.txt", 5, "hash-a"),
		entry("b.txt", 5, "hash-b"),
		entry("c.txt", 5, "hash-c"),
	)
	new := snapOf(
		entry("a.txt", 5, "hash-a"),  // unchanged
		entry("b.txt", 9, "hash-b2"), // modified
		entry("d.txt", 3, "hash-d"),  // new
	)

	d, err := DiffSnapshots(old, new)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}
	if len(d.New) != 1 || d.New[0] != "d.txt" {
		t.Errorf("expected New=[d.txt], got %v", d.New)
	}
	if len(d.Modified) != 1 || d.Modified[0] != "b.txt" {
		t.Errorf("expected Modified=[b.txt], got %v", d.Modified)
	}
	if len(d.Deleted) != 1 || d.Deleted[0] != "c.txt" {
		t.Errorf("expected Deleted=[c.txt], got %v", d.Deleted)
	}
	if len(d.Unchanged) != 1 || d.Unchanged[0] != "a.txt" {
		t.Errorf("expected Unchanged=[a.txt], got %v", d.Unchanged)
	}
}

func TestDiffSnapshotsIsIdempotentOnIdenticalSnapshots(t *testing.T) {
	s := snapOf(entry("a.txt", 5, "hash-a"), entry("b.txt", 5, "hash-b"))
	d, err := DiffSnapshots(s, s)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}
	if !d.IsEmpty() {
		t.Errorf("expected empty diff comparing a snapshot to itself, got %+v", d)
	}
	if len(d.Unchanged) != 2 {
		t.Errorf("expected both entries Unchanged, got %v", d.Unchanged)
	}
}

// TestDiffSnapshotsUnreadableEntryAlwaysClassifiesAsModified covers the
// case two successive walks each fail to hash the same path: both
// entries carry ContentHash=="" and may even share SizeBytes, but an
// Unreadable entry can never be trusted to match across runs.
func TestDiffSnapshotsUnreadableEntryAlwaysClassifiesAsModified(t *testing.T) {
	oldEntry := entry("locked.bin", 10, "")
	oldEntry.Unreadable = true
	newEntry := entry("locked.bin", 10, "")
	newEntry.Unreadable = true

	old := snapOf(oldEntry)
	new := snapOf(newEntry)

	d, err := DiffSnapshots(old, new)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}
	if len(d.Modified) != 1 || d.Modified[0] != "locked.bin" {
		t.Fatalf("expected locked.bin classified Modified, got new=%v modified=%v unchanged=%v", d.New, d.Modified, d.Unchanged)
	}
	if len(d.Unchanged) != 0 {
		t.Errorf("unreadable entries must never be reported Unchanged, got %v", d.Unchanged)
	}
}

func TestDiffSnapshotsUnreadableOnOnlyOneSideStillModified(t *testing.T) {
	oldEntry := entry("flaky.bin", 10, "hash-flaky")
	newEntry := entry("flaky.bin", 10, "")
	newEntry.Unreadable = true

	d, err := DiffSnapshots(snapOf(oldEntry), snapOf(newEntry))
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}
	if len(d.Modified) != 1 || d.Modified[0] != "flaky.bin" {
		t.Fatalf("expected flaky.bin classified Modified, got %+v", d)
	}
}

func TestDiffSnapshotsRejectsCaseOnlyCollisionAcrossSnapshots(t *testing.T) {
	old := snapOf(entry("Report.txt", 5, "hash-1"))
	new := snapOf(entry("report.txt", 5, "hash-1"))

	_, err := DiffSnapshots(old, new)
	if err == nil {
		t.Fatal("expected an error for a case-only collision across old and new snapshots")
	}
	if errs.KindOf(err) != errs.StateCorruption {
		t.Errorf("expected StateCorruption, got %v", errs.KindOf(err))
	}
}

func TestDiffSnapshotsHandlesNilSnapshots(t *testing.T) {
	d, err := DiffSnapshots(nil, nil)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}
	if !d.IsEmpty() {
		t.Errorf("expected empty diff for two nil snapshots, got %+v", d)
	}

	new := snapOf(entry("a.txt", 5, "hash-a"))
	d, err = DiffSnapshots(nil, new)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}
	if len(d.New) != 1 || d.New[0] != "a.txt" {
		t.Errorf("expected a.txt reported New against a nil prior snapshot, got %v", d.New)
	}
}

func TestDecideTypeForcedFullWins(t *testing.T) {
	d := DecideType(true, true, true)
	if d.Type != "Full" {
		t.Errorf("expected Full, got %s", d.Type)
	}
	if d.Warning != "" {
		t.Errorf("expected no warning for a forced full, got %q", d.Warning)
	}
}

func TestDecideTypeIncrementalWithNoPriorBackupWarnsAndFallsBackToFull(t *testing.T) {
	d := DecideType(false, true, false)
	if d.Type != "Full" {
		t.Errorf("expected Full, got %s", d.Type)
	}
	if d.Warning == "" {
		t.Error("expected a warning explaining the fallback")
	}
}

func TestDecideTypeIncrementalWithPriorBackup(t *testing.T) {
	d := DecideType(false, true, true)
	if d.Type != "Incremental" {
		t.Errorf("expected Incremental, got %s", d.Type)
	}
	if d.Warning != "" {
		t.Errorf("expected no warning, got %q", d.Warning)
	}
}

func TestSelectedFilesFullReturnsEveryPath(t *testing.T) {
	new := snapOf(entry("a.txt", 5, "hash-a"), entry("b.txt", 5, "hash-b"))
	got := SelectedFiles("Full", new, Diff{})
	if len(got) != 2 {
		t.Fatalf("expected 2 paths for a Full selection, got %v", got)
	}
}

func TestSelectedFilesIncrementalReturnsNewAndModifiedOnly(t *testing.T) {
	new := snapOf(entry("a.txt", 5, "hash-a"), entry("b.txt", 5, "hash-b"), entry("c.txt", 5, "hash-c"))
	d := Diff{New: []string{"a.txt"}, Modified: []string{"b.txt"}, Unchanged: []string{"c.txt"}}
	got := SelectedFiles("Incremental", new, d)
	if len(got) != 2 {
		t.Fatalf("expected New+Modified only, got %v", got)
	}
}
