package pathsafe

import "testing"

func TestCleanNormalizesAndRejectsEscapes(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a/b/c.txt", want: "a/b/c.txt"},
		{in: `a\b\c.txt`, want: "a/b/c.txt"},
		{in: "a/./b.txt", want: "a/b.txt"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "..", wantErr: true},
		{in: "../escape.txt", wantErr: true},
		{in: "a/../../escape.txt", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
	}
	for _, c := range cases {
		got, err := Clean(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("Clean(%q): expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Clean(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Clean(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveUnderStaysWithinRoot(t *testing.T) {
	root := t.TempDir()
	resolved, err := ResolveUnder(root, "sub/file.txt")
	if err != nil {
		t.Fatalf("ResolveUnder: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected a non-empty resolved path")
	}
}

func TestResolveUnderRejectsEscape(t *testing.T) {
	root := t.TempDir()
	if _, err := ResolveUnder(root, "../outside.txt"); err == nil {
		t.Fatal("expected an error for a path escaping root")
	}
}

func TestFoldKeyIsUnconditionallyCaseInsensitive(t *testing.T) {
	// FoldKey must fold regardless of the host this test happens to run
	// on: the case sensitivity that matters is the eventual restore
	// target's, not the backup host's.
	if FoldKey("Report.TXT") != FoldKey("report.txt") {
		t.Errorf("expected FoldKey to ignore case unconditionally, got %q vs %q", FoldKey("Report.TXT"), FoldKey("report.txt"))
	}
}

func TestDetectCaseCollisionsFindsDifferingCaseDuplicates(t *testing.T) {
	a, b, found := DetectCaseCollisions([]string{"dir/Report.txt", "dir/other.txt", "dir/report.txt"})
	if !found {
		t.Fatal("expected a collision to be detected")
	}
	if (a != "dir/Report.txt" && a != "dir/report.txt") || (b != "dir/Report.txt" && b != "dir/report.txt") {
		t.Errorf("expected the colliding pair reported, got %q, %q", a, b)
	}
}

func TestDetectCaseCollisionsIgnoresExactDuplicates(t *testing.T) {
	// The same relative path legitimately recurs across a backup chain
	// (present in a Full and again in a later Incremental); that must
	// not be flagged as a collision.
	_, _, found := DetectCaseCollisions([]string{"a.txt", "b.txt", "a.txt"})
	if found {
		t.Error("expected no collision for an exact duplicate path")
	}
}

func TestDetectCaseCollisionsNoFalsePositives(t *testing.T) {
	_, _, found := DetectCaseCollisions([]string{"a.txt", "b.txt", "c/d.txt"})
	if found {
		t.Error("expected no collision among distinct paths")
	}
}
