// Package pathsafe guards against path-escape and path-collision bugs
// in snapshot, restore, and retention logic: every relative path that
// crosses a trust boundary (read from a metadata file, matched against
// an exclusion glob, joined onto a restore target) is checked here
// before use.
package pathsafe

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/example/fileguardian/internal/errs"
)

// Clean normalizes rel to forward slashes and rejects any path that
// escapes its root via ".." segments.
func Clean(rel string) (string, error) {
	if rel == "" {
		return "", errs.New(errs.Configuration, "relative path is empty")
	}
	norm := filepath.ToSlash(filepath.Clean(rel))
	if norm == "." || strings.HasPrefix(norm, "../") || norm == ".." || strings.Contains(norm, "/../") {
		return "", errs.Newf(errs.SafetyAbort, "path escapes root: %q", rel)
	}
	if filepath.IsAbs(norm) {
		return "", errs.Newf(errs.SafetyAbort, "path is absolute: %q", rel)
	}
	return norm, nil
}

// ResolveUnder joins rel onto root and verifies the result is still
// inside root. Used by the Restorer before writing or deleting a
// path named in backup metadata.
func ResolveUnder(root, rel string) (string, error) {
	clean, err := Clean(rel)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(root, filepath.FromSlash(clean))
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, err, "resolve root")
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, err, "resolve joined path")
	}
	rel2, err := filepath.Rel(absRoot, absJoined)
	if err != nil || rel2 == ".." || strings.HasPrefix(rel2, ".."+string(filepath.Separator)) {
		return "", errs.Newf(errs.SafetyAbort, "path escapes target directory: %q", rel)
	}
	return absJoined, nil
}

// CaseInsensitiveFS reports whether the filesystem backing path
// behaves case-insensitively. The caller (engine Backup) evaluates it
// once per walk and passes the result down, not per comparison.
//
// macOS and Windows default to case-insensitive (but case-preserving)
// filesystems; Linux defaults to case-sensitive. This matches the
// platform default rather than probing the actual mount, which keeps
// the check cheap and deterministic for tests that run without a
// real filesystem probe.
func CaseInsensitiveFS() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return true
	default:
		return false
	}
}

// FoldKey returns the key used to detect case-only collisions: the
// path's lowercase form, unconditionally. A backup taken on a
// case-sensitive host can still be restored onto a case-insensitive
// target, so the check cannot be gated on the current host's own
// filesystem behavior (CaseInsensitiveFS, used elsewhere for exclude-
// glob matching, is the wrong signal here).
func FoldKey(rel string) string {
	return strings.ToLower(rel)
}

// DetectCaseCollisions returns the first pair of paths in paths that
// are distinct but fold to the same key, or ("", "", false) if none.
func DetectCaseCollisions(paths []string) (a, b string, found bool) {
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		k := FoldKey(p)
		if prior, ok := seen[k]; ok && prior != p {
			return prior, p, true
		}
		seen[k] = p
	}
	return "", "", false
}
