// Package snapshot defines the FileEntry/Snapshot data model and the
// directory walk that builds one, honoring exclusion globs.
package snapshot

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/example/fileguardian/internal/errs"
	"github.com/example/fileguardian/internal/fingerprint"
	"github.com/example/fileguardian/internal/logger"
	"github.com/example/fileguardian/internal/pathsafe"
)

// FileEntry is one record of the backed-up state of a single file.
type FileEntry struct {
	RelativePath string    `json:"relative_path"`
	SizeBytes    uint64    `json:"size_bytes"`
	ModifiedAt   time.Time `json:"modified_at"`
	ContentHash  string    `json:"content_hash"`
	Unreadable   bool      `json:"unreadable,omitempty"`
}

// Snapshot is the set of FileEntry for one source tree at one instant,
// keyed by RelativePath.
type Snapshot struct {
	Entries map[string]FileEntry `json:"entries"`
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{Entries: make(map[string]FileEntry)}
}

// SortedPaths returns the snapshot's relative paths in lexical order,
// giving deterministic iteration for artifact layout and diffing.
func (s *Snapshot) SortedPaths() []string {
	paths := make([]string, 0, len(s.Entries))
	for p := range s.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Validate checks the Snapshot invariants: every path stays within
// root (no ".." escapes) and there are no duplicate paths (guaranteed
// by the map itself, but we still re-validate each key).
func (s *Snapshot) Validate() error {
	for p := range s.Entries {
		if _, err := pathsafe.Clean(p); err != nil {
			return errs.Wrapf(errs.StateCorruption, err, "snapshot entry %q", p)
		}
	}
	return nil
}

// WalkOptions configures a source tree walk.
type WalkOptions struct {
	SourceRoot      string
	ExcludeGlobs    []string
	CaseInsensitive bool
	HashWorkers     int
	Log             logger.Logger
}

// Walk traverses SourceRoot, honoring ExcludeGlobs (pruning excluded
// directories entirely), and fingerprints every included regular file
// using a bounded worker pool. Enumeration order fed to the pool is
// deterministic (sorted by relative path), and results are merged
// back by relative path, so the resulting Snapshot is reproducible
// regardless of the filesystem's own directory-entry order.
func Walk(opts WalkOptions) (*Snapshot, []error, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewNullLogger()
	}

	type candidate struct {
		abs string
		rel string
	}
	var candidates []candidate

	err := filepath.WalkDir(opts.SourceRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errs.Wrapf(errs.IOFailure, err, "walk %s", p)
		}
		if p == opts.SourceRoot {
			return nil
		}
		rel, relErr := filepath.Rel(opts.SourceRoot, p)
		if relErr != nil {
			return errs.Wrapf(errs.IOFailure, relErr, "relativize %s", p)
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(rel, opts.ExcludeGlobs, opts.CaseInsensitive) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			log.Warn("skipping symlink", "path", rel)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		candidates = append(candidates, candidate{abs: p, rel: rel})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].rel < candidates[j].rel })

	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.abs
	}

	workers := opts.HashWorkers
	if workers <= 0 {
		workers = 1
	}
	results, softErrs := fingerprint.BatchHash(paths, workers)

	snap := New()
	for i, c := range candidates {
		r := results[i]
		entry := FileEntry{
			RelativePath: c.rel,
			SizeBytes:    r.Size,
			ModifiedAt:   r.ModTime.UTC(),
			ContentHash:  r.SHA256,
			Unreadable:   r.Unreadable,
		}
		snap.Entries[c.rel] = entry
	}

	if a, b, found := pathsafe.DetectCaseCollisions(snap.SortedPaths()); found {
		return nil, softErrs, errs.Newf(errs.StateCorruption, "case-only path collision: %q vs %q", a, b)
	}

	return snap, softErrs, nil
}

// matchesAny reports whether rel matches any of the glob patterns.
// Patterns support '*', '?', character classes (via path.Match) and
// '**' as a path-spanning wildcard segment.
func matchesAny(rel string, globs []string, caseInsensitive bool) bool {
	candidate := rel
	if caseInsensitive {
		candidate = strings.ToLower(candidate)
	}
	for _, g := range globs {
		pattern := g
		if caseInsensitive {
			pattern = strings.ToLower(pattern)
		}
		if matchGlob(pattern, candidate) {
			return true
		}
	}
	return false
}

// matchGlob implements '**' segment expansion on top of path.Match,
// which itself handles '*', '?', and character classes within a
// single path segment.
func matchGlob(pattern, name string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := path.Match(pattern, name)
		if ok {
			return true
		}
		// Also allow a pattern to match a path prefix, so excluding a
		// directory by name excludes everything beneath it even when
		// the walker hasn't pruned yet (defense in depth).
		return strings.HasPrefix(name, pattern+"/")
	}

	segs := strings.Split(pattern, "**")
	// Join segments with a prefix/suffix check and allow arbitrary
	// path content where "**" appears.
	if !strings.HasPrefix(name, strings.TrimSuffix(segs[0], "/")) && segs[0] != "" {
		head := strings.TrimSuffix(segs[0], "/")
		ok, _ := path.Match(head+"*", strings.SplitN(name, "/", 2)[0])
		if !ok {
			return false
		}
	}
	rest := name
	for i, seg := range segs {
		seg = strings.Trim(seg, "/")
		if seg == "" {
			continue
		}
		idx := strings.Index(rest, seg)
		if idx < 0 {
			if i == len(segs)-1 {
				ok, _ := path.Match("*"+seg, rest)
				return ok
			}
			return false
		}
		rest = rest[idx+len(seg):]
	}
	return true
}
