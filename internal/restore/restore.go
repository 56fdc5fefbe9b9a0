// Package restore implements component H: resolving a chain of
// Full/Incremental backup artifacts and replaying it into an empty
// target directory. Grounded on restore/engine.go's overall
// Engine/dry-run shape and restore/safety.go's preflight-validation
// posture (ValidateArchive, CheckDiskSpace), with chain walking
// modeled on other_examples' incremental_manager.go resolveRestoreChain
// (parent-pointer walk with cycle detection) as adapted into
// internal/planner/chain.go's ResolveChain, reused here rather than
// duplicated.
package restore

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/fileguardian/internal/checks"
	"github.com/example/fileguardian/internal/errs"
	"github.com/example/fileguardian/internal/logger"
	"github.com/example/fileguardian/internal/metadata"
	"github.com/example/fileguardian/internal/pathsafe"
	"github.com/example/fileguardian/internal/planner"
	"github.com/example/fileguardian/internal/writer"
	"github.com/example/fileguardian/internal/verify"
)

// State is the restore state machine's current stage (section 4.H).
type State string

const (
	Planning  State = "Planning"
	Verifying State = "Verifying"
	Applying  State = "Applying"
	Cleaning  State = "Cleaning"
	Done      State = "Done"
	Failed    State = "Failed"
)

// Result reports the outcome of a Restore operation.
type Result struct {
	State        State    `json:"state"`
	ChainIDs     []string `json:"chain_ids"`
	FilesWritten int      `json:"files_written"`
	FilesDeleted int      `json:"files_deleted"`
	Duration     time.Duration `json:"duration"`
}

// member is one resolved, metadata-loaded chain candidate, with its
// extraction cleanup (if it came from an archive).
type member struct {
	planner.Candidate
	artifactPath string // directory to read files from (extracted if the source was a zip)
	meta         *metadata.BackupMetadata
	tempDir      string // non-empty if artifactPath is a temp extraction and must be cleaned up
}

// Options configures a Restore call.
type Options struct {
	Destination string
	Target      string
	PointInTime *time.Time
	Log         logger.Logger
}

// Restore enumerates backup artifacts under opts.Destination, resolves
// the chain ending at opts.PointInTime (or the latest available),
// integrity-checks every member, and replays them in order into
// opts.Target.
func Restore(opts Options) (*Result, error) {
	start := time.Now()
	log := opts.Log
	if log == nil {
		log = logger.NewNullLogger()
	}

	res := &Result{State: Planning}

	candidates, err := enumerate(opts.Destination)
	if err != nil {
		res.State = Failed
		return res, err
	}

	loaded, cleanup, err := resolveAndLoad(candidates, opts.PointInTime)
	defer cleanup()
	if err != nil {
		res.State = Failed
		return res, err
	}
	for _, m := range loaded {
		res.ChainIDs = append(res.ChainIDs, m.BackupID)
	}

	res.State = Verifying
	if err := preflightDiskSpace(loaded, opts.Target, log); err != nil {
		res.State = Failed
		return res, err
	}
	for _, m := range loaded {
		vr, err := verify.Verify(m.artifactPath, m.meta, m.BackupID)
		if err != nil {
			res.State = Failed
			return res, err
		}
		if vr.Status != verify.Intact {
			res.State = Failed
			return res, errs.Newf(errs.IntegrityMismatch, "chain member %q failed integrity check: %d corrupted, %d missing", m.BackupID, vr.CorruptedCount, vr.MissingCount)
		}
	}

	res.State = Applying
	for _, m := range loaded {
		written, deleted, err := applyMember(m, opts.Target)
		if err != nil {
			res.State = Failed
			return res, err
		}
		res.FilesWritten += written
		res.FilesDeleted += deleted
	}

	res.State = Cleaning
	if err := stripMetadataFiles(opts.Target); err != nil {
		res.State = Failed
		return res, err
	}

	res.State = Done
	res.Duration = time.Since(start)
	return res, nil
}

// enumerate lists candidate backup artifacts directly under dest,
// skipping states/.
func enumerate(dest string) ([]string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "read destination directory")
	}
	var out []string
	for _, e := range entries {
		if e.Name() == "states" {
			continue
		}
		out = append(out, filepath.Join(dest, e.Name()))
	}
	return out, nil
}

// resolveAndLoad loads every candidate's metadata, normalizes its
// backup_type, builds the chain via planner.ResolveChain, and returns
// the fully loaded chain members in chronological order. The returned
// cleanup func removes any temporary extraction directories; callers
// must defer it even on error paths.
func resolveAndLoad(paths []string, pointInTime *time.Time) ([]member, func(), error) {
	var all []member
	var tempDirs []string
	cleanup := func() {
		for _, d := range tempDirs {
			os.RemoveAll(d)
		}
	}

	for _, p := range paths {
		artifactPath := p
		var tempDir string

		info, err := os.Stat(p)
		if err != nil {
			return nil, cleanup, errs.Wrapf(errs.IOFailure, err, "stat candidate %s", p)
		}
		if !info.IsDir() {
			extracted, err := extractZip(p)
			if err != nil {
				return nil, cleanup, errs.Wrapf(errs.IOFailure, err, "extract archive %s", p)
			}
			artifactPath = extracted
			tempDir = extracted
			tempDirs = append(tempDirs, extracted)
		}

		metaPath := filepath.Join(artifactPath, metadata.FileName())
		meta, err := metadata.Load(metaPath)
		if err != nil {
			return nil, cleanup, err
		}

		ts, err := time.ParseInLocation(writer.TimestampFormat, meta.Timestamp, time.Local)
		if err != nil {
			return nil, cleanup, errs.Wrapf(errs.StateCorruption, err, "parse timestamp in %s", metaPath)
		}

		backupID := strings.TrimSuffix(filepath.Base(p), ".zip")
		parentID := ""
		if meta.ParentBackup != nil {
			parentID = *meta.ParentBackup
		}

		all = append(all, member{
			Candidate: planner.Candidate{
				BackupID:  backupID,
				Type:      meta.BackupType,
				Timestamp: ts,
				ParentID:  parentID,
			},
			artifactPath: artifactPath,
			meta:         meta,
			tempDir:      tempDir,
		})
	}

	planCandidates := make([]planner.Candidate, len(all))
	byID := make(map[string]member, len(all))
	for i, m := range all {
		planCandidates[i] = m.Candidate
		byID[m.BackupID] = m
	}

	chain, err := planner.ResolveChain(planCandidates, pointInTime)
	if err != nil {
		return nil, cleanup, err
	}

	members := make([]member, 0, len(chain))
	for _, c := range chain {
		members = append(members, byID[c.BackupID])
	}

	if err := checkChainCaseCollisions(members); err != nil {
		return nil, cleanup, err
	}

	return members, cleanup, nil
}

// checkChainCaseCollisions rejects a resolved chain whose combined
// entries contain two relative paths that differ only in case. Each
// member's metadata may have passed this check individually on
// whatever host wrote it; the restore target is not guaranteed to
// share that host's case sensitivity, so the union is re-checked here
// regardless of the current platform.
func checkChainCaseCollisions(members []member) error {
	var all []string
	for _, m := range members {
		for _, e := range m.meta.Entries {
			all = append(all, e.RelativePath)
		}
	}
	if a, b, found := pathsafe.DetectCaseCollisions(all); found {
		return errs.Newf(errs.StateCorruption, "case-only path collision across backup chain: %q vs %q", a, b)
	}
	return nil
}

func extractZip(path string) (string, error) {
	tempDir, err := os.MkdirTemp("", "fileguardian-restore-*")
	if err != nil {
		return "", err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		os.RemoveAll(tempDir)
		return "", err
	}
	defer zr.Close()

	for _, f := range zr.File {
		dest := filepath.Join(tempDir, filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				os.RemoveAll(tempDir)
				return "", err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			os.RemoveAll(tempDir)
			return "", err
		}
		rc, err := f.Open()
		if err != nil {
			os.RemoveAll(tempDir)
			return "", err
		}
		out, err := os.Create(dest)
		if err != nil {
			rc.Close()
			os.RemoveAll(tempDir)
			return "", err
		}
		_, cerr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if cerr != nil {
			os.RemoveAll(tempDir)
			return "", cerr
		}
	}
	return tempDir, nil
}

// applyMember copies every file in m's artifact into target
// (overwriting), then, for Incrementals, removes deleted_files.
func applyMember(m member, target string) (written, deleted int, err error) {
	if err := os.MkdirAll(target, 0755); err != nil {
		return 0, 0, errs.Wrap(errs.IOFailure, err, "create restore target")
	}

	for _, entry := range m.meta.Entries {
		dst, err := pathsafe.ResolveUnder(target, entry.RelativePath)
		if err != nil {
			return written, deleted, err
		}
		src := filepath.Join(m.artifactPath, filepath.FromSlash(entry.RelativePath))
		if err := copyOverwrite(src, dst); err != nil {
			return written, deleted, errs.Wrapf(errs.IOFailure, err, "restore %s", entry.RelativePath)
		}
		written++
	}

	if m.meta.BackupType == metadata.Incremental {
		for _, rel := range m.meta.DeletedFiles {
			path, err := pathsafe.ResolveUnder(target, rel)
			if err != nil {
				return written, deleted, err
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return written, deleted, errs.Wrapf(errs.IOFailure, err, "apply deletion of %s", rel)
			}
			deleted++
		}
	}
	return written, deleted, nil
}

func copyOverwrite(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// stripMetadataFiles removes any .backup-metadata.json files that
// ended up inside the restored tree: the restored tree must reflect
// only the source content, not backup bookkeeping, so this is a
// correctness requirement and not a cleanup nicety.
func stripMetadataFiles(target string) error {
	return filepath.WalkDir(target, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == metadata.FileName() {
			return os.Remove(p)
		}
		return nil
	})
}

// preflightDiskSpace sums the chain's entries' sizes and refuses to
// start Applying if the estimate exceeds free space on target. This
// is advisory: concurrent disk consumers can still cause a mid-restore
// IOFailure.
func preflightDiskSpace(members []member, target string, log logger.Logger) error {
	var total uint64
	for _, m := range members {
		for _, e := range m.meta.Entries {
			total += e.SizeBytes
		}
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return errs.Wrap(errs.IOFailure, err, "create restore target")
	}
	check := checks.CheckDiskSpaceForRequired(target, total)
	if check.AvailableBytes < total {
		return errs.Newf(errs.IOFailure, "insufficient free space at %s: need ~%d bytes, have %d available", target, total, check.AvailableBytes)
	}
	if check.Warning {
		log.Warn("restore target is low on free space", "required_bytes", total, "available_bytes", check.AvailableBytes)
	}
	return nil
}
