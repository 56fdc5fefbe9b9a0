package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/example/fileguardian/internal/checks"
	"github.com/example/fileguardian/internal/cloud"
	"github.com/example/fileguardian/internal/errs"
	"github.com/example/fileguardian/internal/metadata"
	"github.com/example/fileguardian/internal/metrics"
	"github.com/example/fileguardian/internal/pathsafe"
	"github.com/example/fileguardian/internal/planner"
	"github.com/example/fileguardian/internal/sign"
	"github.com/example/fileguardian/internal/snapshot"
	"github.com/example/fileguardian/internal/state"
	"github.com/example/fileguardian/internal/verify"
	"github.com/example/fileguardian/internal/writer"
)

// ReportFormat tags the shape an external renderer should produce
// downstream of this engine; the engine itself always emits Json.
type ReportFormat string

const (
	FormatJSON ReportFormat = "Json"
	FormatHTML ReportFormat = "Html"
	FormatCSV  ReportFormat = "Csv"
)

// BackupOptions configures a Backup call.
type BackupOptions struct {
	BackupName         string
	ForceFull          bool
	RequestIncremental bool // ignored when ForceFull is set
	Compress           bool
	ExcludePatterns    []string
	ReportFormat       ReportFormat
	ReportOutputPath   string
	SignReport         bool
	SignerTarget       string
	Mirror             *cloud.Config
}

// BackupResult is the structured outcome of a Backup call.
type BackupResult struct {
	Success      bool                     `json:"success"`
	BackupID     string                   `json:"backup_id"`
	ArtifactPath string                   `json:"artifact_path"`
	BackupType   metadata.BackupType      `json:"backup_type"`
	Diff         planner.Diff             `json:"diff"`
	Warning      string                   `json:"warning,omitempty"`
	CopyErrors   []string                 `json:"copy_errors,omitempty"`
	Sweep        *verify.SweepResult      `json:"sweep,omitempty"`
	Signature    *sign.Signature          `json:"signature,omitempty"`
	ReportPath   string                   `json:"report_path,omitempty"`
	MirrorError  string                   `json:"mirror_error,omitempty"`
	Metrics      metrics.OperationMetrics `json:"metrics"`
}

// Report is the structured, data-only report this engine produces for
// every Backup run; HTML/CSV rendering of it is an external concern.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Format      ReportFormat  `json:"format"`
	Result      *BackupResult `json:"result"`
}

// Backup runs the Snapshotter -> Planner -> Writer -> StateStore ->
// Verifier -> Signer pipeline described in section 2's data flow.
func (c *Context) Backup(sourceRoot, destination string, opts BackupOptions) (*BackupResult, error) {
	opLog := c.log().StartOperation("Backup")
	start := c.now()

	if opts.BackupName == "" {
		return nil, errs.New(errs.Configuration, "backup_name is required")
	}
	if err := os.MkdirAll(destination, 0755); err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "create destination directory")
	}

	store, err := state.Open(destination)
	if err != nil {
		opLog.Fail("could not open state store", "error", err)
		return nil, err
	}
	lock, err := store.Acquire(c.log().Warn)
	if err != nil {
		opLog.Fail("could not acquire destination lock", "error", err)
		return nil, err
	}
	defer lock.Unlock()

	latest, err := store.LoadLatest()
	if err != nil {
		opLog.Fail("could not load prior state", "error", err)
		return nil, err
	}

	decision := planner.DecideType(opts.ForceFull, opts.RequestIncremental, latest != nil)
	if decision.Warning != "" {
		c.log().Warn(decision.Warning)
	}

	newSnap, softErrs, err := snapshot.Walk(snapshot.WalkOptions{
		SourceRoot:      sourceRoot,
		ExcludeGlobs:    opts.ExcludePatterns,
		CaseInsensitive: pathsafe.CaseInsensitiveFS(),
		HashWorkers:     c.HashWorkers,
		Log:             c.log(),
	})
	if err != nil {
		opLog.Fail("snapshot walk failed", "error", err)
		return nil, err
	}

	diff, err := planner.DiffSnapshots(latest, newSnap)
	if err != nil {
		opLog.Fail("diff failed", "error", err)
		return nil, err
	}
	planner.LogDiff(c.log(), diff)

	selected := planner.SelectedFiles(decision.Type, newSnap, diff)

	var selectedBytes uint64
	for _, rel := range selected {
		selectedBytes += newSnap.Entries[rel].SizeBytes
	}
	if dsk := checks.CheckDiskSpaceForRequired(destination, selectedBytes); dsk.AvailableBytes < selectedBytes {
		opLog.Fail("insufficient free space at destination", "required_bytes", selectedBytes, "available_bytes", dsk.AvailableBytes)
		return nil, errs.Newf(errs.IOFailure, "insufficient free space at %s: need ~%d bytes, have %d available", destination, selectedBytes, dsk.AvailableBytes)
	} else if dsk.Warning {
		c.log().Warn("destination is low on free space", "required_bytes", selectedBytes, "available_bytes", dsk.AvailableBytes)
	}

	var parentID string
	var deletedRel []string
	if decision.Type == metadata.Incremental {
		deletedRel = diff.Deleted
		if id, err := mostRecentBackupID(destination); err == nil {
			parentID = id
		}
	}

	writeResult, err := writer.Write(writer.Options{
		SourceRoot:   sourceRoot,
		Destination:  destination,
		BackupName:   opts.BackupName,
		Timestamp:    start,
		BackupType:   decision.Type,
		ParentBackup: parentID,
		Compress:     opts.Compress,
		SelectedRel:  selected,
		DeletedRel:   deletedRel,
		Snapshot:     newSnap,
	})
	if err != nil {
		opLog.Fail("writer failed", "error", err)
		return nil, err
	}

	result := &BackupResult{
		Success:      writeResult.Success,
		BackupID:     writeResult.BackupID,
		ArtifactPath: writeResult.ArtifactPath,
		BackupType:   decision.Type,
		Diff:         diff,
		Warning:      decision.Warning,
	}
	for _, e := range writeResult.CopyErrors {
		result.CopyErrors = append(result.CopyErrors, e.Error())
	}
	for _, e := range softErrs {
		result.CopyErrors = append(result.CopyErrors, e.Error())
	}

	if !writeResult.Success {
		opLog.Fail("backup produced copy errors; state commit and signing inhibited", "errors", len(writeResult.CopyErrors))
		c.recordMetrics("Backup", opts.BackupName, start, newSnap, diff, false, len(result.CopyErrors))
		return result, nil
	}

	if err := store.Commit(writeResult.BackupID, newSnap); err != nil {
		opLog.Fail("state commit failed", "error", err)
		return nil, err
	}

	sweep, err := c.crossBackupSweep(destination, writeResult.BackupID)
	if err != nil {
		c.log().Warn("cross-backup sweep failed", "error", err)
	}
	result.Sweep = sweep

	if opts.SignReport {
		sig, err := c.signReport(opts, result)
		if err != nil {
			c.log().Warn("report signing failed", "error", err)
		} else {
			result.Signature = sig
		}
	}

	if opts.Mirror != nil {
		if err := c.mirrorArtifact(writeResult.ArtifactPath, opts.Mirror); err != nil {
			result.MirrorError = err.Error()
			c.log().Warn("mirror upload failed; local backup remains authoritative", "error", err)
		}
	}

	result.Metrics = c.recordMetrics("Backup", opts.BackupName, start, newSnap, diff, true, len(result.CopyErrors))

	opLog.Complete("backup finished", "backup_id", writeResult.BackupID, "type", decision.Type)
	return result, nil
}

func (c *Context) recordMetrics(op, name string, start time.Time, snap *snapshot.Snapshot, diff planner.Diff, success bool, errCount int) metrics.OperationMetrics {
	if c.Metrics == nil {
		c.Metrics = metrics.NewCollector(c.log())
	}
	var bytes int64
	for _, p := range diff.New {
		bytes += int64(snap.Entries[p].SizeBytes)
	}
	for _, p := range diff.Modified {
		bytes += int64(snap.Entries[p].SizeBytes)
	}
	return c.Metrics.RecordOperation(op, name, start, bytes, metrics.FileCounts{
		New:       len(diff.New),
		Modified:  len(diff.Modified),
		Deleted:   len(diff.Deleted),
		Unchanged: len(diff.Unchanged),
	}, success, errCount)
}

func mostRecentBackupID(destination string) (string, error) {
	statesDir := filepath.Join(destination, "states")
	entries, err := os.ReadDir(statesDir)
	if err != nil {
		return "", err
	}
	var best string
	var bestMod time.Time
	for _, e := range entries {
		name := e.Name()
		if name == "latest.json" || name == "prev.json" || name == ".lock" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(bestMod) {
			bestMod = info.ModTime()
			best = name[:len(name)-len(".json")]
		}
	}
	if best == "" {
		return "", errs.New(errs.StateCorruption, "no prior backup id found")
	}
	return best, nil
}

func (c *Context) crossBackupSweep(destination, excludeID string) (*verify.SweepResult, error) {
	entries, err := os.ReadDir(destination)
	if err != nil {
		return nil, err
	}
	var candidates []verify.Candidate
	for _, e := range entries {
		name := e.Name()
		if name == "states" {
			continue
		}
		id := name
		if filepath.Ext(name) == ".zip" {
			id = name[:len(name)-len(".zip")]
		}
		if id == excludeID {
			continue
		}
		path := filepath.Join(destination, name)
		meta, err := loadArtifactMetadata(path)
		if err != nil {
			continue
		}
		candidates = append(candidates, verify.Candidate{BackupID: id, ArtifactPath: path, Metadata: meta})
	}
	return verify.Sweep(candidates)
}

func (c *Context) signReport(opts BackupOptions, result *BackupResult) (*sign.Signature, error) {
	report := Report{GeneratedAt: c.now().UTC(), Format: opts.ReportFormat, Result: result}
	data, err := marshalReport(report)
	if err != nil {
		return nil, err
	}

	outputPath := opts.ReportOutputPath
	if outputPath == "" && c.DefaultReportDir != "" {
		if err := os.MkdirAll(c.DefaultReportDir, 0755); err != nil {
			return nil, errs.Wrap(errs.IOFailure, err, "create default report directory")
		}
		outputPath = filepath.Join(c.DefaultReportDir, result.BackupID+"-report.json")
	}

	signer := sign.New(opts.SignerTarget, "")
	reportFile := outputPath
	if reportFile == "" {
		reportFile = result.BackupID + "-report.json"
	}
	sig, err := signer.Sign(filepath.Base(reportFile), data, true)
	if err != nil {
		return nil, err
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return nil, errs.Wrap(errs.IOFailure, err, "write report file")
		}
		if err := sign.SaveSignature(outputPath+".sig", sig); err != nil {
			return nil, err
		}
		result.ReportPath = outputPath
	}
	return sig, nil
}

func (c *Context) mirrorArtifact(artifactPath string, cfg *cloud.Config) error {
	backend, err := cloud.NewBackend(cfg)
	if err != nil {
		return errs.Wrap(errs.IOFailure, err, "construct cloud backend")
	}
	ctx := context.Background()
	remote := cfg.Prefix + filepath.Base(artifactPath)
	return backend.Upload(ctx, artifactPath, remote, nil)
}

func loadArtifactMetadata(path string) (*metadata.BackupMetadata, error) {
	return verify.LoadMetadata(path)
}
