// Package writer implements component E: materializing a backup
// artifact (a mirrored directory tree, or an equivalent zip archive)
// with an embedded .backup-metadata.json sidecar. Grounded on
// internal/backup/engine.go's createArchive/createMetadata ("copy
// selected files, write a metadata sidecar next to the payload")
// idiom; archive packaging itself uses stdlib archive/zip (see
// DESIGN.md's stdlib justification) rather than an
// exec.CommandContext-to-tar/pigz idiom, since byte-identical restore
// must not depend on external binaries being present on the host.
package writer

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/example/fileguardian/internal/errs"
	"github.com/example/fileguardian/internal/metadata"
	"github.com/example/fileguardian/internal/pathsafe"
	"github.com/example/fileguardian/internal/snapshot"
)

func metadataJSON(m *metadata.BackupMetadata) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "marshal backup metadata")
	}
	return data, nil
}

// Options configures a single Write call.
type Options struct {
	SourceRoot   string
	Destination  string // directory under which the artifact is created
	BackupName   string
	Timestamp    time.Time // local time; formatted YYYYMMDD_HHMMSS
	BackupType   metadata.BackupType
	ParentBackup string // empty for Full
	Compress     bool   // pack as .zip instead of a mirrored directory
	SelectedRel  []string
	DeletedRel   []string
	Snapshot     *snapshot.Snapshot // full new snapshot, source of FileEntry records
}

// Result reports what Write produced and any per-file copy failures.
type Result struct {
	BackupID     string // "<backup_name>_<timestamp>", without extension
	ArtifactPath string // directory path, or the .zip file path
	Metadata     *metadata.BackupMetadata
	CopyErrors   []error
	Success      bool // false if any per-file copy failed
}

// TimestampFormat is the canonical artifact-naming timestamp layout.
const TimestampFormat = "20060102_150405"

// Write copies opts.SelectedRel from opts.SourceRoot into a new backup
// artifact and writes the metadata sidecar. A per-file
// copy failure is recorded in Result.CopyErrors but does not abort the run; it
// does make Result.Success false, which the caller (internal/engine)
// uses to skip the StateStore commit.
func Write(opts Options) (*Result, error) {
	backupID := opts.BackupName + "_" + opts.Timestamp.Format(TimestampFormat)

	entries := make([]snapshot.FileEntry, 0, len(opts.SelectedRel))
	for _, rel := range opts.SelectedRel {
		if e, ok := opts.Snapshot.Entries[rel]; ok {
			entries = append(entries, e)
		}
	}

	var parent *string
	if opts.ParentBackup != "" {
		p := opts.ParentBackup
		parent = &p
	}
	deleted := opts.DeletedRel
	if deleted == nil {
		deleted = []string{}
	}

	meta := &metadata.BackupMetadata{
		BackupName:   opts.BackupName,
		BackupType:   opts.BackupType,
		Timestamp:    opts.Timestamp.Format(TimestampFormat),
		SourcePath:   opts.SourceRoot,
		ParentBackup: parent,
		DeletedFiles: deleted,
		Entries:      entries,
	}

	if opts.Compress {
		return writeArchive(opts, backupID, meta)
	}
	return writeDirectory(opts, backupID, meta)
}

func writeDirectory(opts Options, backupID string, meta *metadata.BackupMetadata) (*Result, error) {
	root := filepath.Join(opts.Destination, backupID)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "create artifact directory")
	}

	var copyErrors []error
	for _, rel := range opts.SelectedRel {
		clean, err := pathsafe.Clean(rel)
		if err != nil {
			copyErrors = append(copyErrors, err)
			continue
		}
		src := filepath.Join(opts.SourceRoot, filepath.FromSlash(clean))
		dst := filepath.Join(root, filepath.FromSlash(clean))
		if err := copyFile(src, dst); err != nil {
			copyErrors = append(copyErrors, errs.Wrapf(errs.IOFailure, err, "copy %s", rel))
		}
	}

	success := len(copyErrors) == 0
	if success {
		if err := metadata.Save(filepath.Join(root, metadata.FileName()), meta); err != nil {
			return nil, err
		}
	}

	return &Result{
		BackupID:     backupID,
		ArtifactPath: root,
		Metadata:     meta,
		CopyErrors:   copyErrors,
		Success:      success,
	}, nil
}

func writeArchive(opts Options, backupID string, meta *metadata.BackupMetadata) (*Result, error) {
	archivePath := filepath.Join(opts.Destination, backupID+".zip")
	f, err := os.Create(archivePath)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "create archive")
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	var copyErrors []error
	for _, rel := range opts.SelectedRel {
		clean, err := pathsafe.Clean(rel)
		if err != nil {
			copyErrors = append(copyErrors, err)
			continue
		}
		src := filepath.Join(opts.SourceRoot, filepath.FromSlash(clean))
		if err := addFileToZip(zw, src, clean, opts.Compress); err != nil {
			copyErrors = append(copyErrors, errs.Wrapf(errs.IOFailure, err, "archive %s", rel))
		}
	}

	success := len(copyErrors) == 0
	if success {
		data, err := metadataJSON(meta)
		if err != nil {
			zw.Close()
			return nil, err
		}
		if err := addBytesToZip(zw, metadata.FileName(), data); err != nil {
			zw.Close()
			return nil, errs.Wrap(errs.IOFailure, err, "write metadata into archive")
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "finalize archive")
	}

	return &Result{
		BackupID:     backupID,
		ArtifactPath: archivePath,
		Metadata:     meta,
		CopyErrors:   copyErrors,
		Success:      success,
	}, nil
}

func copyFile(src, dst string) error {
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

func addFileToZip(zw *zip.Writer, src, archivePath string, compress bool) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = archivePath
	if compress {
		hdr.Method = zip.Deflate
	} else {
		hdr.Method = zip.Store
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

func addBytesToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
