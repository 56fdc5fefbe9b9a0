package metadata

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/example/fileguardian/internal/errs"
	"github.com/example/fileguardian/internal/snapshot"
)

// BackupType is a sum-type-like enum: only Full and Incremental are
// valid values anywhere in the system.
type BackupType string

const (
	Full        BackupType = "Full"
	Incremental BackupType = "Incremental"
)

// ParseBackupType normalizes s case/prefix-insensitively into a valid
// BackupType, rejecting anything else with StateCorruption. Used by
// the Restorer when reading metadata written by a possibly-older or
// foreign tool.
func ParseBackupType(s string) (BackupType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return Full, nil
	case "incremental", "inc":
		return Incremental, nil
	default:
		return "", errs.Newf(errs.StateCorruption, "unknown backup_type: %q", s)
	}
}

// BackupMetadata is the canonical .backup-metadata.json shape.
type BackupMetadata struct {
	BackupName   string               `json:"backup_name"`
	BackupType   BackupType           `json:"backup_type"`
	Timestamp    string               `json:"timestamp"`
	SourcePath   string               `json:"source_path"`
	ParentBackup *string              `json:"parent_backup"`
	DeletedFiles []string             `json:"deleted_files"`
	Entries      []snapshot.FileEntry `json:"entries"`
}

const metadataFileName = ".backup-metadata.json"

// FileName is the fixed name metadata is written under at the root of
// every backup artifact.
func FileName() string { return metadataFileName }

// Save writes m as strict JSON to path.
func Save(path string, m *BackupMetadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IOFailure, err, "marshal backup metadata")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errs.Wrap(errs.IOFailure, err, "write backup metadata")
	}
	return nil
}

// Load reads and strictly decodes a BackupMetadata from path,
// rejecting unknown fields and invalid backup_type values as
// StateCorruption rather than accepting a loosely-typed map.
func Load(path string) (*BackupMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "read backup metadata")
	}
	return Decode(data)
}

// Decode strictly decodes a BackupMetadata already read into memory,
// used by callers reading the sidecar out of a zip artifact rather
// than directly from the filesystem.
func Decode(data []byte) (*BackupMetadata, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m BackupMetadata
	if err := dec.Decode(&m); err != nil {
		return nil, errs.Wrap(errs.StateCorruption, err, "decode backup metadata")
	}
	normalized, err := ParseBackupType(string(m.BackupType))
	if err != nil {
		return nil, err
	}
	m.BackupType = normalized
	if m.BackupType == Incremental && m.DeletedFiles == nil {
		m.DeletedFiles = []string{}
	}
	return &m, nil
}

// EntriesByPath indexes m.Entries for O(1) lookup during verification.
func (m *BackupMetadata) EntriesByPath() map[string]snapshot.FileEntry {
	out := make(map[string]snapshot.FileEntry, len(m.Entries))
	for _, e := range m.Entries {
		out[e.RelativePath] = e
	}
	return out
}
