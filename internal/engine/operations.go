package engine

import (
	"time"

	"github.com/example/fileguardian/internal/restore"
	"github.com/example/fileguardian/internal/retention"
	"github.com/example/fileguardian/internal/sign"
	"github.com/example/fileguardian/internal/verify"
)

// Verify re-hashes every file recorded in backupPath's metadata
// sidecar and reports Intact/Corrupted, without touching the artifact.
func (c *Context) Verify(backupPath, backupID string) (*verify.Result, error) {
	meta, err := verify.LoadMetadata(backupPath)
	if err != nil {
		return nil, err
	}
	return verify.Verify(backupPath, meta, backupID)
}

// VerifyReport checks a previously produced signature side-car against
// the report bytes it claims to cover.
func (c *Context) VerifyReport(reportBytes []byte, sig *sign.Signature) (*sign.VerificationResult, error) {
	signer := sign.New(sig.CredentialTarget, sig.SignedBy)
	return signer.Verify(reportBytes, sig)
}

// Restore resolves the Full+Incremental chain ending at pointInTime (or
// the latest artifacts if nil) under destination and replays it into
// target.
func (c *Context) Restore(destination, target string, pointInTime *time.Time) (*restore.Result, error) {
	return restore.Restore(restore.Options{
		Destination: destination,
		Target:      target,
		PointInTime: pointInTime,
		Log:         c.log(),
	})
}

// Cleanup deletes backup artifacts under destination older than
// retentionDays, refusing to delete every artifact present.
func (c *Context) Cleanup(destination string, retentionDays int, nameFilter string) (*retention.Result, error) {
	return retention.Cleanup(retention.Options{
		Destination:   destination,
		RetentionDays: retentionDays,
		NameFilter:    nameFilter,
		Now:           c.Clock,
	})
}
