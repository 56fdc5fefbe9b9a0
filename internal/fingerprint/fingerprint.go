// Package fingerprint computes the (size, mtime, sha256) triple that
// drives change detection, using a bounded worker pool grounded on the
// teacher's channel-semaphore backup/restore worker pattern but
// implemented with golang.org/x/sync/errgroup.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of fingerprinting a single file. Unreadable
// entries carry a zero ContentHash and are flagged: such entries can
// never match during incremental comparison.
type Result struct {
	Size       uint64
	ModTime    time.Time
	SHA256     string
	Unreadable bool
}

// Hash streams path through SHA-256 without loading it fully into
// memory, matching internal/security/checksum.go's ChecksumFile idiom.
func Hash(path string) (Result, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Result{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{Unreadable: true, Size: uint64(info.Size()), ModTime: info.ModTime()}, nil
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Result{Unreadable: true, Size: uint64(info.Size()), ModTime: info.ModTime()}, nil
	}

	return Result{
		Size:    uint64(info.Size()),
		ModTime: info.ModTime(),
		SHA256:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// HashReader streams r through SHA-256 and returns the lowercase hex
// digest, used by the Verifier to hash a file already opened from
// inside a directory or zip artifact without touching the filesystem
// path a second time.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BatchHash fingerprints every path in paths on a pool of at most
// workers goroutines, preserving input order in the returned slice.
// Per-file failures do not abort the batch. A file that cannot be
// stat'ed gets a Result marked Unreadable and its error is collected
// for the caller's report; a file that stats but cannot be opened or
// read (e.g. permission denied) comes back from Hash marked Unreadable
// with its size and mtime, and no error is collected for it.
func BatchHash(paths []string, workers int) ([]Result, []error) {
	results := make([]Result, len(paths))
	softErrs := make([]error, 0)
	errCh := make(chan error, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			r, err := Hash(p)
			if err != nil {
				errCh <- err
				results[i] = Result{Unreadable: true}
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	close(errCh)
	for err := range errCh {
		softErrs = append(softErrs, err)
	}
	return results, softErrs
}
