// Package sign implements component G: HMAC-SHA-256 signing of report
// bytes using a key held in the host OS's protected secret store. The
// streaming-hash-then-compare idiom is grounded on
// internal/security/checksum.go's ChecksumFile; the "read a secret
// from outside the repo, never persist it in cleartext" posture
// generalizes internal/crypto/interface.go's env-var-sourced AES key
// to an OS keyring via github.com/zalando/go-keyring, named in
// DESIGN.md as an out-of-pack dependency with no pack precedent.
package sign

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha1" //nolint:gosec // accepted only for legacy verification, never for new signatures
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/example/fileguardian/internal/errs"
)

// DefaultTarget is the OS keyring service name used when the caller
// does not configure one explicitly.
const DefaultTarget = "FileGuardian.ReportSigning"

const (
	// AlgoHMACSHA256 is the only algorithm accepted for new signatures.
	AlgoHMACSHA256 = "HMACSHA256"
	// AlgoHMACSHA1 is accepted only when verifying signatures produced
	// by an older installation; Sign refuses to produce it.
	AlgoHMACSHA1 = "HMACSHA1"

	keyringUser = "report-signing-key"
)

// Signature is the canonical <report>.sig side-car shape (section 6.3).
type Signature struct {
	ReportFile       string `json:"report_file"`
	Algorithm        string `json:"algorithm"`
	Hash             string `json:"hash"`
	SignedAt         string `json:"signed_at"`
	SignedBy         string `json:"signed_by"`
	CredentialTarget string `json:"credential_target"`
}

// Signer signs and verifies report bytes against a key held in the OS
// secret store under Target.
type Signer struct {
	Target   string
	SignedBy string
	Clock    func() time.Time
}

// New returns a Signer using DefaultTarget unless target is non-empty.
func New(target, signedBy string) *Signer {
	if target == "" {
		target = DefaultTarget
	}
	if signedBy == "" {
		if u, err := os.Hostname(); err == nil {
			signedBy = u
		} else {
			signedBy = "unknown"
		}
	}
	return &Signer{Target: target, SignedBy: signedBy, Clock: time.Now}
}

func (s *Signer) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Bootstrap generates a random 32-byte key and stores it under s.Target
// if and only if no key is currently present. It is a no-op, not an
// error, when a key already exists.
func (s *Signer) Bootstrap() error {
	if _, err := keyring.Get(s.Target, keyringUser); err == nil {
		return nil
	} else if err != keyring.ErrNotFound {
		return errs.Wrap(errs.CryptoFailure, err, "probe OS secret store")
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return errs.Wrap(errs.CryptoFailure, err, "generate signing key")
	}
	if err := keyring.Set(s.Target, keyringUser, hex.EncodeToString(key)); err != nil {
		return errs.Wrap(errs.CryptoFailure, err, "store signing key in OS secret store")
	}
	return nil
}

func (s *Signer) loadKey() ([]byte, error) {
	hexKey, err := keyring.Get(s.Target, keyringUser)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, errs.Newf(errs.CryptoFailure, "no signing key found in OS secret store under target %q", s.Target)
		}
		return nil, errs.Wrap(errs.CryptoFailure, err, "read signing key from OS secret store")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errs.Wrap(errs.StateCorruption, err, "decode stored signing key")
	}
	return key, nil
}

// bindContext returns the metadata string bound into the MAC alongside
// the report bytes: "filename|algo|signed_at|signed_by|target".
func bindContext(filename, algo, signedAt, signedBy, target string) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%s|%s", filename, algo, signedAt, signedBy, target))
}

func macFor(algo string, key, reportBytes, bound []byte) ([]byte, error) {
	switch algo {
	case AlgoHMACSHA256:
		mac := hmac.New(sha256.New, key)
		mac.Write(reportBytes)
		mac.Write(bound)
		return mac.Sum(nil), nil
	case AlgoHMACSHA1:
		mac := hmac.New(sha1.New, key)
		mac.Write(reportBytes)
		mac.Write(bound)
		return mac.Sum(nil), nil
	default:
		return nil, errs.Newf(errs.CryptoFailure, "unsupported HMAC algorithm: %q", algo)
	}
}

// Sign produces a Signature for reportBytes, auto-provisioning a key
// via Bootstrap first when autoProvision is set; otherwise a missing
// key is a fatal CryptoFailure.
func (s *Signer) Sign(reportFile string, reportBytes []byte, autoProvision bool) (*Signature, error) {
	if autoProvision {
		if err := s.Bootstrap(); err != nil {
			return nil, err
		}
	}
	key, err := s.loadKey()
	if err != nil {
		return nil, err
	}

	signedAt := s.now().UTC().Format(time.RFC3339Nano)
	bound := bindContext(reportFile, AlgoHMACSHA256, signedAt, s.SignedBy, s.Target)
	mac, err := macFor(AlgoHMACSHA256, key, reportBytes, bound)
	if err != nil {
		return nil, err
	}

	return &Signature{
		ReportFile:       reportFile,
		Algorithm:        AlgoHMACSHA256,
		Hash:             hex.EncodeToString(mac),
		SignedAt:         signedAt,
		SignedBy:         s.SignedBy,
		CredentialTarget: s.Target,
	}, nil
}

// VerificationResult is the outcome of VerifyReport (component G,
// operation VerifyReport).
type VerificationResult struct {
	Valid    bool   `json:"is_valid"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Verify recomputes the MAC over reportBytes using sig's bound metadata
// and the key held under sig.CredentialTarget, comparing in constant
// time. A missing key is a fatal, distinctly-tagged CryptoFailure from
// a "key present but mismatch" result.
func (s *Signer) Verify(reportBytes []byte, sig *Signature) (*VerificationResult, error) {
	if sig.Algorithm != AlgoHMACSHA256 && sig.Algorithm != AlgoHMACSHA1 {
		return nil, errs.Newf(errs.CryptoFailure, "unsupported HMAC algorithm: %q", sig.Algorithm)
	}
	verifier := &Signer{Target: sig.CredentialTarget, SignedBy: sig.SignedBy, Clock: s.Clock}
	key, err := verifier.loadKey()
	if err != nil {
		return nil, err
	}

	bound := bindContext(sig.ReportFile, sig.Algorithm, sig.SignedAt, sig.SignedBy, sig.CredentialTarget)
	mac, err := macFor(sig.Algorithm, key, reportBytes, bound)
	if err != nil {
		return nil, err
	}
	expected := hex.EncodeToString(mac)

	valid := subtle.ConstantTimeCompare([]byte(expected), []byte(sig.Hash)) == 1
	return &VerificationResult{Valid: valid, Expected: expected, Actual: sig.Hash}, nil
}

// SaveSignature writes sig as the canonical <report>.sig JSON side-car.
func SaveSignature(path string, sig *Signature) error {
	data, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IOFailure, err, "marshal signature")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errs.Wrap(errs.IOFailure, err, "write signature side-car")
	}
	return nil
}

// LoadSignature reads a <report>.sig JSON side-car.
func LoadSignature(path string) (*Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "read signature side-car")
	}
	var sig Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, errs.Wrap(errs.StateCorruption, err, "decode signature side-car")
	}
	return &sig, nil
}
