package sign

import (
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	m.Run()
}

func TestSignThenVerifyRoundTrips(t *testing.T) {
	signer := New("fileguardian-test-target", "tester")
	report := []byte(`{"generated_at":"2026-01-02T03:04:05Z","result":{}}`)

	sig, err := signer.Sign("report.json", report, true)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig.Algorithm != AlgoHMACSHA256 {
		t.Errorf("expected HMACSHA256, got %s", sig.Algorithm)
	}

	result, err := signer.Verify(report, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid signature, got expected=%s actual=%s", result.Expected, result.Actual)
	}
}

func TestVerifyDetectsTamperedBytes(t *testing.T) {
	signer := New("fileguardian-test-target-2", "tester")
	report := []byte(`{"a":1}`)

	sig, err := signer.Sign("report.json", report, true)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tampered := []byte(`{"a":2}`)
	result, err := signer.Verify(tampered, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Valid {
		t.Error("expected tampered report bytes to fail verification")
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	signer := New("fileguardian-test-target-3", "tester")
	if err := signer.Bootstrap(); err != nil {
		t.Fatalf("first Bootstrap: %v", err)
	}
	key1, err := signer.loadKey()
	if err != nil {
		t.Fatalf("loadKey: %v", err)
	}
	if err := signer.Bootstrap(); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	key2, err := signer.loadKey()
	if err != nil {
		t.Fatalf("loadKey: %v", err)
	}
	if string(key1) != string(key2) {
		t.Error("Bootstrap should not rotate an existing key")
	}
}

func TestSaveAndLoadSignatureSidecar(t *testing.T) {
	dir := t.TempDir()
	sig := &Signature{
		ReportFile:       "report.json",
		Algorithm:        AlgoHMACSHA256,
		Hash:             "deadbeef",
		SignedAt:         time.Now().UTC().Format(time.RFC3339Nano),
		SignedBy:         "tester",
		CredentialTarget: DefaultTarget,
	}
	path := dir + "/report.json.sig"
	if err := SaveSignature(path, sig); err != nil {
		t.Fatalf("SaveSignature: %v", err)
	}
	loaded, err := LoadSignature(path)
	if err != nil {
		t.Fatalf("LoadSignature: %v", err)
	}
	if loaded.Hash != sig.Hash || loaded.Algorithm != sig.Algorithm {
		t.Errorf("round trip mismatch: got %+v", loaded)
	}
}
