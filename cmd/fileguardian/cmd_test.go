package fileguardian

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/example/fileguardian/internal/engine"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

func resetBackupFlags() {
	backupName = ""
	backupFull = false
	backupIncr = false
	backupCompress = false
	backupExclude = nil
	backupSign = false
	signerTarget = ""
	reportPath = ""
	mirrorURI = ""
}

func writeSourceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBackupCommandRunsAgainstRealContext(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeSourceFile(t, src, "a.txt", "hello")

	engineCtx = engine.NewContext()
	resetBackupFlags()
	backupName = "myapp"

	cmd := backupCmd
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.RunE(cmd, []string{src, dst}); err != nil {
		t.Fatalf("backup RunE: %v", err)
	}

	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one artifact written to destination")
	}
}

func TestBackupCommandRejectsMissingName(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeSourceFile(t, src, "a.txt", "hello")

	engineCtx = engine.NewContext()
	resetBackupFlags()

	cmd := backupCmd
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.RunE(cmd, []string{src, dst}); err == nil {
		t.Fatal("expected an error when --name is empty")
	}
}

func TestVerifyCommandRunsAgainstFreshArtifact(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeSourceFile(t, src, "a.txt", "hello")

	engineCtx = engine.NewContext()
	resetBackupFlags()
	backupName = "myapp"
	buf := &bytes.Buffer{}
	backupCmd.SetOut(buf)
	backupCmd.SetErr(&bytes.Buffer{})
	if err := backupCmd.RunE(backupCmd, []string{src, dst}); err != nil {
		t.Fatalf("backup RunE: %v", err)
	}

	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatal(err)
	}
	var artifactPath string
	for _, e := range entries {
		if e.Name() != "states" {
			artifactPath = filepath.Join(dst, e.Name())
		}
	}
	if artifactPath == "" {
		t.Fatal("could not find written artifact")
	}

	verifyCmd.SetOut(&bytes.Buffer{})
	verifyCmd.SetErr(&bytes.Buffer{})
	if err := verifyCmd.RunE(verifyCmd, []string{artifactPath}); err != nil {
		t.Fatalf("verify RunE: %v", err)
	}
}

func TestRestoreCommandRejectsBadPointInTime(t *testing.T) {
	engineCtx = engine.NewContext()
	restorePointInTime = "not-a-timestamp"
	defer func() { restorePointInTime = "" }()

	restoreCmd.SetOut(&bytes.Buffer{})
	restoreCmd.SetErr(&bytes.Buffer{})
	if err := restoreCmd.RunE(restoreCmd, []string{t.TempDir(), t.TempDir()}); err == nil {
		t.Fatal("expected an error for a malformed --point-in-time")
	}
}

func TestCleanupCommandRunsAgainstEmptyDestination(t *testing.T) {
	dst := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dst, "states"), 0755); err != nil {
		t.Fatal(err)
	}

	engineCtx = engine.NewContext()
	cleanupRetentionDays = 0
	cleanupNameFilter = ""

	cleanupCmd.SetOut(&bytes.Buffer{})
	cleanupCmd.SetErr(&bytes.Buffer{})
	if err := cleanupCmd.RunE(cleanupCmd, []string{dst}); err != nil {
		t.Fatalf("cleanup RunE: %v", err)
	}
}
