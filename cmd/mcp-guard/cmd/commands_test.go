package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/auth"
)

func TestHashKeyCommand(t *testing.T) {
	var out bytes.Buffer
	hashKeyCmd.SetOut(&out)
	t.Cleanup(func() { hashKeyCmd.SetOut(nil) })

	if err := hashKeyCmd.RunE(hashKeyCmd, []string{"secret123"}); err != nil {
		t.Fatalf("hash-key error = %v", err)
	}

	hash := strings.TrimSpace(out.String())
	if auth.DetectHashType(hash) != "argon2id" {
		t.Fatalf("hash = %q, want argon2id", hash)
	}
	secret, err := auth.NewSecret("", hash)
	if err != nil {
		t.Fatal(err)
	}
	if !secret.Matches("secret123") {
		t.Error("generated hash does not verify the key")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "mcp-guard "+Version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestPIDFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.pid")

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile() error = %v", err)
	}
	if got := readPIDFile(path); got != os.Getpid() {
		t.Errorf("readPIDFile() = %d, want %d", got, os.Getpid())
	}
}

func TestReadPIDFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	if got := readPIDFile(filepath.Join(dir, "missing.pid")); got != 0 {
		t.Errorf("missing file = %d, want 0", got)
	}

	bad := filepath.Join(dir, "bad.pid")
	_ = os.WriteFile(bad, []byte("not-a-pid\n"), 0644)
	if got := readPIDFile(bad); got != 0 {
		t.Errorf("malformed file = %d, want 0", got)
	}
}

func TestStopServer_NoPIDFile(t *testing.T) {
	err := stopServer(filepath.Join(t.TempDir(), "server.pid"), time.Millisecond, 1)
	if err == nil || !strings.Contains(err.Error(), "no server PID file") {
		t.Errorf("stopServer() error = %v", err)
	}
}

func TestGracefulSignals(t *testing.T) {
	if len(gracefulSignals()) == 0 {
		t.Error("gracefulSignals() returned no signals")
	}
}
