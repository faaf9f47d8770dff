package daemon

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckNotRoot(t *testing.T) {
	t.Parallel()

	err := CheckNotRoot()
	if runtime.GOOS == "windows" {
		if err != nil {
			t.Errorf("CheckNotRoot should pass on windows: %v", err)
		}
		return
	}
	if os.Geteuid() == 0 {
		if !errors.Is(err, ErrRunningAsRoot) {
			t.Errorf("expected ErrRunningAsRoot under UID 0, got %v", err)
		}
		return
	}
	if err != nil {
		t.Errorf("CheckNotRoot failed for non-root user: %v", err)
	}
}

func TestValidateDirectoryPermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix permission checks")
	}

	dir := t.TempDir()
	secure := filepath.Join(dir, "secure")
	if err := os.Mkdir(secure, 0700); err != nil {
		t.Fatal(err)
	}
	if err := ValidateDirectoryPermissions(secure); err != nil {
		t.Errorf("0700 directory should validate: %v", err)
	}

	open := filepath.Join(dir, "open")
	if err := os.Mkdir(open, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ValidateDirectoryPermissions(open); !errors.Is(err, ErrInsecureDirectory) {
		t.Errorf("0755 directory should be rejected, got %v", err)
	}
}

func TestEnsureSecureDirectoryCreates(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "run", "cadence")
	if err := EnsureSecureDirectory(dir); err != nil {
		t.Fatalf("EnsureSecureDirectory failed: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory should exist: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0700 {
		t.Errorf("expected 0700, got %o", info.Mode().Perm())
	}
}

func TestEnsureSecureDirectoryTightensPermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix permission checks")
	}

	dir := filepath.Join(t.TempDir(), "loose")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := EnsureSecureDirectory(dir); err != nil {
		t.Fatalf("EnsureSecureDirectory failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("expected permissions tightened to 0700, got %o", info.Mode().Perm())
	}
}

// checkPeer admits same-UID unix peers and anything it cannot identify
// (non-unix sockets, platforms without peer credentials).
func TestCheckPeerSameUser(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix domain sockets")
	}

	sockPath := filepath.Join(t.TempDir(), "peer.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		done <- checkPeer(conn)
	}()

	client, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	if err := <-done; err != nil {
		t.Errorf("same-user peer should be admitted: %v", err)
	}
}
