package ipc

import (
	"os"
	"path/filepath"
	"testing"
)

// shortDir keeps socket paths under the sun_path limit.
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cs")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(shortDir(t), "s.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen over stale file: %v", err)
	}
	defer ln.Close()

	if !IsRunning(path) {
		t.Fatal("IsRunning = false while listening")
	}
	if _, err := Listen(path); err == nil {
		t.Fatal("second Listen on a live socket succeeded")
	}
}

func TestIsRunningWithoutSocket(t *testing.T) {
	if IsRunning(filepath.Join(shortDir(t), "absent.sock")) {
		t.Fatal("IsRunning = true for a missing socket")
	}
	if IsRunning("") {
		t.Fatal("IsRunning(\"\") = true")
	}
}

func TestDefaultSocketPathOverride(t *testing.T) {
	t.Setenv("CLIPSTASH_SOCKET", "/tmp/custom.sock")
	if got := DefaultSocketPath(); got != "/tmp/custom.sock" {
		t.Fatalf("DefaultSocketPath() = %q", got)
	}
	if Target("/a/b") != "unix:///a/b" {
		t.Fatalf("Target = %q", Target("/a/b"))
	}
}
