//go:build unix

package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "d.pid")
	p, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid = %d, want %d", pid, os.Getpid())
	}
	if err := p.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pid file not removed: %v", err)
	}
	if err := p.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestSecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.pid")
	p, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release()

	// flock locks belong to the open file description, so a second open
	// in the same process conflicts.
	if _, err := Acquire(path); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Acquire = %v, want ErrRunning", err)
	}
}

func TestStaleFileIsReused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.pid")
	if err := os.WriteFile(path, []byte("999999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire over stale file: %v", err)
	}
	defer p.Release()
	if pid, _ := Read(path); pid != os.Getpid() {
		t.Fatalf("pid = %d", pid)
	}
}
