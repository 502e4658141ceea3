//go:build unix

// Package pidfile guards a daemon against a second instance with an
// advisory lock on a file holding its process id.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrRunning is returned by Acquire while another process holds the lock.
var ErrRunning = errors.New("pidfile: another instance is running")

// File is a held pid file.
type File struct {
	f    *os.File
	path string
}

// Acquire creates path if needed, locks it and writes the current pid.
// The lock is released by Release or when the process exits.
func Acquire(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("pidfile: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("pidfile: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, rerr := Read(path); rerr == nil {
				return nil, fmt.Errorf("%w (pid %d)", ErrRunning, pid)
			}
			return nil, ErrRunning
		}
		return nil, fmt.Errorf("pidfile: lock %s: %w", path, err)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pidfile: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pidfile: %w", err)
	}
	return &File{f: f, path: path}, nil
}

// Path returns the locked file's path.
func (p *File) Path() string { return p.path }

// Release removes the file and drops the lock.
func (p *File) Release() error {
	if p == nil || p.f == nil {
		return nil
	}
	rmErr := os.Remove(p.path)
	if errors.Is(rmErr, os.ErrNotExist) {
		rmErr = nil
	}
	err := errors.Join(rmErr, p.f.Close())
	p.f = nil
	return err
}

// Read returns the pid recorded in path.
func Read(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("pidfile: %s: %w", path, err)
	}
	return pid, nil
}
