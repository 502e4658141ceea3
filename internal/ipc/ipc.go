// Package ipc provides helpers for the local Unix-socket channel CLI
// commands use to reach a running daemon without going through TCP.
//
// The channel is plain gRPC over a Unix domain socket, serving the same
// HistoryService as the TCP listener. CLI commands probe for the socket
// and fall back to TCP if it is absent.
package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// SocketName is the file name of the socket inside the runtime directory.
const SocketName = "clipstash.sock"

// DefaultSocketPath returns $CLIPSTASH_SOCKET, or the socket inside the
// XDG runtime directory.
func DefaultSocketPath() string {
	if s := os.Getenv("CLIPSTASH_SOCKET"); s != "" {
		return s
	}
	return filepath.Join(xdg.RuntimeDir, SocketName)
}

// IsRunning reports whether something is listening on path. It does a
// cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	if path == "" {
		return false
	}
	c, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on path, removing a stale socket left by a
// crashed daemon first. A socket that still accepts connections is left
// alone and Listen fails.
func Listen(path string) (net.Listener, error) {
	if IsRunning(path) {
		return nil, fmt.Errorf("ipc: %s: another daemon is listening", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ipc: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ipc: remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("ipc: %w", err)
	}
	return ln, nil
}

// Target returns the gRPC dial target for the socket at path.
func Target(path string) string { return "unix://" + path }
