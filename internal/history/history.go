// Package history persists the clipboard history between daemon runs.
//
// A Store holds one complete snapshot of the history, most recent first.
// Save replaces the snapshot atomically: a reader, including one running
// after a crash, observes either the previous or the new snapshot.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.klb.dev/clipstash/internal/clip"
)

// ErrCorrupt is wrapped by Load when the backing data cannot be parsed.
var ErrCorrupt = errors.New("history: corrupt data")

// Store persists a snapshot of the history. Clip IDs are not persisted.
type Store interface {
	// Load returns the stored clips, most recent first. A store that has
	// never been saved returns an empty slice.
	Load() ([]clip.Clip, error)
	// Save atomically replaces the stored snapshot.
	Save(clips []clip.Clip) error
	// Path returns the backing file path.
	Path() string
	// Close releases resources held by the store.
	Close() error
}

// Driver selects a Store implementation.
type Driver string

const (
	DriverFile   Driver = "file"
	DriverSQLite Driver = "sqlite"
)

// ParseDriver converts a config value into a Driver.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DriverFile:
		return DriverFile, nil
	case DriverSQLite:
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unknown history driver %q", s)
	}
}

// Open returns the Store for driver backed by path, creating the parent
// directory if needed.
func Open(driver Driver, path string) (Store, error) {
	if path == "" {
		return nil, errors.New("history: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}
	switch driver {
	case DriverFile, "":
		return NewFile(path), nil
	case DriverSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("history: unknown driver %q", driver)
	}
}

// Discard is a Store that keeps nothing. The daemon falls back to it when
// the configured store cannot be opened.
var Discard Store = discard{}

type discard struct{}

func (discard) Load() ([]clip.Clip, error) { return nil, nil }
func (discard) Save([]clip.Clip) error     { return nil }
func (discard) Path() string               { return os.DevNull }
func (discard) Close() error               { return nil }
