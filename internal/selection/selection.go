// Package selection provides access to the windowing system's two
// selections. A Backend serves exactly one selection kind:
//
//	native.go   golang.design/x/clipboard, Clipboard only
//	command.go  wl-paste/wl-copy on Wayland, xclip or xsel on X11
//	memory.go   in-process selection for headless use and tests
package selection

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.klb.dev/clipstash/internal/clip"
)

// ErrUnavailable is returned by Open when no windowing system can serve
// the requested selection.
var ErrUnavailable = errors.New("selection: windowing system unavailable")

// Backend is one selection of the windowing system.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current selection contents. An empty selection is
	// nil, nil.
	Read() ([]byte, error)

	// Write takes ownership of the selection with data.
	Write(data []byte) error

	// Watch returns a channel that receives a signal whenever the
	// selection may have changed. The caller should Read after each
	// signal. The channel is closed when the backend is closed or can no
	// longer reach the windowing system.
	Watch() <-chan struct{}

	// Close releases any resources held by the backend.
	Close()
}

// Mode selects which implementation Open uses.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeNative  Mode = "native"
	ModeX11     Mode = "x11"
	ModeWayland Mode = "wayland"
	ModeNone    Mode = "none"
)

// ParseMode converts a config value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeNative, ModeX11, ModeWayland, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("unknown selection backend %q", s)
	}
}

// DefaultPollInterval is how often polling backends look for changes.
const DefaultPollInterval = 250 * time.Millisecond

// Open returns a Backend serving kind. ModeNone returns an empty Memory
// backend. ModeAuto prefers Wayland when WAYLAND_DISPLAY is set, then
// the native backend for the clipboard, then the X11 tools when DISPLAY
// is set.
func Open(kind clip.Kind, mode Mode, interval time.Duration) (Backend, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	switch mode {
	case ModeNone:
		return NewMemory(kind), nil
	case ModeNative:
		return openNative(kind, interval)
	case ModeWayland:
		return openWayland(kind, interval)
	case ModeX11:
		return openX11(kind, interval)
	case ModeAuto, "":
	default:
		return nil, fmt.Errorf("selection: unknown backend %q", mode)
	}

	var errs []error
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		b, err := openWayland(kind, interval)
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	if kind == clip.KindClipboard {
		b, err := openNative(kind, interval)
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	if os.Getenv("DISPLAY") != "" {
		b, err := openX11(kind, interval)
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: neither WAYLAND_DISPLAY nor DISPLAY is set", ErrUnavailable)
	}
	return nil, errors.Join(errs...)
}

// notify performs a non-blocking send on a 1-buffered signal channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
