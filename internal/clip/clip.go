// Package clip defines the clipstash data model: a Clip is one remembered
// selection payload, tagged with the selection Kind it was observed on.
package clip

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind identifies one of the two windowing-system selections.
type Kind uint8

const (
	KindClipboard Kind = iota
	KindPrimary
)

// Kinds lists every selection kind in a stable order.
var Kinds = []Kind{KindClipboard, KindPrimary}

// DefaultKind is the selection used when a caller does not name one.
const DefaultKind = KindClipboard

// String returns the lower-case name used in config, flags and JSON.
func (k Kind) String() string {
	switch k {
	case KindClipboard:
		return "clipboard"
	case KindPrimary:
		return "primary"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Other returns the opposite selection.
func (k Kind) Other() Kind {
	if k == KindPrimary {
		return KindClipboard
	}
	return KindPrimary
}

// Valid reports whether k is a known selection kind.
func (k Kind) Valid() bool { return k == KindClipboard || k == KindPrimary }

// ParseKind converts a name into a Kind. The empty string is the default kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clipboard", "clip", "c":
		return KindClipboard, nil
	case "primary", "p":
		return KindPrimary, nil
	default:
		return 0, fmt.Errorf("unknown selection kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid selection kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Clip is a single remembered clipboard payload.
//
// ID is assigned by the manager and is only meaningful within one daemon
// run; persisted clips carry ID 0.
type Clip struct {
	ID        uint64    `json:"id" yaml:"id" cbor:"id"`
	Data      []byte    `json:"data" yaml:"-" cbor:"data"`
	Kind      Kind      `json:"kind" yaml:"kind" cbor:"kind"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp" cbor:"timestamp"`
}

// Clone returns a copy of c that shares no memory with it.
func (c Clip) Clone() Clip {
	c.Data = append([]byte(nil), c.Data...)
	return c
}

// Text returns the payload as a string.
func (c Clip) Text() string { return string(c.Data) }

// Preview returns a single-line rendering of the payload, at most width
// runes long. Newlines and tabs are shown escaped; invalid UTF-8 is
// reported by size. A width of 0 disables truncation.
func (c Clip) Preview(width int) string {
	if !utf8.Valid(c.Data) {
		return fmt.Sprintf("<binary %d bytes>", len(c.Data))
	}
	s := strings.NewReplacer("\r", `\r`, "\n", `\n`, "\t", `\t`).Replace(string(c.Data))
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
