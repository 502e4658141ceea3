package selection

import (
	"errors"
	"testing"
	"time"

	"go.klb.dev/clipstash/internal/clip"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"Wayland", ModeWayland, false},
		{"x11", ModeX11, false},
		{"none", ModeNone, false},
		{"cocoa", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestOpenNoneReturnsMemory(t *testing.T) {
	b, err := Open(clip.KindPrimary, ModeNone, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()
	if _, ok := b.(*Memory); !ok {
		t.Fatalf("Open(none) = %T, want *Memory", b)
	}
}

func TestOpenWithoutDisplayIsUnavailable(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "")
	t.Setenv("DISPLAY", "")
	// The native backend may still succeed on a desktop, so only the
	// primary selection is checked.
	_, err := Open(clip.KindPrimary, ModeAuto, time.Second)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open(auto) error = %v, want ErrUnavailable", err)
	}
	if _, err := Open(clip.KindPrimary, ModeNative, time.Second); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open(native, primary) error = %v, want ErrUnavailable", err)
	}
}

func TestMemoryWatchAndRead(t *testing.T) {
	m := NewMemory(clip.KindClipboard)
	m.Set([]byte("hello"))

	select {
	case <-m.Watch():
	case <-time.After(time.Second):
		t.Fatal("Set did not signal")
	}
	got, err := m.Read()
	if err != nil || string(got) != "hello" {
		t.Fatalf("Read() = %q, %v", got, err)
	}

	if err := m.Write([]byte("mine")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w := m.Writes(); len(w) != 1 || string(w[0]) != "mine" {
		t.Fatalf("Writes() = %q", w)
	}

	boom := errors.New("boom")
	m.FailReads(boom)
	if _, err := m.Read(); !errors.Is(err, boom) {
		t.Fatalf("Read() error = %v, want boom", err)
	}
	m.FailReads(nil)

	m.Close()
	m.Close()
	if _, ok := <-m.Watch(); ok {
		// drain the buffered signal, the next receive must see the close
		if _, ok := <-m.Watch(); ok {
			t.Fatal("watch channel still open after Close")
		}
	}
	if err := m.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write after Close = %v", err)
	}
}
