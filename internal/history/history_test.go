package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.klb.dev/clipstash/internal/clip"
)

func sampleClips() []clip.Clip {
	base := time.Unix(1700000000, 123456789)
	return []clip.Clip{
		{ID: 9, Data: []byte("newest"), Kind: clip.KindPrimary, Timestamp: base.Add(2 * time.Second)},
		{ID: 8, Data: []byte("multi\nline\ttext"), Kind: clip.KindClipboard, Timestamp: base.Add(time.Second)},
		{ID: 7, Data: []byte{0x00, 0xff, 0x10}, Kind: clip.KindClipboard, Timestamp: base},
	}
}

func assertSameHistory(t *testing.T, got, want []clip.Clip) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("loaded %d clips, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i].Data) != string(want[i].Data) {
			t.Errorf("clip %d data = %q, want %q", i, got[i].Data, want[i].Data)
		}
		if got[i].Kind != want[i].Kind {
			t.Errorf("clip %d kind = %v, want %v", i, got[i].Kind, want[i].Kind)
		}
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("clip %d timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
		if got[i].ID != 0 {
			t.Errorf("clip %d carries persisted id %d", i, got[i].ID)
		}
	}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	stores := map[string]Store{}
	for _, d := range []Driver{DriverFile, DriverSQLite} {
		s, err := Open(d, filepath.Join(dir, string(d), "history"))
		if err != nil {
			t.Fatalf("Open(%s): %v", d, err)
		}
		t.Cleanup(func() { s.Close() })
		stores[string(d)] = s
	}
	return stores
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleClips()
			if err := s.Save(want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertSameHistory(t, got, want)

			// A second save replaces rather than appends.
			if err := s.Save(want[:1]); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err = s.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertSameHistory(t, got, want[:1])

			if err := s.Save(nil); err != nil {
				t.Fatalf("Save(nil): %v", err)
			}
			if got, _ := s.Load(); len(got) != 0 {
				t.Fatalf("Load after empty save = %d clips", len(got))
			}
		})
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := NewFile(filepath.Join(t.TempDir(), "absent"))
	clips, err := s.Load()
	if err != nil || len(clips) != 0 {
		t.Fatalf("Load() = %v, %v; want empty, nil", clips, err)
	}
}

func TestLoadGarbageIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	if err := os.WriteFile(path, []byte("this is not a history file"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewFile(path).Load()
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load() error = %v, want ErrCorrupt", err)
	}
}

func TestTruncatedSnapshotIsCorrupt(t *testing.T) {
	full := encodeHistory(sampleClips())
	for n := 1; n < len(full); n++ {
		if _, err := decodeHistory(full[:n]); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("prefix of %d/%d bytes decoded without ErrCorrupt (err=%v)", n, len(full), err)
		}
	}
	if _, err := decodeHistory(full); err != nil {
		t.Fatalf("full snapshot: %v", err)
	}
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	b := encodeHistory(sampleClips()[:1])
	// field 15, varint 1
	b = append(b, 15<<3|0, 1)
	clips, err := decodeHistory(b)
	if err != nil {
		t.Fatalf("decode with unknown field: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("decoded %d clips", len(clips))
	}
}

func TestSaveLeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(filepath.Join(dir, "history"))
	for i := 0; i < 3; i++ {
		if err := s.Save(sampleClips()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want 1", len(entries))
	}
}

func TestFailedSaveKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history")
	s := NewFile(path)
	want := sampleClips()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Renaming a file over a non-empty directory fails on every platform.
	blocked := NewFile(filepath.Join(dir, "blocked"))
	if err := os.MkdirAll(filepath.Join(dir, "blocked", "child"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := blocked.Save(want); err == nil {
		t.Fatal("Save over a directory succeeded")
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameHistory(t, got, want)
}

func TestDirectorySyncFailureIsReported(t *testing.T) {
	boom := errors.New("fsync failed")
	prev := syncDir
	syncDir = func(string) error { return boom }
	t.Cleanup(func() { syncDir = prev })

	s := NewFile(filepath.Join(t.TempDir(), "history"))
	want := sampleClips()
	if err := s.Save(want); !errors.Is(err, boom) {
		t.Fatalf("Save = %v, want the directory sync error", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameHistory(t, got, want)
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{"": DriverFile, "FILE": DriverFile, "sqlite": DriverSQLite} {
		got, err := ParseDriver(in)
		if err != nil || got != want {
			t.Errorf("ParseDriver(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDriver("bolt"); err == nil {
		t.Error("ParseDriver accepted an unknown driver")
	}
}
