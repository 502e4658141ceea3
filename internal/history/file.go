package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"go.klb.dev/clipstash/internal/clip"
)

// The history file is a single protobuf message:
//
//	message History {
//	  uint32 version = 1;
//	  repeated Clip clips = 2;
//	  uint32 count = 3;   // written last; a snapshot without it is truncated
//	}
//	message Clip {
//	  bytes  data = 1;
//	  uint32 kind = 2;
//	  int64  timestamp_unix_nano = 3;
//	}
const (
	fieldVersion protowire.Number = 1
	fieldClips   protowire.Number = 2
	fieldCount   protowire.Number = 3

	fieldClipData      protowire.Number = 1
	fieldClipKind      protowire.Number = 2
	fieldClipTimestamp protowire.Number = 3

	formatVersion = 1
)

// FileStore keeps the history in a single protobuf-encoded file.
type FileStore struct {
	path string
}

// NewFile returns a FileStore backed by path. The file is not touched
// until the first Load or Save.
func NewFile(path string) *FileStore {
	return &FileStore{path: path}
}

// Path implements Store.
func (s *FileStore) Path() string { return s.path }

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// Load implements Store. A missing or empty file is an empty history.
func (s *FileStore) Load() ([]clip.Clip, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	clips, err := decodeHistory(data)
	if err != nil {
		return nil, fmt.Errorf("history: parse %s: %w", s.path, err)
	}
	return clips, nil
}

// Save implements Store.
func (s *FileStore) Save(clips []clip.Clip) error {
	if err := writeFileAtomic(s.path, encodeHistory(clips), 0o600); err != nil {
		return fmt.Errorf("history: save %s: %w", s.path, err)
	}
	return nil
}

func encodeHistory(clips []clip.Clip) []byte {
	b := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, formatVersion)

	var msg []byte
	for _, c := range clips {
		msg = msg[:0]
		msg = protowire.AppendTag(msg, fieldClipData, protowire.BytesType)
		msg = protowire.AppendBytes(msg, c.Data)
		msg = protowire.AppendTag(msg, fieldClipKind, protowire.VarintType)
		msg = protowire.AppendVarint(msg, uint64(c.Kind))
		if !c.Timestamp.IsZero() {
			msg = protowire.AppendTag(msg, fieldClipTimestamp, protowire.VarintType)
			msg = protowire.AppendVarint(msg, uint64(c.Timestamp.UnixNano()))
		}
		b = protowire.AppendTag(b, fieldClips, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
	}

	b = protowire.AppendTag(b, fieldCount, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(len(clips)))
}

func decodeHistory(b []byte) ([]clip.Clip, error) {
	var (
		clips      []clip.Clip
		version    uint64
		count      uint64
		sawVersion bool
		sawCount   bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			version, sawVersion = v, true
			b = b[n:]
		case num == fieldClips && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			c, err := decodeClip(raw)
			if err != nil {
				return nil, err
			}
			clips = append(clips, c)
			b = b[n:]
		case num == fieldCount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			count, sawCount = v, true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	switch {
	case !sawVersion:
		return nil, corrupt(errors.New("missing version"))
	case version > formatVersion:
		return nil, corrupt(fmt.Errorf("unsupported version %d", version))
	case !sawCount:
		return nil, corrupt(errors.New("truncated snapshot"))
	case count != uint64(len(clips)):
		return nil, corrupt(fmt.Errorf("snapshot holds %d clips, trailer says %d", len(clips), count))
	}
	return clips, nil
}

func decodeClip(b []byte) (clip.Clip, error) {
	var c clip.Clip
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return clip.Clip{}, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldClipData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return clip.Clip{}, corrupt(protowire.ParseError(n))
			}
			c.Data = append([]byte(nil), v...)
			b = b[n:]
		case num == fieldClipKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return clip.Clip{}, corrupt(protowire.ParseError(n))
			}
			c.Kind = clip.Kind(v)
			if v > 0xff || !c.Kind.Valid() {
				return clip.Clip{}, corrupt(fmt.Errorf("unknown selection kind %d", v))
			}
			b = b[n:]
		case num == fieldClipTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return clip.Clip{}, corrupt(protowire.ParseError(n))
			}
			c.Timestamp = time.Unix(0, int64(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return clip.Clip{}, corrupt(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if len(c.Data) == 0 {
		return clip.Clip{}, corrupt(errors.New("clip without data"))
	}
	return c, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// writeFileAtomic writes data to a temporary file next to path, syncs it
// and renames it into place. On failure the temporary file is removed and
// path is left untouched.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmp := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := file.Chmod(perm); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("chmod temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}

	// The new content is in place; a failure here only means the rename
	// may not survive power loss.
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync directory %s: %w", dir, err)
	}
	return nil
}

var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	serr := d.Sync()
	if cerr := d.Close(); serr == nil {
		serr = cerr
	}
	return serr
}
