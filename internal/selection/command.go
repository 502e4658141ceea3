package selection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"go.klb.dev/clipstash/internal/clip"
)

const commandTimeout = 2 * time.Second

// tool describes the external programs that read and write one selection.
type tool struct {
	name  string
	read  []string
	write []string
	// empty reports whether a failed read only means the selection is empty.
	empty func(stderr string) bool
}

func waylandTool(kind clip.Kind) tool {
	t := tool{
		name:  "wl-clipboard",
		read:  []string{"wl-paste", "--no-newline"},
		write: []string{"wl-copy"},
		empty: func(stderr string) bool {
			return strings.Contains(stderr, "Nothing is copied") || strings.Contains(stderr, "No selection")
		},
	}
	if kind == clip.KindPrimary {
		t.read = append(t.read, "--primary")
		t.write = append(t.write, "--primary")
	}
	return t
}

func xclipTool(kind clip.Kind) tool {
	sel := kind.String()
	return tool{
		name:  "xclip",
		read:  []string{"xclip", "-selection", sel, "-o"},
		write: []string{"xclip", "-selection", sel, "-i"},
		empty: func(stderr string) bool { return strings.Contains(stderr, "target STRING not available") },
	}
}

func xselTool(kind clip.Kind) tool {
	flag := "--" + kind.String()
	return tool{
		name:  "xsel",
		read:  []string{"xsel", flag, "--output"},
		write: []string{"xsel", flag, "--input"},
		empty: func(string) bool { return false },
	}
}

func openWayland(kind clip.Kind, interval time.Duration) (Backend, error) {
	return openCommand(waylandTool(kind), interval)
}

func openX11(kind clip.Kind, interval time.Duration) (Backend, error) {
	b, err := openCommand(xclipTool(kind), interval)
	if err == nil {
		return b, nil
	}
	if b, err2 := openCommand(xselTool(kind), interval); err2 == nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w (xsel also unavailable)", err)
}

type commandBackend struct {
	tool      tool
	watchCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func openCommand(t tool, interval time.Duration) (Backend, error) {
	for _, argv := range [][]string{t.read, t.write} {
		if _, err := exec.LookPath(argv[0]); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, argv[0], err)
		}
	}
	b := &commandBackend{
		tool:    t,
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.poll(interval)
	return b, nil
}

func (b *commandBackend) Name() string { return b.tool.name + " (poll)" }

// poll signals on every content change and on every failed read so that
// the reader observes the failure itself.
func (b *commandBackend) poll(interval time.Duration) {
	defer close(b.watchCh)
	t := time.NewTicker(interval)
	defer t.Stop()

	var last uint64
	if data, err := b.Read(); err == nil {
		last = xxh3.Hash(data)
	}
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			data, err := b.Read()
			if err != nil {
				notify(b.watchCh)
				continue
			}
			if h := xxh3.Hash(data); h != last {
				last = h
				notify(b.watchCh)
			}
		}
	}
}

func (b *commandBackend) Read() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.tool.read[0], b.tool.read[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && b.tool.empty(stderr.String()) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w: %s", b.tool.read[0], err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, nil
	}
	return stdout.Bytes(), nil
}

func (b *commandBackend) Write(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// The writers fork a child that keeps owning the selection. No output
	// pipes are attached so Run returns as soon as the parent exits.
	cmd := exec.CommandContext(ctx, b.tool.write[0], b.tool.write[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", b.tool.write[0], err)
	}
	return nil
}

func (b *commandBackend) Watch() <-chan struct{} { return b.watchCh }

func (b *commandBackend) Close() { b.closeOnce.Do(func() { close(b.done) }) }
