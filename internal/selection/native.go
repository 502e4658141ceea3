package selection

import (
	"fmt"
	"sync"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/clipstash/internal/clip"
)

var (
	nativeOnce sync.Once
	nativeErr  error
)

// initNative is deferred until a native backend is requested so that CLI
// commands which never touch the clipboard do not initialise it.
func initNative() error {
	nativeOnce.Do(func() { nativeErr = clipboard.Init() })
	return nativeErr
}

type nativeBackend struct {
	watchCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func openNative(kind clip.Kind, interval time.Duration) (Backend, error) {
	if kind != clip.KindClipboard {
		return nil, fmt.Errorf("%w: native backend has no %s selection", ErrUnavailable, kind)
	}
	if err := initNative(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	b := &nativeBackend{
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.poll(interval, newChangeDetector())
	return b, nil
}

func (b *nativeBackend) Name() string { return "native clipboard (poll)" }

func (b *nativeBackend) poll(interval time.Duration, changed func() bool) {
	defer close(b.watchCh)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			if changed() {
				notify(b.watchCh)
			}
		}
	}
}

func (b *nativeBackend) Read() ([]byte, error) {
	return clipboard.Read(clipboard.FmtText), nil
}

func (b *nativeBackend) Write(data []byte) error {
	clipboard.Write(clipboard.FmtText, data)
	return nil
}

func (b *nativeBackend) Watch() <-chan struct{} { return b.watchCh }

func (b *nativeBackend) Close() { b.closeOnce.Do(func() { close(b.done) }) }
