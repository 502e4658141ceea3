//go:build !darwin

package selection

import (
	"github.com/zeebo/xxh3"
	"golang.design/x/clipboard"
)

// newChangeDetector compares a content hash on every tick; there is no
// change counter to ask for.
func newChangeDetector() func() bool {
	last := xxh3.Hash(clipboard.Read(clipboard.FmtText))
	return func() bool {
		h := xxh3.Hash(clipboard.Read(clipboard.FmtText))
		if h == last {
			return false
		}
		last = h
		return true
	}
}
