//go:build darwin

package selection

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger clipstash_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

// newChangeDetector watches the pasteboard change counter, which moves on
// every ownership change even when the content is identical.
func newChangeDetector() func() bool {
	last := C.clipstash_changeCount()
	return func() bool {
		cc := C.clipstash_changeCount()
		if cc == last {
			return false
		}
		last = cc
		return true
	}
}
