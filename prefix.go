// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import "io"

// prefixReader prepends a fixed byte slice to an inner [io.Reader], per
// spec.md §4.8's design note ("model it as a small state machine"). Once
// the prefix has been fully drained, every further Read delegates
// straight to inner.
type prefixReader struct {
	prefix []byte
	off    int
	inner  io.Reader
}

// newPrefixReader returns a reader that yields prefix before inner's own
// bytes. A nil or empty prefix makes newPrefixReader equivalent to inner
// itself.
func newPrefixReader(prefix []byte, inner io.Reader) io.Reader {
	if len(prefix) == 0 {
		return inner
	}
	return &prefixReader{prefix: prefix, inner: inner}
}

func (r *prefixReader) Read(p []byte) (int, error) {
	if r.off < len(r.prefix) {
		n := copy(p, r.prefix[r.off:])
		r.off += n
		return n, nil
	}
	return r.inner.Read(p)
}
