// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPrefixReader yields the prefix before the inner reader's own bytes.
func TestPrefixReader(t *testing.T) {
	r := newPrefixReader([]byte("pre-"), bytes.NewBufferString("inner"))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "pre-inner", string(got))
}

// an empty prefix makes newPrefixReader equivalent to the inner reader.
func TestPrefixReaderEmptyPrefix(t *testing.T) {
	inner := bytes.NewBufferString("inner")
	r := newPrefixReader(nil, inner)
	assert.Same(t, io.Reader(inner), r)
}

// the prefix is delivered even across short Read calls that split it.
func TestPrefixReaderSplitAcrossReads(t *testing.T) {
	r := newPrefixReader([]byte("abc"), bytes.NewBufferString("xyz"))

	buf := make([]byte, 2)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(buf[:n]))

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "cxyz", string(got))
}
