// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingByteWriteCloser lets bipipeConn tests exercise Write/Close
// without a real net.Conn.
type recordingByteWriteCloser struct {
	bytes.Buffer
	closeWriteCalled bool
}

func (w *recordingByteWriteCloser) CloseWrite() error {
	w.closeWriteCalled = true
	return nil
}

// bipipeConn adapts a plain reader/writer pair into a net.Conn: Read,
// Write, and Close forward to the wrapped sides, and deadline calls are
// accepted no-ops.
func TestBipipeConn(t *testing.T) {
	r := bytes.NewBufferString("payload")
	w := &recordingByteWriteCloser{}
	conn := &bipipeConn{r: r, w: w}

	buf := make([]byte, 7)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))

	_, err = conn.Write([]byte("reply"))
	require.NoError(t, err)
	assert.Equal(t, "reply", w.String())

	require.NoError(t, conn.Close())
	assert.True(t, w.closeWriteCalled)

	assert.Equal(t, "bipipe", conn.LocalAddr().String())
	assert.Equal(t, "bipipe", conn.RemoteAddr().Network())
	assert.NoError(t, conn.SetDeadline(time.Time{}))
	assert.NoError(t, conn.SetReadDeadline(time.Time{}))
	assert.NoError(t, conn.SetWriteDeadline(time.Time{}))
}

// tls rejects a non-byte-stream inner node.
func TestTLSNodeRequiresByteStreamInner(t *testing.T) {
	tree := newTestTree()
	innerID := buildNode(t, tree, "devnull", map[string]Value{
		"kind": NewStringValue("datagram"),
	})
	id := buildNode(t, tree, "tls", map[string]Value{
		"inner": NewNodeRefValue(innerID),
	})
	finishTree(t, tree)
	rc := newTestRunContext(t, tree)

	_, err := tree.RunNode(context.Background(), id, rc, nil)
	assert.ErrorIs(t, err, ErrFramingMismatch)
}

// tlsSchema names inner as the positional slot plus server-name/insecure.
func TestTLSSchema(t *testing.T) {
	schema := tlsSchema()
	assert.Equal(t, "inner", schema.Inner)
	require.Len(t, schema.Entries, 3)
	assert.Equal(t, "inner", schema.Entries[0].Name)
	assert.Equal(t, KindNodeRef, schema.Entries[0].Kind)
}
