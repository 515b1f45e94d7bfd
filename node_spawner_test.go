// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewInstance constructs a fresh Node value on every call, distinct from
// the cached singleton RunNode reuses for the same id.
func TestTreeNewInstance(t *testing.T) {
	tree := newTestTree()
	id := buildNode(t, tree, "mirror", nil)
	finishTree(t, tree)

	pn, ok := tree.Node(id)
	require.True(t, ok)
	cached := pn.node

	first, err := tree.NewInstance(id)
	require.NoError(t, err)
	second, err := tree.NewInstance(id)
	require.NoError(t, err)

	assert.NotSame(t, cached, first)
	assert.NotSame(t, first, second)
}

// NewInstance fails for an unknown node id.
func TestTreeNewInstanceUnknownID(t *testing.T) {
	tree := newTestTree()
	_, err := tree.NewInstance(NodeID(999))
	assert.ErrorIs(t, err, ErrDanglingReference)
}

// spawner runs a fresh instance of its templated inner node on every
// activation instead of reusing one shared instance.
func TestSpawnerNode(t *testing.T) {
	tree := newTestTree()
	innerID := buildNode(t, tree, "mirror", map[string]Value{
		"kind": NewStringValue("datagram"),
	})
	id := buildNode(t, tree, "spawner", map[string]Value{
		"inner": NewNodeRefValue(innerID),
	})
	finishTree(t, tree)
	rc := newTestRunContext(t, tree)

	ctx := context.Background()
	bp1, err := tree.RunNode(ctx, id, rc, nil)
	require.NoError(t, err)
	bp2, err := tree.RunNode(ctx, id, rc, nil)
	require.NoError(t, err)

	// Each activation got its own mirror loopback: a write on bp1's writer
	// must not be observable on bp2's reader.
	require.NoError(t, bp1.DatagramWriter.WriteDatagram(ctx, Datagram("only-on-one")))

	readCtx, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	_, err = bp2.DatagramReader.ReadDatagram(readCtx)
	assert.Error(t, err)
}
