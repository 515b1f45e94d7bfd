// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import "context"

// spawnerNode instantiates inner fresh on every activation instead of
// reusing the tree's cached singleton, per spec.md §4.9's
// spawner/request-spawner entry: each upstream request gets its own,
// unshared copy of the templated node rather than one shared across every
// connection.
type spawnerNode struct {
	inner NodeID
}

func (n *spawnerNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	node, err := rc.Tree.NewInstance(n.inner)
	if err != nil {
		return Bipipe{}, err
	}
	return node.Run(ctx, rc, smc)
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"spawner", "request-spawner"},
		HumanName: "fresh-instance-per-request template",
		Schema:    innerNodeSchema("template node to instantiate fresh for each request"),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &spawnerNode{}
			if v, ok := props.Get("inner"); ok {
				n.inner, _ = v.NodeRef()
			}
			return n
		},
	})
}
