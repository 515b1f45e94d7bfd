// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"fmt"
)

// NodeID is an opaque, stable-for-the-lifetime-of-the-tree identifier, per
// spec.md §3. Callers never construct one directly; they come from
// [Tree.NewNode] or from a [Value] of [KindNodeRef].
type NodeID int

// NodeState is a placed node's position in the lifecycle spec.md §3/§4.5
// define. A node advances monotonically; see [Tree] for the invariant.
type NodeState int

const (
	StateParsing NodeState = iota
	StateParsed
	StateDataOnly
	StateRunnable
)

func (s NodeState) String() string {
	switch s {
	case StateParsing:
		return "parsing"
	case StateParsed:
		return "parsed"
	case StateDataOnly:
		return "data-only"
	case StateRunnable:
		return "runnable"
	default:
		return "unknown"
	}
}

// PlacedNode is one arena slot: a class (or, before expansion, a macro)
// plus its accumulated properties and current [NodeState].
type PlacedNode struct {
	id        NodeID
	class     *ClassDescriptor
	macro     *MacroDescriptor
	props     *PropertyBag
	state     NodeState
	node      Node
	expanded  bool // true once a macro node's Expand has run
}

// ID returns the node's identifier.
func (p *PlacedNode) ID() NodeID { return p.id }

// State returns the node's current lifecycle state.
func (p *PlacedNode) State() NodeState { return p.state }

// Class returns the node's class descriptor, or nil if this is an
// unexpanded macro node.
func (p *PlacedNode) Class() *ClassDescriptor { return p.class }

// Properties returns the node's property bag. The bag is safe to read at
// any state; it must not be mutated once [PlacedNode.State] is at least
// [StateParsed], per spec.md §3 invariant 3.
func (p *PlacedNode) Properties() *PropertyBag { return p.props }

func (p *PlacedNode) schema() *PropertySchema {
	if p.class != nil {
		return &p.class.Schema
	}
	if p.macro != nil {
		return &p.macro.Schema
	}
	return &PropertySchema{}
}

// Tree is a typed arena mapping [NodeID] to [PlacedNode], per spec.md §3.
// The arena owns every node; consumers hold identifiers. Construct with
// [NewTree].
type Tree struct {
	registry *Registry
	nodes    map[NodeID]*PlacedNode
	order    []NodeID
	nextID   NodeID
}

// NewTree returns an empty [Tree] bound to registry, which supplies every
// class and macro name the tree's nodes may reference.
func NewTree(registry *Registry) *Tree {
	return &Tree{registry: registry, nodes: make(map[NodeID]*PlacedNode)}
}

// Registry returns the tree's bound class/macro registry.
func (t *Tree) Registry() *Registry { return t.registry }

// Node returns the placed node for id, or false if id is not (or no
// longer) present in the arena.
func (t *Tree) Node(id NodeID) (*PlacedNode, bool) {
	pn, ok := t.nodes[id]
	return pn, ok
}

// NewNode looks up className in the tree's registry and inserts a fresh,
// parsing-in-progress node, per spec.md §6's tree.new_node. It fails with
// [ErrUnknownClass] if className names neither a class nor a macro.
func (t *Tree) NewNode(className string) (NodeID, error) {
	res, ok := t.registry.Lookup(className)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownClass, className)
	}
	id := t.nextID
	t.nextID++
	pn := &PlacedNode{id: id, props: NewPropertyBag(), state: StateParsing}
	if res.Class != nil {
		pn.class = res.Class
	} else {
		pn.macro = res.Macro
	}
	t.nodes[id] = pn
	t.order = append(t.order, id)
	return id, nil
}

func (t *Tree) mustGetParsing(id NodeID) (*PlacedNode, error) {
	pn, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrDanglingReference, id)
	}
	if pn.state != StateParsing {
		return nil, WithNodeID(id, fmt.Errorf(
			"%w: node is %s, not parsing", ErrInternalInvariant, pn.state))
	}
	return pn, nil
}

// Set assigns a named property on id, per spec.md §4.1/§6's tree.set. It
// fails if id is unknown, not in the parsing state, name is not in the
// class's schema (and is not the array property), the value's kind
// mismatches, or a scalar property is set twice.
func (t *Tree) Set(id NodeID, name string, v Value) error {
	pn, err := t.mustGetParsing(id)
	if err != nil {
		return err
	}
	if err := pn.props.setByName(pn.schema(), name, v); err != nil {
		return WithNodeID(id, err)
	}
	return nil
}

// SetPositional assigns a positional property on id, per spec.md
// §4.1/§6's tree.set_positional: it targets the inner slot if present and
// unset, else the array property.
func (t *Tree) SetPositional(id NodeID, v Value) error {
	pn, err := t.mustGetParsing(id)
	if err != nil {
		return err
	}
	if err := pn.props.setPositional(pn.schema(), v); err != nil {
		return WithNodeID(id, err)
	}
	return nil
}

// Finalize schema-validates id's accumulated properties and transitions it
// from parsing to parsed, per spec.md §4.5's Parse phase. It does not run
// class-level [Validator]s or check child references; those happen in
// [Tree.ResolveReferences] and [Tree.ClassifyAndValidate].
func (t *Tree) Finalize(id NodeID) error {
	pn, err := t.mustGetParsing(id)
	if err != nil {
		return err
	}
	if err := pn.props.validate(pn.schema()); err != nil {
		return WithNodeID(id, err)
	}
	pn.state = StateParsed
	return nil
}

// visitNodeRefs calls fn for every [KindNodeRef] value reachable from bag,
// including nested enum fields, and recurses through nested bags.
func visitNodeRefs(bag *PropertyBag, fn func(NodeID) error) error {
	visit := func(v Value) error {
		switch v.Kind() {
		case KindNodeRef:
			ref, _ := v.NodeRef()
			return fn(ref)
		case KindEnum:
			ev, _ := v.Enum()
			if ev.Fields != nil {
				return visitNodeRefs(ev.Fields, fn)
			}
		}
		return nil
	}
	for _, name := range bag.Names() {
		v, _ := bag.Get(name)
		if err := visit(v); err != nil {
			return err
		}
	}
	for _, v := range bag.Array() {
		if err := visit(v); err != nil {
			return err
		}
	}
	return nil
}

// rewriteNodeRefs rewrites every [KindNodeRef] value in bag equal to from
// into to, including nested enum fields.
func rewriteNodeRefs(bag *PropertyBag, from, to NodeID) {
	rewrite := func(v Value) Value {
		switch v.Kind() {
		case KindNodeRef:
			ref, _ := v.NodeRef()
			if ref == from {
				return NewNodeRefValue(to)
			}
		case KindEnum:
			ev, _ := v.Enum()
			if ev.Fields != nil {
				rewriteNodeRefs(ev.Fields, from, to)
			}
		}
		return v
	}
	for _, name := range bag.Names() {
		v, _ := bag.Get(name)
		bag.setNamed(name, rewrite(v))
	}
	for i, v := range bag.array {
		bag.array[i] = rewrite(v)
	}
}

// ResolveReferences checks every child-reference property in the tree
// against the arena, per spec.md §4.5's Resolve phase / invariant 1. Call
// after every node has been finalized.
func (t *Tree) ResolveReferences() error {
	for _, id := range t.order {
		pn := t.nodes[id]
		err := visitNodeRefs(pn.props, func(ref NodeID) error {
			if _, ok := t.nodes[ref]; !ok {
				return fmt.Errorf("%w: #%d", ErrDanglingReference, ref)
			}
			return nil
		})
		if err != nil {
			return WithNodeID(id, err)
		}
	}
	return nil
}

const maxMacroExpansions = 64

// ExpandMacros runs macro expansion to a fixpoint, per spec.md §4.3/§4.5.
// roots are pointers to external NodeID variables (typically a session's
// left/right root fields) that must also be rewritten if a root node turns
// out to be a macro.
//
// Expansion fails with [ErrMacroExpansionCycle] if it has not reached a
// fixpoint within [maxMacroExpansions] passes, which bounds genuine cycles
// without false-positiving on deep but finite macro chains.
func (t *Tree) ExpandMacros(roots ...*NodeID) error {
	for iter := 0; ; iter++ {
		if iter >= maxMacroExpansions {
			return ErrMacroExpansionCycle
		}
		changed := false
		// Snapshot t.order: Expand may append new nodes, which must be
		// visited on a later pass, not this one (they have not had a
		// chance to themselves be substituted into yet).
		ids := append([]NodeID(nil), t.order...)
		for _, id := range ids {
			pn := t.nodes[id]
			if pn.macro == nil || pn.expanded {
				continue
			}
			sub, err := pn.macro.Macro.Expand(t, id, pn.props)
			if err != nil {
				return WithNodeID(id, err)
			}
			pn.expanded = true
			t.substitute(id, sub, roots)
			changed = true
		}
		if !changed {
			return nil
		}
	}
}

// substitute rewrites every reference to from (across every node's
// properties and every root pointer) into to.
func (t *Tree) substitute(from, to NodeID, roots []*NodeID) {
	for _, id := range t.order {
		rewriteNodeRefs(t.nodes[id].props, from, to)
	}
	for _, r := range roots {
		if r != nil && *r == from {
			*r = to
		}
	}
}

// ClassifyAndValidate runs class-level validators and classifies every
// parsed node as runnable or data-only, per spec.md §4.3/§4.5's Validate
// phase. Call after [Tree.ExpandMacros].
func (t *Tree) ClassifyAndValidate() error {
	for _, id := range t.order {
		pn := t.nodes[id]
		if pn.macro != nil && !pn.expanded {
			return WithNodeID(id, fmt.Errorf("%w: unexpanded macro node", ErrInternalInvariant))
		}
		if pn.class == nil {
			continue // substituted-away macro node; no longer referenced
		}
		if pn.class.Validate != nil {
			if err := pn.class.Validate(t, id, pn.props); err != nil {
				return WithNodeID(id, err)
			}
		}
		if pn.class.DataOnly {
			pn.state = StateDataOnly
			continue
		}
		pn.node = pn.class.New(id, pn.props)
		pn.state = StateRunnable
	}
	return nil
}

// NewInstance constructs a fresh [Node] for id's class and properties,
// bypassing the cached singleton [Tree.RunNode] reuses across
// activations. The spawner node class uses this to give each upstream
// request an unshared instance of a templated inner node, per spec.md
// §4.9's spawner/request-spawner entry.
func (t *Tree) NewInstance(id NodeID) (Node, error) {
	pn, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrDanglingReference, id)
	}
	if pn.class == nil || pn.state != StateRunnable {
		return nil, WithNodeID(id, fmt.Errorf(
			"%w: node is not a runnable class instance", ErrInternalInvariant))
	}
	return pn.class.New(pn.id, pn.props), nil
}

// RunNode invokes id's [Node.Run]. It fails with [ErrPurelyDataNode] if id
// is data-only, per spec.md §4.3/§4.5.
func (t *Tree) RunNode(ctx context.Context, id NodeID, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	pn, ok := t.nodes[id]
	if !ok {
		return Bipipe{}, fmt.Errorf("%w: #%d", ErrDanglingReference, id)
	}
	if pn.state == StateDataOnly {
		return Bipipe{}, WithNodeID(id, ErrPurelyDataNode)
	}
	if pn.state != StateRunnable || pn.node == nil {
		return Bipipe{}, WithNodeID(id, fmt.Errorf(
			"%w: node is %s, not runnable", ErrInternalInvariant, pn.state))
	}
	bp, err := pn.node.Run(ctx, rc, smc)
	if err != nil {
		return Bipipe{}, WithNodeID(id, err)
	}
	return bp, nil
}
