// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import "testing"

// newTestTree returns an empty [*Tree] wired to the package's
// defaultRegistry, the same registry every node class file's init()
// populates.
func newTestTree() *Tree {
	return NewTree(defaultRegistry)
}

// newTestRunContext returns a [*RunContext] over the given tree, with a
// fresh [*Globals] and a default [*Config], suitable for exercising a
// single node's Run method in isolation.
func newTestRunContext(t *testing.T, tree *Tree) *RunContext {
	t.Helper()
	return &RunContext{
		Tree:    tree,
		Globals: NewGlobals(),
		Config:  NewConfig(),
		Forward: NewPropertyBag(),
	}
}

// buildNode creates, sets, and finalizes one node of className in tree
// with the given named properties, returning its id; [finishTree] then
// resolves and classifies the whole tree. set is a map of property name to already-constructed
// [Value]; it does not cover positional/array properties.
func buildNode(t *testing.T, tree *Tree, className string, set map[string]Value) NodeID {
	t.Helper()
	id, err := tree.NewNode(className)
	if err != nil {
		t.Fatalf("NewNode(%q): %v", className, err)
	}
	for name, v := range set {
		if err := tree.Set(id, name, v); err != nil {
			t.Fatalf("Set(%q, %q): %v", className, name, err)
		}
	}
	if err := tree.Finalize(id); err != nil {
		t.Fatalf("Finalize(%q): %v", className, err)
	}
	return id
}

// finishTree resolves references and classifies every node in tree,
// bringing every class's Node implementation into the Runnable state.
func finishTree(t *testing.T, tree *Tree) {
	t.Helper()
	if err := tree.ResolveReferences(); err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if err := tree.ExpandMacros(); err != nil {
		t.Fatalf("ExpandMacros: %v", err)
	}
	if err := tree.ClassifyAndValidate(); err != nil {
		t.Fatalf("ClassifyAndValidate: %v", err)
	}
}
