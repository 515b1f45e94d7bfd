// SPDX-License-Identifier: GPL-3.0-or-later

package noded

// defaultRegistry is populated by every node class file's init(), the way
// the original implementation's "all nodes" crate assembles one global
// node catalogue (see DESIGN.md's class.go entry).
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide [Registry] every built-in node
// class and macro registers itself into. Front ends that need a clean
// registry (e.g. for testing a single class in isolation) should
// construct their own with [NewRegistry] instead.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
