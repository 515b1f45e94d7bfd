// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Validator runs after parsing and macro expansion, with the arena
// visible, enabling cross-node checks (e.g. "inner must be bytestream
// capable"), per spec.md §4.1/§4.5.
type Validator func(tree *Tree, id NodeID, props *PropertyBag) error

// Factory builds the runnable [Node] for a class instance from its fully
// parsed, validated [PropertyBag], per spec.md §4.3's Validate phase. id
// is the node's own identifier, e.g. for a class that re-enters the tree
// to run a child node it holds by [NodeID].
type Factory func(id NodeID, props *PropertyBag) Node

// ClassDescriptor is what the [Registry] stores for one node class name,
// per spec.md §4.2.
type ClassDescriptor struct {
	// Names lists every alias this class is registered under (e.g. "tcp"
	// and "tcp-connect" for the same descriptor).
	Names []string

	// HumanName is a short, human-readable class name for diagnostics.
	HumanName string

	// Schema is this class's immutable property schema.
	Schema PropertySchema

	// Validate runs class-level validation; may be nil.
	Validate Validator

	// New constructs a fresh [Node] implementation once the class's
	// properties are parsed and validated.
	New Factory

	// DataOnly marks a class whose nodes can only be read via property
	// accessors, never run, per spec.md §4.3 ("Data-only means it may
	// only be read from").
	DataOnly bool
}

// Macro is a class whose only operation is expanding to a subtree, per
// spec.md §4.2/§4.3.
type Macro interface {
	// Expand is called with the arena and the macro node's already-parsed
	// properties; it inserts new nodes and returns the identifier that
	// should be substituted for the macro node everywhere it is
	// referenced.
	Expand(tree *Tree, id NodeID, props *PropertyBag) (NodeID, error)
}

// MacroFunc adapts a function to [Macro].
type MacroFunc func(tree *Tree, id NodeID, props *PropertyBag) (NodeID, error)

func (f MacroFunc) Expand(tree *Tree, id NodeID, props *PropertyBag) (NodeID, error) {
	return f(tree, id, props)
}

// MacroDescriptor is what the [Registry] stores for one macro class name.
type MacroDescriptor struct {
	Names     []string
	HumanName string
	Schema    PropertySchema
	Macro     Macro
}

// Registry maps class/macro names to descriptors, per spec.md §4.2.
// Registration is case-insensitive and rejects duplicates. The zero value
// is not usable; construct with [NewRegistry].
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*ClassDescriptor
	macros  map[string]*MacroDescriptor
	// classOrder lists every registered class descriptor once, in
	// registration order, for iteration in [Registry.EnumerateCLIOptions].
	classOrder []*ClassDescriptor
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*ClassDescriptor),
		macros:  make(map[string]*MacroDescriptor),
	}
}

func normalizeName(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// RegisterClass registers desc under every name in desc.Names. It fails if
// any of those names (case-insensitively) is already registered as either
// a class or a macro.
func (r *Registry) RegisterClass(desc *ClassDescriptor) error {
	if len(desc.Names) == 0 {
		return fmt.Errorf("%w: class has no names", ErrSchemaError)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range desc.Names {
		key := normalizeName(name)
		if _, ok := r.classes[key]; ok {
			return fmt.Errorf("%w: class %q already registered", ErrSchemaError, name)
		}
		if _, ok := r.macros[key]; ok {
			return fmt.Errorf("%w: %q already registered as a macro", ErrSchemaError, name)
		}
	}
	for _, name := range desc.Names {
		r.classes[normalizeName(name)] = desc
	}
	r.classOrder = append(r.classOrder, desc)
	return nil
}

// MustRegisterClass is [Registry.RegisterClass] that panics on error. Node
// class files call this from init(), where a registration conflict is a
// programming error, not a runtime condition to recover from.
func (r *Registry) MustRegisterClass(desc *ClassDescriptor) {
	if err := r.RegisterClass(desc); err != nil {
		panic(err)
	}
}

// RegisterMacro registers desc under every name in desc.Names, with the
// same duplicate-rejection rules as [Registry.RegisterClass].
func (r *Registry) RegisterMacro(desc *MacroDescriptor) error {
	if len(desc.Names) == 0 {
		return fmt.Errorf("%w: macro has no names", ErrSchemaError)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range desc.Names {
		key := normalizeName(name)
		if _, ok := r.classes[key]; ok {
			return fmt.Errorf("%w: %q already registered as a class", ErrSchemaError, name)
		}
		if _, ok := r.macros[key]; ok {
			return fmt.Errorf("%w: macro %q already registered", ErrSchemaError, name)
		}
	}
	for _, name := range desc.Names {
		r.macros[normalizeName(name)] = desc
	}
	return nil
}

// MustRegisterMacro is [Registry.RegisterMacro] that panics on error.
func (r *Registry) MustRegisterMacro(desc *MacroDescriptor) {
	if err := r.RegisterMacro(desc); err != nil {
		panic(err)
	}
}

// LookupResult is the outcome of [Registry.Lookup].
type LookupResult struct {
	Class *ClassDescriptor
	Macro *MacroDescriptor
}

// Lookup resolves name to a class descriptor, a macro descriptor, or
// neither, per spec.md §4.2.
func (r *Registry) Lookup(name string) (LookupResult, bool) {
	key := normalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.classes[key]; ok {
		return LookupResult{Class: c}, true
	}
	if m, ok := r.macros[key]; ok {
		return LookupResult{Macro: m}, true
	}
	return LookupResult{}, false
}

// CLIOption is one entry in [Registry.EnumerateCLIOptions]'s output, per
// spec.md §4.2/§6.
type CLIOption struct {
	LongName          string
	Kind              Kind
	OriginatingClass  string
	Help              string
}

// EnumerateCLIOptions walks every registered class's schema and returns a
// deduplicated list of options for an external CLI front end, per
// spec.md §4.2/§6. Deduplication is by (LongName, Kind): two classes that
// happen to share a property name and kind (e.g. "timeout" on several
// classes) surface once, attributed to the first class that declared it in
// registration order.
func (r *Registry) EnumerateCLIOptions() []CLIOption {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type dedupKey struct {
		name string
		kind Kind
	}
	seen := make(map[dedupKey]bool)
	var out []CLIOption

	for _, desc := range r.classOrder {
		className := desc.Names[0]
		for _, entry := range desc.Schema.Entries {
			key := dedupKey{entry.Name, entry.Kind}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, CLIOption{
				LongName:         entry.Name,
				Kind:             entry.Kind,
				OriginatingClass: className,
				Help:             entry.Help,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LongName < out[j].LongName })
	return out
}
