// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import "fmt"

// PropertyEntry describes one named property in a [PropertySchema].
type PropertyEntry struct {
	// Name is the property's external name, as used by [Tree.Set].
	Name string

	// Kind is the value kind this property accepts.
	Kind Kind

	// Required marks the property as mandatory; [Tree.Finalize] rejects a
	// node that lacks it with [ErrMissingRequired].
	Required bool

	// Help is a one-line description surfaced through
	// [Registry.EnumerateCLIOptions] for an external CLI front end.
	Help string
}

// PropertySchema is the ordered list of properties a node class accepts,
// plus the optional inner and array slots spec.md §4.1 describes.
//
// Schemas are built once, at class-registration time, and never mutated
// afterwards; [Registry.MustRegisterClass] treats a schema as immutable.
type PropertySchema struct {
	// Entries lists every named, non-variadic property in declaration order.
	Entries []PropertyEntry

	// Inner names the single entry (if any) that also accepts a bare
	// positional value via [Tree.SetPositional] — the common case of a
	// node that wraps exactly one other node.
	Inner string

	// Array, if non-empty, names the variadic tail property that collects
	// further positional values (or repeated named values) once Inner is
	// filled or absent.
	Array string

	// ArrayKind is the value kind accepted by the array property. Ignored
	// if Array == "".
	ArrayKind Kind
}

// entry returns the schema entry named name, or nil.
func (s *PropertySchema) entry(name string) *PropertyEntry {
	for i := range s.Entries {
		if s.Entries[i].Name == name {
			return &s.Entries[i]
		}
	}
	return nil
}

// PropertyBag is a flat, name-addressed store of property values plus one
// variadic array slot, per spec.md §4.1. A zero PropertyBag is not usable;
// construct with [NewPropertyBag].
type PropertyBag struct {
	named map[string]Value
	order []string
	array []Value
}

// NewPropertyBag returns an empty, ready-to-use [PropertyBag].
func NewPropertyBag() *PropertyBag {
	return &PropertyBag{named: make(map[string]Value)}
}

// Get returns the named property's value, or false if unset.
func (b *PropertyBag) Get(name string) (Value, bool) {
	v, ok := b.named[name]
	return v, ok
}

// Array returns the accumulated array-property values, in append order.
func (b *PropertyBag) Array() []Value {
	return b.array
}

// Names returns the set property names, in first-set order.
func (b *PropertyBag) Names() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

func (b *PropertyBag) setNamed(name string, v Value) {
	if _, exists := b.named[name]; !exists {
		b.order = append(b.order, name)
	}
	b.named[name] = v
}

func (b *PropertyBag) appendArray(v Value) {
	b.array = append(b.array, v)
}

// Equal reports whether b and other hold the same named and array values.
// Used by [EnumValue.Equal] to compare nested field bags.
func (b *PropertyBag) Equal(other *PropertyBag) bool {
	if b == nil || other == nil {
		return b == other
	}
	if len(b.named) != len(other.named) || len(b.array) != len(other.array) {
		return false
	}
	for name, v := range b.named {
		ov, ok := other.named[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	for i, v := range b.array {
		if !v.Equal(other.array[i]) {
			return false
		}
	}
	return true
}

// setByName implements spec.md §4.1's "Set value by name": it rejects
// unknown names, kind mismatches, and a second scalar set, and appends to
// the array property when name matches it.
func (b *PropertyBag) setByName(schema *PropertySchema, name string, v Value) error {
	if schema.Array != "" && name == schema.Array {
		if v.Kind() != schema.ArrayKind {
			return fmt.Errorf("%w: property %q wants %s, got %s",
				ErrWrongKind, name, schema.ArrayKind, v.Kind())
		}
		b.appendArray(v)
		return nil
	}

	entry := schema.entry(name)
	if entry == nil {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if entry.Kind != v.Kind() {
		return fmt.Errorf("%w: property %q wants %s, got %s",
			ErrWrongKind, name, entry.Kind, v.Kind())
	}
	if _, exists := b.named[name]; exists {
		return fmt.Errorf("%w: property %q already set", ErrSchema, name)
	}
	b.setNamed(name, v)
	return nil
}

// setPositional implements spec.md §4.1's "Set positional value": it
// targets the inner slot if present and unset, else the array property.
func (b *PropertyBag) setPositional(schema *PropertySchema, v Value) error {
	if schema.Inner != "" {
		if _, exists := b.named[schema.Inner]; !exists {
			entry := schema.entry(schema.Inner)
			if entry != nil && entry.Kind != v.Kind() {
				return fmt.Errorf("%w: inner property %q wants %s, got %s",
					ErrWrongKind, schema.Inner, entry.Kind, v.Kind())
			}
			b.setNamed(schema.Inner, v)
			return nil
		}
	}
	if schema.Array != "" {
		if v.Kind() != schema.ArrayKind {
			return fmt.Errorf("%w: array property %q wants %s, got %s",
				ErrWrongKind, schema.Array, schema.ArrayKind, v.Kind())
		}
		b.appendArray(v)
		return nil
	}
	return fmt.Errorf("%w: class accepts no positional value", ErrSchema)
}

// validate checks that every required entry is present and every set
// value still matches its declared kind (defensive: setByName already
// enforces this, but a schema built unusually — e.g. by a future caller
// constructing a PropertyBag directly — should not silently pass).
func (b *PropertyBag) validate(schema *PropertySchema) error {
	for _, entry := range schema.Entries {
		v, ok := b.named[entry.Name]
		if !ok {
			if entry.Required {
				return fmt.Errorf("%w: %q", ErrMissingRequired, entry.Name)
			}
			continue
		}
		if v.Kind() != entry.Kind {
			return fmt.Errorf("%w: property %q wants %s, got %s",
				ErrWrongKind, entry.Name, entry.Kind, v.Kind())
		}
	}
	return nil
}
