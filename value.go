// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"fmt"
	"net/netip"
	"time"
)

// Kind identifies the dynamic type carried by a [Value].
//
// Kind queries are explicit (see [Value.Kind]), not reflective: a Value
// knows its own Kind and every accessor checks it before returning a
// payload, per the design note in spec.md §9 ("Dynamic-typed properties
// map to a tagged sum with one variant per kind").
type Kind int

const (
	KindBool Kind = iota
	KindInt64
	KindUint32
	KindUint16
	KindString
	KindBytes
	KindPath
	KindHostOrIP
	KindSocketAddr
	KindDuration
	KindNodeRef
	KindEnum
)

// String returns a human-readable name for k, used in schema errors and in
// [Registry.EnumerateCLIOptions] output.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUint32:
		return "uint32"
	case KindUint16:
		return "uint16"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindPath:
		return "path"
	case KindHostOrIP:
		return "host-or-ip"
	case KindSocketAddr:
		return "socket-address"
	case KindDuration:
		return "duration"
	case KindNodeRef:
		return "node-ref"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// EnumValue is the payload of a [KindEnum] property value: a symbolic
// variant tag plus, for variants that carry fields, a nested bag of
// properties.
//
// Comparing two EnumValues compares tag first, then fields, per spec.md §4.1.
type EnumValue struct {
	Tag    string
	Fields *PropertyBag
}

// Equal reports whether e and other denote the same variant and fields.
func (e EnumValue) Equal(other EnumValue) bool {
	if e.Tag != other.Tag {
		return false
	}
	if (e.Fields == nil) != (other.Fields == nil) {
		return false
	}
	if e.Fields == nil {
		return true
	}
	return e.Fields.Equal(other.Fields)
}

// Value is a tagged union over the property kinds listed in [Kind].
//
// Values are immutable once constructed; every "With"-less constructor
// below returns a new, fully formed Value.
type Value struct {
	kind    Kind
	boolV   bool
	int64V  int64
	uint32V uint32
	uint16V uint16
	stringV string
	bytesV  []byte
	addrV   netip.AddrPort
	durV    time.Duration
	nodeV   NodeID
	enumV   EnumValue
}

// Kind returns v's dynamic type.
func (v Value) Kind() Kind { return v.kind }

func NewBoolValue(b bool) Value         { return Value{kind: KindBool, boolV: b} }
func NewInt64Value(n int64) Value       { return Value{kind: KindInt64, int64V: n} }
func NewUint32Value(n uint32) Value     { return Value{kind: KindUint32, uint32V: n} }
func NewUint16Value(n uint16) Value     { return Value{kind: KindUint16, uint16V: n} }
func NewStringValue(s string) Value     { return Value{kind: KindString, stringV: s} }
func NewPathValue(p string) Value       { return Value{kind: KindPath, stringV: p} }
func NewHostOrIPValue(h string) Value   { return Value{kind: KindHostOrIP, stringV: h} }

// NewBytesValue returns a [KindBytes] Value. The slice is not copied;
// callers must not mutate it after construction, matching the immutability
// invariant in spec.md §3.
func NewBytesValue(b []byte) Value { return Value{kind: KindBytes, bytesV: b} }

func NewSocketAddrValue(addr netip.AddrPort) Value {
	return Value{kind: KindSocketAddr, addrV: addr}
}

func NewDurationValue(d time.Duration) Value { return Value{kind: KindDuration, durV: d} }

func NewNodeRefValue(id NodeID) Value { return Value{kind: KindNodeRef, nodeV: id} }

func NewEnumValue(e EnumValue) Value { return Value{kind: KindEnum, enumV: e} }

// wrongKind builds the error returned by every typed accessor below when
// called against a Value of a different Kind.
func (v Value) wrongKind(want Kind) error {
	return fmt.Errorf("%w: want %s, have %s", ErrWrongKind, want, v.kind)
}

func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, v.wrongKind(KindBool)
	}
	return v.boolV, nil
}

func (v Value) Int64() (int64, error) {
	if v.kind != KindInt64 {
		return 0, v.wrongKind(KindInt64)
	}
	return v.int64V, nil
}

func (v Value) Uint32() (uint32, error) {
	if v.kind != KindUint32 {
		return 0, v.wrongKind(KindUint32)
	}
	return v.uint32V, nil
}

func (v Value) Uint16() (uint16, error) {
	if v.kind != KindUint16 {
		return 0, v.wrongKind(KindUint16)
	}
	return v.uint16V, nil
}

func (v Value) String() (string, error) {
	if v.kind != KindString {
		return "", v.wrongKind(KindString)
	}
	return v.stringV, nil
}

func (v Value) Bytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, v.wrongKind(KindBytes)
	}
	return v.bytesV, nil
}

func (v Value) Path() (string, error) {
	if v.kind != KindPath {
		return "", v.wrongKind(KindPath)
	}
	return v.stringV, nil
}

func (v Value) HostOrIP() (string, error) {
	if v.kind != KindHostOrIP {
		return "", v.wrongKind(KindHostOrIP)
	}
	return v.stringV, nil
}

func (v Value) SocketAddr() (netip.AddrPort, error) {
	if v.kind != KindSocketAddr {
		return netip.AddrPort{}, v.wrongKind(KindSocketAddr)
	}
	return v.addrV, nil
}

func (v Value) Duration() (time.Duration, error) {
	if v.kind != KindDuration {
		return 0, v.wrongKind(KindDuration)
	}
	return v.durV, nil
}

func (v Value) NodeRef() (NodeID, error) {
	if v.kind != KindNodeRef {
		return 0, v.wrongKind(KindNodeRef)
	}
	return v.nodeV, nil
}

func (v Value) Enum() (EnumValue, error) {
	if v.kind != KindEnum {
		return EnumValue{}, v.wrongKind(KindEnum)
	}
	return v.enumV, nil
}

// Equal reports whether v and other have the same kind and payload. Two
// node-reference values are equal iff they name the same identifier; no
// attempt is made to resolve them against a tree.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.boolV == other.boolV
	case KindInt64:
		return v.int64V == other.int64V
	case KindUint32:
		return v.uint32V == other.uint32V
	case KindUint16:
		return v.uint16V == other.uint16V
	case KindString, KindPath, KindHostOrIP:
		return v.stringV == other.stringV
	case KindBytes:
		if len(v.bytesV) != len(other.bytesV) {
			return false
		}
		for i := range v.bytesV {
			if v.bytesV[i] != other.bytesV[i] {
				return false
			}
		}
		return true
	case KindSocketAddr:
		return v.addrV == other.addrV
	case KindDuration:
		return v.durV == other.durV
	case KindNodeRef:
		return v.nodeV == other.nodeV
	case KindEnum:
		return v.enumV.Equal(other.enumV)
	default:
		return false
	}
}
