// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, per spec.md §7. Use [errors.Is] against these;
// node-specific detail is attached via [fmt.Errorf]'s %w wrapping or via
// [NodeError] when a [NodeID] is implicated.
var (
	ErrParseError            = errors.New("noded: parse error")
	ErrSchemaError           = errors.New("noded: schema error")
	ErrUnknownClass          = errors.New("noded: unknown class")
	ErrUnknownProperty       = errors.New("noded: unknown property")
	ErrWrongKind             = errors.New("noded: wrong kind")
	ErrMissingRequired       = errors.New("noded: missing required property")
	ErrDanglingReference     = errors.New("noded: dangling reference")
	ErrMacroExpansionCycle   = errors.New("noded: macro expansion cycle")
	ErrPurelyDataNode        = errors.New("noded: purely data node")
	ErrFramingMismatch       = errors.New("noded: framing mismatch")
	ErrConnectFailed         = errors.New("noded: connect failed")
	ErrListenFailed          = errors.New("noded: listen failed")
	ErrTLSFailed             = errors.New("noded: tls failed")
	ErrCancelled             = errors.New("noded: cancelled")
	ErrInternalInvariant     = errors.New("noded: internal invariant violated")
	ErrSchema                = ErrSchemaError // alias used internally by schema.go
)

// ProtocolError wraps a protocol-level failure with free-form detail, per
// spec.md §7's `ProtocolError{detail}`.
type ProtocolError struct {
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("noded: protocol error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("noded: protocol error: %s", e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError builds a [*ProtocolError] with the given detail string,
// optionally wrapping an underlying cause.
func NewProtocolError(detail string, cause error) *ProtocolError {
	return &ProtocolError{Detail: detail, Err: cause}
}

// WebSocketUpgradeFailedError wraps a WebSocket upgrade failure, per
// spec.md §7's `WebSocketUpgradeFailed{detail}`.
type WebSocketUpgradeFailedError struct {
	Detail string
	Err    error
}

// wsUpgradeBrokenFramingDetail is the [WebSocketUpgradeFailedError.Detail]
// value reserved for a post-upgrade broken-framing condition, per spec.md
// §6's exit code 4 ("WebSocket upgrade broken framing"). No node
// constructs this case today; it is reserved for the day a ws-server/
// ws-client node can detect a peer that completed the HTTP upgrade but
// then sent non-conforming frames.
const wsUpgradeBrokenFramingDetail = "broken framing after upgrade"

func (e *WebSocketUpgradeFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("noded: websocket upgrade failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("noded: websocket upgrade failed: %s", e.Detail)
}

func (e *WebSocketUpgradeFailedError) Unwrap() error { return e.Err }

// NodeError attaches the offending [NodeID] to an underlying error, per
// spec.md §4.5 ("Errors in each phase are reported with the offending node
// identifier").
type NodeError struct {
	ID  NodeID
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("noded: node #%d: %v", e.ID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// WithNodeID wraps err with the identifier of the node that caused it. If
// err is nil, WithNodeID returns nil.
func WithNodeID(id NodeID, err error) error {
	if err == nil {
		return nil
	}
	return &NodeError{ID: id, Err: err}
}
