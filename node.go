// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"io"
)

// Framing distinguishes the byte-stream vs. datagram nature of one side of
// a [Bipipe], per spec.md §3's Bipipe invariant.
type Framing int

const (
	// FramingAbsent means this side of the bipipe does not exist.
	FramingAbsent Framing = iota
	// FramingByteStream means this side is an [io.Reader]/[io.Writer].
	FramingByteStream
	// FramingDatagram means this side is a [DatagramSource]/[DatagramSink].
	FramingDatagram
)

func (f Framing) String() string {
	switch f {
	case FramingAbsent:
		return "absent"
	case FramingByteStream:
		return "byte-stream"
	case FramingDatagram:
		return "datagram"
	default:
		return "unknown"
	}
}

// ByteReader is a bytestream source: reads return 0, [io.EOF] on orderly
// end of stream, matching the usual [io.Reader] contract.
type ByteReader = io.Reader

// ByteWriteCloser is a bytestream sink with separate flush and shutdown
// semantics, per spec.md §4.4.
type ByteWriteCloser interface {
	io.Writer
	// CloseWrite shuts down the write side only (half-close), without
	// closing the read side or releasing the underlying resource.
	CloseWrite() error
}

// Datagram is one logical message. A zero-length Datagram is valid and
// must round-trip through the copy engine without being dropped or
// coalesced with an adjacent message, per spec.md §4.6.
type Datagram []byte

// DatagramSource is an async, lazy sequence of [Datagram] values.
type DatagramSource interface {
	// ReadDatagram returns the next message, or [io.EOF] on orderly end.
	ReadDatagram(ctx context.Context) (Datagram, error)
}

// DatagramSink accepts one [Datagram] per call.
type DatagramSink interface {
	// WriteDatagram accepts one message, returning once the peer has
	// accepted it (or an error).
	WriteDatagram(ctx context.Context, d Datagram) error
	// Drop signals a half-close of the sink side: no further datagrams
	// will be written, per spec.md §4.6's "drop signal" for datagram sinks.
	Drop() error
}

// Bipipe is the outcome of running a node once, per spec.md §3. Exactly
// one of {ReadFraming==FramingByteStream, ReadFraming==FramingDatagram,
// ReadFraming==FramingAbsent} describes the readable side, and
// symmetrically for the writable side.
type Bipipe struct {
	ReadFraming  Framing
	WriteFraming Framing

	ByteReader ByteReader
	ByteWriter ByteWriteCloser

	DatagramReader DatagramSource
	DatagramWriter DatagramSink

	// Closing fires once when the remote endpoint closes. A nil channel
	// means the node does not observe remote close on its own; wrapper
	// nodes must forward a non-nil channel from their inner bipipe
	// unchanged, per spec.md §4.4's composition rule.
	Closing <-chan struct{}
}

// IsReadAbsent reports whether this bipipe has no readable side.
func (b Bipipe) IsReadAbsent() bool { return b.ReadFraming == FramingAbsent }

// IsWriteAbsent reports whether this bipipe has no writable side.
func (b Bipipe) IsWriteAbsent() bool { return b.WriteFraming == FramingAbsent }

// ServerModeContext carries the orchestrator's "ready for the next
// connection" continuation to a listening node, per spec.md §3/§4.7. Its
// absence (a nil *ServerModeContext passed to [Node.Run]) signals
// one-shot use.
type ServerModeContext struct {
	// Accepted is called by the node once it has a fresh connection's
	// [Bipipe] wired up, handing control back to the orchestrator so it
	// can run the matching right-side root against this connection.
	//
	// The node must call Accepted once per accepted connection and must
	// not accept a further connection until Accepted returns, per
	// spec.md §4.7 ("awaits the orchestrator's signal to accept the
	// next").
	Accepted func(ctx context.Context, conn Bipipe) error
}

// RunContext is the per-activation environment passed to [Node.Run], per
// spec.md §3.
type RunContext struct {
	// Tree is the arena this node's identifier was allocated from.
	Tree *Tree

	// Globals is the process-wide shared-resource bag.
	Globals *Globals

	// Config carries the default dialer/classifier/clock/logger.
	Config *Config

	// Forward holds left-to-right parameters being filled in by the left
	// side's Run and read back by the right side's Run — e.g. HTTP
	// request headers an HTTP client observed, passed to an HTTP server
	// peer, per spec.md §3/§4.7.
	Forward *PropertyBag
}

// Node is the runtime contract every runnable node class implements, per
// spec.md §4.4.
//
// Run may suspend at any blocking call (Go has no explicit await keyword;
// "suspension point" in this codebase means a call the goroutine scheduler
// can park, per SPEC_FULL.md §5). A node that wraps an inner node must
// read the inner's Bipipe, convert only the parts it transforms, and pass
// the rest through unchanged.
type Node interface {
	Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error)
}

// NodeFunc adapts a function to [Node].
type NodeFunc func(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error)

func (f NodeFunc) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	return f(ctx, rc, smc)
}
