// SPDX-License-Identifier: GPL-3.0-or-later

// Package noded is a programmable connector toolkit: it builds a live,
// bidirectional bridge between two endpoints selected from a registry of
// protocol nodes (TCP, UDP, stdio, files, HTTP client/server, WebSocket
// client/server, readline, identity/mirror/devnull transformers, request
// spawners, broadcast reusers, and DNS-over-X resolvers).
//
// # Core abstraction
//
// A pipeline is described as a tree of named nodes with typed properties.
// The tree is built externally (by a parser this package does not provide)
// through [Tree.NewNode], [Tree.Set], [Tree.SetPositional], and
// [Tree.Finalize], then turned into a [Session] with [NewSession]. Every
// runnable node class implements [Node]:
//
//	type Node interface {
//		Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error)
//	}
//
// [Bipipe] is the outcome of running a node once: an optional readable
// side, an optional writable side, and an optional closing notification.
// [Session.Run] runs the left and right roots, hands their two bipipes to
// [CopyBipipes], and updates the session's [ExitCodeTracker].
//
// # Class registry and property model
//
// Node classes register themselves with [Registry.MustRegisterClass] from an
// init(), each carrying a [PropertySchema] derived once at registration
// time. [Value] is a tagged union over the property kinds listed in
// [Kind]. A class may instead be a [Macro], which expands to a subtree
// during [Tree.ExpandMacros] rather than providing a [Node].
//
// # Ambient stack
//
// Every primitive that touches the network supports structured logging via
// [SLogger] (a [log/slog]-compatible interface, disabled by default),
// configurable error classification via [ErrClassifier], and a [Config]
// carrying the dialer, classifier, and clock used to construct them. Use
// [NewSpanID] to correlate the log events of one node activation.
//
// Connection establishment:
//   - [ConnectFunc]: dials TCP or UDP endpoints
//   - [TLSHandshakeFunc]: performs a TLS handshake over an existing connection
//   - [ObserveConnFunc]: observes connections for logging I/O operations
//   - [CancelWatchFunc]: closes a connection on context cancellation
//
// HTTP:
//   - [HTTPConn]: wraps a connection with an HTTP transport, performs round
//     trips with structured logging and transparent body observation
//
// DNS resolution:
//   - [DNSOverUDPConn], [DNSOverTCPConn], [DNSOverTLSConn], [DNSOverHTTPSConn]:
//     own a connection and expose Exchange(); wired into the registry as the
//     dns-udp/dns-tcp/dns-tls/dns-https node classes (see dnsnodes.go)
//
// Composition utilities ([Compose2] through [Compose8], [FuncAdapter],
// [Apply], [ConstFunc]) let node implementations chain
// connect→observe→cancel-watch→(tls) the way the DNS and HTTP primitives
// above are themselves assembled.
//
// # Timeout and context philosophy
//
// This package is context-transparent: operations never modify the context
// they receive. [CancelWatchFunc] binds a connection's lifetime to a
// context explicitly; without it, I/O may block past context cancellation.
//
// # Design boundaries
//
// Concrete wire formats (beyond the WebSocket accept-key computation in
// [ComputeWebSocketAcceptKey]), the external tree-description parser, a CLI
// front end, and persistent state are all out of scope. [Registry.EnumerateCLIOptions]
// exposes enough information for an external CLI to be built on top.
package noded
