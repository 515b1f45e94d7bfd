// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// bipipeAddr is the placeholder [net.Addr] used by [bipipeConn], whose
// underlying transport (an arbitrary byte-stream bipipe) has no socket
// address of its own.
type bipipeAddr struct{}

func (bipipeAddr) Network() string { return "bipipe" }
func (bipipeAddr) String() string  { return "bipipe" }

// bipipeConn adapts a byte-stream [Bipipe]'s reader/writer pair into a
// [net.Conn], the shape [TLSEngine.Client] requires. Deadlines are
// accepted but not enforced: cancellation of an inner node's bipipe is
// the copy engine's job (see copy.go), not this adapter's.
type bipipeConn struct {
	r io.Reader
	w ByteWriteCloser
}

func (c *bipipeConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *bipipeConn) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c *bipipeConn) Close() error                { return c.w.CloseWrite() }
func (c *bipipeConn) LocalAddr() net.Addr         { return bipipeAddr{} }
func (c *bipipeConn) RemoteAddr() net.Addr        { return bipipeAddr{} }
func (c *bipipeConn) SetDeadline(t time.Time) error      { return nil }
func (c *bipipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *bipipeConn) SetWriteDeadline(t time.Time) error { return nil }

// tlsNode wraps a byte-stream inner node's bipipe with a client TLS
// handshake, per spec.md §4.9's tls entry and §4.4's wrapper composition
// rule ("read the inner's Bipipe, convert only the parts it transforms").
type tlsNode struct {
	inner              NodeID
	serverName         string
	insecureSkipVerify bool
}

func (n *tlsNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	innerBp, err := rc.Tree.RunNode(ctx, n.inner, rc, nil)
	if err != nil {
		return Bipipe{}, err
	}
	if innerBp.ReadFraming != FramingByteStream || innerBp.WriteFraming != FramingByteStream {
		return Bipipe{}, fmt.Errorf("%w: tls requires a byte-stream inner node", ErrFramingMismatch)
	}
	conn := &bipipeConn{r: innerBp.ByteReader, w: innerBp.ByteWriter}
	tlsConfig := &tls.Config{
		ServerName:         n.serverName,
		InsecureSkipVerify: n.insecureSkipVerify,
	}
	op := NewTLSHandshakeFunc(rc.Config, tlsConfig, rc.Config.Logger)
	tconn, err := op.Call(ctx, conn)
	if err != nil {
		return Bipipe{}, fmt.Errorf("%w: %v", ErrTLSFailed, err)
	}
	return netConnBipipe(tconn, innerBp.Closing), nil
}

func tlsSchema() PropertySchema {
	return PropertySchema{
		Inner: "inner",
		Entries: []PropertyEntry{
			{Name: "inner", Kind: KindNodeRef, Required: true, Help: "byte-stream node to wrap with TLS"},
			{Name: "server-name", Kind: KindHostOrIP, Required: false, Help: "TLS server name indication"},
			{Name: "insecure", Kind: KindBool, Required: false, Help: "skip certificate verification"},
		},
	}
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"tls"},
		HumanName: "TLS client wrapper",
		Schema:    tlsSchema(),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &tlsNode{}
			if v, ok := props.Get("inner"); ok {
				n.inner, _ = v.NodeRef()
			}
			if v, ok := props.Get("server-name"); ok {
				n.serverName, _ = v.HostOrIP()
			}
			if v, ok := props.Get("insecure"); ok {
				n.insecureSkipVerify, _ = v.Bool()
			}
			return n
		},
	})
}
