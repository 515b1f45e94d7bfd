// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"fmt"
)

// tcpConnectNode dials a single TCP connection, per spec.md §4.9's
// tcp/tcp-connect entry, composing connect.go→observeconn.go→cancelwatch.go
// exactly as dnsQueryNode's exchange* methods do for the DNS transports.
type tcpConnectNode struct {
	addr addrProperty
}

func (n *tcpConnectNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	address, err := n.addr.resolve(ctx, rc)
	if err != nil {
		return Bipipe{}, err
	}
	conn, err := connectPipeline(ctx, rc, "tcp", address)
	if err != nil {
		return Bipipe{}, fmt.Errorf("tcp-connect: %w", err)
	}
	return netConnBipipe(conn, nil), nil
}

// tcpListenNode accepts TCP connections on a bound address, per spec.md
// §4.9's tcp-listen entry. Run itself drives the accept loop, calling
// [ServerModeContext.Accepted] once per connection and, per node.go's
// contract, not accepting a further one until Accepted returns.
type tcpListenNode struct {
	addr   addrProperty
	listen listenFunc
}

func (n *tcpListenNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	if smc == nil {
		return Bipipe{}, fmt.Errorf("%w: tcp-listen requires server mode", ErrInternalInvariant)
	}
	address, err := n.addr.resolve(ctx, rc)
	if err != nil {
		return Bipipe{}, err
	}
	listen := n.listen
	if listen == nil {
		listen = defaultListenFunc
	}
	ln, err := listen(ctx, "tcp", address.String())
	if err != nil {
		return Bipipe{}, fmt.Errorf("tcp-listen: %w", err)
	}
	defer ln.Close()

	observeOp := NewObserveConnFunc(rc.Config, rc.Config.Logger)
	cancelOp := NewCancelWatchFunc()
	for {
		rawConn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return Bipipe{}, nil
			}
			return Bipipe{}, fmt.Errorf("tcp-listen: %w", err)
		}
		conn, err := observeOp.Call(ctx, rawConn)
		if err != nil {
			rawConn.Close()
			continue
		}
		conn, err = cancelOp.Call(ctx, conn)
		if err != nil {
			continue
		}
		if err := smc.Accepted(ctx, netConnBipipe(conn, nil)); err != nil {
			return Bipipe{}, err
		}
		if ctx.Err() != nil {
			return Bipipe{}, nil
		}
	}
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"tcp", "tcp-connect"},
		HumanName: "TCP client connection",
		Schema:    addrSchema("remote address to connect to"),
		New: func(id NodeID, props *PropertyBag) Node {
			return &tcpConnectNode{addr: newAddrProperty(props)}
		},
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"tcp-listen"},
		HumanName: "TCP server listener",
		Schema:    addrSchema("local address to listen on"),
		New: func(id NodeID, props *PropertyBag) Node {
			return &tcpListenNode{addr: newAddrProperty(props)}
		},
	})
}
