// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"fmt"
	"net"
)

// udpConnectNode dials a connected UDP socket, per spec.md §4.9's
// udp/udp-connect entry. A connected UDP socket's Read/Write already
// round-trip one datagram per call, so [connDatagramAdapter] needs no
// further framing logic.
type udpConnectNode struct {
	addr addrProperty
}

func (n *udpConnectNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	address, err := n.addr.resolve(ctx, rc)
	if err != nil {
		return Bipipe{}, err
	}
	conn, err := connectPipeline(ctx, rc, "udp", address)
	if err != nil {
		return Bipipe{}, fmt.Errorf("udp-connect: %w", err)
	}
	adapter := &connDatagramAdapter{conn: conn}
	return Bipipe{
		ReadFraming:    FramingDatagram,
		WriteFraming:   FramingDatagram,
		DatagramReader: adapter,
		DatagramWriter: adapter,
	}, nil
}

// udpPeerSink writes one datagram to a specific remote peer over a shared
// [net.PacketConn], the per-peer side of udp-listen's demultiplexing.
type udpPeerSink struct {
	pc   net.PacketConn
	peer net.Addr
}

func (s *udpPeerSink) WriteDatagram(ctx context.Context, d Datagram) error {
	_, err := s.pc.WriteTo(d, s.peer)
	return err
}

func (s *udpPeerSink) Drop() error { return nil }

// udpPeerSource delivers datagrams demultiplexed by [udpListenNode]'s
// accept loop for one specific peer.
type udpPeerSource struct {
	datagrams chan Datagram
	done      chan struct{}
}

func (s *udpPeerSource) ReadDatagram(ctx context.Context) (Datagram, error) {
	select {
	case d, ok := <-s.datagrams:
		if !ok {
			return nil, errUDPPeerClosed
		}
		return d, nil
	case <-s.done:
		return nil, errUDPPeerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var errUDPPeerClosed = fmt.Errorf("%w: udp peer session closed", ErrCancelled)

// udpListenNode accepts datagrams on a bound address and demuxes them by
// source address into one virtual connection per peer, per spec.md
// §4.9's udp-listen entry ("demuxes by peer address"). A peer's first
// observed datagram triggers [ServerModeContext.Accepted]; subsequent
// datagrams from the same address are routed to that peer's
// [udpPeerSource].
type udpListenNode struct {
	addr         addrProperty
	listenPacket packetListenFunc
}

func (n *udpListenNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	if smc == nil {
		return Bipipe{}, fmt.Errorf("%w: udp-listen requires server mode", ErrInternalInvariant)
	}
	address, err := n.addr.resolve(ctx, rc)
	if err != nil {
		return Bipipe{}, err
	}
	listenPacket := n.listenPacket
	if listenPacket == nil {
		listenPacket = defaultPacketListenFunc
	}
	pc, err := listenPacket(ctx, "udp", address.String())
	if err != nil {
		return Bipipe{}, fmt.Errorf("udp-listen: %w", err)
	}
	defer pc.Close()

	type peerState struct {
		source *udpPeerSource
	}
	peers := make(map[string]*peerState)

	buf := make([]byte, udpMaxDatagramSize)
	for {
		n2, peerAddr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return Bipipe{}, nil
			}
			return Bipipe{}, fmt.Errorf("udp-listen: %w", err)
		}
		datagram := Datagram(append([]byte(nil), buf[:n2]...))
		key := peerAddr.String()

		ps, known := peers[key]
		if !known {
			ps = &peerState{source: &udpPeerSource{
				datagrams: make(chan Datagram, 64),
				done:      make(chan struct{}),
			}}
			peers[key] = ps
			bp := Bipipe{
				ReadFraming:    FramingDatagram,
				WriteFraming:   FramingDatagram,
				DatagramReader: ps.source,
				DatagramWriter: &udpPeerSink{pc: pc, peer: peerAddr},
				Closing:        ps.source.done,
			}
			if err := smc.Accepted(ctx, bp); err != nil {
				return Bipipe{}, err
			}
		}
		select {
		case ps.source.datagrams <- datagram:
		default: // peer's inbound queue is full; drop, matching UDP's own loss model
		}
		if ctx.Err() != nil {
			return Bipipe{}, nil
		}
	}
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"udp", "udp-connect"},
		HumanName: "UDP client socket",
		Schema:    addrSchema("remote address to connect to"),
		New: func(id NodeID, props *PropertyBag) Node {
			return &udpConnectNode{addr: newAddrProperty(props)}
		},
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"udp-listen"},
		HumanName: "UDP server socket",
		Schema:    addrSchema("local address to listen on"),
		New: func(id NodeID, props *PropertyBag) Node {
			return &udpListenNode{addr: newAddrProperty(props)}
		},
	})
}
