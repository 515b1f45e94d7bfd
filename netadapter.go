// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"net"
	"net/netip"
)

// closeWriter is satisfied by [net.Conn] implementations (TCP, Unix
// stream sockets) that support a true half-close. Types that do not
// (UDP, TLS) fall back to a full [net.Conn.Close] in
// [connByteWriteCloser.CloseWrite].
type closeWriter interface {
	CloseWrite() error
}

// connByteWriteCloser adapts a [net.Conn] to [ByteWriteCloser].
type connByteWriteCloser struct {
	net.Conn
}

func (c connByteWriteCloser) CloseWrite() error {
	if cw, ok := c.Conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}

// netConnBipipe wraps an already-established, byte-framed [net.Conn] into
// a [Bipipe] with both sides present, per spec.md §4.4's generalization
// of the teacher's connection-shaped primitives into bipipe sides.
func netConnBipipe(conn net.Conn, closing <-chan struct{}) Bipipe {
	return Bipipe{
		ReadFraming:  FramingByteStream,
		WriteFraming: FramingByteStream,
		ByteReader:   conn,
		ByteWriter:   connByteWriteCloser{conn},
		Closing:      closing,
	}
}

// listenFunc abstracts [net.ListenConfig.Listen], generalizing the
// teacher's [Dialer] abstraction (connect.go) to the accept side, per
// spec.md §4.9's tcp-listen/udp-listen entries.
type listenFunc func(ctx context.Context, network, address string) (net.Listener, error)

func defaultListenFunc(ctx context.Context, network, address string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, network, address)
}

// packetListenFunc abstracts [net.ListenConfig.ListenPacket] for the
// datagram accept side (udp-listen).
type packetListenFunc func(ctx context.Context, network, address string) (net.PacketConn, error)

func defaultPacketListenFunc(ctx context.Context, network, address string) (net.PacketConn, error) {
	var lc net.ListenConfig
	return lc.ListenPacket(ctx, network, address)
}

// udpMaxDatagramSize bounds a single UDP datagram's payload, per the
// conventional safe maximum for unfragmented traffic over the public
// Internet (spec.md §4.9's udp/udp-listen entries: "one send/receive =
// one datagram").
const udpMaxDatagramSize = 65507

// connDatagramAdapter adapts a connected [net.Conn] (e.g. a dialed UDP
// socket) into a [DatagramSource]/[DatagramSink]: each Read/Write already
// round-trips exactly one datagram for a connected UDP socket, so no
// further framing is needed.
type connDatagramAdapter struct {
	conn net.Conn
}

func (a *connDatagramAdapter) ReadDatagram(ctx context.Context) (Datagram, error) {
	buf := make([]byte, udpMaxDatagramSize)
	n, err := a.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return Datagram(buf[:n]), nil
}

func (a *connDatagramAdapter) WriteDatagram(ctx context.Context, d Datagram) error {
	_, err := a.conn.Write(d)
	return err
}

func (a *connDatagramAdapter) Drop() error {
	return a.conn.Close()
}

// connectPipeline runs the teacher's dial→observe→cancel-watch
// composition (see example_dnsoverudp_test.go and friends) for network
// over address, returning the resulting [net.Conn].
func connectPipeline(ctx context.Context, rc *RunContext, network string, address netip.AddrPort) (net.Conn, error) {
	connectOp := NewConnectFunc(rc.Config, network, rc.Config.Logger)
	observeOp := NewObserveConnFunc(rc.Config, rc.Config.Logger)
	cancelOp := NewCancelWatchFunc()
	conn, err := connectOp.Call(ctx, address)
	if err != nil {
		return nil, err
	}
	conn, err = observeOp.Call(ctx, conn)
	if err != nil {
		return nil, err
	}
	return cancelOp.Call(ctx, conn)
}
