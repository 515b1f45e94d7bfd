// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsConnDatagramAdapter adapts a [*websocket.Conn] to
// [DatagramSource]/[DatagramSink]: one WebSocket message is one datagram,
// per spec.md §4.9's ws-client/ws-server entries.
type wsConnDatagramAdapter struct {
	conn *websocket.Conn
}

func (a *wsConnDatagramAdapter) ReadDatagram(ctx context.Context) (Datagram, error) {
	_, data, err := a.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return Datagram(data), nil
}

func (a *wsConnDatagramAdapter) WriteDatagram(ctx context.Context, d Datagram) error {
	return a.conn.WriteMessage(websocket.BinaryMessage, d)
}

func (a *wsConnDatagramAdapter) Drop() error {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	a.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	return a.conn.Close()
}

// wsClientNode dials a WebSocket endpoint, per spec.md §4.9's
// ws-client/wsc entry. Dialing goes through [Config.Dialer] so the
// configured test double or alternative dialer is honored the same way
// connect.go's [ConnectFunc] honors it.
type wsClientNode struct {
	url string
}

func (n *wsClientNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	dialer := &websocket.Dialer{NetDialContext: rc.Config.Dialer.DialContext}
	conn, resp, err := dialer.DialContext(ctx, n.url, nil)
	if err != nil {
		detail := "dial failed"
		if resp != nil {
			detail = fmt.Sprintf("dial failed: status %d", resp.StatusCode)
		}
		return Bipipe{}, &WebSocketUpgradeFailedError{Detail: detail, Err: err}
	}
	adapter := &wsConnDatagramAdapter{conn: conn}
	return Bipipe{
		ReadFraming:    FramingDatagram,
		WriteFraming:   FramingDatagram,
		DatagramReader: adapter,
		DatagramWriter: adapter,
	}, nil
}

// hijackResponseWriter lets [websocket.Upgrader.Upgrade] take over a
// connection that did not arrive through a stdlib [http.Server]: it
// implements [http.Hijacker] by handing back the already-open bipipe
// connection itself.
type hijackResponseWriter struct {
	*bufResponseWriter
	conn *bipipeConn
	rw   *bufio.ReadWriter
}

func (w *hijackResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.conn, w.rw, nil
}

// wsServerNode upgrades each connection from an inner byte-stream
// listener to WebSocket, per spec.md §4.9's ws-server/ws-listen entry.
// Like http-server, it drives the inner node's accept loop itself and
// re-signals the outer [ServerModeContext] once per successful upgrade.
type wsServerNode struct {
	inner NodeID
}

func (n *wsServerNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	if smc == nil {
		return Bipipe{}, fmt.Errorf("%w: ws-server requires server mode", ErrInternalInvariant)
	}
	upgrader := &websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	innerSMC := &ServerModeContext{
		Accepted: func(ctx context.Context, conn Bipipe) error {
			return n.upgradeOne(ctx, rc, conn, upgrader, smc)
		},
	}
	_, err := rc.Tree.RunNode(ctx, n.inner, rc, innerSMC)
	return Bipipe{}, err
}

func (n *wsServerNode) upgradeOne(ctx context.Context, rc *RunContext, conn Bipipe, upgrader *websocket.Upgrader, outer *ServerModeContext) error {
	if conn.ReadFraming != FramingByteStream || conn.WriteFraming != FramingByteStream {
		return fmt.Errorf("%w: ws-server requires a byte-stream inner connection", ErrFramingMismatch)
	}
	netConn := &bipipeConn{r: conn.ByteReader, w: conn.ByteWriter}
	br := bufio.NewReader(netConn)
	req, err := http.ReadRequest(br)
	if err != nil {
		netConn.Close()
		return nil
	}
	req = req.WithContext(ctx)

	acceptKey := ComputeWebSocketAcceptKey(req.Header.Get("Sec-WebSocket-Key"))
	rc.Config.Logger.Debug("wsUpgradeAcceptKey", "key", acceptKey)

	hw := &hijackResponseWriter{
		bufResponseWriter: newBufResponseWriter(),
		conn:              netConn,
		rw:                bufio.NewReadWriter(br, bufio.NewWriter(netConn)),
	}
	wsConn, err := upgrader.Upgrade(hw, req, nil)
	if err != nil {
		return nil // gorilla wrote its error response into hw's buffered writer, which is never sent
	}
	adapter := &wsConnDatagramAdapter{conn: wsConn}
	bp := Bipipe{
		ReadFraming:    FramingDatagram,
		WriteFraming:   FramingDatagram,
		DatagramReader: adapter,
		DatagramWriter: adapter,
	}
	return outer.Accepted(ctx, bp)
}

func wsClientSchema() PropertySchema {
	return PropertySchema{
		Entries: []PropertyEntry{
			{Name: "url", Kind: KindString, Required: true, Help: "ws:// or wss:// endpoint URL"},
		},
	}
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"ws-client", "wsc"},
		HumanName: "WebSocket client",
		Schema:    wsClientSchema(),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &wsClientNode{}
			if v, ok := props.Get("url"); ok {
				n.url, _ = v.String()
			}
			return n
		},
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"ws-server", "ws-listen"},
		HumanName: "WebSocket server",
		Schema:    innerNodeSchema("byte-stream listener to serve the WebSocket upgrade over"),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &wsServerNode{}
			if v, ok := props.Get("inner"); ok {
				n.inner, _ = v.NodeRef()
			}
			return n
		},
	})
}
