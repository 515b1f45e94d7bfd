// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
)

// httpClientNode issues one HTTP request over a freshly dialed connection
// and exposes the response body as a byte-stream read side, per spec.md
// §4.9's http-client entry (grounded on httpconn.go/httpbody.go).
type httpClientNode struct {
	addr       addrProperty
	url        string
	method     string
	useTLS     bool
	serverName string
	datagram   bool // expose the response body datagram-wise instead of as a byte stream
}

func (n *httpClientNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	address, err := n.addr.resolve(ctx, rc)
	if err != nil {
		return Bipipe{}, err
	}
	rawConn, err := connectPipeline(ctx, rc, "tcp", address)
	if err != nil {
		return Bipipe{}, fmt.Errorf("http-client: %w", err)
	}

	hc, err := n.wrapHTTPConn(ctx, rc, rawConn)
	if err != nil {
		rawConn.Close()
		return Bipipe{}, fmt.Errorf("http-client: %w", err)
	}

	method := n.method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, n.url, nil)
	if err != nil {
		hc.Close()
		return Bipipe{}, fmt.Errorf("http-client: %w", err)
	}
	resp, err := hc.RoundTrip(req)
	if err != nil {
		hc.Close()
		return Bipipe{}, fmt.Errorf("http-client: %w", err)
	}
	if n.datagram {
		return Bipipe{
			ReadFraming:    FramingDatagram,
			DatagramReader: newHTTPBodyDatagramSource(resp.Body, rc.Config.Logger),
		}, nil
	}
	return Bipipe{
		ReadFraming: FramingByteStream,
		ByteReader:  resp.Body,
	}, nil
}

func (n *httpClientNode) wrapHTTPConn(ctx context.Context, rc *RunContext, rawConn net.Conn) (*HTTPConn, error) {
	if !n.useTLS {
		return NewHTTPConnFuncPlain(rc.Config, rc.Config.Logger).Call(ctx, rawConn)
	}
	tlsConfig := &tls.Config{ServerName: n.serverName}
	op := NewTLSHandshakeFunc(rc.Config, tlsConfig, rc.Config.Logger)
	tconn, err := op.Call(ctx, rawConn)
	if err != nil {
		return nil, err
	}
	return NewHTTPConnFuncTLS(rc.Config, rc.Config.Logger).Call(ctx, tconn)
}

func httpClientSchema() PropertySchema {
	return PropertySchema{
		Entries: []PropertyEntry{
			{Name: "address", Kind: KindSocketAddr, Required: true, Help: "server address to connect to"},
			{Name: "url", Kind: KindString, Required: true, Help: "request URL"},
			{Name: "method", Kind: KindString, Required: false, Help: "HTTP method (default GET)"},
			{Name: "tls", Kind: KindBool, Required: false, Help: "use TLS (HTTPS)"},
			{Name: "server-name", Kind: KindHostOrIP, Required: false, Help: "TLS server name indication"},
			{Name: "datagram", Kind: KindBool, Required: false, Help: "expose the response body datagram-wise"},
		},
	}
}

// bufResponseWriter is a minimal, buffering [http.ResponseWriter] used to
// collect an http-server handler's output before serializing it with
// [*http.Response.Write], per spec.md §4.9's http-server entry.
type bufResponseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufResponseWriter() *bufResponseWriter {
	return &bufResponseWriter{header: make(http.Header)}
}

func (w *bufResponseWriter) Header() http.Header { return w.header }

func (w *bufResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *bufResponseWriter) WriteHeader(status int) { w.status = status }

// HTTPHandlerFunc serves one request over an accepted http-server
// connection. The default, installed when a class instance's Handler
// field is left nil, answers every request with an empty 200.
type HTTPHandlerFunc func(w http.ResponseWriter, r *http.Request)

func defaultHTTPHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// httpServerNode terminates HTTP/1.1 requests over an inner byte-stream
// listener (tcp-listen, optionally wrapped in tls), answering each with
// Handler, per spec.md §4.9's http-server entry. Unlike most node
// classes, http-server fully serves the connection itself: it never
// hands a bipipe on to [ServerModeContext.Accepted].
type httpServerNode struct {
	inner   NodeID
	Handler HTTPHandlerFunc
}

func (n *httpServerNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	handler := n.Handler
	if handler == nil {
		handler = defaultHTTPHandler
	}
	innerSMC := &ServerModeContext{
		Accepted: func(ctx context.Context, conn Bipipe) error {
			return n.serveOne(ctx, conn, handler)
		},
	}
	_, err := rc.Tree.RunNode(ctx, n.inner, rc, innerSMC)
	return Bipipe{}, err
}

func (n *httpServerNode) serveOne(ctx context.Context, conn Bipipe, handler HTTPHandlerFunc) error {
	if conn.ReadFraming != FramingByteStream || conn.WriteFraming != FramingByteStream {
		return fmt.Errorf("%w: http-server requires a byte-stream inner connection", ErrFramingMismatch)
	}
	netConn := &bipipeConn{r: conn.ByteReader, w: conn.ByteWriter}
	req, err := http.ReadRequest(bufio.NewReader(netConn))
	if err != nil {
		netConn.Close()
		return nil // malformed request: drop the connection, nothing more to serve
	}
	req = req.WithContext(ctx)

	w := newBufResponseWriter()
	handler(w, req)
	if w.status == 0 {
		w.status = http.StatusOK
	}
	resp := &http.Response{
		StatusCode:    w.status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        w.header,
		Body:          io.NopCloser(&w.body),
		ContentLength: int64(w.body.Len()),
	}
	if err := resp.Write(netConn); err != nil {
		netConn.Close()
		return nil
	}
	return netConn.Close()
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"http-client"},
		HumanName: "one-shot HTTP client",
		Schema:    httpClientSchema(),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &httpClientNode{addr: newAddrProperty(props)}
			if v, ok := props.Get("url"); ok {
				n.url, _ = v.String()
			}
			if v, ok := props.Get("method"); ok {
				n.method, _ = v.String()
			}
			if v, ok := props.Get("tls"); ok {
				n.useTLS, _ = v.Bool()
			}
			if v, ok := props.Get("server-name"); ok {
				n.serverName, _ = v.HostOrIP()
			}
			if v, ok := props.Get("datagram"); ok {
				n.datagram, _ = v.Bool()
			}
			return n
		},
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"http-server"},
		HumanName: "HTTP/1.1 request handler",
		Schema:    innerNodeSchema("byte-stream listener to serve HTTP over"),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &httpServerNode{}
			if v, ok := props.Get("inner"); ok {
				n.inner, _ = v.NodeRef()
			}
			return n
		},
	})
}
