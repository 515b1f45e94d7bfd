// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"io"
	"log/slog"
)

// bodyAdapterChunkSize bounds a single read from an HTTP body surfaced as
// a datagram source. HTTP bodies carry no message boundaries of their
// own, so each chunk is an artifact of this adapter, not of the wire
// protocol; spec.md §4.9's http-client/http-server entries note the body
// is "exposed datagram-wise, one chunk per read".
const bodyAdapterChunkSize = 32 * 1024

// httpBodyDatagramSource adapts an HTTP response/request body into a
// [DatagramSource], logging each chunk's size at Debug, following the
// lazy per-I/O logging style of httpBodyWrap in httpbody.go.
type httpBodyDatagramSource struct {
	body   io.ReadCloser
	logger SLogger
}

func newHTTPBodyDatagramSource(body io.ReadCloser, logger SLogger) DatagramSource {
	return &httpBodyDatagramSource{body: body, logger: logger}
}

func (s *httpBodyDatagramSource) ReadDatagram(ctx context.Context) (Datagram, error) {
	buf := make([]byte, bodyAdapterChunkSize)
	n, err := s.body.Read(buf)
	if n > 0 {
		s.logger.Debug("httpBodyDatagramChunk", slog.Int("size", n))
		// A Reader may return n > 0 alongside a non-nil error (including
		// io.EOF) on the same call; hand back this chunk first and let
		// the next ReadDatagram call observe the error on an empty read,
		// per io.Reader's documented contract.
		return Datagram(buf[:n]), nil
	}
	if err != nil {
		return nil, err
	}
	return Datagram(buf[:n]), nil
}

// httpBodyDatagramSink adapts an HTTP request/response body writer into a
// [DatagramSink]. Drop closes the underlying writer if it is an
// [io.Closer], half-closing the body the way [Bipipe]'s datagram
// contract expects.
type httpBodyDatagramSink struct {
	body   io.Writer
	logger SLogger
}

func newHTTPBodyDatagramSink(body io.Writer, logger SLogger) DatagramSink {
	return &httpBodyDatagramSink{body: body, logger: logger}
}

func (s *httpBodyDatagramSink) WriteDatagram(ctx context.Context, d Datagram) error {
	if len(d) > 0 {
		if _, err := s.body.Write(d); err != nil {
			return err
		}
	}
	s.logger.Debug("httpBodyDatagramChunk", slog.Int("size", len(d)))
	return nil
}

func (s *httpBodyDatagramSink) Drop() error {
	if c, ok := s.body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
