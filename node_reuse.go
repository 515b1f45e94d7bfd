// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// broadcastHub fans one published [Datagram] out to every subscriber, per
// spec.md §4.9's reuse/broadcast entry: "first placement creates the
// hub, later placements attach to it" (globals.go's [Globals.GetOrCreate]
// implements that placement rule; broadcastHub implements the fan-out
// itself).
type broadcastHub struct {
	mu   sync.Mutex
	subs map[int]chan Datagram
	next int
}

func newBroadcastHub() *broadcastHub {
	return &broadcastHub{subs: make(map[int]chan Datagram)}
}

func (h *broadcastHub) subscribe() (int, chan Datagram) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Datagram, 64)
	h.subs[id] = ch
	return id, ch
}

func (h *broadcastHub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// publish fans d out to every current subscriber. A subscriber whose
// inbound queue is full drops the message rather than blocking the
// publisher, matching the lossy delivery a broadcast bus implies.
func (h *broadcastHub) publish(d Datagram) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- d:
		default:
		}
	}
}

// hubDatagramSource reads one subscriber's fanned-out messages.
type hubDatagramSource struct {
	ch chan Datagram
}

func (s *hubDatagramSource) ReadDatagram(ctx context.Context) (Datagram, error) {
	select {
	case d, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// hubDatagramSink publishes each written datagram to every subscriber.
type hubDatagramSink struct {
	hub *broadcastHub
}

func (s *hubDatagramSink) WriteDatagram(ctx context.Context, d Datagram) error {
	s.hub.publish(d)
	return nil
}

func (s *hubDatagramSink) Drop() error { return nil }

// hubByteSource adapts a subscriber's message channel into an
// [io.Reader]: each published chunk becomes one Read-sized unit, spliced
// across Read calls as needed.
type hubByteSource struct {
	ch  chan Datagram
	buf []byte
}

func (s *hubByteSource) Read(p []byte) (int, error) {
	for len(s.buf) == 0 {
		b, ok := <-s.ch
		if !ok {
			return 0, io.EOF
		}
		s.buf = b
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// hubByteWriter publishes each Write call's bytes as one chunk.
type hubByteWriter struct {
	hub *broadcastHub
}

func (w hubByteWriter) Write(p []byte) (int, error) {
	w.hub.publish(Datagram(append([]byte(nil), p...)))
	return len(p), nil
}

func (w hubByteWriter) CloseWrite() error { return nil }

// reuseNode attaches to (or creates) a named [broadcastHub] in the
// session's [Globals] bag, per spec.md §4.9's reuse/broadcast entry.
type reuseNode struct {
	name string
	kind string // "byte" or "datagram"
}

func (n *reuseNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	if n.name == "" {
		return Bipipe{}, fmt.Errorf("%w: reuse requires a non-empty name", ErrSchemaError)
	}
	hub := rc.Globals.GetOrCreate(n.name, func() any { return newBroadcastHub() }).(*broadcastHub)
	id, ch := hub.subscribe()
	go func() {
		<-ctx.Done()
		hub.unsubscribe(id)
	}()

	if n.kind == "byte" {
		return Bipipe{
			ReadFraming:  FramingByteStream,
			WriteFraming: FramingByteStream,
			ByteReader:   &hubByteSource{ch: ch},
			ByteWriter:   hubByteWriter{hub: hub},
		}, nil
	}
	return Bipipe{
		ReadFraming:    FramingDatagram,
		WriteFraming:   FramingDatagram,
		DatagramReader: &hubDatagramSource{ch: ch},
		DatagramWriter: &hubDatagramSink{hub: hub},
	}, nil
}

func reuseSchema() PropertySchema {
	return PropertySchema{
		Entries: []PropertyEntry{
			{Name: "name", Kind: KindString, Required: true, Help: "shared hub name"},
			{Name: "kind", Kind: KindString, Required: false, Help: "byte or datagram (default datagram)"},
		},
	}
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"reuse", "broadcast"},
		HumanName: "shared named broadcast hub",
		Schema:    reuseSchema(),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &reuseNode{}
			if v, ok := props.Get("name"); ok {
				n.name, _ = v.String()
			}
			if v, ok := props.Get("kind"); ok {
				n.kind, _ = v.String()
			}
			return n
		},
	})
}
