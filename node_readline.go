// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"bufio"
	"context"
	"io"
	"os"
	"runtime"
)

// readlineSource reads newline-terminated input from stdin on its own,
// locked OS thread, per spec.md §4.9's readline entry ("own dedicated OS
// thread"): on some platforms line editing and terminal I/O behave best
// when pinned to one thread for the process's lifetime.
type readlineSource struct {
	lines chan Datagram
	err   chan error
}

func newReadlineSource() *readlineSource {
	s := &readlineSource{lines: make(chan Datagram), err: make(chan error, 1)}
	go s.run()
	return s
}

func (s *readlineSource) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		s.lines <- Datagram(append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		s.err <- err
	} else {
		s.err <- io.EOF
	}
	close(s.lines)
}

func (s *readlineSource) ReadDatagram(ctx context.Context) (Datagram, error) {
	select {
	case d, ok := <-s.lines:
		if ok {
			return d, nil
		}
		select {
		case err := <-s.err:
			return nil, err
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readlineSink writes one line per datagram to stdout.
type readlineSink struct{}

func (readlineSink) WriteDatagram(ctx context.Context, d Datagram) error {
	_, err := os.Stdout.Write(append(append([]byte(nil), d...), '\n'))
	return err
}

func (readlineSink) Drop() error { return nil }

// readlineNode exposes line-buffered terminal input/output as a datagram
// bipipe, per spec.md §4.9's readline entry.
type readlineNode struct{}

func (readlineNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	return Bipipe{
		ReadFraming:    FramingDatagram,
		WriteFraming:   FramingDatagram,
		DatagramReader: newReadlineSource(),
		DatagramWriter: readlineSink{},
	}, nil
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"readline"},
		HumanName: "line-buffered terminal I/O",
		New:       func(id NodeID, props *PropertyBag) Node { return readlineNode{} },
	})
}
