// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"fmt"
	"io"
	"os"
)

// discardWriteCloser adapts an [io.Writer] with no real half-close or
// shutdown behavior (stdout, [io.Discard]) to [ByteWriteCloser]: CloseWrite
// is a no-op, matching spec.md §4.9's stdio/devnull entries, which have no
// meaningful shutdown signal to send.
type discardWriteCloser struct {
	w io.Writer
}

func (d discardWriteCloser) Write(p []byte) (int, error) { return d.w.Write(p) }
func (d discardWriteCloser) CloseWrite() error           { return nil }

// fileWriteCloser adapts an [*os.File] to [ByteWriteCloser]; CloseWrite
// closes the file outright since a plain file has no half-close concept.
type fileWriteCloser struct {
	f *os.File
}

func (w fileWriteCloser) Write(p []byte) (int, error) { return w.f.Write(p) }
func (w fileWriteCloser) CloseWrite() error           { return w.f.Close() }

// stdioNode wraps the process's standard input/output as a one-shot byte
// bipipe, per spec.md §4.9's stdio entry (grounded on the original
// implementation's io_std peer: no Go donor exists in the teacher for a
// process-standard-streams node).
type stdioNode struct{}

func (stdioNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	return Bipipe{
		ReadFraming:  FramingByteStream,
		WriteFraming: FramingByteStream,
		ByteReader:   os.Stdin,
		ByteWriter:   discardWriteCloser{os.Stdout},
	}, nil
}

// fileMode selects which side(s) of a [fileNode]'s bipipe are present.
type fileMode string

const (
	fileModeRead      fileMode = "read"
	fileModeWrite     fileMode = "write"
	fileModeReadWrite fileMode = "readwrite"
)

// fileNode opens a filesystem path as a byte bipipe, per spec.md §4.9's
// file entry.
type fileNode struct {
	path string
	mode fileMode
}

func (n *fileNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	mode := n.mode
	if mode == "" {
		mode = fileModeReadWrite
	}
	var flag int
	switch mode {
	case fileModeRead:
		flag = os.O_RDONLY
	case fileModeWrite:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case fileModeReadWrite:
		flag = os.O_RDWR | os.O_CREATE
	default:
		return Bipipe{}, fmt.Errorf("%w: unknown file mode %q", ErrSchemaError, mode)
	}
	f, err := os.OpenFile(n.path, flag, 0o644)
	if err != nil {
		return Bipipe{}, fmt.Errorf("file: %w", err)
	}
	bp := Bipipe{}
	if mode == fileModeRead || mode == fileModeReadWrite {
		bp.ReadFraming = FramingByteStream
		bp.ByteReader = f
	}
	if mode == fileModeWrite || mode == fileModeReadWrite {
		bp.WriteFraming = FramingByteStream
		bp.ByteWriter = fileWriteCloser{f}
	}
	return bp, nil
}

func fileSchema() PropertySchema {
	return PropertySchema{
		Inner: "path",
		Entries: []PropertyEntry{
			{Name: "path", Kind: KindPath, Required: true, Help: "filesystem path to open"},
			{Name: "mode", Kind: KindString, Required: false, Help: "read, write, or readwrite (default readwrite)"},
		},
	}
}

// identityNode passes an inner node's bipipe through unchanged, per
// spec.md §4.4's composition rule and §4.9's identity entry — useful to
// give an inner node a second class name in a scenario without altering
// its framing.
type identityNode struct {
	inner NodeID
}

func (n *identityNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	return rc.Tree.RunNode(ctx, n.inner, rc, smc)
}

func innerNodeSchema(help string) PropertySchema {
	return PropertySchema{
		Inner: "inner",
		Entries: []PropertyEntry{
			{Name: "inner", Kind: KindNodeRef, Required: true, Help: help},
		},
	}
}

// datagramMirror is the datagram-framed half of mirrorNode's loopback;
// the byte-stream half uses a plain [io.Pipe] instead.
type datagramMirror struct {
	queue chan Datagram
}

func (m *datagramMirror) ReadDatagram(ctx context.Context) (Datagram, error) {
	select {
	case d, ok := <-m.queue:
		if !ok {
			return nil, io.EOF
		}
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *datagramMirror) WriteDatagram(ctx context.Context, d Datagram) error {
	select {
	case m.queue <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *datagramMirror) Drop() error {
	close(m.queue)
	return nil
}

// mirrorNode loops back whatever is written so it can be read again
// in-process, per spec.md §4.9's mirror entry — useful standing in for a
// remote peer in tests and local experimentation.
type mirrorNode struct {
	kind string // "byte" or "datagram"
}

func (n *mirrorNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	if n.kind == "datagram" {
		m := &datagramMirror{queue: make(chan Datagram, 64)}
		return Bipipe{
			ReadFraming:    FramingDatagram,
			WriteFraming:   FramingDatagram,
			DatagramReader: m,
			DatagramWriter: m,
		}, nil
	}
	pr, pw := io.Pipe()
	return Bipipe{
		ReadFraming:  FramingByteStream,
		WriteFraming: FramingByteStream,
		ByteReader:   pr,
		ByteWriter:   pipeWriteCloser{pw},
	}, nil
}

type pipeWriteCloser struct {
	w *io.PipeWriter
}

func (p pipeWriteCloser) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p pipeWriteCloser) CloseWrite() error            { return p.w.Close() }

// eofReader is an [io.Reader] that always reports end of stream, the
// read side of devnull.
type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

type devnullDatagramSource struct{}

func (devnullDatagramSource) ReadDatagram(ctx context.Context) (Datagram, error) {
	return nil, io.EOF
}

type devnullDatagramSink struct{}

func (devnullDatagramSink) WriteDatagram(ctx context.Context, d Datagram) error { return nil }
func (devnullDatagramSink) Drop() error                                        { return nil }

// devnullNode discards everything written to it and reports end of
// stream immediately on read, per spec.md §4.9's devnull entry.
type devnullNode struct {
	kind string // "byte" or "datagram"
}

func (n *devnullNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	if n.kind == "datagram" {
		return Bipipe{
			ReadFraming:    FramingDatagram,
			WriteFraming:   FramingDatagram,
			DatagramReader: devnullDatagramSource{},
			DatagramWriter: devnullDatagramSink{},
		}, nil
	}
	return Bipipe{
		ReadFraming:  FramingByteStream,
		WriteFraming: FramingByteStream,
		ByteReader:   eofReader{},
		ByteWriter:   discardWriteCloser{io.Discard},
	}, nil
}

func kindSchema(help string) PropertySchema {
	return PropertySchema{
		Entries: []PropertyEntry{
			{Name: "kind", Kind: KindString, Required: false, Help: help},
		},
	}
}

func kindFromProps(props *PropertyBag) string {
	if v, ok := props.Get("kind"); ok {
		s, _ := v.String()
		return s
	}
	return "byte"
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"stdio"},
		HumanName: "standard input/output",
		New:       func(id NodeID, props *PropertyBag) Node { return stdioNode{} },
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"file"},
		HumanName: "filesystem path",
		Schema:    fileSchema(),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &fileNode{}
			if v, ok := props.Get("path"); ok {
				n.path, _ = v.Path()
			}
			if v, ok := props.Get("mode"); ok {
				s, _ := v.String()
				n.mode = fileMode(s)
			}
			return n
		},
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"identity"},
		HumanName: "transparent pass-through",
		Schema:    innerNodeSchema("node to pass through unchanged"),
		New: func(id NodeID, props *PropertyBag) Node {
			n := &identityNode{}
			if v, ok := props.Get("inner"); ok {
				n.inner, _ = v.NodeRef()
			}
			return n
		},
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"mirror"},
		HumanName: "in-process loopback",
		Schema:    kindSchema("byte or datagram (default byte)"),
		New: func(id NodeID, props *PropertyBag) Node {
			return &mirrorNode{kind: kindFromProps(props)}
		},
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"devnull"},
		HumanName: "discard everything, read nothing",
		Schema:    kindSchema("byte or datagram (default byte)"),
		New: func(id NodeID, props *PropertyBag) Node {
			return &devnullNode{kind: kindFromProps(props)}
		},
	})
}
