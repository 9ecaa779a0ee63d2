// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// A Transport establishes one logical connection to a peer. Transports carry
// whole frames; they never parse frame contents.
type Transport interface {
	// Connect returns the logical connection. It is called at most once per
	// Protocol.
	Connect(ctx context.Context) (Connection, error)
}

// A Connection is a bidirectional, frame-oriented connection to a peer.
//
// Read returns one whole inbound frame. Implementations need not support
// concurrent Read or concurrent Write calls; the Protocol serializes access.
// Close must unblock a pending Read.
type Connection interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close() error
}

// maxFrameSize bounds a single frame. A length prefix beyond it indicates a
// corrupt or hostile stream.
const maxFrameSize = 16 << 20

// An IOTransport is a Transport over a byte stream, framing each message
// with a 4-byte big-endian length prefix.
type IOTransport struct {
	// RWC is the underlying stream, for example a net.Conn.
	RWC io.ReadWriteCloser
}

// Connect implements the [Transport] interface.
func (t *IOTransport) Connect(ctx context.Context) (Connection, error) {
	return newIOConn(t.RWC), nil
}

// An ioConn frames messages over an io.ReadWriteCloser with a length prefix.
type ioConn struct {
	rwc       io.ReadWriteCloser
	closeOnce sync.Once
	closeErr  error
}

func newIOConn(rwc io.ReadWriteCloser) *ioConn {
	return &ioConn{rwc: rwc}
}

func (c *ioConn) Read(ctx context.Context) ([]byte, error) {
	// The read blocks until a frame arrives or the connection is closed;
	// cancellation is checked at the boundary.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	var prefix [4]byte
	if _, err := io.ReadFull(c.rwc, prefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size == 0 || size > maxFrameSize {
		return nil, fmt.Errorf("invalid frame length %d", size)
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(c.rwc, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

func (c *ioConn) Write(ctx context.Context, frame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if len(frame) > maxFrameSize {
		return fmt.Errorf("frame length %d exceeds maximum %d", len(frame), maxFrameSize)
	}
	buf := make([]byte, 4+len(frame))
	binary.BigEndian.PutUint32(buf, uint32(len(frame)))
	copy(buf[4:], frame)
	_, err := c.rwc.Write(buf)
	return err
}

func (c *ioConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

// An InMemoryTransport is a Transport over an in-process pipe, for tests and
// embedding a service host in the same process.
type InMemoryTransport struct {
	conn Connection
}

// NewInMemoryTransports returns two connected transports: frames written
// through one are read from the other.
func NewInMemoryTransports() (*InMemoryTransport, *InMemoryTransport) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := newIOConn(rwc{rc: ar, wc: aw})
	b := newIOConn(rwc{rc: br, wc: bw})
	return &InMemoryTransport{conn: a}, &InMemoryTransport{conn: b}
}

// Connect implements the [Transport] interface.
func (t *InMemoryTransport) Connect(ctx context.Context) (Connection, error) {
	return t.conn, nil
}

// rwc binds a separate reader and writer into an io.ReadWriteCloser.
type rwc struct {
	rc io.ReadCloser
	wc io.WriteCloser
}

func (r rwc) Read(p []byte) (int, error)  { return r.rc.Read(p) }
func (r rwc) Write(p []byte) (int, error) { return r.wc.Write(p) }

func (r rwc) Close() error {
	rerr := r.rc.Close()
	werr := r.wc.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
