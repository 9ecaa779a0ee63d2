// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rsmprotocol/go-sdk/wire"
)

// Protocol connection states.
type connState int

const (
	stateNew connState = iota
	stateConnecting
	stateConnected
	stateClosing
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// errConnectionClosed is the cause recorded when the connection is torn down
// by an explicit Close rather than an I/O failure.
var errConnectionClosed = errors.New("connection closed")

// ProtocolOptions configures a Protocol.
type ProtocolOptions struct {
	// Logger receives connection lifecycle and frame-level diagnostics.
	// If nil, nothing is logged.
	Logger *slog.Logger

	// WriteLimit, if non-nil, throttles the shared write path.
	WriteLimit *rate.Limiter

	// KeepAlive, if positive, is the interval at which an empty keep-alive
	// call is sent while the connection is up.
	KeepAlive time.Duration
}

// A Protocol is one logical client connection to a replicated state machine
// peer. It owns the shared write path, the read loop, and the request
// correlator; any number of ServiceClients may attach to it.
//
// A Protocol is single-shot: once closed, or once the connection fails, it
// stays closed. Reconnecting means building a fresh Protocol, which rebuilds
// the correlator.
type Protocol struct {
	transport Transport
	opts      ProtocolOptions
	logger    *slog.Logger

	nextID atomic.Int64

	mu    sync.Mutex
	state connState
	conn  Connection
	corr  *correlator
	cause error         // terminal cause, recorded once
	stop  chan struct{} // closed on disconnect; stops the keep-alive loop
	done  chan struct{} // closed when all connection goroutines have exited

	// writeMu serializes writes so frame boundaries are never interleaved.
	writeMu sync.Mutex
}

// NewProtocol returns a Protocol over the given transport. Call Connect
// before issuing requests.
func NewProtocol(t Transport, opts *ProtocolOptions) *Protocol {
	p := &Protocol{transport: t}
	if opts != nil {
		p.opts = *opts
	}
	p.logger = p.opts.Logger
	if p.logger == nil {
		p.logger = slog.New(discardHandler{})
	}
	return p
}

// Connect establishes the connection and starts the read loop. It is
// idempotent once connected. At most one Connect or Close may be in flight
// at a time.
func (p *Protocol) Connect(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case stateConnected:
		p.mu.Unlock()
		return nil
	case stateConnecting:
		p.mu.Unlock()
		return errors.New("connect already in progress")
	case stateClosing, stateClosed:
		p.mu.Unlock()
		return ErrNotConnected
	}
	p.state = stateConnecting
	p.mu.Unlock()

	conn, err := p.transport.Connect(ctx)

	p.mu.Lock()
	if err != nil {
		p.state = stateClosed
		p.cause = &TransportError{Cause: err}
		p.mu.Unlock()
		return &TransportError{Cause: err}
	}
	if p.state != stateConnecting {
		// Closed underneath us while dialing.
		p.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	p.state = stateConnected
	p.conn = conn
	p.corr = newCorrelator()
	p.stop = make(chan struct{})
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	p.logger.Debug("connected")

	g := new(errgroup.Group)
	g.Go(func() error { return p.readLoop(conn) })
	if p.opts.KeepAlive > 0 {
		g.Go(func() error { return p.keepAliveLoop(p.opts.KeepAlive) })
	}
	go func() {
		defer close(done)
		if err := g.Wait(); err != nil {
			p.logger.Debug("connection goroutines exited", "err", err)
		}
	}()
	return nil
}

// Close tears the connection down, failing every pending request with a
// TransportError, and waits for the read loop to exit. It is idempotent:
// the first call performs the teardown, later calls return immediately.
func (p *Protocol) Close() error {
	p.mu.Lock()
	switch p.state {
	case stateNew, stateConnecting:
		// Never connected (or still dialing; Connect will observe the state
		// change and discard its connection).
		p.state = stateClosed
		p.cause = errConnectionClosed
		p.mu.Unlock()
		return nil
	case stateClosed:
		done := p.done
		p.mu.Unlock()
		if done != nil {
			<-done
		}
		return nil
	case stateClosing:
		done := p.done
		p.mu.Unlock()
		<-done
		return nil
	}
	p.state = stateClosing
	conn := p.conn
	done := p.done
	p.mu.Unlock()

	// Closing the connection unblocks the read loop, which finalizes state
	// and drains the correlator.
	conn.Close()
	<-done
	return nil
}

// disconnect finalizes the connection state with cause and drains every
// pending request. Called from the read loop on failure and on Close.
func (p *Protocol) disconnect(cause error) {
	p.mu.Lock()
	if p.state == stateClosing {
		cause = &TransportError{Cause: errConnectionClosed}
	}
	if p.cause == nil {
		p.cause = cause
	}
	p.state = stateClosed
	conn := p.conn
	corr := p.corr
	stop := p.stop
	p.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if stop != nil {
		close(stop)
	}
	if corr != nil {
		corr.failAll(cause)
	}
	p.logger.Debug("disconnected", "cause", cause)
}

// readLoop delivers inbound frames to the correlator until the connection
// fails or is closed.
func (p *Protocol) readLoop(conn Connection) error {
	for {
		frame, err := conn.Read(context.Background())
		if err != nil {
			p.disconnect(&TransportError{Cause: err})
			return err
		}
		msg, err := wire.DecodeMessage(frame)
		if err != nil {
			// The frame cannot be correlated to a caller, so no specific
			// request can be failed. Drop it.
			p.logger.Warn("dropping undecodable frame", "err", err)
			continue
		}
		reply, ok := msg.(*wire.Reply)
		if !ok {
			p.logger.Warn("dropping unexpected inbound call")
			continue
		}
		if !p.correlator().deliver(reply) {
			p.logger.Debug("dropping late reply", "id", reply.ID)
		}
	}
}

func (p *Protocol) correlator() *correlator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.corr
}

// keepAliveLoop sends an empty keep-alive call on each tick while the
// connection is up. Keep-alive failures are left to the read loop to
// surface; a dead connection fails its read promptly.
func (p *Protocol) keepAliveLoop(interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		stop := p.stop
		p.mu.Unlock()
		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		_, err := p.call(ctx, wire.KindKeepAlive, nil)
		cancel()
		if err != nil {
			p.logger.Debug("keep-alive failed", "err", err)
		}
	}
}

// checkConnected returns the live correlator and connection, or
// ErrNotConnected.
func (p *Protocol) checkConnected() (*correlator, Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateConnected {
		return nil, nil, ErrNotConnected
	}
	return p.corr, p.conn, nil
}

// write encodes and writes one message on the shared connection. Writes are
// serialized; submission order is preserved on the wire.
func (p *Protocol) write(ctx context.Context, conn Connection, msg wire.Message) error {
	data, err := wire.EncodeMessage(msg)
	if err != nil {
		return err
	}
	if lim := p.opts.WriteLimit; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := conn.Write(ctx, data); err != nil {
		return &TransportError{Cause: err}
	}
	return nil
}

// Command submits a unary command and blocks until its reply, a failure, or
// ctx is done. It returns the reply's encoded service envelope.
func (p *Protocol) Command(ctx context.Context, service []byte) ([]byte, error) {
	return p.call(ctx, wire.KindCommand, service)
}

// Query is Command for the read-only path.
func (p *Protocol) Query(ctx context.Context, service []byte) ([]byte, error) {
	return p.call(ctx, wire.KindQuery, service)
}

func (p *Protocol) call(ctx context.Context, kind wire.Kind, service []byte) ([]byte, error) {
	corr, conn, err := p.checkConnected()
	if err != nil {
		return nil, err
	}
	id := p.nextID.Add(1)
	// Register before writing, so the reply cannot race the registration.
	pc, err := corr.register(id)
	if err != nil {
		return nil, err
	}
	call := &wire.Call{ID: id, Kind: kind, Service: service}
	if err := p.write(ctx, conn, call); err != nil {
		// The call never reached the wire; nothing will answer it.
		corr.remove(id)
		return nil, err
	}
	select {
	case res := <-pc.ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.reply.Error != nil {
			return nil, res.reply.Error
		}
		return res.reply.Service, nil
	case <-ctx.Done():
		// Best effort: a late reply for the removed id is silently dropped.
		corr.remove(id)
		return nil, ctx.Err()
	}
}

// CommandStream submits a streaming command. Frames are pushed to sink in
// arrival order; the call returns when the stream terminates, reporting the
// terminal error if any. Cancelling ctx terminates the sink with ctx's
// error and removes the pending entry.
func (p *Protocol) CommandStream(ctx context.Context, service []byte, sink FrameSink) error {
	return p.stream(ctx, wire.KindCommand, service, sink)
}

// QueryStream is CommandStream for the read-only path.
func (p *Protocol) QueryStream(ctx context.Context, service []byte, sink FrameSink) error {
	return p.stream(ctx, wire.KindQuery, service, sink)
}

func (p *Protocol) stream(ctx context.Context, kind wire.Kind, service []byte, sink FrameSink) error {
	corr, conn, err := p.checkConnected()
	if err != nil {
		return err
	}
	id := p.nextID.Add(1)
	notify := &notifySink{sink: sink, done: make(chan error, 1)}
	if _, err := corr.registerStream(id, notify); err != nil {
		return err
	}
	call := &wire.Call{ID: id, Kind: kind, Stream: true, Service: service}
	if err := p.write(ctx, conn, call); err != nil {
		corr.failStream(id, err)
		<-notify.done
		return err
	}
	select {
	case err := <-notify.done:
		return err
	case <-ctx.Done():
		corr.failStream(id, ctx.Err())
		<-notify.done
		return ctx.Err()
	}
}

// notifySink forwards to the caller's FrameSink and reports the terminal
// outcome on done.
type notifySink struct {
	sink FrameSink
	done chan error
}

func (s *notifySink) Next(frame []byte) error { return s.sink.Next(frame) }

func (s *notifySink) Complete() {
	s.sink.Complete()
	s.done <- nil
}

func (s *notifySink) Error(err error) {
	s.sink.Error(err)
	s.done <- err
}

// State reports the connection state name. Diagnostic only.
func (p *Protocol) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.String()
}

// Err returns the terminal cause once the protocol has closed. It returns
// nil while the protocol is open, and nil when it was closed by Close.
func (p *Protocol) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateClosed {
		return nil
	}
	if errors.Is(p.cause, errConnectionClosed) {
		return nil
	}
	return p.cause
}

// discardHandler drops every record. Used when no logger is configured.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
