// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"fmt"
	"sync"

	"github.com/rsmprotocol/go-sdk/wire"
)

// A correlator matches inbound replies to the pending calls that produced
// them. Each Protocol owns exactly one correlator per connection lifetime;
// it is not shared globally.
//
// Entries must be registered before the corresponding call is written, so a
// reply can never race its own registration.
type correlator struct {
	mu           sync.Mutex
	disconnected bool
	cause        error
	unary        map[int64]*pendingCall
	streams      map[int64]*streamEntry
}

// A pendingCall is the completion handle of one unary call. The channel is
// 1-buffered; whoever removes the entry from the table owns the single send.
type pendingCall struct {
	ch chan callResult
}

type callResult struct {
	reply *wire.Reply
	err   error
}

// A streamEntry wraps a FrameSink with a terminal guard. Its own mutex
// serializes sink invocations, so a disconnect racing the read loop cannot
// invoke the sink after its terminal notification.
type streamEntry struct {
	mu   sync.Mutex
	done bool
	sink FrameSink
}

// next delivers one frame. It reports whether the sink terminated itself by
// returning an error, in which case the sink has already received Error.
func (e *streamEntry) next(frame []byte) (terminated bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return false
	}
	if err := e.sink.Next(frame); err != nil {
		e.done = true
		e.sink.Error(err)
		return true
	}
	return false
}

// terminate delivers the terminal notification: Complete if err is nil,
// Error otherwise. Calling it again is a no-op.
func (e *streamEntry) terminate(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.done = true
	if err != nil {
		e.sink.Error(err)
	} else {
		e.sink.Complete()
	}
}

func newCorrelator() *correlator {
	return &correlator{
		unary:   make(map[int64]*pendingCall),
		streams: make(map[int64]*streamEntry),
	}
}

// register inserts a unary completion handle. Registering a duplicate ID is
// a programming error; registering on a disconnected correlator reports the
// disconnect cause.
func (c *correlator) register(id int64) (*pendingCall, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return nil, c.cause
	}
	if _, ok := c.unary[id]; ok {
		return nil, fmt.Errorf("correlation id %d already registered", id)
	}
	if _, ok := c.streams[id]; ok {
		return nil, fmt.Errorf("correlation id %d already registered", id)
	}
	pc := &pendingCall{ch: make(chan callResult, 1)}
	c.unary[id] = pc
	return pc, nil
}

// registerStream inserts a stream sink under the given ID.
func (c *correlator) registerStream(id int64, sink FrameSink) (*streamEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return nil, c.cause
	}
	if _, ok := c.unary[id]; ok {
		return nil, fmt.Errorf("correlation id %d already registered", id)
	}
	if _, ok := c.streams[id]; ok {
		return nil, fmt.Errorf("correlation id %d already registered", id)
	}
	e := &streamEntry{sink: sink}
	c.streams[id] = e
	return e, nil
}

// deliver routes one inbound reply. Unknown IDs are dropped: the server may
// legitimately answer after client-side cancellation removed the entry.
// It reports whether a pending entry consumed the reply.
func (c *correlator) deliver(reply *wire.Reply) bool {
	c.mu.Lock()
	if pc, ok := c.unary[reply.ID]; ok {
		delete(c.unary, reply.ID)
		c.mu.Unlock()
		pc.ch <- callResult{reply: reply}
		return true
	}
	e, ok := c.streams[reply.ID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	terminal := reply.EOS || reply.Error != nil
	if terminal {
		delete(c.streams, reply.ID)
	}
	c.mu.Unlock()

	// Sink invocations happen outside the table lock. Frame order is still
	// wire order: deliver is only called from the single read loop.
	switch {
	case reply.Error != nil:
		e.terminate(reply.Error)
	case reply.EOS:
		e.terminate(nil)
	default:
		if e.next(reply.Service) {
			c.remove(reply.ID)
		}
	}
	return true
}

// fail completes the unary call id with err, if it is still pending.
func (c *correlator) fail(id int64, err error) {
	c.mu.Lock()
	pc, ok := c.unary[id]
	if ok {
		delete(c.unary, id)
	}
	c.mu.Unlock()
	if ok {
		pc.ch <- callResult{err: err}
	}
}

// failStream terminates the stream id with err, if it is still pending.
func (c *correlator) failStream(id int64, err error) {
	c.mu.Lock()
	e, ok := c.streams[id]
	if ok {
		delete(c.streams, id)
	}
	c.mu.Unlock()
	if ok {
		e.terminate(err)
	}
}

// remove discards the entry for id without notifying its sink. Used when
// the caller has already observed a terminal condition.
func (c *correlator) remove(id int64) {
	c.mu.Lock()
	delete(c.unary, id)
	delete(c.streams, id)
	c.mu.Unlock()
}

// failAll drains every pending entry with cause and moves the correlator to
// the disconnected state, where register rejects. It is idempotent.
func (c *correlator) failAll(cause error) {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.disconnected = true
	c.cause = cause
	unary := c.unary
	streams := c.streams
	c.unary = make(map[int64]*pendingCall)
	c.streams = make(map[int64]*streamEntry)
	c.mu.Unlock()

	for _, pc := range unary {
		pc.ch <- callResult{err: cause}
	}
	for _, e := range streams {
		e.terminate(cause)
	}
}

// pendingLen reports the number of pending entries. Test hook.
func (c *correlator) pendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.unary) + len(c.streams)
}
