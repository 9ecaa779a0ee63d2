// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rsmprotocol/go-sdk/wire"
)

// recordSink records every FrameSink invocation.
type recordSink struct {
	frames   [][]byte
	complete int
	errs     []error
	nextErr  error // returned by Next when set
}

func (s *recordSink) Next(frame []byte) error {
	if s.nextErr != nil {
		return s.nextErr
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordSink) Complete()       { s.complete++ }
func (s *recordSink) Error(err error) { s.errs = append(s.errs, err) }

func TestCorrelatorUnary(t *testing.T) {
	c := newCorrelator()
	pc, err := c.register(1)
	if err != nil {
		t.Fatal(err)
	}
	reply := &wire.Reply{ID: 1, Service: []byte{0x03}, EOS: true}
	if !c.deliver(reply) {
		t.Fatal("deliver did not find the pending entry")
	}
	res := <-pc.ch
	if res.err != nil {
		t.Fatal(res.err)
	}
	if diff := cmp.Diff(reply, res.reply); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
	if n := c.pendingLen(); n != 0 {
		t.Errorf("pending table has %d entries after delivery, want 0", n)
	}
}

func TestCorrelatorDuplicateID(t *testing.T) {
	c := newCorrelator()
	if _, err := c.register(1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.register(1); err == nil {
		t.Error("registering a duplicate id succeeded, want error")
	}
	if _, err := c.registerStream(1, &recordSink{}); err == nil {
		t.Error("registering a duplicate stream id succeeded, want error")
	}
}

func TestCorrelatorUnknownIDDropped(t *testing.T) {
	c := newCorrelator()
	if c.deliver(&wire.Reply{ID: 42, EOS: true}) {
		t.Error("delivering an unknown id reported a pending entry")
	}
}

func TestCorrelatorStreamOrder(t *testing.T) {
	c := newCorrelator()
	sink := &recordSink{}
	if _, err := c.registerStream(7, sink); err != nil {
		t.Fatal(err)
	}
	frames := [][]byte{{0x10}, {0x11}, {0x12}}
	for _, f := range frames {
		c.deliver(&wire.Reply{ID: 7, Service: f})
	}
	c.deliver(&wire.Reply{ID: 7, EOS: true})

	if diff := cmp.Diff(frames, sink.frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if sink.complete != 1 || len(sink.errs) != 0 {
		t.Errorf("got %d completions and %d errors, want 1 and 0", sink.complete, len(sink.errs))
	}
	// Late frames after termination are dropped without touching the sink.
	c.deliver(&wire.Reply{ID: 7, Service: []byte{0x13}})
	if len(sink.frames) != 3 {
		t.Errorf("sink observed %d frames after termination, want 3", len(sink.frames))
	}
}

func TestCorrelatorStreamSinkAbort(t *testing.T) {
	c := newCorrelator()
	abort := errors.New("bad frame")
	sink := &recordSink{nextErr: abort}
	if _, err := c.registerStream(3, sink); err != nil {
		t.Fatal(err)
	}
	c.deliver(&wire.Reply{ID: 3, Service: []byte{0x01}})
	if len(sink.errs) != 1 || !errors.Is(sink.errs[0], abort) {
		t.Fatalf("sink errors = %v, want the abort error", sink.errs)
	}
	if n := c.pendingLen(); n != 0 {
		t.Errorf("pending table has %d entries after abort, want 0", n)
	}
	// The terminal reply for the aborted stream is now unknown and dropped.
	c.deliver(&wire.Reply{ID: 3, EOS: true})
	if sink.complete != 0 {
		t.Error("sink completed after it was terminated with an error")
	}
}

func TestCorrelatorFailAll(t *testing.T) {
	c := newCorrelator()
	pc, err := c.register(1)
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordSink{}
	if _, err := c.registerStream(2, sink); err != nil {
		t.Fatal(err)
	}

	cause := &TransportError{Cause: errors.New("conn reset")}
	c.failAll(cause)
	c.failAll(cause) // idempotent

	res := <-pc.ch
	if !errors.Is(res.err, cause) {
		t.Errorf("unary error = %v, want %v", res.err, cause)
	}
	if len(sink.errs) != 1 || !errors.Is(sink.errs[0], cause) {
		t.Errorf("sink errors = %v, want exactly one %v", sink.errs, cause)
	}
	if n := c.pendingLen(); n != 0 {
		t.Errorf("pending table has %d entries after failAll, want 0", n)
	}
	if _, err := c.register(3); err == nil {
		t.Error("register succeeded on a disconnected correlator")
	}
}
