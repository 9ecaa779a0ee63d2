// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import "github.com/rsmprotocol/go-sdk/wire"

// A FrameSink receives the raw frames of one streaming call at the transport
// layer. Frames arrive in wire order. After Complete or Error has been
// called once, the sink is never invoked again.
type FrameSink interface {
	// Next delivers one frame (an encoded service envelope). Returning a
	// non-nil error terminates the stream: the sink receives Error with
	// that error and the pending entry is removed.
	Next(frame []byte) error
	// Complete marks successful termination.
	Complete()
	// Error marks failed termination.
	Error(err error)
}

// A StreamSink receives the decoded frames of one streaming operation.
// Exactly one of Complete or Error terminates the stream; no frame is
// delivered after termination.
type StreamSink[T any] interface {
	Next(ctx wire.StreamContext, value T)
	Complete()
	Error(err error)
}

// SinkFuncs adapts plain functions to a StreamSink. Nil fields are no-ops.
type SinkFuncs[T any] struct {
	OnNext     func(ctx wire.StreamContext, value T)
	OnComplete func()
	OnError    func(err error)
}

func (s *SinkFuncs[T]) Next(ctx wire.StreamContext, value T) {
	if s.OnNext != nil {
		s.OnNext(ctx, value)
	}
}

func (s *SinkFuncs[T]) Complete() {
	if s.OnComplete != nil {
		s.OnComplete()
	}
}

func (s *SinkFuncs[T]) Error(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}
