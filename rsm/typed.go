// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"context"
	"errors"

	"github.com/rsmprotocol/go-sdk/wire"
)

// An Encoder turns a typed request into opaque payload bytes.
type Encoder[T any] func(T) ([]byte, error)

// A Decoder turns opaque output bytes into a typed response.
type Decoder[T any] func([]byte) (T, error)

// Execute invokes a unary operation with a typed request and response. The
// encoder produces the opaque payload; the decoder is applied to the reply's
// output bytes, and its failure surfaces as a MalformedResponseError at the
// operation layer.
func Execute[In, Out any](ctx context.Context, c *ServiceClient, op OperationID, rctx wire.RequestContext, in In, enc Encoder[In], dec Decoder[Out]) (wire.ResponseContext, Out, error) {
	var zero Out
	payload, err := enc(in)
	if err != nil {
		return wire.ResponseContext{}, zero, err
	}
	rc, output, err := c.Execute(ctx, op, rctx, payload)
	if err != nil {
		return wire.ResponseContext{}, zero, err
	}
	out, err := dec(output)
	if err != nil {
		return wire.ResponseContext{}, zero, &MalformedResponseError{Layer: LayerOperation, Err: err}
	}
	return rc, out, nil
}

// ExecuteStream invokes a streaming operation with a typed request, decoding
// each frame's output for the caller's sink. A frame that fails to decode at
// any layer terminates the stream: the sink receives Error with a
// MalformedResponseError and the call returns it.
func ExecuteStream[In, Out any](ctx context.Context, c *ServiceClient, op OperationID, rctx wire.RequestContext, in In, enc Encoder[In], sink StreamSink[Out], dec Decoder[Out]) error {
	payload, err := enc(in)
	if err != nil {
		return err
	}
	return c.executeStream(ctx, op, rctx, payload, &typedFrameDecoder[Out]{sink: sink, dec: dec})
}

// typedFrameDecoder decodes each frame's service envelope and typed output
// before forwarding to the caller's sink.
type typedFrameDecoder[T any] struct {
	sink StreamSink[T]
	dec  Decoder[T]
}

func (d *typedFrameDecoder[T]) Next(frame []byte) error {
	resp, err := decodeResponse(frame)
	if err != nil {
		return err
	}
	if resp.Stream == nil {
		return &MalformedResponseError{Layer: LayerService, Err: errors.New("stream frame body is not a stream response")}
	}
	value, err := d.dec(resp.Stream.Output)
	if err != nil {
		return &MalformedResponseError{Layer: LayerOperation, Err: err}
	}
	d.sink.Next(resp.Stream.Context, value)
	return nil
}

func (d *typedFrameDecoder[T]) Complete() { d.sink.Complete() }

func (d *typedFrameDecoder[T]) Error(err error) { d.sink.Error(err) }
