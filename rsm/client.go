// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package rsm is a client SDK for replicated state machine services. A
// ServiceClient turns primitive operations into layered wire envelopes,
// routes them through a shared Protocol connection, and exposes unary and
// streaming result semantics.
package rsm

import (
	"context"
	"errors"

	"github.com/rsmprotocol/go-sdk/wire"
)

// A ServiceClient accesses one named instance of a typed primitive service
// over a shared Protocol. Its lifecycle is construct, Create, any number of
// Execute/ExecuteStream calls, Delete, discard.
type ServiceClient struct {
	proto *Protocol
	id    wire.ServiceID
}

// NewServiceClient returns a client for the service identified by id.
func NewServiceClient(p *Protocol, id wire.ServiceID) *ServiceClient {
	return &ServiceClient{proto: p, id: id}
}

// Name returns the service instance name.
func (c *ServiceClient) Name() string { return c.id.Name }

// Type returns the primitive type name.
func (c *ServiceClient) Type() string { return c.id.Type }

// Create opens the service instance on the server. It does not retry on
// "already exists"; that policy belongs to the caller.
func (c *ServiceClient) Create(ctx context.Context) error {
	out, err := c.proto.Command(ctx, mustEncodeRequest(&wire.ServiceRequest{ID: c.id, Create: &wire.CreateRequest{}}))
	if err != nil {
		return err
	}
	resp, err := decodeResponse(out)
	if err != nil {
		return err
	}
	if resp.Create == nil {
		return &MalformedResponseError{Layer: LayerService, Err: errors.New("response body is not a create acknowledgment")}
	}
	return nil
}

// Delete removes the service instance and its state.
func (c *ServiceClient) Delete(ctx context.Context) error {
	out, err := c.proto.Command(ctx, mustEncodeRequest(&wire.ServiceRequest{ID: c.id, Delete: &wire.DeleteRequest{}}))
	if err != nil {
		return err
	}
	resp, err := decodeResponse(out)
	if err != nil {
		return err
	}
	if resp.Delete == nil {
		return &MalformedResponseError{Layer: LayerService, Err: errors.New("response body is not a delete acknowledgment")}
	}
	return nil
}

// Execute invokes a unary operation with an opaque payload and returns the
// server's response context and opaque output.
//
// An operation whose kind is neither command nor query fails with an
// UnsupportedOperationError before anything is written to the transport.
func (c *ServiceClient) Execute(ctx context.Context, op OperationID, rctx wire.RequestContext, payload []byte) (wire.ResponseContext, []byte, error) {
	path, err := c.unaryPath(op)
	if err != nil {
		return wire.ResponseContext{}, nil, err
	}
	service, err := wire.EncodeServiceRequest(path.request(rctx, payload))
	if err != nil {
		return wire.ResponseContext{}, nil, err
	}
	out, err := path.send(ctx, service)
	if err != nil {
		return wire.ResponseContext{}, nil, err
	}
	resp, err := decodeResponse(out)
	if err != nil {
		return wire.ResponseContext{}, nil, err
	}
	rc, output, ok := path.pick(resp)
	if !ok {
		return wire.ResponseContext{}, nil, &MalformedResponseError{
			Layer: LayerService,
			Err:   errors.New("response body does not match the request kind"),
		}
	}
	return rc, output, nil
}

// ExecuteStream invokes a streaming operation. Each inbound frame is decoded
// and pushed to sink as (StreamContext, output) in arrival order, followed by
// exactly one Complete or Error. The call blocks until the stream terminates
// and returns the terminal error, if any.
func (c *ServiceClient) ExecuteStream(ctx context.Context, op OperationID, rctx wire.RequestContext, payload []byte, sink StreamSink[[]byte]) error {
	return c.executeStream(ctx, op, rctx, payload, &frameDecoder{sink: sink})
}

// executeStream is the shared stream path: the typed helpers substitute
// their own frame-level decoder.
func (c *ServiceClient) executeStream(ctx context.Context, op OperationID, rctx wire.RequestContext, payload []byte, sink FrameSink) error {
	path, err := c.unaryPath(op)
	if err != nil {
		return err
	}
	service, err := wire.EncodeServiceRequest(path.request(rctx, payload))
	if err != nil {
		return err
	}
	return path.sendStream(ctx, service, sink)
}

// An operationPath binds an operation kind to its protocol entry points and
// envelope shapes. The selection is the only place the command/query split
// is decided.
type operationPath struct {
	request    func(rctx wire.RequestContext, payload []byte) *wire.ServiceRequest
	send       func(ctx context.Context, service []byte) ([]byte, error)
	sendStream func(ctx context.Context, service []byte, sink FrameSink) error
	pick       func(resp *wire.ServiceResponse) (wire.ResponseContext, []byte, bool)
}

func (c *ServiceClient) unaryPath(op OperationID) (operationPath, error) {
	kind, err := op.kind()
	if err != nil {
		return operationPath{}, err
	}
	switch kind {
	case wire.KindCommand:
		return operationPath{
			request: func(rctx wire.RequestContext, payload []byte) *wire.ServiceRequest {
				return &wire.ServiceRequest{ID: c.id, Command: &wire.CommandRequest{Name: op.ID, Context: rctx, Payload: payload}}
			},
			send:       c.proto.Command,
			sendStream: c.proto.CommandStream,
			pick: func(resp *wire.ServiceResponse) (wire.ResponseContext, []byte, bool) {
				if resp.Command == nil {
					return wire.ResponseContext{}, nil, false
				}
				return resp.Command.Context, resp.Command.Output, true
			},
		}, nil
	default: // wire.KindQuery; op.kind admits nothing else
		return operationPath{
			request: func(rctx wire.RequestContext, payload []byte) *wire.ServiceRequest {
				return &wire.ServiceRequest{ID: c.id, Query: &wire.QueryRequest{Name: op.ID, Context: rctx, Payload: payload}}
			},
			send:       c.proto.Query,
			sendStream: c.proto.QueryStream,
			pick: func(resp *wire.ServiceResponse) (wire.ResponseContext, []byte, bool) {
				if resp.Query == nil {
					return wire.ResponseContext{}, nil, false
				}
				return resp.Query.Context, resp.Query.Output, true
			},
		}, nil
	}
}

// A frameDecoder adapts a byte-level StreamSink to the transport's
// FrameSink, decoding each frame's service envelope.
type frameDecoder struct {
	sink StreamSink[[]byte]
}

func (d *frameDecoder) Next(frame []byte) error {
	resp, err := decodeResponse(frame)
	if err != nil {
		return err
	}
	if resp.Stream == nil {
		return &MalformedResponseError{Layer: LayerService, Err: errors.New("stream frame body is not a stream response")}
	}
	d.sink.Next(resp.Stream.Context, resp.Stream.Output)
	return nil
}

func (d *frameDecoder) Complete() { d.sink.Complete() }

func (d *frameDecoder) Error(err error) { d.sink.Error(err) }

// decodeResponse decodes a reply's service envelope, tagging failures with
// the layer they occurred at.
func decodeResponse(out []byte) (*wire.ServiceResponse, error) {
	if len(out) == 0 {
		return nil, &MalformedResponseError{Layer: LayerService, Err: wire.ErrNoBody}
	}
	resp, err := wire.DecodeServiceResponse(out)
	if err != nil {
		return nil, &MalformedResponseError{Layer: LayerService, Err: err}
	}
	return resp, nil
}

// mustEncodeRequest encodes a service request built by this package.
// Construction above guarantees the oneof invariant, so failure here is a
// programming error.
func mustEncodeRequest(req *wire.ServiceRequest) []byte {
	data, err := wire.EncodeServiceRequest(req)
	if err != nil {
		panic(err)
	}
	return data
}
