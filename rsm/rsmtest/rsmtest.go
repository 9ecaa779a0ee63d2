// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package rsmtest provides an in-process fake service host speaking the full
// wire protocol over any Connection. It exists for the SDK's own tests and
// for clients that want to test against a scriptable peer.
package rsmtest

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rsmprotocol/go-sdk/rsm"
	"github.com/rsmprotocol/go-sdk/wire"
)

// A Request is one decoded operation invocation.
type Request struct {
	Service wire.ServiceID
	Kind    wire.Kind
	Name    string
	Context wire.RequestContext
	Payload []byte
}

// A UnaryHandler produces the reply for a unary operation: either an output
// with its response context, or an application error.
type UnaryHandler func(req *Request) (wire.ResponseContext, []byte, *wire.Error)

// A Stream lets a StreamHandler push frames to the client.
type Stream struct {
	send func(ctx wire.StreamContext, output []byte) error
}

// Send emits one stream frame.
func (s *Stream) Send(ctx wire.StreamContext, output []byte) error {
	return s.send(ctx, output)
}

// A StreamHandler produces the frames of a streaming operation. Returning
// nil completes the stream; returning an application error fails it.
type StreamHandler func(req *Request, stream *Stream) *wire.Error

// A Server is a scriptable fake peer. Handlers are keyed by primitive type
// and operation name. Create and Delete are acked automatically; keep-alives
// are acked with an empty terminal reply. Handlers run one goroutine per
// call, so replies may be reordered by blocking inside a handler.
type Server struct {
	mu      sync.Mutex
	unary   map[string]UnaryHandler
	streams map[string]StreamHandler
	calls   []Request
}

// NewServer returns an empty Server.
func NewServer() *Server {
	return &Server{
		unary:   make(map[string]UnaryHandler),
		streams: make(map[string]StreamHandler),
	}
}

// Handle registers the unary handler for (serviceType, name).
func (s *Server) Handle(serviceType, name string, h UnaryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unary[serviceType+"/"+name] = h
}

// HandleStream registers the stream handler for (serviceType, name).
func (s *Server) HandleStream(serviceType, name string, h StreamHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[serviceType+"/"+name] = h
}

// Calls returns the operation invocations observed so far. Calls are
// recorded by their concurrent handler goroutines, so calls in flight at the
// same time may be recorded in any order. Create, Delete and keep-alives are
// not recorded.
func (s *Server) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Serve decodes calls from conn and dispatches them until the connection is
// closed or fails. It returns after every in-flight handler has finished.
func (s *Server) Serve(conn rsm.Connection) error {
	w := &replyWriter{conn: conn}
	g := new(errgroup.Group)
	for {
		frame, err := conn.Read(context.Background())
		if err != nil {
			g.Wait()
			return nil
		}
		msg, err := wire.DecodeMessage(frame)
		if err != nil {
			g.Wait()
			return fmt.Errorf("decoding inbound frame: %w", err)
		}
		call, ok := msg.(*wire.Call)
		if !ok {
			continue
		}
		g.Go(func() error {
			s.dispatch(w, call)
			return nil
		})
	}
}

func (s *Server) dispatch(w *replyWriter, call *wire.Call) {
	if call.Kind == wire.KindKeepAlive {
		w.write(&wire.Reply{ID: call.ID, EOS: true})
		return
	}
	req, err := wire.DecodeServiceRequest(call.Service)
	if err != nil {
		w.write(&wire.Reply{ID: call.ID, Error: &wire.Error{Code: 400, Message: err.Error()}})
		return
	}
	switch {
	case req.Create != nil:
		w.writeService(call.ID, &wire.ServiceResponse{Create: &wire.CreateResponse{}})
	case req.Delete != nil:
		w.writeService(call.ID, &wire.ServiceResponse{Delete: &wire.DeleteResponse{}})
	case req.Command != nil:
		s.invoke(w, call, &Request{
			Service: req.ID,
			Kind:    call.Kind,
			Name:    req.Command.Name,
			Context: req.Command.Context,
			Payload: req.Command.Payload,
		})
	case req.Query != nil:
		s.invoke(w, call, &Request{
			Service: req.ID,
			Kind:    call.Kind,
			Name:    req.Query.Name,
			Context: req.Query.Context,
			Payload: req.Query.Payload,
		})
	}
}

func (s *Server) invoke(w *replyWriter, call *wire.Call, req *Request) {
	key := req.Service.Type + "/" + req.Name
	s.mu.Lock()
	s.calls = append(s.calls, *req)
	uh := s.unary[key]
	sh := s.streams[key]
	s.mu.Unlock()

	if call.Stream {
		if sh == nil {
			w.write(&wire.Reply{ID: call.ID, Error: &wire.Error{Code: 404, Message: "no stream handler for " + key}})
			return
		}
		stream := &Stream{send: func(ctx wire.StreamContext, output []byte) error {
			return w.writeService(call.ID, &wire.ServiceResponse{Stream: &wire.StreamResponse{Context: ctx, Output: output}})
		}}
		if serr := sh(req, stream); serr != nil {
			w.write(&wire.Reply{ID: call.ID, Error: serr})
		} else {
			w.write(&wire.Reply{ID: call.ID, EOS: true})
		}
		return
	}

	if uh == nil {
		w.write(&wire.Reply{ID: call.ID, Error: &wire.Error{Code: 404, Message: "no handler for " + key}})
		return
	}
	rc, output, uerr := uh(req)
	if uerr != nil {
		w.write(&wire.Reply{ID: call.ID, Error: uerr})
		return
	}
	var resp *wire.ServiceResponse
	if req.Kind == wire.KindCommand {
		resp = &wire.ServiceResponse{Command: &wire.CommandResponse{Context: rc, Output: output}}
	} else {
		resp = &wire.ServiceResponse{Query: &wire.QueryResponse{Context: rc, Output: output}}
	}
	w.writeService(call.ID, resp)
}

// replyWriter serializes reply writes on the shared connection.
type replyWriter struct {
	mu   sync.Mutex
	conn rsm.Connection
}

func (w *replyWriter) write(reply *wire.Reply) error {
	data, err := wire.EncodeMessage(reply)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(context.Background(), data)
}

// writeService writes a reply carrying resp as its service envelope. A
// stream frame is non-terminal; everything else is terminal.
func (w *replyWriter) writeService(id int64, resp *wire.ServiceResponse) error {
	data, err := wire.EncodeServiceResponse(resp)
	if err != nil {
		return err
	}
	return w.write(&wire.Reply{ID: id, Service: data, EOS: resp.Stream == nil})
}
