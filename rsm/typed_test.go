// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rsmprotocol/go-sdk/rsm"
	"github.com/rsmprotocol/go-sdk/rsm/rsmtest"
	"github.com/rsmprotocol/go-sdk/wire"
)

type kvEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TestTypedEcho round-trips a typed request through a server that echoes the
// payload verbatim.
func TestTypedEcho(t *testing.T) {
	srv := rsmtest.NewServer()
	srv.Handle("map", "echo", func(req *rsmtest.Request) (wire.ResponseContext, []byte, *wire.Error) {
		return wire.ResponseContext{Index: 1}, req.Payload, nil
	})
	p, _ := newClientServer(t, srv, nil)
	client := rsm.NewServiceClient(p, testService)

	codec := rsm.JSONCodec[kvEntry]{}
	in := kvEntry{Key: "k1", Value: "v1"}
	_, out, err := rsm.Execute(context.Background(), client, rsm.Command("echo"), wire.RequestContext{}, in, codec.Encode, codec.Decode)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("echo mismatch (-want +got):\n%s", diff)
	}
}

func TestTypedStream(t *testing.T) {
	srv := rsmtest.NewServer()
	entries := []kvEntry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
	srv.HandleStream("map", "entries", func(req *rsmtest.Request, stream *rsmtest.Stream) *wire.Error {
		codec := rsm.JSONCodec[kvEntry]{}
		for i, e := range entries {
			data, err := codec.Encode(e)
			if err != nil {
				return &wire.Error{Code: 500, Message: err.Error()}
			}
			stream.Send(wire.StreamContext{Sequence: uint64(i + 1)}, data)
		}
		return nil
	})
	p, _ := newClientServer(t, srv, nil)
	client := rsm.NewServiceClient(p, testService)

	codec := rsm.JSONCodec[kvEntry]{}
	var got []kvEntry
	err := rsm.ExecuteStream(context.Background(), client, rsm.Query("entries"), wire.RequestContext{}, struct{}{},
		func(struct{}) ([]byte, error) { return nil, nil },
		&rsm.SinkFuncs[kvEntry]{OnNext: func(_ wire.StreamContext, e kvEntry) { got = append(got, e) }},
		codec.Decode)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

// TestTypedStreamDecodeFailure verifies that a frame whose output does not
// decode terminates the stream with a MalformedResponseError at the
// operation layer.
func TestTypedStreamDecodeFailure(t *testing.T) {
	srv := rsmtest.NewServer()
	srv.HandleStream("map", "entries", func(req *rsmtest.Request, stream *rsmtest.Stream) *wire.Error {
		stream.Send(wire.StreamContext{Sequence: 1}, []byte("not json"))
		return nil
	})
	p, _ := newClientServer(t, srv, nil)
	client := rsm.NewServiceClient(p, testService)

	codec := rsm.JSONCodec[kvEntry]{}
	var sinkErr error
	err := rsm.ExecuteStream(context.Background(), client, rsm.Query("entries"), wire.RequestContext{}, struct{}{},
		func(struct{}) ([]byte, error) { return nil, nil },
		&rsm.SinkFuncs[kvEntry]{
			OnNext:  func(_ wire.StreamContext, e kvEntry) { t.Errorf("unexpected entry %v", e) },
			OnError: func(err error) { sinkErr = err },
		},
		codec.Decode)

	var merr *rsm.MalformedResponseError
	if !errors.As(err, &merr) {
		t.Fatalf("ExecuteStream = %v, want MalformedResponseError", err)
	}
	if merr.Layer != rsm.LayerOperation {
		t.Errorf("Layer = %q, want %q", merr.Layer, rsm.LayerOperation)
	}
	if !errors.As(sinkErr, &merr) {
		t.Errorf("sink error = %v, want MalformedResponseError", sinkErr)
	}
}

func TestTypedUnaryDecodeFailure(t *testing.T) {
	srv := rsmtest.NewServer()
	srv.Handle("map", "get", func(req *rsmtest.Request) (wire.ResponseContext, []byte, *wire.Error) {
		return wire.ResponseContext{}, []byte("not json"), nil
	})
	p, _ := newClientServer(t, srv, nil)
	client := rsm.NewServiceClient(p, testService)

	codec := rsm.JSONCodec[kvEntry]{}
	_, _, err := rsm.Execute(context.Background(), client, rsm.Query("get"), wire.RequestContext{}, kvEntry{}, codec.Encode, codec.Decode)
	var merr *rsm.MalformedResponseError
	if !errors.As(err, &merr) {
		t.Fatalf("Execute = %v, want MalformedResponseError", err)
	}
	if merr.Layer != rsm.LayerOperation {
		t.Errorf("Layer = %q, want %q", merr.Layer, rsm.LayerOperation)
	}
}
