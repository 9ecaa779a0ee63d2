// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package wire defines the layered message envelopes exchanged with a
// replicated state machine service, and the codecs for each layer.
//
// A frame on the wire is, outermost first:
//
//	transport envelope (Call or Reply, carrying a correlation ID)
//	  service envelope  (ServiceRequest or ServiceResponse)
//	    operation envelope (CommandRequest, QueryRequest, ... responses)
//	      operation payload (opaque bytes, never inspected here)
package wire

import (
	"errors"
	"fmt"

	"github.com/rsmprotocol/go-sdk/internal/json"
)

// wireVersion is the transport envelope version tag carried by every frame.
const wireVersion = "1.0"

// Kind labels a Call with the consistency path the server must use.
type Kind string

const (
	// KindCommand routes through the consensus log; the operation may
	// mutate replicated state.
	KindCommand Kind = "command"
	// KindQuery uses the read-only path.
	KindQuery Kind = "query"
	// KindKeepAlive refreshes the connection without touching any service.
	// A keep-alive carries no service envelope and is acked by an empty
	// terminal Reply.
	KindKeepAlive Kind = "keepalive"
)

// Message is the interface to the transport envelope types. They share no
// functionality, but are a closed set of concrete types allowed to implement
// this interface: *Call and *Reply.
type Message interface {
	// marshal builds the wire form from the API form.
	// It is private, which makes the set of Message implementations closed.
	marshal(to *wireCombined)
}

// A Call is an outbound request envelope. The ID correlates the eventual
// Reply (or stream of Replies) back to the caller.
type Call struct {
	// ID is the correlation identifier, unique per connection lifetime.
	ID int64
	// Kind selects the server-side consistency path.
	Kind Kind
	// Stream indicates the caller expects a stream of Replies rather than
	// exactly one.
	Stream bool
	// Service is the encoded service envelope. Empty for keep-alives.
	Service []byte
}

// A Reply is an inbound response envelope carrying the ID of the Call it
// answers.
//
// A unary call is answered by a single Reply with EOS set. A streaming call
// is answered by zero or more Replies with EOS unset (each carrying a service
// envelope), followed by exactly one terminal Reply: EOS set on completion,
// or Error set on failure. Terminal stream Replies carry no service envelope.
type Reply struct {
	ID int64
	// Service is the encoded service envelope.
	Service []byte
	// Error is set if the server failed the call. It is mutually exclusive
	// with Service.
	Error *Error
	// EOS marks the final Reply of a call.
	EOS bool
}

// An Error is a server-reported application error, surfaced to the caller
// verbatim. It is distinct from envelope-level decoding failures.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("service error %d: %s", e.Code, e.Message)
}

// wireCombined has the fields of both Call and Reply. Inbound frames are
// decoded into it first, then classified: a frame with a Kind is a Call,
// anything else is a Reply.
type wireCombined struct {
	Version string `json:"rsm"`
	ID      int64  `json:"id"`
	Kind    Kind   `json:"kind,omitempty"`
	Stream  bool   `json:"stream,omitempty"`
	Service []byte `json:"service,omitempty"`
	Error   *Error `json:"error,omitempty"`
	EOS     bool   `json:"eos,omitempty"`
}

func (c *Call) marshal(to *wireCombined) {
	to.ID = c.ID
	to.Kind = c.Kind
	to.Stream = c.Stream
	to.Service = c.Service
}

func (r *Reply) marshal(to *wireCombined) {
	to.ID = r.ID
	to.Service = r.Service
	to.Error = r.Error
	to.EOS = r.EOS
}

// EncodeMessage encodes the transport envelope of msg into frame bytes.
func EncodeMessage(msg Message) ([]byte, error) {
	wire := wireCombined{Version: wireVersion}
	msg.marshal(&wire)
	data, err := json.Marshal(&wire)
	if err != nil {
		return nil, fmt.Errorf("marshaling transport envelope: %w", err)
	}
	return data, nil
}

// DecodeMessage decodes one frame into a *Call or *Reply.
func DecodeMessage(data []byte) (Message, error) {
	if err := json.CheckKeys(data); err != nil {
		return nil, fmt.Errorf("transport envelope: %w", err)
	}
	msg := wireCombined{}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshaling transport envelope: %w", err)
	}
	if msg.Version != wireVersion {
		return nil, fmt.Errorf("invalid envelope version tag %q, expected %q", msg.Version, wireVersion)
	}
	if msg.ID == 0 {
		return nil, errors.New("transport envelope missing id")
	}
	if msg.Kind != "" {
		switch msg.Kind {
		case KindCommand, KindQuery, KindKeepAlive:
		default:
			return nil, fmt.Errorf("invalid call kind %q", msg.Kind)
		}
		return &Call{
			ID:      msg.ID,
			Kind:    msg.Kind,
			Stream:  msg.Stream,
			Service: msg.Service,
		}, nil
	}
	if msg.Error != nil && len(msg.Service) > 0 {
		return nil, errors.New("reply carries both a service envelope and an error")
	}
	return &Reply{
		ID:      msg.ID,
		Service: msg.Service,
		Error:   msg.Error,
		EOS:     msg.EOS,
	}, nil
}
