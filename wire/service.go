// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"errors"
	"fmt"

	"github.com/rsmprotocol/go-sdk/internal/json"
)

// A ServiceID identifies a named instance of a typed primitive, for example
// {Name: "orders", Type: "map"}. It is immutable once constructed.
type ServiceID struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (id ServiceID) String() string {
	return id.Type + ":" + id.Name
}

// A RequestContext carries the caller's server-session metadata. The client
// threads it into the operation envelope verbatim; it never synthesizes or
// mutates one on the caller's behalf.
type RequestContext struct {
	// SessionID is the server-assigned session identifier.
	SessionID uint64 `json:"sessionId"`
	// SequenceNumber orders commands within the session.
	SequenceNumber uint64 `json:"sequenceNumber"`
	// Index is the caller's last observed state machine index, used by the
	// server as a consistency hint on the query path.
	Index uint64 `json:"index,omitempty"`
}

// Next returns a copy of the context with the sequence number advanced.
// It is a convenience for callers tracking command sequencing; nothing in
// the client applies it implicitly.
func (c RequestContext) Next() RequestContext {
	c.SequenceNumber++
	return c
}

// A ResponseContext carries the server-side ordering information emitted
// with a unary response.
type ResponseContext struct {
	// Index is the state machine index at which the operation executed.
	Index uint64 `json:"index"`
	// Sequence is the server's output sequence number for the session.
	Sequence uint64 `json:"sequence"`
}

// A StreamContext is the per-frame analog of ResponseContext for streaming
// responses.
type StreamContext struct {
	Index    uint64 `json:"index"`
	Sequence uint64 `json:"sequence"`
}

// CreateRequest opens the service instance on the server.
type CreateRequest struct{}

// DeleteRequest removes the service instance and its state.
type DeleteRequest struct{}

// A CommandRequest invokes a named mutating operation.
type CommandRequest struct {
	Name    string         `json:"name"`
	Context RequestContext `json:"context"`
	Payload []byte         `json:"payload,omitempty"`
}

// A QueryRequest invokes a named read-only operation.
type QueryRequest struct {
	Name    string         `json:"name"`
	Context RequestContext `json:"context"`
	Payload []byte         `json:"payload,omitempty"`
}

// A ServiceRequest is the service envelope of an outbound call. Exactly one
// of the body fields must be set.
type ServiceRequest struct {
	ID      ServiceID       `json:"id"`
	Create  *CreateRequest  `json:"create,omitempty"`
	Delete  *DeleteRequest  `json:"delete,omitempty"`
	Command *CommandRequest `json:"command,omitempty"`
	Query   *QueryRequest   `json:"query,omitempty"`
}

// CreateResponse acknowledges a CreateRequest.
type CreateResponse struct{}

// DeleteResponse acknowledges a DeleteRequest.
type DeleteResponse struct{}

// A CommandResponse carries the output of a unary command.
type CommandResponse struct {
	Context ResponseContext `json:"context"`
	Output  []byte          `json:"output,omitempty"`
}

// A QueryResponse carries the output of a unary query.
type QueryResponse struct {
	Context ResponseContext `json:"context"`
	Output  []byte          `json:"output,omitempty"`
}

// A StreamResponse carries one frame of a streaming operation.
type StreamResponse struct {
	Context StreamContext `json:"context"`
	Output  []byte        `json:"output,omitempty"`
}

// A ServiceResponse is the service envelope of an inbound reply. Exactly one
// of the body fields is set; which one must match the kind of the request it
// answers.
type ServiceResponse struct {
	Create  *CreateResponse  `json:"create,omitempty"`
	Delete  *DeleteResponse  `json:"delete,omitempty"`
	Command *CommandResponse `json:"command,omitempty"`
	Query   *QueryResponse   `json:"query,omitempty"`
	Stream  *StreamResponse  `json:"stream,omitempty"`
}

// EncodeServiceRequest encodes the service envelope. It reports an error if
// the oneof invariant is violated; encoding a well-formed request does not
// fail.
func EncodeServiceRequest(req *ServiceRequest) ([]byte, error) {
	set := 0
	for _, ok := range []bool{req.Create != nil, req.Delete != nil, req.Command != nil, req.Query != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("service request must have exactly one body, has %d", set)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling service request: %w", err)
	}
	return data, nil
}

// DecodeServiceRequest decodes a service envelope from a Call. It is the
// server-side counterpart of EncodeServiceRequest and is used by test
// fixtures and service hosts.
func DecodeServiceRequest(data []byte) (*ServiceRequest, error) {
	if err := json.CheckKeys(data); err != nil {
		return nil, fmt.Errorf("service request: %w", err)
	}
	var req ServiceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("unmarshaling service request: %w", err)
	}
	set := 0
	for _, ok := range []bool{req.Create != nil, req.Delete != nil, req.Command != nil, req.Query != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("service request must have exactly one body, has %d", set)
	}
	return &req, nil
}

// EncodeServiceResponse encodes the service envelope of a reply.
func EncodeServiceResponse(resp *ServiceResponse) ([]byte, error) {
	if n := resp.bodies(); n != 1 {
		return nil, fmt.Errorf("service response must have exactly one body, has %d", n)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshaling service response: %w", err)
	}
	return data, nil
}

// DecodeServiceResponse decodes the service envelope of a reply, enforcing
// the oneof invariant. Matching the body against the request kind is the
// caller's responsibility, since only the caller knows what it asked for.
func DecodeServiceResponse(data []byte) (*ServiceResponse, error) {
	if err := json.CheckKeys(data); err != nil {
		return nil, fmt.Errorf("service response: %w", err)
	}
	var resp ServiceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling service response: %w", err)
	}
	if n := resp.bodies(); n != 1 {
		return nil, fmt.Errorf("service response must have exactly one body, has %d", n)
	}
	return &resp, nil
}

func (r *ServiceResponse) bodies() int {
	n := 0
	for _, ok := range []bool{r.Create != nil, r.Delete != nil, r.Command != nil, r.Query != nil, r.Stream != nil} {
		if ok {
			n++
		}
	}
	return n
}

// ErrNoBody is reported by decode helpers when a reply unexpectedly carries
// no service envelope.
var ErrNoBody = errors.New("reply carries no service envelope")
