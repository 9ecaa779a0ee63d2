// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"errors"
	"fmt"
)

// ErrNotConnected is reported synchronously by writes when the protocol is
// absent, not yet connected, or closed. It is never wrapped in a
// TransportError.
var ErrNotConnected = errors.New("not connected")

// Envelope layers, named in decode failures.
const (
	LayerTransport = "transport"
	LayerService   = "service"
	LayerOperation = "operation"
)

// A TransportError reports an I/O-level failure while writing to or reading
// from the peer. Every request pending at the moment of a disconnect is
// failed with one.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// A MalformedResponseError reports that decoding an inbound response failed,
// or that its body did not match the kind of the request. Layer names the
// envelope layer at which decoding stopped.
type MalformedResponseError struct {
	Layer string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response at %s layer: %v", e.Layer, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// An UnsupportedOperationError reports an operation whose kind is neither
// command nor query. It is raised before anything is written to the
// transport.
type UnsupportedOperationError struct {
	Kind OperationKind
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation kind %q", e.Kind)
}
