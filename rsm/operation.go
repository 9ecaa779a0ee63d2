// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import "github.com/rsmprotocol/go-sdk/wire"

// OperationKind distinguishes mutating operations from read-only ones. The
// server enforces different consistency guarantees on the two paths, so
// mislabeling an operation is a correctness bug, not a performance issue.
type OperationKind string

const (
	// OperationCommand mutates replicated state and goes through the
	// consensus path.
	OperationCommand OperationKind = "command"
	// OperationQuery is read-only and may use a relaxed read path.
	OperationQuery OperationKind = "query"
)

// An OperationID names an operation of a primitive service and labels it
// with its kind. It is immutable.
type OperationID struct {
	ID   string
	Kind OperationKind
}

// Command returns a command OperationID with the given name.
func Command(id string) OperationID {
	return OperationID{ID: id, Kind: OperationCommand}
}

// Query returns a query OperationID with the given name.
func Query(id string) OperationID {
	return OperationID{ID: id, Kind: OperationQuery}
}

// kind maps an OperationKind to its transport envelope kind, rejecting
// anything outside {command, query} before the transport is touched.
func (op OperationID) kind() (wire.Kind, error) {
	switch op.Kind {
	case OperationCommand:
		return wire.KindCommand, nil
	case OperationQuery:
		return wire.KindQuery, nil
	default:
		return "", &UnsupportedOperationError{Kind: op.Kind}
	}
}
