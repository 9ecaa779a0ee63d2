// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/rsmprotocol/go-sdk/internal/json"
)

// A Codec pairs the encoder and decoder for one payload type.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSONCodec marshals payloads as JSON.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// A SchemaCodec is a JSONCodec that validates values against a schema
// inferred from T. Requests are validated before encoding, so a malformed
// value never reaches the wire; decoded outputs are validated the same way.
type SchemaCodec[T any] struct {
	resolved *jsonschema.Resolved
}

// NewSchemaCodec infers and resolves the schema for T.
func NewSchemaCodec[T any]() (*SchemaCodec[T], error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
	if err != nil {
		return nil, fmt.Errorf("resolving schema: %w", err)
	}
	return &SchemaCodec[T]{resolved: resolved}, nil
}

func (c *SchemaCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := c.validate(data); err != nil {
		return nil, fmt.Errorf("validating payload: %w", err)
	}
	return data, nil
}

func (c *SchemaCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	if err := c.validate(data); err != nil {
		return v, fmt.Errorf("validating output: %w", err)
	}
	return v, nil
}

// validate checks data, a JSON encoding of T, against the schema. The
// Resolved.Validate API requires a plain JSON value (e.g. map[string]any),
// not a struct, so data is decoded generically first.
func (c *SchemaCodec[T]) validate(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return err
	}
	return c.resolved.Validate(instance)
}
