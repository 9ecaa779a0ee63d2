// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package json is the JSON codec backend for the wire envelopes. Field
// names match case-sensitively: envelope fields are defined lowercase, and
// a peer sending "Output" for "output" must not be silently accepted.

package json

import "github.com/segmentio/encoding/json"

func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	_, err := json.Parse(data, v, json.DontMatchCaseInsensitiveStructFields)
	return err
}
