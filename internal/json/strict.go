// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package json

import (
	"fmt"
	"strings"

	"github.com/segmentio/encoding/json"
)

// CheckKeys verifies that no JSON object in data, at any nesting depth,
// contains two keys that differ only by case (e.g. "output" and "Output").
// Go's unmarshalling matches field names case-insensitively, so such a pair
// would let one envelope field shadow another; inbound envelopes are rejected
// before decoding instead.
func CheckKeys(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not an object; an array may still hold objects.
		return checkValue(data)
	}
	return checkObject(raw)
}

func checkObject(obj map[string]json.RawMessage) error {
	seen := make(map[string]string, len(obj)) // lowercase -> original
	for key := range obj {
		lower := strings.ToLower(key)
		if prev, ok := seen[lower]; ok && prev != key {
			return fmt.Errorf("duplicate key with different case: %q and %q", prev, key)
		}
		seen[lower] = key
	}
	for key, val := range obj {
		if err := checkValue(val); err != nil {
			return fmt.Errorf("in field %q: %w", key, err)
		}
	}
	return nil
}

func checkValue(data json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		return checkObject(obj)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		for i, elem := range arr {
			if err := checkValue(elem); err != nil {
				return fmt.Errorf("at index %d: %w", i, err)
			}
		}
	}
	return nil
}
