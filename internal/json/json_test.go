// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package json

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type envelope struct {
	ID      int64    `json:"id"`
	Service []byte   `json:"service,omitempty"`
	Inner   *payload `json:"inner,omitempty"`
}

type payload struct {
	Name string `json:"name"`
}

func TestUnmarshalCaseSensitive(t *testing.T) {
	tests := []struct {
		name string
		data string
		want envelope
	}{
		{
			name: "exact match",
			data: `{"id":7,"inner":{"name":"put"}}`,
			want: envelope{ID: 7, Inner: &payload{Name: "put"}},
		},
		{
			// Mismatched case must not bind to the field.
			name: "case mismatch ignored",
			data: `{"ID":7,"inner":{"Name":"put"}}`,
			want: envelope{Inner: &payload{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got envelope
			if err := Unmarshal([]byte(tt.data), &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Unmarshal mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := envelope{ID: 3, Service: []byte{0x01, 0x02}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out envelope
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckKeys(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string // error should contain this; empty for success
	}{
		{"clean object", `{"id":1,"service":"AQ=="}`, ""},
		{"not an object", `[1,2,3]`, ""},
		{"top-level duplicate", `{"id":1,"ID":2}`, "duplicate key"},
		{"nested duplicate", `{"inner":{"name":"a","Name":"b"}}`, "duplicate key"},
		{"duplicate inside array", `{"items":[{"k":1,"K":2}]}`, "duplicate key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckKeys([]byte(tt.data))
			if tt.want == "" {
				if err != nil {
					t.Errorf("CheckKeys = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("CheckKeys = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
