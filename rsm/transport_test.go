// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strings"
	"testing"
)

func TestIOConnRoundTrip(t *testing.T) {
	ctx := context.Background()
	at, bt := NewInMemoryTransports()
	a, err := at.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := bt.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := [][]byte{[]byte("one"), {0x00, 0x01, 0x02}, bytes.Repeat([]byte{0xab}, 4096)}
	go func() {
		for _, f := range want {
			b.Write(ctx, f)
		}
	}()
	for i, w := range want {
		got, err := a.Read(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, w) {
			t.Errorf("frame %d = %x, want %x", i, got, w)
		}
	}
}

func TestIOConnInvalidLength(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], maxFrameSize+1)
	conn := newIOConn(rwc{
		rc: io.NopCloser(bytes.NewReader(prefix[:])),
	})
	_, err := conn.Read(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid frame length") {
		t.Errorf("Read() error = %v, want invalid frame length", err)
	}
}

func TestIOConnTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], 10)
	buf.Write(prefix[:])
	buf.Write([]byte("short"))
	conn := newIOConn(rwc{rc: io.NopCloser(&buf)})
	_, err := conn.Read(context.Background())
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Read() error = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestIOConnCloseUnblocksRead(t *testing.T) {
	at, _ := NewInMemoryTransports()
	a, err := at.Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	errc := make(chan error, 1)
	go func() {
		_, err := a.Read(context.Background())
		errc <- err
	}()
	a.Close()
	if err := <-errc; err == nil {
		t.Error("Read returned nil after Close, want error")
	}
}
