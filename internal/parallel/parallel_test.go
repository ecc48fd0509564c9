// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package parallel

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/cosnicolaou/gocomp/internal/codec"
	"github.com/cosnicolaou/gocomp/internal/gconfig"
)

func TestNumChunks(t *testing.T) {
	cases := []struct {
		size, threads, want int
	}{
		{0, 4, 1},
		{500, 4, 1},
		{4096, 4, 4},
		{4096, 2, 2},
		{100000, 4, 4},
	}
	for _, tc := range cases {
		if got := NumChunks(tc.size, tc.threads); got != tc.want {
			t.Errorf("NumChunks(%v, %v) = %v, want %v", tc.size, tc.threads, got, tc.want)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c, err := codec.For(codec.RLE)
	if err != nil {
		t.Fatal(err)
	}
	cfg := gconfig.New(gconfig.WithThreadCount(4))
	data := []byte(strings.Repeat("aaaabbbbccccdddd", 2000))

	progressCh := make(chan Progress, 64)
	enc, err := Encode(context.Background(), data, c, cfg, progressCh)
	close(progressCh)
	if err != nil {
		t.Fatal(err)
	}
	var got []Progress
	for p := range progressCh {
		got = append(got, p)
	}
	for i, p := range got {
		if p.Chunk != i {
			t.Errorf("progress out of order: event %d reports chunk %d", i, p.Chunk)
		}
	}

	dec, err := Decode(context.Background(), enc, c, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, data) {
		t.Fatal("round trip mismatch")
	}
}

// TestEncodeWireFormat pins the exact little-endian, interleaved
// header-then-payload layout of spec.md §4.8, rather than only checking
// Encode/Decode self-consistency: a reader written from the spec alone,
// with no knowledge of this package, must be able to parse this byte
// layout directly.
func TestEncodeWireFormat(t *testing.T) {
	c, err := codec.For(codec.RLE)
	if err != nil {
		t.Fatal(err)
	}
	cfg := gconfig.New(gconfig.WithThreadCount(2))
	data := []byte(strings.Repeat("xyzxyzxyz", 4000))

	enc, err := Encode(context.Background(), data, c, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) < 4 {
		t.Fatal("encoded output too short to contain chunk_count")
	}
	n := int(binary.LittleEndian.Uint32(enc[0:4]))
	if n != NumChunks(len(data), 2) {
		t.Fatalf("chunk_count = %d, want %d", n, NumChunks(len(data), 2))
	}

	pos := 4
	wantOffset := 0
	for i := 0; i < n; i++ {
		if len(enc) < pos+24 {
			t.Fatalf("chunk %d: header truncated at offset %d", i, pos)
		}
		gotOffset := int(binary.LittleEndian.Uint64(enc[pos : pos+8]))
		origSize := int(binary.LittleEndian.Uint64(enc[pos+8 : pos+16]))
		compSize := int64(binary.LittleEndian.Uint64(enc[pos+16 : pos+24]))
		pos += 24

		if gotOffset != wantOffset {
			t.Errorf("chunk %d: original_offset = %d, want %d", i, gotOffset, wantOffset)
		}
		if compSize < 0 || len(enc) < pos+int(compSize) {
			t.Fatalf("chunk %d: compressed_size %d overruns buffer", i, compSize)
		}
		// Each chunk's compressed_bytes must sit immediately after its own
		// header, not in a separate trailing payload section.
		pos += int(compSize)
		wantOffset += origSize
	}
	if pos != len(enc) {
		t.Fatalf("trailing bytes after last chunk payload: consumed %d of %d", pos, len(enc))
	}
	if wantOffset != len(data) {
		t.Fatalf("sum of original_size = %d, want %d", wantOffset, len(data))
	}

	dec, err := Decode(context.Background(), enc, c, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestDecodeTruncatedIndex(t *testing.T) {
	if _, err := Decode(context.Background(), []byte{0, 0, 0, 2}, nil, gconfig.New(), nil); err == nil {
		t.Fatal("expected an error for a truncated chunk index")
	}
}

func TestEncodeEmptyInput(t *testing.T) {
	c, err := codec.For(codec.Huffman)
	if err != nil {
		t.Fatal(err)
	}
	cfg := gconfig.New()
	enc, err := Encode(context.Background(), nil, c, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Decode(context.Background(), enc, c, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dec) != 0 {
		t.Fatalf("expected empty output, got %d bytes", len(dec))
	}
}
