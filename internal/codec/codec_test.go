// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cosnicolaou/gocomp/internal/gconfig"
)

func TestNameAndExtension(t *testing.T) {
	cases := []struct {
		id   ID
		name string
		ext  string
	}{
		{Huffman, "huffman", ".huf"},
		{RLE, "rle", ".rle"},
		{LZ77, "lz77", ".lz77"},
		{ObfuscatedLZ77, "lz77-obfuscated", ".lz77e"},
		{Progressive, "progressive", ".prog"},
	}
	for _, tc := range cases {
		if got := Name(tc.id); got != tc.name {
			t.Errorf("Name(%v) = %q, want %q", tc.id, got, tc.name)
		}
		if got := Extension(tc.id); got != tc.ext {
			t.Errorf("Extension(%v) = %q, want %q", tc.id, got, tc.ext)
		}
	}
}

func TestFromExtension(t *testing.T) {
	id, ok := FromExtension("archive.lz77p")
	if !ok || id != LZ77Parallel {
		t.Fatalf("FromExtension(archive.lz77p) = %v, %v", id, ok)
	}
	if _, ok := FromExtension("archive.unknown"); ok {
		t.Fatal("expected no match for an unregistered extension")
	}
}

func TestBaseOf(t *testing.T) {
	if base, ok := BaseOf(RLEParallel); !ok || base != RLE {
		t.Fatalf("BaseOf(RLEParallel) = %v, %v", base, ok)
	}
	if _, ok := BaseOf(Huffman); ok {
		t.Fatal("Huffman is not a parallel variant")
	}
}

func TestForRoundTrips(t *testing.T) {
	cfg := gconfig.New(gconfig.WithEncryptionKey("k"))
	data := []byte(strings.Repeat("round trip me ", 50))
	for _, id := range []ID{Huffman, RLE, LZ77, ObfuscatedLZ77, HuffmanParallel, RLEParallel, LZ77Parallel} {
		c, err := For(id)
		if err != nil {
			t.Fatalf("For(%v): %v", id, err)
		}
		enc, err := c.EncodeBuffer(data, cfg)
		if err != nil {
			t.Fatalf("For(%v).EncodeBuffer: %v", id, err)
		}
		dec, err := c.DecodeBuffer(enc, cfg)
		if err != nil {
			t.Fatalf("For(%v).DecodeBuffer: %v", id, err)
		}
		if !bytes.Equal(dec, data) {
			t.Errorf("For(%v): round trip mismatch", id)
		}
	}
}

func TestForUnsupported(t *testing.T) {
	if _, err := For(Progressive); err == nil {
		t.Fatal("expected Progressive to be unsupported by the buffer codec registry")
	}
}
