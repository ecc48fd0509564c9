// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package split

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/cosnicolaou/gocomp/internal/checksum"
)

func TestPartFileName(t *testing.T) {
	if got := PartFileName("out", 1); got != "out.part0001" {
		t.Fatalf("got %q", got)
	}
	if got := PartFileName("out", 4); got != "out.part0004" {
		t.Fatalf("got %q", got)
	}
}

func TestEncodeReassembleRoundTrip(t *testing.T) {
	// Scenario 5 from spec.md §8: 10 MiB input, max_part = 3 MiB -> exactly
	// 4 parts.
	r := rand.New(rand.NewSource(5))
	data := make([]byte, 10<<20)
	r.Read(data)

	parts, err := EncodeParts(data, 3<<20, checksum.CRC32)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 4 {
		t.Fatalf("expected exactly 4 parts, got %d", len(parts))
	}
	if parts[0].Number != 1 || parts[3].Number != 4 {
		t.Fatalf("parts are not 1-based sequential: %+v", parts)
	}
	if PartFileName("out", parts[3].Number) != "out.part0004" {
		t.Fatal("unexpected final part name")
	}

	var raw [][]byte
	for _, p := range parts {
		raw = append(raw, p.Bytes())
	}
	out, err := Reassemble(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("reassembly mismatch")
	}
}

func TestReassembleMissingPart(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1000)
	parts, err := EncodeParts(data, 300, checksum.CRC32)
	if err != nil {
		t.Fatal(err)
	}
	var raw [][]byte
	for i, p := range parts {
		if i == 1 {
			continue // drop the second part
		}
		raw = append(raw, p.Bytes())
	}
	if _, err := Reassemble(raw); err == nil {
		t.Fatal("expected an error for a missing part")
	}
}

func TestPartChecksumMismatch(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 500)
	parts, err := EncodeParts(data, 1000, checksum.CRC32)
	if err != nil {
		t.Fatal(err)
	}
	raw := parts[0].Bytes()
	raw[len(raw)-1] ^= 0xFF
	if _, err := ParsePart(raw); err == nil {
		t.Fatal("expected a checksum mismatch error")
	}
}

func TestSinglePart(t *testing.T) {
	data := []byte("small input that fits in one part")
	parts, err := EncodeParts(data, 4096, checksum.MD5)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	out, err := Reassemble([][]byte{parts[0].Bytes()})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("round trip mismatch")
	}
}
