// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package rle

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
)

func TestConcreteScenario(t *testing.T) {
	// Scenario 1 from spec.md §8: "AAAAAAAAAA" (10 bytes) -> header(10) +
	// 0x0A 0x41.
	enc := EncodeBuffer([]byte("AAAAAAAAAA"))
	if got, want := len(enc), 10; got != want {
		t.Fatalf("got %v bytes, want %v", got, want)
	}
	if got, want := enc[8:], []byte{0x0A, 0x41}; !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
	dec, err := DecodeBuffer(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(dec), "AAAAAAAAAA"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSizeMonotonicity(t *testing.T) {
	for _, n := range []int{1, 254, 255, 256, 1000, 1000000} {
		data := bytes.Repeat([]byte{'x'}, n)
		enc := EncodeBuffer(data)
		want := 8 + 2*((n+254)/255)
		if got := len(enc); got != want {
			t.Errorf("n=%d: got %v bytes, want %v", n, got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("a"),
		[]byte(strings.Repeat("ab", 500)),
	}
	random := make([]byte, 10000)
	rnd.Read(random)
	cases = append(cases, random)

	for _, tc := range cases {
		enc := EncodeBuffer(tc)
		dec, err := DecodeBuffer(enc)
		if err != nil {
			t.Fatalf("%v", err)
		}
		if !bytes.Equal(dec, tc) && !(len(dec) == 0 && len(tc) == 0) {
			t.Errorf("round trip mismatch for %q", tc)
		}
	}
}

func TestTruncatedStream(t *testing.T) {
	enc := EncodeBuffer([]byte("hello"))
	_, err := DecodeBuffer(enc[:len(enc)-1])
	if err == nil {
		t.Fatal("expected an error for a truncated pair stream")
	}
}
