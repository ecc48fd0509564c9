// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package huffman

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
)

func TestRoundTripSimple(t *testing.T) {
	for _, tc := range [][]byte{
		nil,
		[]byte(""),
		[]byte("a"),
		[]byte("aaaaaaaaaa"),
		[]byte("ABABABABAB"),
		[]byte(strings.Repeat("the quick brown fox ", 1000)),
	} {
		enc, err := EncodeBuffer(tc, 0)
		if err != nil {
			t.Fatalf("%q: encode: %v", tc, err)
		}
		dec, err := DecodeBuffer(enc)
		if err != nil {
			t.Fatalf("%q: decode: %v", tc, err)
		}
		if !bytes.Equal(dec, tc) {
			if len(tc) == 0 && len(dec) == 0 {
				continue
			}
			t.Errorf("round trip mismatch: got %q, want %q", dec, tc)
		}
	}
}

func TestRoundTripRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for _, size := range []int{1, 17, 1000, 65536} {
		data := make([]byte, size)
		rnd.Read(data)
		enc, err := EncodeBuffer(data, 0)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		dec, err := DecodeBuffer(enc)
		if err != nil {
			t.Fatalf("size %d: decode: %v", size, err)
		}
		if !bytes.Equal(dec, data) {
			t.Errorf("size %d: round trip mismatch", size)
		}
	}
}

func TestCompressionRatio(t *testing.T) {
	data := []byte(strings.Repeat("the quick brown fox", 1000))
	enc, err := EncodeBuffer(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, limit := float64(len(enc)), 0.25*float64(len(data)); got >= limit {
		t.Errorf("compressed size %v not < %v (%.2f of original)", got, limit, got/float64(len(data)))
	}
}

func TestRejectsExceedingMaxDepth(t *testing.T) {
	// Force a skewed frequency distribution that cannot fit in a 2-level
	// tree with more than 2 distinct symbols.
	data := []byte{0, 0, 0, 1, 2}
	if _, err := EncodeBuffer(data, 1); err == nil {
		t.Fatal("expected an error for an unreachable max depth")
	}
}

func TestChunkedMatchesSingleShot(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	data := make([]byte, 50000)
	rnd.Read(data)
	chunks := chunkSlice(data, 4096)

	enc := NewChunkEncoder(0)
	for _, c := range chunks {
		enc.Observe(c)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}
	header := enc.Header()
	var encodedChunks [][]byte
	for _, c := range chunks {
		encodedChunks = append(encodedChunks, enc.EncodeChunk(c))
	}
	if tail := enc.Flush(); len(tail) > 0 {
		encodedChunks[len(encodedChunks)-1] = append(encodedChunks[len(encodedChunks)-1], tail...)
	}

	dec, rest, err := NewChunkDecoder(header)
	if err != nil {
		t.Fatal(err)
	}
	var got []byte
	done := false
	feed := append(append([]byte{}, rest...), encodedChunks[0]...)
	for i := 1; !done; {
		var chunkErr error
		got, done, chunkErr = dec.DecodeChunk(got, feed)
		if chunkErr != nil {
			t.Fatal(chunkErr)
		}
		if done {
			break
		}
		if i >= len(encodedChunks) {
			t.Fatal("ran out of encoded chunks before decode finished")
		}
		feed = encodedChunks[i]
		i++
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("chunked round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func chunkSlice(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}
