// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package checksum

import (
	"testing"
)

func TestComputeAndVerify(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	for _, tc := range []struct {
		alg Algorithm
		len int
	}{
		{None, 0},
		{CRC32, 4},
		{MD5, 16},
		{SHA256, 32},
	} {
		rec := Compute(tc.alg, data)
		if got, want := len(rec.Bytes), tc.len; got != want {
			t.Errorf("%v: got %v bytes, want %v", tc.alg, got, want)
		}
		if !Verify(data, rec) {
			t.Errorf("%v: verify failed for matching data", tc.alg)
		}
		if tc.alg != None && Verify(append(append([]byte{}, data...), 0), rec) {
			t.Errorf("%v: verify succeeded for mismatched data", tc.alg)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{None, CRC32, MD5, SHA256} {
		rec := Compute(alg, []byte("payload"))
		buf := Marshal(nil, rec)
		got, n, err := Unmarshal(buf)
		if err != nil {
			t.Fatalf("%v: %v", alg, err)
		}
		if n != len(buf) {
			t.Errorf("%v: consumed %v, want %v", alg, n, len(buf))
		}
		if got.Algorithm != rec.Algorithm {
			t.Errorf("%v: algorithm mismatch: %v", alg, got.Algorithm)
		}
	}
}

func TestByteLength(t *testing.T) {
	for alg, want := range map[Algorithm]int{None: 0, CRC32: 4, MD5: 16, SHA256: 32} {
		if got := ByteLength(alg); got != want {
			t.Errorf("%v: got %v, want %v", alg, got, want)
		}
	}
}
