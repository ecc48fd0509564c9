// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package checksum is a pure, allocation-light kit for computing and
// verifying the checksum records used by the container formats. It mirrors
// the accumulate-over-buffer shape of the teacher's internal/bzip2/crc.go
// but targets the standard IEEE CRC32 rather than bzip2's bit-reversed
// variant, since the container formats defined here own their own framing
// and have no compatibility requirement with bzip2's bitstream.
package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Algorithm identifies a checksum kind. The zero value is None.
type Algorithm uint32

const (
	None Algorithm = iota
	CRC32
	MD5
	SHA256
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case CRC32:
		return "crc32"
	case MD5:
		return "md5"
	case SHA256:
		return "sha256"
	default:
		return fmt.Sprintf("algorithm(%d)", uint32(a))
	}
}

// ByteLength returns the number of bytes a checksum of this algorithm
// occupies in its serialized form, excluding the leading algorithm tag.
func ByteLength(a Algorithm) int {
	switch a {
	case None:
		return 0
	case CRC32:
		return 4
	case MD5:
		return 16
	case SHA256:
		return 32
	default:
		return 0
	}
}

// Record is a tagged checksum value: Bytes holds the digest for Algorithm
// (empty for None), matching spec.md's "Checksum record" variant.
type Record struct {
	Algorithm Algorithm
	Bytes     []byte
}

// Compute returns the checksum record for buf under the given algorithm.
func Compute(a Algorithm, buf []byte) Record {
	switch a {
	case None:
		return Record{Algorithm: None}
	case CRC32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], crc32.ChecksumIEEE(buf))
		return Record{Algorithm: CRC32, Bytes: b[:]}
	case MD5:
		sum := md5.Sum(buf)
		return Record{Algorithm: MD5, Bytes: sum[:]}
	case SHA256:
		sum := sha256.Sum256(buf)
		return Record{Algorithm: SHA256, Bytes: sum[:]}
	default:
		return Record{Algorithm: None}
	}
}

// Verify reports whether buf's checksum under expected.Algorithm equals
// expected.Bytes.
func Verify(buf []byte, expected Record) bool {
	if expected.Algorithm == None {
		return true
	}
	got := Compute(expected.Algorithm, buf)
	if len(got.Bytes) != len(expected.Bytes) {
		return false
	}
	for i := range got.Bytes {
		if got.Bytes[i] != expected.Bytes[i] {
			return false
		}
	}
	return true
}

// Format renders a checksum record as "algorithm:hexbytes".
func Format(r Record) string {
	if r.Algorithm == None {
		return "none"
	}
	return fmt.Sprintf("%s:%x", r.Algorithm, r.Bytes)
}

// Marshal appends the wire form of r (u32 tag, then the algorithm's fixed
// number of bytes) to dst and returns the extended slice.
func Marshal(dst []byte, r Record) []byte {
	var tag [4]byte
	binary.LittleEndian.PutUint32(tag[:], uint32(r.Algorithm))
	dst = append(dst, tag[:]...)
	return append(dst, r.Bytes...)
}

// Unmarshal reads a tagged checksum record from the front of buf, returning
// the record and the number of bytes consumed.
func Unmarshal(buf []byte) (Record, int, error) {
	if len(buf) < 4 {
		return Record{}, 0, fmt.Errorf("checksum: truncated tag")
	}
	a := Algorithm(binary.LittleEndian.Uint32(buf))
	n := ByteLength(a)
	if len(buf) < 4+n {
		return Record{}, 0, fmt.Errorf("checksum: truncated %s value", a)
	}
	if n == 0 {
		return Record{Algorithm: a}, 4, nil
	}
	b := make([]byte, n)
	copy(b, buf[4:4+n])
	return Record{Algorithm: a, Bytes: b}, 4 + n, nil
}
