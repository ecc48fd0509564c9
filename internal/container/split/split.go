// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package split implements the split-volume container of spec.md §3 and
// §4.10: an archive's compressed bytes distributed across a sequence of
// "SPLT"-tagged part files, each carrying enough header information to be
// validated and reassembled independently. Part naming and sequencing
// mirror the teacher's multi-stream handling in multistream_test.go (concat
// of independently-framed bzip2 streams), generalized here from "streams
// concatenated in one file" to "one part per file."
package split

import (
	"encoding/binary"
	"fmt"

	"github.com/cosnicolaou/gocomp/internal/checksum"
	"github.com/cosnicolaou/gocomp/internal/gcerr"
)

const (
	magic         = "SPLT"
	partHeaderLen = 4 + 4 + 4 + 8 + 8 // magic, part_number, total_parts, payload_size, archive_size
)

// PartFileName returns the name of the n'th (1-based) part file for the
// given base name, per spec.md §3's "name.part0001, name.part0002, ..."
// sequencing.
func PartFileName(base string, n int) string {
	return fmt.Sprintf("%s.part%04d", base, n)
}

// Part is one encoded part: its header plus payload bytes, ready to be
// written to PartFileName(base, Number).
type Part struct {
	Number      int
	TotalParts  int
	PayloadSize int
	ArchiveSize int64
	Checksum    checksum.Record
	Payload     []byte
}

// Bytes renders the part's on-disk representation: header then payload.
func (p Part) Bytes() []byte {
	out := make([]byte, 0, partHeaderLen+4+checksum.ByteLength(p.Checksum.Algorithm)+len(p.Payload))
	out = append(out, magic...)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(p.Number))
	out = append(out, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], uint32(p.TotalParts))
	out = append(out, u32[:]...)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(p.PayloadSize))
	out = append(out, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], uint64(p.ArchiveSize))
	out = append(out, u64[:]...)
	out = checksum.Marshal(out, p.Checksum)
	out = append(out, p.Payload...)
	return out
}

// ParsePart parses a single part file's bytes, verifying the magic and the
// payload checksum.
func ParsePart(buf []byte) (Part, error) {
	if len(buf) < partHeaderLen {
		return Part{}, &gcerr.Corrupt{What: "split: truncated part header"}
	}
	if string(buf[0:4]) != magic {
		return Part{}, &gcerr.Corrupt{What: "split: bad part magic"}
	}
	p := Part{
		Number:      int(binary.LittleEndian.Uint32(buf[4:8])),
		TotalParts:  int(binary.LittleEndian.Uint32(buf[8:12])),
		PayloadSize: int(binary.LittleEndian.Uint64(buf[12:20])),
		ArchiveSize: int64(binary.LittleEndian.Uint64(buf[20:28])),
	}
	rec, n, err := checksum.Unmarshal(buf[28:])
	if err != nil {
		return Part{}, &gcerr.Corrupt{What: "split: truncated part checksum"}
	}
	p.Checksum = rec
	pos := 28 + n
	if len(buf) < pos+p.PayloadSize {
		return Part{}, &gcerr.Corrupt{What: "split: truncated part payload"}
	}
	p.Payload = buf[pos : pos+p.PayloadSize]
	if !checksum.Verify(p.Payload, p.Checksum) {
		return Part{}, &gcerr.CorruptPart{Part: p.Number, What: "checksum mismatch"}
	}
	return p, nil
}

// EncodeParts splits compressed (the codec-compressed archive bytes) into
// parts of at most maxPartBytes payload each, per spec.md §4.10: "distribute
// the compressed bytes across part files until each reaches the cap."
func EncodeParts(compressed []byte, maxPartBytes int, alg checksum.Algorithm) ([]Part, error) {
	if maxPartBytes <= 0 {
		return nil, &gcerr.InvalidArgument{What: "split: max_part_bytes must be positive"}
	}
	archiveSize := int64(len(compressed))
	total := (len(compressed) + maxPartBytes - 1) / maxPartBytes
	if total == 0 {
		total = 1
	}
	parts := make([]Part, 0, total)
	for i := 0; i < total; i++ {
		start := i * maxPartBytes
		end := start + maxPartBytes
		if end > len(compressed) {
			end = len(compressed)
		}
		payload := compressed[start:end]
		parts = append(parts, Part{
			Number:      i + 1,
			TotalParts:  total,
			PayloadSize: len(payload),
			ArchiveSize: archiveSize,
			Checksum:    checksum.Compute(alg, payload),
			Payload:     payload,
		})
	}
	return parts, nil
}

// Reassemble concatenates a complete, ordered set of parts' payloads back
// into the original compressed archive bytes. partFiles must be supplied in
// ascending part-number order; a missing part, a part whose declared
// total-parts disagrees with the set, or a checksum failure on any part
// fails with that part identified.
func Reassemble(partFiles [][]byte) ([]byte, error) {
	if len(partFiles) == 0 {
		return nil, &gcerr.InvalidArgument{What: "split: no parts supplied"}
	}
	first, err := ParsePart(partFiles[0])
	if err != nil {
		return nil, err
	}
	if len(partFiles) != first.TotalParts {
		return nil, &gcerr.CorruptPart{Part: 1, What: "total_parts does not match the number of part files found"}
	}
	out := make([]byte, 0, first.ArchiveSize)
	out = append(out, first.Payload...)
	for i := 1; i < len(partFiles); i++ {
		p, err := ParsePart(partFiles[i])
		if err != nil {
			return nil, err
		}
		if p.Number != i+1 || p.TotalParts != first.TotalParts {
			return nil, &gcerr.CorruptPart{Part: i + 1, What: "part number or total_parts mismatch"}
		}
		out = append(out, p.Payload...)
	}
	if int64(len(out)) != first.ArchiveSize {
		return nil, &gcerr.Corrupt{What: "split: reassembled archive size mismatch"}
	}
	return out, nil
}
