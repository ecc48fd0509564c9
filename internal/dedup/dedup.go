// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package dedup implements the deduplication engine of spec.md §4.11:
// content-defined (or fixed-size) chunking, SHA-1 chunk fingerprinting, a
// hash table of previously seen chunks keyed by the first two fingerprint
// bytes, and a "DEDUP"-tagged reference/data stream. The rolling-hash CDC
// boundary search is grounded directly on the original C implementation's
// roll_hash/find_chunk_boundary (Rabin-Karp, P=31, 48-byte window, low-16-
// bits-zero test); the collision-list hash table keyed on the first two
// fingerprint bytes is likewise grounded on that source's hash_table +
// ChunkHash. The duplicate-chunk bookkeeping style (a Fragment carrying a
// "New" flag) follows the shape of the klauspost/dedup Writer's Fragment
// type from the retrieval pack, adapted here to a single in-memory
// buffer-to-buffer pass rather than a streaming io.Writer.
package dedup

import (
	"crypto/sha1"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/cosnicolaou/gocomp/internal/gcerr"
)

// Mode selects how the input is split into chunks.
type Mode int

const (
	Fixed Mode = iota
	Variable
	Smart
)

func (m Mode) String() string {
	switch m {
	case Fixed:
		return "fixed"
	case Variable:
		return "variable"
	case Smart:
		return "smart"
	default:
		return "unknown"
	}
}

// BoundaryHash selects the rolling hash used to find content-defined
// boundaries; it never substitutes for the SHA-1 chunk fingerprint used for
// duplicate identity (per the resolved hash_alg ambiguity in DESIGN.md).
type BoundaryHash int

const (
	RollingRabinKarp BoundaryHash = iota
	RollingXXH64
)

const (
	cdcPrime      = 31
	cdcWindow     = 48
	cdcMask       = 0xFFFF // low 16 bits must be zero at a boundary
	minChunkBytes = 64
)

const magic = "DEDUP"

// Stats reports the outcome of a dedup pass, per spec.md §4.11.
type Stats struct {
	TotalBytes          uint64
	BytesAfterDedup     uint64
	TotalChunks         uint64
	DuplicateChunks     uint64
	DuplicateBytesSaved uint64
	DedupRatio          float64
}

type chunkEntry struct {
	fingerprint [sha1.Size]byte
	offset      uint64
	size        uint64
	refCount    uint64
	next        *chunkEntry
}

type table struct {
	buckets map[uint16]*chunkEntry
}

func newTable() *table {
	return &table{buckets: make(map[uint16]*chunkEntry)}
}

func bucketIndex(fp [sha1.Size]byte) uint16 {
	return uint16(fp[0])<<8 | uint16(fp[1])
}

// find returns the offset of a previously seen chunk with the same
// fingerprint and size, if any.
func (t *table) find(fp [sha1.Size]byte, size uint64) (uint64, bool) {
	for e := t.buckets[bucketIndex(fp)]; e != nil; e = e.next {
		if e.fingerprint == fp && e.size == size {
			return e.offset, true
		}
	}
	return 0, false
}

func (t *table) insert(fp [sha1.Size]byte, offset, size uint64) {
	idx := bucketIndex(fp)
	t.buckets[idx] = &chunkEntry{fingerprint: fp, offset: offset, size: size, next: t.buckets[idx]}
}

// splitFixed partitions src into chunks of exactly chunkSize bytes, except
// possibly the last.
func splitFixed(src []byte, chunkSize int) [][2]int {
	var bounds [][2]int
	for start := 0; start < len(src); start += chunkSize {
		end := start + chunkSize
		if end > len(src) {
			end = len(src)
		}
		bounds = append(bounds, [2]int{start, end})
	}
	if len(bounds) == 0 {
		bounds = [][2]int{{0, 0}}
	}
	return bounds
}

// splitVariable finds content-defined boundaries using a Rabin-Karp rolling
// hash (P=31) over the last W=48 bytes: stepping onto byte i, the hash becomes
// P*(h - data[i-W]*P^(W-1)) + data[i], so h always equals the polynomial hash
// of exactly the current window, with a boundary declared wherever the hash's low 16 bits are zero, subject
// to a minimum chunk size. chunkSize bounds the maximum chunk length, mirroring
// the original source's "advance by chunk_size when no boundary is found."
func splitVariable(src []byte, chunkSize int, alg BoundaryHash) [][2]int {
	if len(src) == 0 {
		return [][2]int{{0, 0}}
	}
	var bounds [][2]int
	start := 0
	for start < len(src) {
		end := findBoundary(src, start, chunkSize, alg)
		bounds = append(bounds, [2]int{start, end})
		start = end
	}
	return bounds
}

// findBoundary scans from start for the first valid CDC boundary, never
// exceeding start+maxSize and never returning something closer than
// minChunkBytes to start (unless the remaining input is already that short).
func findBoundary(src []byte, start, maxSize int, alg BoundaryHash) int {
	limit := start + maxSize
	if limit > len(src) {
		limit = len(src)
	}
	if limit-start <= minChunkBytes {
		return limit
	}
	window := cdcWindow
	if window > limit-start {
		window = limit - start
	}

	switch alg {
	case RollingXXH64:
		for i := start + minChunkBytes; i < limit; i++ {
			wStart := i - window
			if wStart < start {
				wStart = start
			}
			if xxhash.Sum64(src[wStart:i])&cdcMask == 0 {
				return i
			}
		}
		return limit
	default:
		var power uint32 = 1
		for i := 0; i < window-1; i++ {
			power *= cdcPrime
		}
		var hash uint32
		for i := start; i < start+window; i++ {
			hash = hash*cdcPrime + uint32(src[i])
		}
		for i := start + window; i < limit; i++ {
			if i >= start+minChunkBytes && hash&cdcMask == 0 {
				return i
			}
			hash = cdcPrime*(hash-uint32(src[i-window])*power) + uint32(src[i])
		}
		return limit
	}
}

// Result is the output of Encode: the DEDUP stream bytes plus statistics.
type Result struct {
	Stream []byte
	Stats  Stats
}

// Encode deduplicates src, producing the "DEDUP" stream of spec.md §3:
// header, then per chunk a size+is_reference flag and either the raw bytes
// (new) or a back-reference to an earlier identical chunk's offset.
func Encode(src []byte, chunkSize int, mode Mode, alg BoundaryHash) (Result, error) {
	if chunkSize <= 0 {
		return Result{}, &gcerr.InvalidArgument{What: "dedup: chunk_bytes must be positive"}
	}
	var bounds [][2]int
	switch mode {
	case Fixed:
		bounds = splitFixed(src, chunkSize)
	case Variable, Smart:
		bounds = splitVariable(src, chunkSize, alg)
	default:
		return Result{}, &gcerr.InvalidArgument{What: "dedup: unknown mode"}
	}

	t := newTable()
	stats := Stats{TotalBytes: uint64(len(src))}

	var out []byte
	out = append(out, magic...)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(len(src)))
	out = append(out, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], uint64(len(bounds)))
	out = append(out, u64[:]...)

	for _, b := range bounds {
		chunk := src[b[0]:b[1]]
		size := uint64(len(chunk))
		fp := sha1.Sum(chunk)
		stats.TotalChunks++

		var sizeBuf [8]byte
		binary.LittleEndian.PutUint64(sizeBuf[:], size)
		out = append(out, sizeBuf[:]...)

		if offset, ok := t.find(fp, size); ok {
			out = append(out, 1)
			var off [8]byte
			binary.LittleEndian.PutUint64(off[:], offset)
			out = append(out, off[:]...)
			stats.DuplicateChunks++
			stats.DuplicateBytesSaved += size
		} else {
			out = append(out, 0)
			out = append(out, chunk...)
			t.insert(fp, uint64(b[0]), size)
			stats.BytesAfterDedup += size
		}
	}
	if stats.TotalBytes > 0 {
		stats.DedupRatio = 1 - float64(stats.BytesAfterDedup)/float64(stats.TotalBytes)
	}
	return Result{Stream: out, Stats: stats}, nil
}

// Decode reverses Encode, resolving back-references against the original
// bytes already written to the output.
func Decode(src []byte) ([]byte, error) {
	if len(src) < 5+16 || string(src[0:5]) != magic {
		return nil, &gcerr.Corrupt{What: "dedup: bad stream magic"}
	}
	originalSize := binary.LittleEndian.Uint64(src[5:13])
	chunkCount := binary.LittleEndian.Uint64(src[13:21])

	out := make([]byte, 0, originalSize)
	pos := 21
	for i := uint64(0); i < chunkCount; i++ {
		if len(src) < pos+9 {
			return nil, &gcerr.Corrupt{What: "dedup: truncated chunk record"}
		}
		size := binary.LittleEndian.Uint64(src[pos : pos+8])
		isRef := src[pos+8]
		pos += 9
		if isRef != 0 {
			if len(src) < pos+8 {
				return nil, &gcerr.Corrupt{What: "dedup: truncated reference"}
			}
			offset := binary.LittleEndian.Uint64(src[pos : pos+8])
			pos += 8
			if offset+size > uint64(len(out)) {
				return nil, &gcerr.Corrupt{What: "dedup: reference points past already-decoded bytes"}
			}
			out = append(out, out[offset:offset+size]...)
		} else {
			if uint64(len(src)) < uint64(pos)+size {
				return nil, &gcerr.Corrupt{What: "dedup: truncated chunk payload"}
			}
			out = append(out, src[pos:pos+int(size)]...)
			pos += int(size)
		}
	}
	if uint64(len(out)) != originalSize {
		return nil, &gcerr.Corrupt{What: "dedup: decoded size does not match header"}
	}
	return out, nil
}
