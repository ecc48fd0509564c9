// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package lz77 implements the sliding-window codec of spec.md §4.5: a
// token stream of literals and back-references over a bounded window,
// searched with a hash-chain index so match lookup stays close to O(1)
// amortized rather than the O(window) naive scan. The hash-chain shape is
// grounded on the teacher's internal/bitstream lookup-table approach to
// fast subsequence search (AllShiftedValues/Scan build a table once and
// probe it per position); here the table maps a short prefix hash to the
// chain of window positions sharing it, adapted from bit-level magic-
// number scanning to byte-level match search.
package lz77

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cosnicolaou/gocomp/internal/gcerr"
)

// Params configures the sliding-window search. Decoding never consults
// Params: spec.md §3 specifies the token stream is self-describing and
// decoder-independent.
type Params struct {
	WindowSize int
	Lookahead  int
	MinMatch   int
}

// Default, Speed, and Size are the three presets of spec.md §3.
var (
	Default = Params{WindowSize: 4096, Lookahead: 16, MinMatch: 3}
	Speed   = Params{WindowSize: 1024, Lookahead: 8, MinMatch: 4}
	Size    = Params{WindowSize: 8192, Lookahead: 32, MinMatch: 2}
)

const (
	tagLiteral  = 0
	tagBackref  = 1
	hashBytes   = 3 // prefix length used to index the match-chain table
	chainBucket = 1 << 15
)

// EncodeBuffer compresses src using the given search parameters (the zero
// Params selects Default). The emitted token sequence need not be
// reproduced identically by other implementations, only losslessly
// decodable, per spec.md §4.5.
func EncodeBuffer(src []byte, p Params) []byte {
	if p.WindowSize == 0 {
		p = Default
	}
	out := make([]byte, 8, 8+len(src))
	binary.LittleEndian.PutUint64(out, uint64(len(src)))

	chains := newHashChains()

	i := 0
	for i < len(src) {
		bestLen, bestOff := findMatch(src, i, p, chains)
		if bestLen >= p.MinMatch {
			out = append(out, tagBackref)
			var off [2]byte
			binary.BigEndian.PutUint16(off[:], uint16(bestOff)) // big-endian per spec.md §6
			out = append(out, off[0], off[1], byte(bestLen))
			for k := 0; k < bestLen; k++ {
				chains.insert(src, i+k, hashBytes)
			}
			i += bestLen
			continue
		}
		out = append(out, tagLiteral, src[i])
		chains.insert(src, i, hashBytes)
		i++
	}
	return out
}

// hashChains indexes every position seen so far by the hash of its next
// hashBytes-byte prefix, so match search only probes positions that
// actually share a prefix instead of scanning the whole window.
type hashChains struct {
	head map[uint32]int // hash -> most recent window position
	prev []int32        // prev[pos] -> earlier window position with same hash, or -1
}

func newHashChains() *hashChains {
	return &hashChains{head: make(map[uint32]int, chainBucket)}
}

func prefixHash(b []byte) uint32 {
	var h uint32
	for _, c := range b {
		h = h*131 + uint32(c)
	}
	return h
}

func (c *hashChains) insert(src []byte, pos int, n int) {
	for len(c.prev) <= pos {
		c.prev = append(c.prev, -1)
	}
	if pos+n > len(src) {
		return
	}
	h := prefixHash(src[pos : pos+n])
	c.prev[pos] = int32(valueOr(c.head, h, -1))
	c.head[h] = pos
}

func valueOr(m map[uint32]int, k uint32, def int) int {
	if v, ok := m[k]; ok {
		return v
	}
	return def
}

// findMatch returns the longest match at position i within p.WindowSize
// bytes behind it, at least p.MinMatch long, breaking ties toward the
// shortest offset per spec.md §4.5.
func findMatch(src []byte, i int, p Params, chains *hashChains) (bestLen, bestOff int) {
	if i+hashBytes > len(src) {
		return 0, 0
	}
	maxLen := len(src) - i
	if maxLen > p.Lookahead {
		maxLen = p.Lookahead
	}
	if maxLen > 255 {
		maxLen = 255
	}

	h := prefixHash(src[i : i+hashBytes])
	pos, ok := chains.head[h]
	tries := 64 // bound chain walk cost; acceptable given emitted-sequence freedom
	for ok && tries > 0 {
		if i-pos > p.WindowSize {
			break
		}
		l := matchLength(src, pos, i, maxLen)
		if l > bestLen || (l == bestLen && l > 0 && i-pos < bestOff) {
			bestLen, bestOff = l, i-pos
		}
		next := chains.prev[pos]
		if next < 0 {
			break
		}
		pos = int(next)
		tries--
	}
	return bestLen, bestOff
}

func matchLength(src []byte, a, b, maxLen int) int {
	n := 0
	for n < maxLen && src[a+n] == src[b+n] {
		n++
	}
	return n
}

// DecodeBuffer reverses EncodeBuffer. Back-references are copied allowing
// the source region to overlap bytes being written, per spec.md §4.5 — the
// standard LZ77 overlapping-copy mechanism that expands runs shorter than
// their own offset.
func DecodeBuffer(src []byte) ([]byte, error) {
	if len(src) < 8 {
		return nil, &gcerr.Corrupt{What: "lz77: truncated length header"}
	}
	length := binary.LittleEndian.Uint64(src[:8])
	tokens := src[8:]
	// A 4-byte back-reference yields at most 255 bytes, so no token stream
	// can produce more than 64 bytes per input byte.
	if length > uint64(len(tokens))*64 {
		return nil, &gcerr.Corrupt{What: "lz77: declared length exceeds what the token stream can produce"}
	}
	out := make([]byte, 0, length)

	for uint64(len(out)) < length {
		if len(tokens) < 1 {
			return nil, &gcerr.Corrupt{What: "lz77: truncated token stream"}
		}
		tag := tokens[0]
		tokens = tokens[1:]
		switch tag {
		case tagLiteral:
			if len(tokens) < 1 {
				return nil, &gcerr.Corrupt{What: "lz77: truncated literal"}
			}
			out = append(out, tokens[0])
			tokens = tokens[1:]
		case tagBackref:
			if len(tokens) < 3 {
				return nil, &gcerr.Corrupt{What: "lz77: truncated back-reference"}
			}
			offset := int(binary.BigEndian.Uint16(tokens[:2]))
			runLen := int(tokens[2])
			tokens = tokens[3:]
			if offset == 0 || offset > len(out) {
				return nil, &gcerr.Corrupt{What: fmt.Sprintf("lz77: invalid back-reference offset %d at position %d", offset, len(out))}
			}
			if uint64(len(out)+runLen) > length {
				return nil, &gcerr.Corrupt{What: "lz77: back-reference would exceed declared output size"}
			}
			start := len(out) - offset
			for k := 0; k < runLen; k++ {
				out = append(out, out[start+k])
			}
		default:
			return nil, &gcerr.Corrupt{What: fmt.Sprintf("lz77: unknown token tag %d", tag)}
		}
	}
	if uint64(len(out)) != length {
		return nil, &gcerr.Corrupt{What: "lz77: token stream overruns declared length"}
	}
	return out, nil
}

// DebugDump renders a token stream as a hex string.
func DebugDump(src []byte) string {
	return hex.EncodeToString(src)
}
