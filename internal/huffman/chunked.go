// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package huffman

import (
	"encoding/binary"

	"github.com/cosnicolaou/gocomp/internal/bitio"
	"github.com/cosnicolaou/gocomp/internal/gcerr"
)

// ChunkEncoder drives the two-pass chunked encode of spec.md §4.3: the
// caller scans every chunk once via Observe, calls Finish to build a single
// tree from the accumulated frequencies, then re-reads the input and calls
// EncodeChunk for each chunk in the same order to emit bits.
type ChunkEncoder struct {
	freq     [256]uint64
	total    uint64
	maxDepth int
	t        *tree
	codes    CodeTable
	w        *bitio.Writer
	started  bool
	flushed  int // number of complete bytes already returned to the caller
}

// NewChunkEncoder returns a ChunkEncoder capping code length at maxDepth
// (DefaultMaxDepth if <= 0).
func NewChunkEncoder(maxDepth int) *ChunkEncoder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &ChunkEncoder{maxDepth: maxDepth}
}

// Observe accumulates frequency counts for one pass-1 chunk.
func (e *ChunkEncoder) Observe(chunk []byte) {
	for _, b := range chunk {
		e.freq[b]++
	}
	e.total += uint64(len(chunk))
}

// Finish builds the tree and code table from the accumulated frequencies.
// It must be called exactly once, after all chunks have been Observed and
// before any call to EncodeChunk.
func (e *ChunkEncoder) Finish() error {
	if e.total == 0 {
		return nil
	}
	t, err := buildTree(e.freq)
	if err != nil {
		return err
	}
	codes, err := codesFromTree(t, e.maxDepth)
	if err != nil {
		return err
	}
	e.t, e.codes = t, codes
	return nil
}

// Header returns the length-prefix and serialized tree that must precede
// the first emitted chunk's bits, exactly once, at the start of pass 2.
func (e *ChunkEncoder) Header() []byte {
	var header [8]byte
	binary.LittleEndian.PutUint64(header[:], e.total)
	if e.total == 0 {
		return header[:]
	}
	w := bitio.NewWriter(64)
	serializeTree(w, e.t)
	// Unlike the single-shot EncodeBuffer format, the chunked wire format
	// pads the tree to a byte boundary before the code stream begins: the
	// header is handed to the caller as a final, immutable byte slice, so
	// its last byte cannot be silently completed later the way a single
	// in-memory bit writer could.
	w.PadToByte()
	e.w = w
	e.started = true
	treeBytes := w.Bytes()
	e.flushed = len(treeBytes)
	return append(header[:], treeBytes...)
}

// EncodeChunk emits the complete bytes produced by encoding chunk's
// symbols. Any still-partial trailing byte is retained internally and
// completed (not duplicated) by a later call, or by Flush at the very end.
func (e *ChunkEncoder) EncodeChunk(chunk []byte) []byte {
	if e.total == 0 {
		return nil
	}
	for _, b := range chunk {
		c := e.codes[b]
		e.w.WriteBits(c.Bits, uint(c.Length))
	}
	all := e.w.Bytes()
	completeBytes := e.w.BitLen() / 8
	if completeBytes <= e.flushed {
		return nil
	}
	out := all[e.flushed:completeBytes]
	e.flushed = completeBytes
	return out
}

// Flush pads the final partial byte to a byte boundary and returns any
// bytes not yet handed to the caller (normally just the final, now-padded
// byte).
func (e *ChunkEncoder) Flush() []byte {
	if e.total == 0 || e.w == nil {
		return nil
	}
	e.w.PadToByte()
	all := e.w.Bytes()
	out := all[e.flushed:]
	e.flushed = len(all)
	return out
}

// ChunkDecoderState carries the decoder's position across chunk
// boundaries: the current tree-walk node and the bit reader's position
// within the still-to-be-consumed tail of the input, per the "chunked
// Huffman decoder state" design note in spec.md §9.
type ChunkDecoderState struct {
	t        *tree
	node     int32
	produced uint64
	total    uint64
	carry    []byte // unconsumed tail bits from the previous chunk, as whole bytes
	carryPos int     // bit offset into carry where the next unread bit starts
}

// NewChunkDecoder parses the length header and tree from the start of a
// Huffman stream and returns a state ready to decode chunk-by-chunk. header
// must contain at least the 8-byte length and the full serialized tree;
// remainder is any bit-stream bytes already available past the tree. The
// chunked wire format pads the tree to a byte boundary (see ChunkEncoder.
// Header), so the tree always ends cleanly on a byte the caller can slice
// off without any leftover partial-byte bookkeeping.
func NewChunkDecoder(header []byte) (*ChunkDecoderState, []byte, error) {
	if len(header) < 8 {
		return nil, nil, &gcerr.Corrupt{What: "huffman: truncated length header"}
	}
	length := binary.LittleEndian.Uint64(header[:8])
	st := &ChunkDecoderState{total: length}
	if length == 0 {
		return st, nil, nil
	}
	r := bitio.NewReader(header[8:])
	t, err := deserializeTree(r)
	if err != nil {
		return nil, nil, err
	}
	st.t = t
	st.node = t.root
	consumedBits := (len(header[8:]) * 8) - r.BitsRemaining()
	consumedBytes := (consumedBits + 7) / 8
	rest := header[8+consumedBytes:]
	return st, rest, nil
}

// DecodeChunk consumes as much of chunk's bits as needed to produce output,
// appending decoded bytes to dst, and returns the extended slice along with
// whether the overall decoded length has now been reached. A caller must
// keep feeding chunks until done is true; any bits left unconsumed at the
// end of a chunk (a symbol's code straddling the boundary) are retained
// internally and resumed, from the correct bit, on the next call — this is
// the explicit decoder state the §9 design note calls for.
func (st *ChunkDecoderState) DecodeChunk(dst []byte, chunk []byte) (out []byte, done bool, err error) {
	out = dst
	if st.produced >= st.total {
		return out, true, nil
	}
	buf := append(st.carry, chunk...)
	br := bitio.NewReaderAt(buf, st.carryPos)
	for st.produced < st.total {
		n := &st.t.nodes[st.node]
		if n.isLeaf() {
			out = append(out, n.sym)
			st.produced++
			st.node = st.t.root
			continue
		}
		bit, e := br.ReadBit()
		if e != nil {
			// Ran out of bits in this chunk; carry the unconsumed tail
			// (from the last fully-read byte onward) to the next call.
			consumedBytes := br.BitPos() / 8
			st.carry = append([]byte{}, buf[consumedBytes:]...)
			st.carryPos = br.BitPos() % 8
			return out, false, nil
		}
		if bit == 0 {
			st.node = n.left
		} else {
			st.node = n.right
		}
	}
	st.carry = nil
	st.carryPos = 0
	return out, true, nil
}
