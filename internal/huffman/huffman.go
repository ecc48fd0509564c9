// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package huffman implements the canonical Huffman codec of spec.md §4.3:
// a two-pass frequency-driven tree build, depth-capped code generation, a
// pre-order serialized tree, and an MSB-first bit stream.
//
// The tree-construction shape (sort candidates, repeatedly combine the two
// smallest, recursively split a sorted list into left/right halves) is
// grounded on the teacher's internal/bzip2/huffman.go canonical tree
// builder, generalized from "build a tree from an externally supplied list
// of code lengths" (bzip2's decode-only case) to "build a tree, and derive
// the code lengths, from symbol frequencies" (this package's encode case).
package huffman

import (
	"container/heap"
	"encoding/binary"
	"fmt"

	"github.com/cosnicolaou/gocomp/internal/bitio"
	"github.com/cosnicolaou/gocomp/internal/gcerr"
)

// DefaultMaxDepth, SpeedMaxDepth and SizeMaxDepth cap the length of any
// Huffman code. spec.md §3 sets the default to 256, with speed/size presets
// of 32/512.
const (
	DefaultMaxDepth = 256
	SpeedMaxDepth   = 32
	SizeMaxDepth    = 512
)

// node is an arena-addressed tree node: either an internal node (left/right
// are >= 0 indexes into the arena) or a leaf (left == right == -1, sym is
// valid). This is the "arena of nodes addressed by index" shape recommended
// by spec.md §9's design notes, avoiding pointer-heavy allocation and
// enabling non-recursive pre-order serialization.
type node struct {
	left, right int32 // -1 if this node is a leaf
	sym         byte
	freq        uint64
	seq         uint64 // insertion sequence, used to break ties deterministically
}

func (n *node) isLeaf() bool { return n.left < 0 && n.right < 0 }

// tree is the arena of nodes; tree[0] (after build) is not necessarily the
// root — root is tracked explicitly.
type tree struct {
	nodes []node
	root  int32
}

// nodeHeap is a min-heap over arena indexes, ordered by frequency and then
// by insertion sequence to make builds deterministic, per spec.md §4.3.
type nodeHeap struct {
	t   *tree
	idx []int32
}

func (h *nodeHeap) Len() int { return len(h.idx) }
func (h *nodeHeap) Less(i, j int) bool {
	a, b := &h.t.nodes[h.idx[i]], &h.t.nodes[h.idx[j]]
	if a.freq != b.freq {
		return a.freq < b.freq
	}
	return a.seq < b.seq
}
func (h *nodeHeap) Swap(i, j int) { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }
func (h *nodeHeap) Push(x interface{}) {
	h.idx = append(h.idx, x.(int32))
}
func (h *nodeHeap) Pop() interface{} {
	old := h.idx
	n := len(old)
	x := old[n-1]
	h.idx = old[:n-1]
	return x
}

// buildTree constructs a canonical Huffman tree from a 256-entry frequency
// table, skipping symbols with frequency 0.
func buildTree(freq [256]uint64) (*tree, error) {
	t := &tree{nodes: make([]node, 0, 511)}
	h := &nodeHeap{t: t}

	var seq uint64
	newLeaf := func(sym byte, f uint64) int32 {
		idx := int32(len(t.nodes))
		t.nodes = append(t.nodes, node{left: -1, right: -1, sym: sym, freq: f, seq: seq})
		seq++
		return idx
	}
	newInternal := func(left, right int32) int32 {
		lf, rf := t.nodes[left].freq, t.nodes[right].freq
		idx := int32(len(t.nodes))
		t.nodes = append(t.nodes, node{left: left, right: right, freq: lf + rf, seq: seq})
		seq++
		return idx
	}

	var leaves int
	for sym := 0; sym < 256; sym++ {
		if freq[sym] == 0 {
			continue
		}
		leaves++
		heap.Push(h, newLeaf(byte(sym), freq[sym]))
	}

	if leaves == 0 {
		return nil, &gcerr.InvalidArgument{What: "huffman: no symbols with non-zero frequency"}
	}

	if leaves == 1 {
		// Special case from spec.md §4.3: make the sole symbol the left
		// child of a synthetic root so its code has length >= 1.
		only := heap.Pop(h).(int32)
		root := newInternal(only, newLeaf(t.nodes[only].sym, 0))
		// The synthetic right sibling has frequency 0, so the root's
		// frequency equals the sole symbol's; that leaf is never reached by
		// any emitted code.
		t.root = root
		return t, nil
	}

	for h.Len() > 1 {
		a := heap.Pop(h).(int32)
		b := heap.Pop(h).(int32)
		heap.Push(h, newInternal(a, b))
	}
	t.root = heap.Pop(h).(int32)
	return t, nil
}

// CodeTable maps a byte value to its code (left-justified in Bits, Length
// significant bits), per spec.md §3. A zero Length entry means the symbol
// is absent from the tree.
type CodeTable [256]struct {
	Bits   uint64
	Length uint8
}

// codesFromTree walks the tree by DFS, appending 0 on left descent and 1 on
// right, per spec.md §4.3. If maxDepth is exceeded before a leaf is
// reached, the input is rejected rather than silently collapsing the
// subtree into a leaf — resolving the open question in spec.md §9 as
// "(a) reject inputs that would exceed the cap", since a silent collapse
// can assign two distinct symbols an identical code.
func codesFromTree(t *tree, maxDepth int) (CodeTable, error) {
	var table CodeTable
	var walk func(idx int32, bits uint64, depth int) error
	walk = func(idx int32, bits uint64, depth int) error {
		n := &t.nodes[idx]
		if n.isLeaf() {
			if depth == 0 {
				depth = 1 // single-symbol trees still need a 1-bit code
			}
			if depth > maxDepth {
				return &gcerr.InvalidArgument{
					What: fmt.Sprintf("huffman: code for symbol %d exceeds max depth %d", n.sym, maxDepth),
				}
			}
			table[n.sym] = struct {
				Bits   uint64
				Length uint8
			}{Bits: bits, Length: uint8(depth)}
			return nil
		}
		if depth+1 > maxDepth {
			return &gcerr.InvalidArgument{What: fmt.Sprintf("huffman: tree exceeds max depth %d", maxDepth)}
		}
		if err := walk(n.left, bits<<1, depth+1); err != nil {
			return err
		}
		return walk(n.right, (bits<<1)|1, depth+1)
	}
	if err := walk(t.root, 0, 0); err != nil {
		return CodeTable{}, err
	}
	return table, nil
}

// serializeTree writes the pre-order bit-tagged tree (0 = internal,
// 1 = leaf followed by its byte), per spec.md §3.
func serializeTree(w *bitio.Writer, t *tree) {
	var walk func(idx int32)
	walk = func(idx int32) {
		n := &t.nodes[idx]
		if n.isLeaf() {
			w.WriteBit(1)
			w.WriteBits(uint64(n.sym), 8)
			return
		}
		w.WriteBit(0)
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
}

// deserializeTree reads a pre-order bit-tagged tree back into an arena.
func deserializeTree(r *bitio.Reader) (*tree, error) {
	t := &tree{nodes: make([]node, 0, 511)}
	var build func() (int32, error)
	build = func() (int32, error) {
		tag, err := r.ReadBit()
		if err != nil {
			return 0, &gcerr.Corrupt{What: "huffman: truncated tree"}
		}
		if tag == 1 {
			sym, err := r.ReadBits(8)
			if err != nil {
				return 0, &gcerr.Corrupt{What: "huffman: truncated tree leaf"}
			}
			idx := int32(len(t.nodes))
			t.nodes = append(t.nodes, node{left: -1, right: -1, sym: byte(sym)})
			return idx, nil
		}
		idx := int32(len(t.nodes))
		t.nodes = append(t.nodes, node{})
		left, err := build()
		if err != nil {
			return 0, err
		}
		right, err := build()
		if err != nil {
			return 0, err
		}
		t.nodes[idx].left = left
		t.nodes[idx].right = right
		return idx, nil
	}
	root, err := build()
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

// EncodeBuffer compresses src in full: an 8-byte little-endian original
// length, the pre-order tree, then the MSB-first code stream padded to a
// byte boundary, per spec.md §4.3.
func EncodeBuffer(src []byte, maxDepth int) ([]byte, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var freq [256]uint64
	for _, b := range src {
		freq[b]++
	}
	if len(src) == 0 {
		var out [8]byte
		return out[:], nil
	}
	t, err := buildTree(freq)
	if err != nil {
		return nil, err
	}
	codes, err := codesFromTree(t, maxDepth)
	if err != nil {
		return nil, err
	}

	w := bitio.NewWriter(len(src))
	serializeTree(w, t)
	for _, b := range src {
		c := codes[b]
		w.WriteBits(c.Bits, uint(c.Length))
	}
	w.PadToByte()

	var header [8]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(src)))
	return append(header[:], w.Bytes()...), nil
}

// DecodeBuffer reverses EncodeBuffer: read the length, reconstruct the
// tree, then walk it bit-by-bit emitting a byte at each leaf until length
// bytes have been produced.
func DecodeBuffer(src []byte) ([]byte, error) {
	if len(src) < 8 {
		return nil, &gcerr.Corrupt{What: "huffman: truncated length header"}
	}
	length := binary.LittleEndian.Uint64(src[:8])
	if length == 0 {
		return []byte{}, nil
	}
	r := bitio.NewReader(src[8:])
	t, err := deserializeTree(r)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, length)
	for uint64(len(out)) < length {
		idx := t.root
		for {
			n := &t.nodes[idx]
			if n.isLeaf() {
				out = append(out, n.sym)
				break
			}
			bit, err := r.ReadBit()
			if err != nil {
				return nil, &gcerr.Corrupt{What: "huffman: bit stream shorter than declared length"}
			}
			if bit == 0 {
				idx = n.left
			} else {
				idx = n.right
			}
		}
	}
	return out, nil
}
