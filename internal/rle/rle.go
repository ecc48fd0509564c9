// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package rle implements the run-length codec of spec.md §4.4: a
// length-prefixed stream of (count, byte) pairs with a run cap of 255.
// It is the standalone generalization of bzip2's inner RLE1 pass (see the
// teacher's internal/bzip2/block.go, which applies the same count-capped
// run idea as part of decoding a BWT block) to a full, independent codec.
package rle

import (
	"encoding/binary"

	"github.com/cosnicolaou/gocomp/internal/gcerr"
)

const maxRun = 255

// EncodeBuffer compresses src into the length-prefixed (count, byte) pair
// stream of spec.md §4.4.
func EncodeBuffer(src []byte) []byte {
	out := make([]byte, 8, 8+len(src)/64+16)
	binary.LittleEndian.PutUint64(out, uint64(len(src)))

	i := 0
	for i < len(src) {
		b := src[i]
		run := 1
		for i+run < len(src) && src[i+run] == b && run < maxRun {
			run++
		}
		out = append(out, byte(run), b)
		i += run
	}
	return out
}

// DecodeBuffer reverses EncodeBuffer.
func DecodeBuffer(src []byte) ([]byte, error) {
	if len(src) < 8 {
		return nil, &gcerr.Corrupt{What: "rle: truncated length header"}
	}
	length := binary.LittleEndian.Uint64(src[:8])
	out := make([]byte, 0, length)
	pairs := src[8:]
	for uint64(len(out)) < length {
		if len(pairs) < 2 {
			return nil, &gcerr.Corrupt{What: "rle: truncated pair stream"}
		}
		count, b := pairs[0], pairs[1]
		pairs = pairs[2:]
		for i := byte(0); i < count; i++ {
			out = append(out, b)
		}
	}
	if uint64(len(out)) != length {
		return nil, &gcerr.Corrupt{What: "rle: pair stream overruns declared length"}
	}
	return out, nil
}
