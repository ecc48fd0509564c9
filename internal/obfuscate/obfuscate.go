// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package obfuscate implements the "obfuscation" wrapper of spec.md §4.6:
// LZ77-compress the input, then XOR the result byte-wise against a
// repeating key, tagged with the ASCII marker "ENCRYPTED". No codec in the
// retrieval pack does anything resembling this, so it is implemented
// directly from spec.md's own description rather than grounded on a pack
// file. As spec.md is explicit about: this is not encryption. There is no
// IV, no authenticity tag, and single-byte XOR against a short repeating
// key is trivially breakable by frequency analysis; it exists only to
// round-trip the source format's behavior.
package obfuscate

import (
	"github.com/cosnicolaou/gocomp/internal/gcerr"
	"github.com/cosnicolaou/gocomp/internal/lz77"
)

const tag = "ENCRYPTED"

// EncodeBuffer LZ77-compresses src then XORs the result against key,
// prefixed with the tag.
func EncodeBuffer(src []byte, key string, p lz77.Params) ([]byte, error) {
	if len(key) == 0 {
		return nil, &gcerr.InvalidArgument{What: "obfuscate: empty key"}
	}
	compressed := lz77.EncodeBuffer(src, p)
	out := make([]byte, 0, len(tag)+len(compressed))
	out = append(out, tag...)
	for i, b := range compressed {
		out = append(out, b^key[i%len(key)])
	}
	return out, nil
}

// DecodeBuffer reverses EncodeBuffer: verify the tag, XOR with key, then
// LZ77-decode.
func DecodeBuffer(src []byte, key string) ([]byte, error) {
	if len(key) == 0 {
		return nil, &gcerr.InvalidArgument{What: "obfuscate: empty key"}
	}
	if len(src) < len(tag) || string(src[:len(tag)]) != tag {
		return nil, &gcerr.Corrupt{What: "obfuscate: missing ENCRYPTED tag"}
	}
	body := src[len(tag):]
	compressed := make([]byte, len(body))
	for i, b := range body {
		compressed[i] = b ^ key[i%len(key)]
	}
	return lz77.DecodeBuffer(compressed)
}
