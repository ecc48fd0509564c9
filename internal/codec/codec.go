// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package codec provides the enumerated codec identifier, the name/
// extension registry of spec.md §4.7, and a small Codec interface unifying
// C3-C6 (Huffman, RLE, LZ77, obfuscated LZ77) behind buffer-to-buffer
// encode/decode, per the "tagged variant over codec ids / small interface"
// design note in spec.md §9. The registry's lookup tables are built once
// at init(), mirroring the teacher's scanner.go init()-time construction of
// its magic-number lookup tables.
package codec

import (
	"strings"

	"github.com/cosnicolaou/gocomp/internal/gcerr"
	"github.com/cosnicolaou/gocomp/internal/gconfig"
	"github.com/cosnicolaou/gocomp/internal/huffman"
	"github.com/cosnicolaou/gocomp/internal/lz77"
	"github.com/cosnicolaou/gocomp/internal/obfuscate"
	"github.com/cosnicolaou/gocomp/internal/rle"
)

// ID is the small enumerated codec tag of spec.md §3.
type ID uint8

const (
	Huffman ID = iota
	RLE
	LZ77
	ObfuscatedLZ77
	HuffmanParallel
	RLEParallel
	LZ77Parallel
	Progressive
)

type entry struct {
	name string
	ext  string
}

var registry map[ID]entry

func init() {
	registry = map[ID]entry{
		Huffman:         {"huffman", ".huf"},
		RLE:             {"rle", ".rle"},
		LZ77:            {"lz77", ".lz77"},
		ObfuscatedLZ77:  {"lz77-obfuscated", ".lz77e"},
		HuffmanParallel: {"huffman-parallel", ".hufp"},
		RLEParallel:     {"rle-parallel", ".rlep"},
		LZ77Parallel:    {"lz77-parallel", ".lz77p"},
		Progressive:     {"progressive", ".prog"},
	}
}

// Name returns the registered name for id, or "" if unknown.
func Name(id ID) string {
	return registry[id].name
}

// Extension returns the registered file extension (including the leading
// dot) for id, or "" if unknown.
func Extension(id ID) string {
	return registry[id].ext
}

// FromExtension infers a codec id from a filename's extension, used only by
// the coordinator's convenience "infer from output path" helper per
// spec.md §6.
func FromExtension(filename string) (ID, bool) {
	for id, e := range registry {
		if strings.HasSuffix(filename, e.ext) {
			return id, true
		}
	}
	return 0, false
}

// BaseOf maps a parallel codec id to the inner codec it wraps per chunk,
// per spec.md §3 ("Parallel variants share their base codec's bit format
// within each chunk").
func BaseOf(id ID) (ID, bool) {
	switch id {
	case HuffmanParallel:
		return Huffman, true
	case RLEParallel:
		return RLE, true
	case LZ77Parallel:
		return LZ77, true
	default:
		return id, false
	}
}

// Codec is the buffer-to-buffer transform every C3-C6 codec implements.
type Codec interface {
	EncodeBuffer(src []byte, cfg gconfig.Config) ([]byte, error)
	DecodeBuffer(src []byte, cfg gconfig.Config) ([]byte, error)
}

// For selects the Codec implementation for a codec id. A parallel id
// resolves to its base codec via BaseOf; Progressive and unknown ids are
// Unsupported.
func For(id ID) (Codec, error) {
	switch id {
	case Huffman:
		return huffmanCodec{}, nil
	case RLE:
		return rleCodec{}, nil
	case LZ77:
		return lz77Codec{}, nil
	case ObfuscatedLZ77:
		return obfuscatedCodec{}, nil
	default:
		if base, ok := BaseOf(id); ok {
			return For(base)
		}
		return nil, &gcerr.Unsupported{What: "codec id " + Name(id)}
	}
}

type huffmanCodec struct{}

func (huffmanCodec) EncodeBuffer(src []byte, cfg gconfig.Config) ([]byte, error) {
	return huffman.EncodeBuffer(src, cfg.HuffmanMaxDepth())
}
func (huffmanCodec) DecodeBuffer(src []byte, _ gconfig.Config) ([]byte, error) {
	return huffman.DecodeBuffer(src)
}

type rleCodec struct{}

func (rleCodec) EncodeBuffer(src []byte, _ gconfig.Config) ([]byte, error) {
	return rle.EncodeBuffer(src), nil
}
func (rleCodec) DecodeBuffer(src []byte, _ gconfig.Config) ([]byte, error) {
	return rle.DecodeBuffer(src)
}

type lz77Codec struct{}

func (lz77Codec) EncodeBuffer(src []byte, cfg gconfig.Config) ([]byte, error) {
	return lz77.EncodeBuffer(src, cfg.LZ77Params()), nil
}
func (lz77Codec) DecodeBuffer(src []byte, _ gconfig.Config) ([]byte, error) {
	return lz77.DecodeBuffer(src)
}

type obfuscatedCodec struct{}

func (obfuscatedCodec) EncodeBuffer(src []byte, cfg gconfig.Config) ([]byte, error) {
	return obfuscate.EncodeBuffer(src, cfg.EncryptionKey, cfg.LZ77Params())
}
func (obfuscatedCodec) DecodeBuffer(src []byte, cfg gconfig.Config) ([]byte, error) {
	return obfuscate.DecodeBuffer(src, cfg.EncryptionKey)
}
