// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package progressive implements the block container of spec.md §3 and §4.9:
// a "PROG"-tagged file of independently codec-compressed blocks, readable
// either in full, over an explicit block range, or block-by-block via a
// streaming callback. The block-indexed layout and the checksum-per-block
// plus checksum-per-file structure are grounded on the teacher's bzip2
// stream shape (stream header + per-block records, §3 of the teacher's own
// format), adapted here to wrap an arbitrary codec rather than bzip2's fixed
// Huffman+BWT+RLE pipeline.
package progressive

import (
	"encoding/binary"

	"github.com/cosnicolaou/gocomp/internal/checksum"
	"github.com/cosnicolaou/gocomp/internal/codec"
	"github.com/cosnicolaou/gocomp/internal/gcerr"
	"github.com/cosnicolaou/gocomp/internal/gconfig"
)

const (
	magic          = "PROG"
	version        = 1
	flagHasCheck   = 1 << 0
	flagStreamOpt  = 1 << 1
	headerFixedLen = 4 + 1 + 1 + 1 + 4 + 4 + 8 // magic,version,codec_id,flags,block_size,total_blocks,original_size
	blockFixedLen  = 4 + 4 + 4                 // block_id, compressed_size, original_size
)

// NotProgressiveError indicates the input lacks the "PROG" magic.
type NotProgressiveError struct{}

func (NotProgressiveError) Error() string { return "progressive: not a progressive container (bad magic)" }

// UnsupportedVersionError indicates a file-format version newer than this
// reader understands.
type UnsupportedVersionError struct{ Version int }

func (e UnsupportedVersionError) Error() string {
	return "progressive: unsupported container version"
}

// Header describes the parsed block-container header.
type Header struct {
	CodecID         codec.ID
	HasChecksum     bool
	StreamOptimized bool
	BlockSize       uint32
	TotalBlocks     uint32
	OriginalSize    uint64
	ChecksumType    checksum.Algorithm
	FileChecksum    checksum.Record
}

// EncodeBuffer builds a complete progressive container in memory from src,
// compressing it in blockSize windows through c. The file-level checksum
// (when cfg.ChecksumType != None) accumulates over the original bytes.
func EncodeBuffer(src []byte, c codec.Codec, cfg gconfig.Config, id codec.ID, blockSize uint32) ([]byte, error) {
	if blockSize == 0 {
		return nil, &gcerr.InvalidArgument{What: "progressive: block_size must be nonzero"}
	}
	hasCheck := cfg.ChecksumType != checksum.None
	totalBlocks := uint32(0)
	if len(src) > 0 {
		totalBlocks = (uint32(len(src)) + blockSize - 1) / blockSize
	}

	var out []byte
	out = append(out, magic...)
	out = append(out, version, byte(id))
	flags := byte(flagStreamOpt)
	if hasCheck {
		flags |= flagHasCheck
	}
	out = append(out, flags)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], blockSize)
	out = append(out, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], totalBlocks)
	out = append(out, u32[:]...)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(len(src)))
	out = append(out, u64[:]...)
	if hasCheck {
		rec := checksum.Compute(cfg.ChecksumType, src)
		out = append(out, checksum.Marshal(nil, rec)...)
	}

	for i := uint32(0); i < totalBlocks; i++ {
		start := i * blockSize
		end := start + blockSize
		if end > uint32(len(src)) {
			end = uint32(len(src))
		}
		block := src[start:end]
		compressed, err := c.EncodeBuffer(block, cfg)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(u32[:], i)
		out = append(out, u32[:]...)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(compressed)))
		out = append(out, u32[:]...)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(block)))
		out = append(out, u32[:]...)
		if hasCheck {
			rec := checksum.Compute(cfg.ChecksumType, block)
			out = append(out, checksum.Marshal(nil, rec)...)
		}
		out = append(out, compressed...)
	}
	return out, nil
}

// blockRecord locates one block's metadata and payload within src, given
// the offset immediately following the container header.
type blockRecord struct {
	id             uint32
	compressedSize uint32
	originalSize   uint32
	checkLen       int
	checkRec       checksum.Record
	payloadOffset  int
}

// ParseHeader parses the fixed-size container header at the start of src.
func ParseHeader(src []byte) (Header, int, error) {
	if len(src) >= len(magic) && string(src[0:4]) != magic {
		return Header{}, 0, NotProgressiveError{}
	}
	if len(src) < headerFixedLen {
		return Header{}, 0, &gcerr.Corrupt{What: "progressive: truncated header"}
	}
	v := int(src[4])
	if v > version {
		return Header{}, 0, UnsupportedVersionError{Version: v}
	}
	id := codec.ID(src[5])
	flags := src[6]
	h := Header{
		CodecID:         id,
		HasChecksum:     flags&flagHasCheck != 0,
		StreamOptimized: flags&flagStreamOpt != 0,
		BlockSize:       binary.LittleEndian.Uint32(src[7:11]),
		TotalBlocks:     binary.LittleEndian.Uint32(src[11:15]),
		OriginalSize:    binary.LittleEndian.Uint64(src[15:23]),
	}
	pos := headerFixedLen
	if h.HasChecksum {
		rec, n, err := checksum.Unmarshal(src[pos:])
		if err != nil {
			return Header{}, 0, &gcerr.Corrupt{What: "progressive: truncated file checksum"}
		}
		h.ChecksumType = rec.Algorithm
		h.FileChecksum = rec
		pos += n
	}
	return h, pos, nil
}

func parseBlockAt(src []byte, pos int, hasCheck bool) (blockRecord, int, error) {
	if len(src) < pos+blockFixedLen {
		return blockRecord{}, 0, &gcerr.Corrupt{What: "progressive: truncated block header"}
	}
	b := blockRecord{
		id:             binary.LittleEndian.Uint32(src[pos : pos+4]),
		compressedSize: binary.LittleEndian.Uint32(src[pos+4 : pos+8]),
		originalSize:   binary.LittleEndian.Uint32(src[pos+8 : pos+12]),
	}
	p := pos + blockFixedLen
	if hasCheck {
		rec, n, err := checksum.Unmarshal(src[p:])
		if err != nil {
			return blockRecord{}, 0, &gcerr.Corrupt{What: "progressive: truncated block checksum"}
		}
		b.checkRec = rec
		b.checkLen = n
		p += n
	}
	b.payloadOffset = p
	if len(src) < p+int(b.compressedSize) {
		return blockRecord{}, 0, &gcerr.CorruptBlock{BlockID: b.id}
	}
	return b, p + int(b.compressedSize), nil
}

// DecodeBuffer parses and fully decodes a progressive container, verifying
// every block checksum present and the file-level checksum at the end.
func DecodeBuffer(src []byte, c codec.Codec, cfg gconfig.Config) ([]byte, error) {
	h, pos, err := ParseHeader(src)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, h.OriginalSize)
	for i := uint32(0); i < h.TotalBlocks; i++ {
		b, next, err := parseBlockAt(src, pos, h.HasChecksum)
		if err != nil {
			return nil, err
		}
		payload := src[b.payloadOffset : b.payloadOffset+int(b.compressedSize)]
		block, err := c.DecodeBuffer(payload, cfg)
		if err != nil {
			return nil, &gcerr.CorruptBlock{BlockID: b.id}
		}
		if h.HasChecksum && !checksum.Verify(block, b.checkRec) {
			return nil, &gcerr.CorruptBlock{BlockID: b.id}
		}
		out = append(out, block...)
		pos = next
	}
	if uint64(len(out)) != h.OriginalSize {
		return nil, &gcerr.Corrupt{What: "progressive: CorruptStream: size mismatch"}
	}
	if h.HasChecksum && !checksum.Verify(out, h.FileChecksum) {
		return nil, &gcerr.Corrupt{What: "progressive: CorruptStream: file checksum mismatch"}
	}
	return out, nil
}

// DecodeRange decodes only blocks [startBlock, endBlock] inclusive. It
// locates them by scanning block headers sequentially from block 0 whether
// or not the streaming-optimized flag is set; offsets are not computed
// arithmetically from the flag. Blocks before startBlock are skipped
// without being decoded.
func DecodeRange(src []byte, c codec.Codec, cfg gconfig.Config, startBlock, endBlock int) ([]byte, error) {
	h, pos, err := ParseHeader(src)
	if err != nil {
		return nil, err
	}
	if startBlock < 0 || endBlock < startBlock || uint32(endBlock) >= h.TotalBlocks {
		return nil, &gcerr.InvalidArgument{What: "progressive: block range out of bounds"}
	}

	var out []byte
	cur := pos
	for i := 0; i < int(h.TotalBlocks); i++ {
		b, next, err := parseBlockAt(src, cur, h.HasChecksum)
		if err != nil {
			return nil, err
		}
		if i >= startBlock && i <= endBlock {
			payload := src[b.payloadOffset : b.payloadOffset+int(b.compressedSize)]
			block, err := c.DecodeBuffer(payload, cfg)
			if err != nil {
				return nil, &gcerr.CorruptBlock{BlockID: b.id}
			}
			if h.HasChecksum && !checksum.Verify(block, b.checkRec) {
				return nil, &gcerr.CorruptBlock{BlockID: b.id}
			}
			out = append(out, block...)
		}
		cur = next
		if i == endBlock {
			break
		}
	}
	return out, nil
}

// StreamCallback receives each decoded block in order; returning false stops
// iteration before the remaining blocks are read.
type StreamCallback func(block []byte) (cont bool)

// Stream decodes the container block by block, invoking cb after each one.
func Stream(src []byte, c codec.Codec, cfg gconfig.Config, cb StreamCallback) error {
	h, pos, err := ParseHeader(src)
	if err != nil {
		return err
	}
	for i := uint32(0); i < h.TotalBlocks; i++ {
		b, next, err := parseBlockAt(src, pos, h.HasChecksum)
		if err != nil {
			return err
		}
		payload := src[b.payloadOffset : b.payloadOffset+int(b.compressedSize)]
		block, err := c.DecodeBuffer(payload, cfg)
		if err != nil {
			return &gcerr.CorruptBlock{BlockID: b.id}
		}
		if h.HasChecksum && !checksum.Verify(block, b.checkRec) {
			return &gcerr.CorruptBlock{BlockID: b.id}
		}
		if !cb(block) {
			return nil
		}
		pos = next
	}
	return nil
}

// BlockInfo describes one block record's framing, without decoding its
// payload, for the inspect CLI subcommand.
type BlockInfo struct {
	ID             uint32
	CompressedSize uint32
	OriginalSize   uint32
	Checksum       checksum.Record
}

// ListBlocks parses every block record's metadata without decoding any
// payload, so a container can be inspected even if its inner codec's
// payload is itself malformed.
func ListBlocks(src []byte) (Header, []BlockInfo, error) {
	h, pos, err := ParseHeader(src)
	if err != nil {
		return Header{}, nil, err
	}
	blocks := make([]BlockInfo, 0, h.TotalBlocks)
	for i := uint32(0); i < h.TotalBlocks; i++ {
		b, next, err := parseBlockAt(src, pos, h.HasChecksum)
		if err != nil {
			return h, blocks, err
		}
		blocks = append(blocks, BlockInfo{
			ID:             b.id,
			CompressedSize: b.compressedSize,
			OriginalSize:   b.originalSize,
			Checksum:       b.checkRec,
		})
		pos = next
	}
	return h, blocks, nil
}
