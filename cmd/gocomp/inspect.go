// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/cosnicolaou/gocomp/internal/container/progressive"
)

// inspectFile prints a block container's header and per-block metadata,
// grounded on the teacher's bz2-stats subcommand (inspect.go's
// bz2StatsFile): scan the container's framing without fully decoding its
// payload and report block offsets/sizes, adapted here from bzip2's
// block-start scan to the self-describing §3 block container header.
func inspectFile(name string) error {
	buf, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	h, blocks, err := progressive.ListBlocks(buf)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("codec_id=%d block_size=%d total_blocks=%d original_size=%d checksum=%s streaming_optimized=%v\n",
		h.CodecID, h.BlockSize, h.TotalBlocks, h.OriginalSize, h.ChecksumType, h.StreamOptimized)
	fmt.Printf("block, compressed_size, original_size\n")
	for _, b := range blocks {
		fmt.Printf("% 12d   : % 12d -> % 12d\n", b.ID, b.CompressedSize, b.OriginalSize)
	}
	return nil
}
