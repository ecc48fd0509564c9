// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/cosnicolaou/gocomp"
)

// CommonFlags are the options shared by every subcommand, mirroring the
// teacher's CommonFlags (concurrency, verbosity) extended with the
// checksum and optimization-goal options of spec.md §6. The encryption key
// is a per-command flag, not part of CommonFlags.
type CommonFlags struct {
	Concurrency      int    `subcmd:"concurrency,0,'parallel worker count, 0 = auto-detect'"`
	OptimizationGoal string `subcmd:"goal,none,'codec preset: none, speed, or size'"`
	ChecksumType     string `subcmd:"checksum,none,'checksum algorithm: none, crc32, md5, sha256'"`
	Verbose          bool   `subcmd:"verbose,false,verbose debug/trace information"`
}

type compressFlags struct {
	CommonFlags
	Codec      string `subcmd:"codec,huffman,'huffman, rle, lz77, lz77-obfuscated, or their -parallel variants'"`
	Parallel   bool   `subcmd:"parallel,false,'use the parallel chunked driver'"`
	Key        string `subcmd:"key,,'encryption key, required for lz77-obfuscated'"`
	Output     string `subcmd:"output,,output file"`
	ProgressUI bool   `subcmd:"progress,true,display a progress bar"`
}

type decompressFlags struct {
	CommonFlags
	Codec    string `subcmd:"codec,,'codec id; decompress infers it from the input file extension if omitted, split-decompress requires it'"`
	Parallel bool   `subcmd:"parallel,false,'use the parallel chunked driver'"`
	Key      string `subcmd:"key,,'decryption key, required for lz77-obfuscated'"`
	Output   string `subcmd:"output,,output file"`
}

type progressiveFlags struct {
	CommonFlags
	Codec     string `subcmd:"codec,huffman,inner codec"`
	BlockSize int    `subcmd:"block-size,1048576,uncompressed bytes per block"`
	Output    string `subcmd:"output,,output file"`
}

type rangeFlags struct {
	CommonFlags
	Output string `subcmd:"output,,output file"`
	Start  int    `subcmd:"start,0,first block index, inclusive"`
	End    int    `subcmd:"end,0,last block index, inclusive"`
}

type splitFlags struct {
	CommonFlags
	Codec       string `subcmd:"codec,huffman,inner codec"`
	MaxPartSize int    `subcmd:"max-part-bytes,3145728,maximum payload bytes per part"`
	Output      string `subcmd:"output,,output basename for the part files"`
}

type dedupFlags struct {
	CommonFlags
	ChunkBytes int    `subcmd:"chunk-bytes,4096,target/maximum chunk size"`
	Mode       string `subcmd:"mode,variable,'fixed, variable, or smart'"`
	HashAlg    string `subcmd:"hash-alg,sha1,'sha1, md5, crc32, or xxh64 (boundary hash only)'"`
	Output     string `subcmd:"output,,output file"`
}

type inspectFlags struct{}

var cmdSet *subcmd.CommandSet

func init() {
	defaults := map[string]interface{}{
		"concurrency": runtime.GOMAXPROCS(-1),
	}

	compressCmd := subcmd.NewCommand("compress",
		subcmd.MustRegisterFlagStruct(&compressFlags{}, defaults, nil),
		compress, subcmd.ExactlyNumArguments(1))
	compressCmd.Document(`compress a local file with the selected codec.`)

	decompressCmd := subcmd.NewCommand("decompress",
		subcmd.MustRegisterFlagStruct(&decompressFlags{}, defaults, nil),
		decompress, subcmd.ExactlyNumArguments(1))
	decompressCmd.Document(`decompress a local file.`)

	progressiveCmd := subcmd.NewCommand("progressive-compress",
		subcmd.MustRegisterFlagStruct(&progressiveFlags{}, defaults, nil),
		progressiveCompress, subcmd.ExactlyNumArguments(1))
	progressiveCmd.Document(`compress into a self-describing block container.`)

	progressiveDecCmd := subcmd.NewCommand("progressive-decompress",
		subcmd.MustRegisterFlagStruct(&CommonFlags{}, defaults, nil),
		progressiveDecompress, subcmd.ExactlyNumArguments(1))
	progressiveDecCmd.Document(`fully decode a block container.`)

	rangeCmd := subcmd.NewCommand("progressive-range",
		subcmd.MustRegisterFlagStruct(&rangeFlags{}, defaults, nil),
		progressiveRange, subcmd.ExactlyNumArguments(1))
	rangeCmd.Document(`decode an inclusive block range from a block container.`)

	splitCmd := subcmd.NewCommand("split-compress",
		subcmd.MustRegisterFlagStruct(&splitFlags{}, defaults, nil),
		splitCompress, subcmd.ExactlyNumArguments(1))
	splitCmd.Document(`compress and distribute the result across part files.`)

	splitDecCmd := subcmd.NewCommand("split-decompress",
		subcmd.MustRegisterFlagStruct(&decompressFlags{}, defaults, nil),
		splitDecompress, subcmd.ExactlyNumArguments(1))
	splitDecCmd.Document(`reassemble and decode a split-volume archive.`)

	dedupCmd := subcmd.NewCommand("dedup",
		subcmd.MustRegisterFlagStruct(&dedupFlags{}, defaults, nil),
		dedupCompress, subcmd.ExactlyNumArguments(1))
	dedupCmd.Document(`deduplicate a local file, reporting chunk statistics.`)

	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&inspectFlags{}, nil, nil),
		inspect, subcmd.AtLeastNArguments(1))
	inspectCmd.Document(`print a block container's header and per-block metadata.`)

	cmdSet = subcmd.NewCommandSet(compressCmd, decompressCmd,
		progressiveCmd, progressiveDecCmd, rangeCmd,
		splitCmd, splitDecCmd, dedupCmd, inspectCmd)
	cmdSet.Document(`compress, decompress, and inspect files with gocomp's codecs and containers.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func goalFromString(s string) gocomp.OptimizationGoal {
	switch s {
	case "speed":
		return gocomp.GoalSpeed
	case "size":
		return gocomp.GoalSize
	default:
		return gocomp.GoalNone
	}
}

func codecFromString(s string) (gocomp.CodecID, error) {
	switch s {
	case "huffman":
		return gocomp.Huffman, nil
	case "rle":
		return gocomp.RLE, nil
	case "lz77":
		return gocomp.LZ77, nil
	case "lz77-obfuscated":
		return gocomp.ObfuscatedLZ77, nil
	case "huffman-parallel":
		return gocomp.HuffmanParallel, nil
	case "rle-parallel":
		return gocomp.RLEParallel, nil
	case "lz77-parallel":
		return gocomp.LZ77Parallel, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", s)
	}
}

func checksumFromString(s string) (gocomp.ChecksumAlgorithm, error) {
	switch s {
	case "none":
		return gocomp.ChecksumNone, nil
	case "crc32":
		return gocomp.ChecksumCRC32, nil
	case "md5":
		return gocomp.ChecksumMD5, nil
	case "sha256":
		return gocomp.ChecksumSHA256, nil
	default:
		return gocomp.ChecksumNone, fmt.Errorf("unknown checksum type %q", s)
	}
}

func configFromCommon(cl *CommonFlags) gocomp.Config {
	opts := []gocomp.Option{
		gocomp.WithOptimizationGoal(goalFromString(cl.OptimizationGoal)),
		gocomp.WithThreadCount(cl.Concurrency),
	}
	if alg, err := checksumFromString(cl.ChecksumType); err == nil {
		opts = append(opts, gocomp.WithChecksumType(alg))
	}
	return gocomp.NewConfig(opts...)
}

func progressBar(ctx context.Context, wr io.Writer, ch chan gocomp.Progress, total int64) {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetBytes64(total),
		progressbar.OptionSetWriter(wr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				fmt.Fprintln(wr)
				return
			}
			bar.Add(p.Size)
		case <-ctx.Done():
			return
		}
	}
}

func isTTY() bool {
	return terminal.IsTerminal(int(os.Stdout.Fd()))
}

func compress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*compressFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	cfg := configFromCommon(&cl.CommonFlags)
	if cl.Key != "" {
		cfg = gocomp.NewConfig(gocomp.WithEncryptionKey(cl.Key), gocomp.WithOptimizationGoal(goalFromString(cl.OptimizationGoal)))
	}
	id, err := codecFromString(cl.Codec)
	if err != nil {
		return err
	}
	output := cl.Output
	if output == "" {
		output = args[0] + gocomp.CodecExtension(id)
	}
	container := gocomp.Raw
	if cl.Parallel {
		container = gocomp.ParallelContainer
	}

	var progressCh chan gocomp.Progress
	var errs errors.M
	if cl.ProgressUI && cl.Parallel {
		progressCh = make(chan gocomp.Progress, cl.Concurrency+1)
		wr := os.Stdout
		if !isTTY() {
			wr = os.Stderr
		}
		info, _ := os.Stat(args[0])
		var size int64
		if info != nil {
			size = info.Size()
		}
		go progressBar(ctx, wr, progressCh, size)
	}

	res, err := gocomp.Compress(ctx, args[0], output, id, container, cfg, progressCh)
	if progressCh != nil {
		close(progressCh)
	}
	errs.Append(err)
	if err := errs.Err(); err != nil {
		return err
	}
	if cl.Verbose {
		fmt.Printf("%d -> %d bytes\n", res.BytesIn, res.BytesOut)
	}
	return nil
}

func decompress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*decompressFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	var id gocomp.CodecID
	if cl.Codec != "" {
		var err error
		id, err = codecFromString(cl.Codec)
		if err != nil {
			return err
		}
	} else if inferred, ok := gocomp.CodecFromExtension(args[0]); ok {
		id = inferred
	} else {
		return fmt.Errorf("cannot infer codec from %q, pass -codec", args[0])
	}

	cfg := configFromCommon(&cl.CommonFlags)
	if cl.Key != "" {
		cfg = gocomp.NewConfig(gocomp.WithEncryptionKey(cl.Key))
	}
	container := gocomp.Raw
	if cl.Parallel {
		container = gocomp.ParallelContainer
	}
	output := cl.Output
	if output == "" {
		output = args[0] + ".out"
	}
	_, err := gocomp.Decompress(ctx, args[0], output, id, container, cfg, nil)
	return err
}

func progressiveCompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*progressiveFlags)
	id, err := codecFromString(cl.Codec)
	if err != nil {
		return err
	}
	cfg := configFromCommon(&cl.CommonFlags)
	output := cl.Output
	if output == "" {
		output = args[0] + ".prog"
	}
	_, err = gocomp.ProgressiveCompress(args[0], output, id, uint32(cl.BlockSize), cfg)
	return err
}

func progressiveDecompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*CommonFlags)
	cfg := configFromCommon(cl)
	_, err := gocomp.ProgressiveDecompress(args[0], args[0]+".out", cfg)
	return err
}

func progressiveRange(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*rangeFlags)
	cfg := configFromCommon(&cl.CommonFlags)
	output := cl.Output
	if output == "" {
		output = args[0] + ".range.out"
	}
	_, err := gocomp.ProgressiveDecompressRange(args[0], output, cl.Start, cl.End, cfg)
	return err
}

func splitCompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*splitFlags)
	id, err := codecFromString(cl.Codec)
	if err != nil {
		return err
	}
	cfg := configFromCommon(&cl.CommonFlags)
	output := cl.Output
	if output == "" {
		output = args[0]
	}
	_, err = gocomp.SplitCompress(args[0], output, id, cl.MaxPartSize, cfg)
	return err
}

func splitDecompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*decompressFlags)
	id, err := codecFromString(cl.Codec)
	if err != nil {
		return err
	}
	cfg := configFromCommon(&cl.CommonFlags)
	output := cl.Output
	if output == "" {
		output = args[0] + ".out"
	}
	_, err = gocomp.SplitDecompress(args[0], output, id, cfg)
	return err
}

func dedupModeFromString(s string) gocomp.DedupMode {
	switch s {
	case "fixed":
		return gocomp.DedupFixed
	case "smart":
		return gocomp.DedupSmart
	default:
		return gocomp.DedupVariable
	}
}

func dedupCompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*dedupFlags)
	cfg := configFromCommon(&cl.CommonFlags)
	output := cl.Output
	if output == "" {
		output = args[0] + ".dedup"
	}
	hashAlg := gocomp.DedupRollingRabinKarp
	if cl.HashAlg == "xxh64" {
		hashAlg = gocomp.DedupRollingXXH64
	}
	stats, err := gocomp.DedupCompress(args[0], output, cl.ChunkBytes, dedupModeFromString(cl.Mode), hashAlg, gocomp.RLE, false, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("total_bytes=%d bytes_after_dedup=%d total_chunks=%d duplicate_chunks=%d dedup_ratio=%.4f\n",
		stats.TotalBytes, stats.BytesAfterDedup, stats.TotalChunks, stats.DuplicateChunks, stats.DedupRatio)
	return nil
}

func inspect(ctx context.Context, values interface{}, args []string) error {
	errs := &errors.M{}
	for _, arg := range args {
		errs.Append(inspectFile(arg))
	}
	return errs.Err()
}
