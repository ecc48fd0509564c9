// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package gocomp

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cosnicolaou/gocomp/internal/checksum"
)

func writeTempFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompressDecompressRaw(t *testing.T) {
	dir := t.TempDir()
	data := []byte(strings.Repeat("the quick brown fox ", 1000))
	in := writeTempFile(t, dir, "in.txt", data)
	compressed := filepath.Join(dir, "out.huf")
	out := filepath.Join(dir, "roundtrip.txt")

	cfg := NewConfig()
	res, err := Compress(context.Background(), in, compressed, Huffman, Raw, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.BytesOut >= res.BytesIn/3 {
		t.Fatalf("expected Huffman to compress this input well below 1/3 size, got %d/%d", res.BytesOut, res.BytesIn)
	}

	if _, err := Decompress(context.Background(), compressed, out, Huffman, Raw, cfg, nil); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestCompressDecompressParallel(t *testing.T) {
	dir := t.TempDir()
	r := rand.New(rand.NewSource(1))
	data := make([]byte, 500000)
	r.Read(data)
	in := writeTempFile(t, dir, "in.bin", data)
	compressed := filepath.Join(dir, "out.rlep")
	out := filepath.Join(dir, "roundtrip.bin")

	cfg := NewConfig(WithThreadCount(4))
	progressCh := make(chan Progress, 16)
	if _, err := Compress(context.Background(), in, compressed, RLEParallel, ParallelContainer, cfg, progressCh); err != nil {
		t.Fatal(err)
	}
	close(progressCh)

	if _, err := Decompress(context.Background(), compressed, out, RLEParallel, ParallelContainer, cfg, nil); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestCompressDecompressLargeFileMode(t *testing.T) {
	dir := t.TempDir()
	data := []byte(strings.Repeat("abcabcabc ", 5000))
	in := writeTempFile(t, dir, "in.txt", data)
	compressed := filepath.Join(dir, "out.rle")
	out := filepath.Join(dir, "roundtrip.txt")

	cfg := NewConfig(WithLargeFileMode(true), WithBufferSize(4096))
	if _, err := Compress(context.Background(), in, compressed, RLE, Raw, cfg, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := Decompress(context.Background(), compressed, out, RLE, Raw, cfg, nil); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestCompressDecompressHuffmanLargeFileMode(t *testing.T) {
	dir := t.TempDir()
	r := rand.New(rand.NewSource(3))
	data := make([]byte, 50000)
	for i := range data {
		data[i] = byte(r.Intn(24)) // skewed alphabet so Huffman compresses well
	}
	in := writeTempFile(t, dir, "in.bin", data)
	compressed := filepath.Join(dir, "out.huf")
	out := filepath.Join(dir, "roundtrip.bin")

	// A buffer far smaller than the input forces several chunk boundaries
	// through both the frequency pass and the bit-emitting pass.
	cfg := NewConfig(WithLargeFileMode(true), WithBufferSize(4096))
	res, err := Compress(context.Background(), in, compressed, Huffman, Raw, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.BytesIn != int64(len(data)) {
		t.Fatalf("BytesIn = %d, want %d", res.BytesIn, len(data))
	}
	if _, err := Decompress(context.Background(), compressed, out, Huffman, Raw, cfg, nil); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestCompressDecompressHuffmanLargeFileModeEmpty(t *testing.T) {
	dir := t.TempDir()
	in := writeTempFile(t, dir, "in.bin", nil)
	compressed := filepath.Join(dir, "out.huf")
	out := filepath.Join(dir, "roundtrip.bin")

	cfg := NewConfig(WithLargeFileMode(true), WithBufferSize(4096))
	if _, err := Compress(context.Background(), in, compressed, Huffman, Raw, cfg, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := Decompress(context.Background(), compressed, out, Huffman, Raw, cfg, nil); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty output, got %d bytes", len(got))
	}
}

func TestProgressiveRoundTripAndRange(t *testing.T) {
	dir := t.TempDir()
	r := rand.New(rand.NewSource(2))
	data := make([]byte, 200000)
	r.Read(data)
	in := writeTempFile(t, dir, "in.bin", data)
	container := filepath.Join(dir, "out.prog")
	full := filepath.Join(dir, "full.bin")
	ranged := filepath.Join(dir, "ranged.bin")

	cfg := NewConfig(WithChecksumType(checksum.SHA256))
	if _, err := ProgressiveCompress(in, container, LZ77, 16*1024, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := ProgressiveDecompress(container, full, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(full)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("full decode mismatch")
	}

	if _, err := ProgressiveDecompressRange(container, ranged, 1, 2, cfg); err != nil {
		t.Fatal(err)
	}
	gotRange, err := os.ReadFile(ranged)
	if err != nil {
		t.Fatal(err)
	}
	want := data[16*1024 : 3*16*1024]
	if !bytes.Equal(gotRange, want) {
		t.Fatal("ranged decode mismatch")
	}
}

func TestSplitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := rand.New(rand.NewSource(5))
	data := make([]byte, 1<<20)
	r.Read(data)
	in := writeTempFile(t, dir, "in.bin", data)
	base := filepath.Join(dir, "out")
	out := filepath.Join(dir, "roundtrip.bin")

	cfg := NewConfig()
	if _, err := SplitCompress(in, base, RLE, 128*1024, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := SplitDecompress(base, out, RLE, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestDedupCompress(t *testing.T) {
	dir := t.TempDir()
	r := rand.New(rand.NewSource(6))
	block := make([]byte, 1024)
	r.Read(block)
	data := bytes.Repeat(block, 200)
	in := writeTempFile(t, dir, "in.bin", data)
	out := filepath.Join(dir, "out.dedup")

	cfg := NewConfig()
	stats, err := DedupCompress(in, out, 1024, DedupVariable, DedupRollingRabinKarp, RLE, false, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if stats.DuplicateChunks < 199 {
		t.Fatalf("expected close to full deduplication, got %d duplicate chunks", stats.DuplicateChunks)
	}
}

func TestCodecFromExtension(t *testing.T) {
	id, ok := CodecFromExtension("archive.lz77")
	if !ok || id != LZ77 {
		t.Fatalf("CodecFromExtension(archive.lz77) = %v, %v", id, ok)
	}
}
