// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package gcerr defines the error taxonomy shared by every codec and
// container package, per spec.md §7. It follows the teacher's named-string-
// type error pattern (internal/bzip2.StructuralError) rather than ad hoc
// fmt.Errorf values, so callers can discriminate failure kinds with a type
// switch or errors.As. The root gocomp package re-exports these types so
// external callers never import this internal package directly.
package gcerr

import "fmt"

// Corrupt reports a malformed stream: bad magic, truncated header, invalid
// back-reference, or a checksum mismatch. What identifies the offending
// structure ("tree", "bit stream", ...).
type Corrupt struct {
	What string
}

func (e *Corrupt) Error() string { return "gocomp: corrupt stream: " + e.What }

// Unsupported reports a version, codec id, or option combination that is
// not recognized.
type Unsupported struct {
	What string
}

func (e *Unsupported) Error() string { return "gocomp: unsupported: " + e.What }

// InvalidArgument reports a caller-supplied argument outside its allowed
// range (e.g. start > end, chunk size below minimum).
type InvalidArgument struct {
	What string
}

func (e *InvalidArgument) Error() string { return "gocomp: invalid argument: " + e.What }

// ShortBuffer reports that a caller-provided output buffer was too small to
// hold a decoded chunk. Decoder state is preserved by the caller so the
// operation can be retried with a larger buffer.
type ShortBuffer struct {
	Need int
}

func (e *ShortBuffer) Error() string {
	return fmt.Sprintf("gocomp: short buffer: need at least %d bytes", e.Need)
}

// IO wraps an underlying I/O failure (open, read, write).
type IO struct {
	Op  string
	Err error
}

func (e *IO) Error() string { return fmt.Sprintf("gocomp: io: %s: %v", e.Op, e.Err) }
func (e *IO) Unwrap() error { return e.Err }

// Internal reports an allocation failure or other condition not
// attributable to caller input or stream content.
type Internal struct {
	What string
}

func (e *Internal) Error() string { return "gocomp: internal: " + e.What }

// CorruptBlock reports a block whose payload is truncated, fails to decode,
// or fails its per-block checksum, identifying the offending block so the
// error message names it, per spec.md §7.
type CorruptBlock struct {
	BlockID uint32
}

func (e *CorruptBlock) Error() string {
	return fmt.Sprintf("gocomp: corrupt block %d", e.BlockID)
}

// CorruptPart identifies the offending part of a split-volume archive.
type CorruptPart struct {
	Part int
	What string
}

func (e *CorruptPart) Error() string {
	return fmt.Sprintf("gocomp: corrupt part %d: %s", e.Part, e.What)
}
