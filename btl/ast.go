// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import (
	"fmt"
	"math/big"
)

// Range identifies a region of a template source file.  Lines and columns are
// 1-indexed and the end position is exclusive.
type Range struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// String renders the range in start-end form for error messages.
func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.StartLine, r.StartColumn,
		r.EndLine, r.EndColumn)
}

// startsBefore returns whether the range begins before the passed range.
func (r Range) startsBefore(other Range) bool {
	if r.StartLine != other.StartLine {
		return r.StartLine < other.StartLine
	}
	return r.StartColumn < other.StartColumn
}

// endsAfter returns whether the range ends after the passed range.
func (r Range) endsAfter(other Range) bool {
	if r.EndLine != other.EndLine {
		return r.EndLine > other.EndLine
	}
	return r.EndColumn > other.EndColumn
}

// MergeRanges returns the smallest range covering every passed range: the
// minimum start position and the maximum end position.  Merging a single
// range returns it unchanged, and the operation does not depend on the order
// of its inputs.
func MergeRanges(ranges []Range) Range {
	merged := ranges[0]
	for _, r := range ranges[1:] {
		if r.startsBefore(merged) {
			merged.StartLine = r.StartLine
			merged.StartColumn = r.StartColumn
		}
		if r.endsAfter(merged) {
			merged.EndLine = r.EndLine
			merged.EndColumn = r.EndColumn
		}
	}
	return merged
}

// SegmentKind identifies a parse tree segment variant.
type SegmentKind int

// The parse tree segment variants.
const (
	SegmentComment SegmentKind = iota
	SegmentIdentifier
	SegmentBigIntLiteral
	SegmentHexLiteral
	SegmentUTF8Literal
	SegmentPush
	SegmentEvaluation
)

// segmentKindStrings maps segment kinds to names for debugging output.
var segmentKindStrings = map[SegmentKind]string{
	SegmentComment:       "Comment",
	SegmentIdentifier:    "Identifier",
	SegmentBigIntLiteral: "BigIntLiteral",
	SegmentHexLiteral:    "HexLiteral",
	SegmentUTF8Literal:   "UTF8Literal",
	SegmentPush:          "Push",
	SegmentEvaluation:    "Evaluation",
}

// String returns the segment kind as a human-readable name.
func (k SegmentKind) String() string {
	if s, ok := segmentKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown SegmentKind (%d)", int(k))
}

// Segment is a node of the parse tree produced by Parse.  The populated
// fields depend on Kind: identifiers carry Name, literals carry Value or
// Text, and pushes and evaluations carry Children.
type Segment struct {
	Kind  SegmentKind
	Range Range

	// Name is the identifier text for SegmentIdentifier.
	Name string

	// Value is the parsed integer for SegmentBigIntLiteral.
	Value *big.Int

	// Text holds the hex digits for SegmentHexLiteral, the literal value
	// for SegmentUTF8Literal, and the comment body for SegmentComment.
	Text string

	// Children holds the inner segments of SegmentPush and
	// SegmentEvaluation in source order.
	Children []*Segment
}

// Script is the root of a parsed template: the top-level segments in source
// order and the range of the full source.
type Script struct {
	Segments []*Segment
	Range    Range
}
