// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import (
	"math/big"
	"testing"
)

// TestParseSegments covers each segment kind with its exact source range.
func TestParseSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		check  func(t *testing.T, script *Script)
	}{
		{
			name:   "hex literal",
			source: "0x0102",
			check: func(t *testing.T, script *Script) {
				requireSegments(t, script, 1)
				seg := script.Segments[0]
				if seg.Kind != SegmentHexLiteral || seg.Text != "0102" {
					t.Fatalf("unexpected segment: %+v", seg)
				}
				want := Range{1, 1, 1, 7}
				if seg.Range != want {
					t.Fatalf("unexpected range: %v, want %v",
						seg.Range, want)
				}
			},
		},
		{
			name:   "push of utf8 literal",
			source: "<'abc'>",
			check: func(t *testing.T, script *Script) {
				requireSegments(t, script, 1)
				push := script.Segments[0]
				if push.Kind != SegmentPush || len(push.Children) != 1 {
					t.Fatalf("unexpected segment: %+v", push)
				}
				inner := push.Children[0]
				if inner.Kind != SegmentUTF8Literal || inner.Text != "abc" {
					t.Fatalf("unexpected child: %+v", inner)
				}
				if push.Range != (Range{1, 1, 1, 8}) {
					t.Fatalf("unexpected push range: %v", push.Range)
				}
				if inner.Range != (Range{1, 2, 1, 7}) {
					t.Fatalf("unexpected inner range: %v", inner.Range)
				}
			},
		},
		{
			name:   "evaluation",
			source: "$(<1> <2> OP_ADD)",
			check: func(t *testing.T, script *Script) {
				requireSegments(t, script, 1)
				eval := script.Segments[0]
				if eval.Kind != SegmentEvaluation {
					t.Fatalf("unexpected segment: %+v", eval)
				}
				if len(eval.Children) != 3 {
					t.Fatalf("unexpected child count: %d",
						len(eval.Children))
				}
				if eval.Children[2].Kind != SegmentIdentifier ||
					eval.Children[2].Name != "OP_ADD" {
					t.Fatalf("unexpected third child: %+v",
						eval.Children[2])
				}
			},
		},
		{
			name:   "big int literals",
			source: "42 -7",
			check: func(t *testing.T, script *Script) {
				requireSegments(t, script, 2)
				if script.Segments[0].Value.Cmp(big.NewInt(42)) != 0 {
					t.Fatalf("unexpected value: %v",
						script.Segments[0].Value)
				}
				if script.Segments[1].Value.Cmp(big.NewInt(-7)) != 0 {
					t.Fatalf("unexpected value: %v",
						script.Segments[1].Value)
				}
			},
		},
		{
			name:   "dotted identifier",
			source: "owner.signature.all_outputs",
			check: func(t *testing.T, script *Script) {
				requireSegments(t, script, 1)
				seg := script.Segments[0]
				if seg.Kind != SegmentIdentifier ||
					seg.Name != "owner.signature.all_outputs" {
					t.Fatalf("unexpected segment: %+v", seg)
				}
			},
		},
		{
			name:   "comments",
			source: "// line note\nOP_1 /* block\nnote */ OP_2",
			check: func(t *testing.T, script *Script) {
				requireSegments(t, script, 4)
				if script.Segments[0].Kind != SegmentComment ||
					script.Segments[0].Text != "line note" {
					t.Fatalf("unexpected comment: %+v",
						script.Segments[0])
				}
				if script.Segments[2].Kind != SegmentComment {
					t.Fatalf("unexpected segment: %+v",
						script.Segments[2])
				}
			},
		},
		{
			name:   "empty source",
			source: "  \n ",
			check: func(t *testing.T, script *Script) {
				requireSegments(t, script, 0)
			},
		},
		{
			name:   "nested push",
			source: "<<0x01>>",
			check: func(t *testing.T, script *Script) {
				requireSegments(t, script, 1)
				outer := script.Segments[0]
				if outer.Kind != SegmentPush ||
					len(outer.Children) != 1 ||
					outer.Children[0].Kind != SegmentPush {
					t.Fatalf("unexpected nesting: %+v", outer)
				}
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			script, err := Parse(test.source)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			test.check(t, script)
		})
	}
}

// requireSegments fails the test unless the script has the expected number
// of top-level segments.
func requireSegments(t *testing.T, script *Script, want int) {
	t.Helper()
	if len(script.Segments) != want {
		t.Fatalf("unexpected segment count: got %d, want %d",
			len(script.Segments), want)
	}
}

// TestParseErrors covers the syntax failure modes, each with a range.
func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
	}{
		{"unterminated push", "<0x01"},
		{"unterminated evaluation", "$(OP_1"},
		{"dollar without paren", "$OP_1"},
		{"unterminated string", "'abc"},
		{"unterminated block comment", "/* note"},
		{"odd hex digits", "0x012"},
		{"empty hex literal", "0x"},
		{"unexpected character", "OP_1 ) OP_2"},
		{"stray closer", ">"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(test.source)
			if err == nil {
				t.Fatalf("expected a parse error for %q",
					test.source)
			}
			if err.Range.StartLine < 1 || err.Range.StartColumn < 1 {
				t.Fatalf("parse error carries no range: %+v",
					err)
			}
		})
	}
}

// TestMergeRanges covers the range-merge algebra.
func TestMergeRanges(t *testing.T) {
	t.Parallel()

	a := Range{1, 5, 1, 9}
	b := Range{1, 1, 1, 3}
	c := Range{2, 1, 3, 7}

	// A single range merges to itself.
	if got := MergeRanges([]Range{a}); got != a {
		t.Fatalf("single merge: got %v, want %v", got, a)
	}

	want := Range{1, 1, 3, 7}
	if got := MergeRanges([]Range{a, b, c}); got != want {
		t.Fatalf("merge: got %v, want %v", got, want)
	}

	// The merge does not depend on input order.
	if got := MergeRanges([]Range{c, a, b}); got != want {
		t.Fatalf("reordered merge: got %v, want %v", got, want)
	}
}
