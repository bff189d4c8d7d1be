// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import (
	"github.com/bauthsuite/bauth/bchscript"
)

// ReducedSegment is the result of folding a resolved segment to bytecode.
// Source retains one reduced node per child of the originating resolved
// segment so tooling can map every byte back to a range.  Reduction is
// best-effort: errors accumulate in Errors while Bytecode carries whatever
// could still be produced (empty where undefined).
type ReducedSegment struct {
	Bytecode []byte
	Range    Range
	Source   []*ReducedSegment
	Errors   []*CompilationError
}

// reduceScript folds a resolved script into a single reduced node.  The
// node's bytecode is the concatenation of its children's bytecode, its range
// is the merge of their ranges, and its error list is the concatenation of
// their error lists.
func reduceScript(script ResolvedScript, env *Environment) *ReducedSegment {
	children := make([]*ReducedSegment, 0, len(script))
	ranges := make([]Range, 0, len(script))
	var bytecode []byte
	var errs []*CompilationError

	for _, segment := range script {
		child := reduceSegment(segment, env)
		children = append(children, child)
		ranges = append(ranges, child.Range)
		bytecode = append(bytecode, child.Bytecode...)
		errs = append(errs, child.Errors...)
	}

	return &ReducedSegment{
		Bytecode: bytecode,
		Range:    MergeRanges(ranges),
		Source:   children,
		Errors:   errs,
	}
}

// reduceSegment folds a single resolved segment.
func reduceSegment(segment *ResolvedSegment, env *Environment) *ReducedSegment {
	switch segment.Kind {
	case ResolvedBytecode:
		return &ReducedSegment{
			Bytecode: segment.Value,
			Range:    segment.Range,
		}

	case ResolvedComment:
		return &ReducedSegment{Range: segment.Range}

	case ResolvedError:
		return &ReducedSegment{
			Range: segment.Range,
			Errors: []*CompilationError{{
				Message: segment.Text,
				Range:   segment.Range,
			}},
		}

	case ResolvedPush:
		inner := reduceScript(segment.Script, env)
		reduced := &ReducedSegment{
			Range:  segment.Range,
			Source: inner.Source,
			Errors: inner.Errors,
		}
		// Best-effort: wrap whatever bytecode the children produced
		// even when some of them failed.
		reduced.Bytecode = bchscript.EncodeDataPush(inner.Bytecode)
		return reduced

	case ResolvedEvaluation:
		inner := reduceScript(segment.Script, env)
		reduced := &ReducedSegment{
			Range:  segment.Range,
			Source: inner.Source,
			Errors: inner.Errors,
		}
		if len(inner.Errors) > 0 {
			return reduced
		}
		if env.Evaluate == nil {
			reduced.Errors = append(reduced.Errors,
				compilationErrorf(segment.Range,
					"an evaluation is present, but no "+
						"evaluation virtual machine was "+
						"provided in the compilation "+
						"environment"))
			return reduced
		}

		top, err := env.Evaluate(inner.Bytecode)
		if err != nil {
			reduced.Errors = append(reduced.Errors,
				compilationErrorf(segment.Range,
					"evaluation failed: %v", err))
			return reduced
		}
		reduced.Bytecode = top
		return reduced

	default:
		return &ReducedSegment{
			Range: segment.Range,
			Errors: []*CompilationError{
				compilationErrorf(segment.Range,
					"unknown resolved segment kind %d",
					segment.Kind),
			},
		}
	}
}
