// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bauthsuite/bauth/bchscript"
)

// ResolvedSegmentKind identifies a resolved tree segment variant.
type ResolvedSegmentKind int

// The resolved tree segment variants.
const (
	ResolvedComment ResolvedSegmentKind = iota
	ResolvedBytecode
	ResolvedPush
	ResolvedEvaluation
	ResolvedError
)

// BytecodeKind identifies how a ResolvedBytecode segment obtained its bytes.
type BytecodeKind int

// The bytecode segment subvariants.
const (
	BytecodeLiteral BytecodeKind = iota
	BytecodeOpcode
	BytecodeVariable
	BytecodeScript
)

// ResolvedSegment is a node of the resolved tree: the parse tree after
// identifier resolution, still carrying ranges, ready for reduction to
// bytecode.  An identifier always resolves to exactly one of ResolvedBytecode
// or ResolvedError.
type ResolvedSegment struct {
	Kind  ResolvedSegmentKind
	Range Range

	// Value holds the bytecode of a ResolvedBytecode segment.
	Value []byte

	// BytecodeKind, LiteralType, and Identifier describe the origin of a
	// ResolvedBytecode segment: the literal kind for BytecodeLiteral, or
	// the resolved identifier for opcodes, variables, and scripts.
	BytecodeKind BytecodeKind
	LiteralType  SegmentKind
	Identifier   string

	// Source is the resolved tree of the nested script for
	// BytecodeScript segments.
	Source ResolvedScript

	// Script holds the resolved children of ResolvedPush and
	// ResolvedEvaluation segments.
	Script ResolvedScript

	// Text holds the body of a ResolvedComment or the message of a
	// ResolvedError.
	Text string
}

// ResolvedScript is an ordered sequence of resolved segments.
type ResolvedScript []*ResolvedSegment

// resolver resolves identifiers against a compilation environment while
// tracking the chain of scripts being compiled for cycle detection.
type resolver struct {
	env  *Environment
	data *Data

	// scriptID is the identifier of the script being compiled, and
	// sourceScriptIDs the chain of enclosing compilations, outermost
	// first.
	scriptID        string
	sourceScriptIDs []string
}

// resolveScript maps a parse tree onto the resolved tree.  Resolution errors
// embed in the result as ResolvedError segments rather than aborting, so a
// single pass reports every failure in the script.
func (r *resolver) resolveScript(segments []*Segment, parent Range) ResolvedScript {
	// Downstream passes expect at least one range, so an empty tree
	// resolves to a single empty comment spanning the parent.
	if len(segments) == 0 {
		return ResolvedScript{{
			Kind:  ResolvedComment,
			Range: parent,
		}}
	}

	resolved := make(ResolvedScript, 0, len(segments))
	for _, seg := range segments {
		resolved = append(resolved, r.resolveSegment(seg))
	}
	return resolved
}

// resolveSegment maps a single parse tree segment onto its resolved form.
func (r *resolver) resolveSegment(seg *Segment) *ResolvedSegment {
	switch seg.Kind {
	case SegmentComment:
		return &ResolvedSegment{
			Kind:  ResolvedComment,
			Range: seg.Range,
			Text:  seg.Text,
		}

	case SegmentPush:
		return &ResolvedSegment{
			Kind:   ResolvedPush,
			Range:  seg.Range,
			Script: r.resolveScript(seg.Children, seg.Range),
		}

	case SegmentEvaluation:
		return &ResolvedSegment{
			Kind:   ResolvedEvaluation,
			Range:  seg.Range,
			Script: r.resolveScript(seg.Children, seg.Range),
		}

	case SegmentBigIntLiteral:
		return &ResolvedSegment{
			Kind:         ResolvedBytecode,
			Range:        seg.Range,
			Value:        bchscript.BigIntBytes(seg.Value),
			BytecodeKind: BytecodeLiteral,
			LiteralType:  SegmentBigIntLiteral,
		}

	case SegmentHexLiteral:
		// The parser only admits an even count of hex digits, so the
		// decode cannot fail.
		value, _ := hex.DecodeString(seg.Text)
		return &ResolvedSegment{
			Kind:         ResolvedBytecode,
			Range:        seg.Range,
			Value:        value,
			BytecodeKind: BytecodeLiteral,
			LiteralType:  SegmentHexLiteral,
		}

	case SegmentUTF8Literal:
		return &ResolvedSegment{
			Kind:         ResolvedBytecode,
			Range:        seg.Range,
			Value:        []byte(seg.Text),
			BytecodeKind: BytecodeLiteral,
			LiteralType:  SegmentUTF8Literal,
		}

	case SegmentIdentifier:
		return r.resolveIdentifier(seg.Name, seg.Range)

	default:
		return &ResolvedSegment{
			Kind:  ResolvedError,
			Range: seg.Range,
			Text: fmt.Sprintf("unknown parse tree segment kind %v",
				seg.Kind),
		}
	}
}

// resolveIdentifier resolves an identifier in deterministic first-match
// order: opcodes, then variables, then nested scripts.  An unmatched
// identifier produces an error segment.
func (r *resolver) resolveIdentifier(identifier string, rng Range) *ResolvedSegment {
	// 1. Opcode identifiers.
	if opcode, ok := r.env.Opcodes[identifier]; ok {
		return &ResolvedSegment{
			Kind:         ResolvedBytecode,
			Range:        rng,
			Value:        []byte{opcode},
			BytecodeKind: BytecodeOpcode,
			Identifier:   identifier,
		}
	}

	// 2. Variables, including the built-in ones.
	if value, handled, err := r.resolveVariable(identifier); handled {
		if err != nil {
			return &ResolvedSegment{
				Kind:  ResolvedError,
				Range: rng,
				Text:  err.Error(),
			}
		}
		return &ResolvedSegment{
			Kind:         ResolvedBytecode,
			Range:        rng,
			Value:        value,
			BytecodeKind: BytecodeVariable,
			Identifier:   identifier,
		}
	}

	// 3. Nested scripts.
	if _, ok := r.env.Scripts[identifier]; ok {
		return r.resolveScriptIdentifier(identifier, rng)
	}

	return &ResolvedSegment{
		Kind:  ResolvedError,
		Range: rng,
		Text:  fmt.Sprintf("unknown identifier %q", identifier),
	}
}

// resolveVariable attempts to resolve the identifier as a variable
// operation.  The handled result is false when the identifier names neither
// a built-in nor a declared variable, allowing resolution to continue with
// the remaining identifier spaces.
func (r *resolver) resolveVariable(identifier string) (value []byte, handled bool, err error) {
	parts := strings.SplitN(identifier, ".", 2)
	varID := parts[0]
	operationID := ""
	if len(parts) == 2 {
		operationID = parts[1]
	}

	operationsName, builtin := builtinVariableOperations[varID]
	if !builtin {
		variable, ok := r.env.Variables[varID]
		if !ok {
			return nil, false, nil
		}
		operationsName = variableTypeOperations[variable.Type]
	}

	opSet := r.env.Operations[operationsName]
	if opSet == nil {
		return nil, true, fmt.Errorf("identifier %q could not be "+
			"resolved: the %q operation type is not included in "+
			"this compilation environment", identifier,
			operationsName)
	}

	operation := opSet.Default
	if operation == nil {
		if operationID == "" {
			return nil, true, fmt.Errorf("this variable requires "+
				"an operation identifier, e.g. '%s.%s'", varID,
				opSet.Example)
		}
		op, ok := opSet.ByID[operationID]
		if !ok {
			return nil, true, fmt.Errorf("the identifier %q could "+
				"not be resolved because the %q operation is "+
				"not available", identifier, operationID)
		}
		operation = op
	}

	value, err = operation(identifier, r.data, r.env)
	if err != nil {
		return nil, true, err
	}
	return value, true, nil
}

// resolveScriptIdentifier recursively compiles the named script, guarding
// against circular dependencies by consulting the chain of scripts already
// being compiled.
func (r *resolver) resolveScriptIdentifier(identifier string, rng Range) *ResolvedSegment {
	chain := append([]string{}, r.sourceScriptIDs...)
	if r.scriptID != "" {
		chain = append(chain, r.scriptID)
	}
	for _, sourceID := range chain {
		if sourceID == identifier {
			return &ResolvedSegment{
				Kind:  ResolvedError,
				Range: rng,
				Text: fmt.Sprintf("compilation of script %q "+
					"failed: circular dependency through %s",
					identifier, strings.Join(
						append(chain, identifier),
						" → ")),
			}
		}
	}

	result := compileScriptText(r.env.Scripts[identifier], identifier,
		r.env, r.data, chain)
	if !result.Success {
		return &ResolvedSegment{
			Kind:  ResolvedError,
			Range: rng,
			Text: fmt.Sprintf("compilation of script %q failed: %v",
				identifier, joinErrors(result.Errors)),
		}
	}

	return &ResolvedSegment{
		Kind:         ResolvedBytecode,
		Range:        rng,
		Value:        result.Bytecode,
		BytecodeKind: BytecodeScript,
		Identifier:   identifier,
		Source:       result.Resolve,
	}
}

// joinErrors renders a compilation error list as a single message.
func joinErrors(errs []*CompilationError) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
