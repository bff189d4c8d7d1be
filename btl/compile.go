// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import (
	"fmt"

	"github.com/bauthsuite/bauth/bchscript"
)

// CompilationResult is the outcome of compiling one script.  When Success is
// false, Errors lists every failure with its source range and Bytecode holds
// the best-effort partial result.  The intermediate representations of each
// pass are retained for tooling.
type CompilationResult struct {
	Success  bool
	Bytecode []byte
	Parse    *Script
	Resolve  ResolvedScript
	Reduce   *ReducedSegment
	Errors   []*CompilationError
}

// CompileScript compiles the script registered under scriptID in the
// environment.  Compilation is deterministic: repeated calls over the same
// inputs produce byte-identical results and identical error lists.
func CompileScript(scriptID string, env *Environment, data *Data) *CompilationResult {
	source, ok := env.Scripts[scriptID]
	if !ok {
		return &CompilationResult{
			Errors: []*CompilationError{{
				Message: fmt.Sprintf("no script with the "+
					"identifier %q exists in this "+
					"compilation environment", scriptID),
				Range: Range{
					StartLine: 1, StartColumn: 1,
					EndLine: 1, EndColumn: 1,
				},
			}},
		}
	}
	return compileScriptText(source, scriptID, env, data, nil)
}

// CompileText compiles standalone template source against the environment
// without registering it as a named script.
func CompileText(source string, env *Environment, data *Data) *CompilationResult {
	return compileScriptText(source, "", env, data, nil)
}

// compileScriptText runs the full pipeline over one source text: parse,
// resolve, reduce, and a final malformed-bytecode check over the aggregated
// result.  sourceScriptIDs carries the chain of enclosing compilations for
// cycle detection in nested script resolution.
func compileScriptText(source, scriptID string, env *Environment, data *Data, sourceScriptIDs []string) *CompilationResult {
	log.Tracef("compiling script %q (%d enclosing)", scriptID,
		len(sourceScriptIDs))

	parsed, parseErr := Parse(source)
	if parseErr != nil {
		return &CompilationResult{
			Errors: []*CompilationError{parseErr},
		}
	}

	res := &resolver{
		env:             env,
		data:            data,
		scriptID:        scriptID,
		sourceScriptIDs: sourceScriptIDs,
	}
	resolved := res.resolveScript(parsed.Segments, parsed.Range)

	reduced := reduceScript(resolved, env)

	result := &CompilationResult{
		Bytecode: reduced.Bytecode,
		Parse:    parsed,
		Resolve:  resolved,
		Reduce:   reduced,
		Errors:   reduced.Errors,
	}
	if len(result.Errors) > 0 {
		return result
	}

	// The reducer concatenates child bytecode verbatim, so a final
	// instruction whose push length exceeds the remaining bytes is only
	// detectable on the aggregated result.
	if bchscript.ScriptIsMalformed(bchscript.ParseScript(reduced.Bytecode)) {
		result.Errors = append(result.Errors,
			compilationErrorf(reduced.Range, "compiled bytecode is "+
				"malformed: the final push is truncated"))
		return result
	}

	result.Success = true
	return result
}
