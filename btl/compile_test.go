// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/bauthsuite/bauth/bchscript"
)

// testEnv returns a standard environment over the passed scripts and
// variables.
func testEnv(scripts map[string]string, variables map[string]*Variable) *Environment {
	return NewEnvironment(scripts, variables, bchscript.BCH2019NovStrict)
}

// compileOK compiles source text and fails the test unless compilation
// succeeds, returning the bytecode.
func compileOK(t *testing.T, source string, env *Environment, data *Data) []byte {
	t.Helper()
	result := CompileText(source, env, data)
	if !result.Success {
		t.Fatalf("compilation of %q failed:\n%s", source,
			spew.Sdump(result.Errors))
	}
	return result.Bytecode
}

// TestCompileLiterals covers literal reduction and push wrapping.
func TestCompileLiterals(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)

	tests := []struct {
		name   string
		source string
		want   []byte
	}{
		{"hex literal", "0x0102", []byte{0x01, 0x02}},
		{"pushed utf8 literal", "<'abc'>",
			[]byte{0x03, 0x61, 0x62, 0x63}},
		{"big int literal", "17", []byte{0x11}},
		{"zero literal", "0", nil},
		{"pushed zero", "<0>", []byte{bchscript.OP_0}},
		{"pushed small int", "<7>", []byte{bchscript.OP_7}},
		{"opcode identifiers", "OP_DUP OP_HASH160",
			[]byte{bchscript.OP_DUP, bchscript.OP_HASH160}},
		{"comments reduce to nothing", "// note\nOP_1 /* x */", []byte{bchscript.OP_1}},
		{"empty script", "", nil},
		{"nested push", "<<0x01>>", []byte{0x01, 0x51}},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := compileOK(t, test.source, env, nil)
			if !bytes.Equal(got, test.want) {
				t.Fatalf("unexpected bytecode: got %x, want %x",
					got, test.want)
			}
		})
	}
}

// TestCompileEvaluation covers compile-time evaluations, including the
// missing-VM failure.
func TestCompileEvaluation(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)

	// The evaluation result is the top stack item spliced in verbatim.
	got := compileOK(t, "$(<1> <2> OP_ADD)", env, nil)
	require.Equal(t, []byte{0x03}, got)

	// Evaluations compose with pushes.
	got = compileOK(t, "<$(<1> <2> OP_ADD)>", env, nil)
	require.Equal(t, []byte{bchscript.OP_3}, got)

	// An empty final stack splices empty bytecode.
	got = compileOK(t, "$(<1> OP_DROP) OP_1", env, nil)
	require.Equal(t, []byte{bchscript.OP_1}, got)

	// A failing evaluation surfaces the engine error with the
	// evaluation's range.
	result := CompileText("$(OP_RETURN)", env, nil)
	require.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0].Message, "evaluation failed")

	// Without an evaluation hook, evaluations are a compilation error.
	noVM := testEnv(nil, nil)
	noVM.Evaluate = nil
	result = CompileText("$(<1>)", noVM, nil)
	require.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0].Message,
		"no evaluation virtual machine")
}

// TestCompileDeterminism ensures repeated compilation yields identical
// bytecode and error lists.
func TestCompileDeterminism(t *testing.T) {
	t.Parallel()

	env := testEnv(map[string]string{
		"leaf": "<0xbeef> OP_EQUAL",
	}, nil)
	source := "<'abc'> $(<1> <2> OP_ADD) leaf unknown_thing"

	first := CompileText(source, env, nil)
	second := CompileText(source, env, nil)

	require.Equal(t, first.Success, second.Success)
	require.True(t, bytes.Equal(first.Bytecode, second.Bytecode))
	require.Equal(t, len(first.Errors), len(second.Errors))
	for i := range first.Errors {
		require.Equal(t, first.Errors[i].Message,
			second.Errors[i].Message)
		require.Equal(t, first.Errors[i].Range, second.Errors[i].Range)
	}
}

// TestCompileNestedScripts covers script identifier resolution and the
// cycle guard.
func TestCompileNestedScripts(t *testing.T) {
	t.Parallel()

	env := testEnv(map[string]string{
		"main": "inner OP_EQUAL",
		"inner": "<0x0102>",
		"a":     "b",
		"b":     "a",
		"self":  "self",
	}, nil)

	// A nested script contributes its compiled bytecode, and the resolved
	// tree of the nested compile is surfaced on the segment.
	result := CompileScript("main", env, nil)
	require.True(t, result.Success, "errors: %v", result.Errors)
	require.Equal(t, append(bchscript.EncodeDataPush([]byte{0x01, 0x02}),
		bchscript.OP_EQUAL), result.Bytecode)

	var scriptSegment *ResolvedSegment
	for _, seg := range result.Resolve {
		if seg.Kind == ResolvedBytecode && seg.BytecodeKind == BytecodeScript {
			scriptSegment = seg
		}
	}
	require.NotNil(t, scriptSegment)
	require.Equal(t, "inner", scriptSegment.Identifier)
	require.NotEmpty(t, scriptSegment.Source)

	// A two-script cycle produces exactly one error naming both scripts.
	result = CompileScript("a", env, nil)
	require.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	msg := result.Errors[0].Message
	require.Contains(t, msg, "circular dependency")
	require.Contains(t, msg, "a")
	require.Contains(t, msg, "b")

	// Self reference is the smallest cycle.
	result = CompileScript("self", env, nil)
	require.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0].Message, "circular dependency")

	// An unregistered script id fails up front.
	result = CompileScript("missing", env, nil)
	require.False(t, result.Success)
	require.Contains(t, result.Errors[0].Message, "no script with the identifier")
}

// TestCompileVariables covers variable resolution through each operation
// table shape and the documented failure messages.
func TestCompileVariables(t *testing.T) {
	t.Parallel()

	variables := map[string]*Variable{
		"owner":   {Type: KeyVariable},
		"vault":   {Type: HdKeyVariable},
		"payload": {Type: AddressDataVariable},
	}
	env := testEnv(nil, variables)

	privKey := bytes.Repeat([]byte{0x51}, 32)
	_, pubKey := btcec.PrivKeyFromBytes(privKey)
	compressedPubKey := pubKey.SerializeCompressed()
	data := &Data{
		CurrentBlockHeight: 561000,
		CurrentBlockTime:   1573819200,
		Keys:               map[string][]byte{"owner": privKey},
		AddressData:        map[string][]byte{"payload": {0xaa, 0xbb}},
		SigningSerialization: map[string][]byte{
			"version":     {0x02, 0x00, 0x00, 0x00},
			"all_outputs": []byte("full serialization bytes"),
		},
	}

	// AddressData resolves through the default operation.
	got := compileOK(t, "payload", env, data)
	require.Equal(t, []byte{0xaa, 0xbb}, got)

	// Key public key derivation matches btcec.
	got = compileOK(t, "<owner.public_key>", env, data)
	require.Equal(t, bchscript.EncodeDataPush(compressedPubKey), got)

	// Key signatures end with the hash type byte for their component.
	got = compileOK(t, "<owner.signature.all_outputs>", env, data)
	require.Equal(t, byte(bchscript.SigHashAll|bchscript.SigHashForkID),
		got[len(got)-1])

	// Schnorr signatures are 64 bytes plus the hash type, wrapped in a
	// single push.
	got = compileOK(t, "<owner.schnorr_signature.all_outputs>", env, data)
	require.Equal(t, 66, len(got))

	// Built-in variables resolve to script numbers.
	got = compileOK(t, "current_block_height", env, data)
	require.Equal(t, bchscript.BigIntBytes(big.NewInt(561000)), got)

	// Signing serialization components resolve to their raw bytes.
	got = compileOK(t, "signing_serialization.version", env, data)
	require.Equal(t, []byte{0x02, 0x00, 0x00, 0x00}, got)

	// Failure messages.
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{"unknown identifier", "nonsense", "unknown identifier"},
		{"missing operation id", "owner", "requires an operation identifier"},
		{"unavailable operation", "owner.sign_everything",
			"operation is not available"},
		{"operation type not included", "vault.public_key",
			"operation type is not included"},
		{"missing data", "signing_serialization.locktime",
			"was not provided"},
	}
	for _, test := range tests {
		result := CompileText(test.source, env, data)
		require.False(t, result.Success, test.name)
		require.Len(t, result.Errors, 1, test.name)
		require.Contains(t, result.Errors[0].Message, test.wantMsg,
			test.name)
	}
}

// TestCompileErrorRanges ensures resolution errors carry the range of the
// offending identifier and partial bytecode is still produced.
func TestCompileErrorRanges(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)
	result := CompileText("OP_1 bogus OP_2", env, nil)
	require.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	require.Equal(t, Range{1, 6, 1, 11}, result.Errors[0].Range)

	// Best-effort bytecode around the failed segment.
	require.Equal(t, []byte{bchscript.OP_1, bchscript.OP_2},
		result.Bytecode)

	// Multiple failures are all reported, in source order.
	result = CompileText("bogus1 bogus2", env, nil)
	require.Len(t, result.Errors, 2)
	require.True(t, strings.Contains(result.Errors[0].Message, "bogus1"))
	require.True(t, strings.Contains(result.Errors[1].Message, "bogus2"))
}

// TestCompileMalformedResult ensures the aggregated bytecode is checked for
// truncated pushes after reduction.
func TestCompileMalformedResult(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)

	// OP_PUSHBYTES_2 with a single trailing byte only becomes detectable
	// once the segments are concatenated.
	result := CompileText("0x02 0x01", env, nil)
	require.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0].Message, "malformed")
}
