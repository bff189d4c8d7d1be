// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"bytes"
	"testing"
)

// TestIsPushOnlyScript ensures the push-only classifier matches the
// consensus definition used by the unlocking pre-check.
func TestIsPushOnlyScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script []byte
		want   bool
	}{
		{"empty", nil, true},
		{"data pushes", []byte{OP_DATA_2, 0x01, 0x02, OP_0, OP_16}, true},
		{"small ints only", []byte{OP_1, OP_2, OP_1NEGATE}, true},
		{"non push", []byte{OP_1, OP_2, OP_ADD}, false},
		{"truncated push", []byte{OP_DATA_2, 0x01}, false},
	}

	for _, test := range tests {
		if got := IsPushOnlyScript(test.script); got != test.want {
			t.Errorf("%q: got %v, want %v", test.name, got,
				test.want)
		}
	}
}

// TestScriptHashShape ensures only the exact pay-to-script-hash pattern is
// recognized.
func TestScriptHashShape(t *testing.T) {
	t.Parallel()

	hash := bytes.Repeat([]byte{0x01}, 20)
	p2sh := append(append([]byte{OP_HASH160, OP_DATA_20}, hash...), OP_EQUAL)
	if !isScriptHashScript(ParseScript(p2sh)) {
		t.Error("canonical p2sh shape not recognized")
	}

	// A trailing opcode breaks the pattern.
	extra := append(append([]byte{}, p2sh...), OP_NOP)
	if isScriptHashScript(ParseScript(extra)) {
		t.Error("p2sh shape with trailing opcode recognized")
	}

	// A 19-byte hash push breaks the pattern.
	short := append(append([]byte{OP_HASH160, OP_DATA_19},
		hash[:19]...), OP_EQUAL)
	if isScriptHashScript(ParseScript(short)) {
		t.Error("p2sh shape with short hash recognized")
	}
}

// TestWitnessProgramShape ensures the segregated-witness program shape test
// honors the documented bounds.
func TestWitnessProgramShape(t *testing.T) {
	t.Parallel()

	program := func(version byte, size int) []byte {
		return append([]byte{version, byte(size)},
			bytes.Repeat([]byte{0xab}, size)...)
	}

	tests := []struct {
		name   string
		script []byte
		want   bool
	}{
		{"v0 20-byte", program(OP_0, 20), true},
		{"v0 32-byte", program(OP_0, 32), true},
		{"v1 2-byte", program(OP_1, 2), true},
		{"v16 40-byte", program(OP_16, 40), true},
		{"too short", program(OP_0, 1), false},
		{"too long", program(OP_0, 41), false},
		{"bad version", program(OP_NOP, 20), false},
		{"length mismatch", append(program(OP_0, 20), 0xab), false},
		{"empty", nil, false},
	}

	for _, test := range tests {
		if got := isWitnessProgram(test.script); got != test.want {
			t.Errorf("%q: got %v, want %v", test.name, got,
				test.want)
		}
	}
}

// TestDisasmString ensures the one-line disassembler renders pushes and
// opcodes and marks parse failures.
func TestDisasmString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		script  []byte
		want    string
		wantErr bool
	}{
		{"empty", nil, "", false},
		{"simple", []byte{OP_1, OP_2, OP_ADD}, "1 2 OP_ADD", false},
		{"push", []byte{OP_DATA_2, 0xab, 0xcd, OP_EQUAL},
			"OP_DATA_2 abcd OP_EQUAL", false},
		{"truncated", []byte{OP_1, OP_DATA_2, 0xab}, "1 [error]", true},
	}

	for _, test := range tests {
		got, err := DisasmString(test.script)
		if (err != nil) != test.wantErr {
			t.Errorf("%q: unexpected error state: %v", test.name,
				err)
			continue
		}
		if got != test.want {
			t.Errorf("%q: got %q, want %q", test.name, got,
				test.want)
		}
	}
}

// TestOpcodeByName spot checks the identifier table, including the aliases.
func TestOpcodeByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want byte
	}{
		{"OP_0", OP_0},
		{"OP_FALSE", OP_0},
		{"OP_TRUE", OP_1},
		{"OP_DUP", OP_DUP},
		{"OP_PUSHBYTES_20", OP_DATA_20},
		{"OP_CHECKDATASIG", OP_CHECKDATASIG},
		{"OP_SPLIT", OP_SPLIT},
	}
	for _, test := range tests {
		got, ok := OpcodeByName[test.name]
		if !ok || got != test.want {
			t.Errorf("%q: got %#x (ok=%v), want %#x", test.name,
				got, ok, test.want)
		}
	}
}
