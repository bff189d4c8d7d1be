// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Bytecode-wide consensus limits.
const (
	// MaxScriptSize is the maximum allowed length in bytes for a script.
	MaxScriptSize = 10000

	// MaxScriptElementSize is the maximum allowed length in bytes for a
	// stack element.
	MaxScriptElementSize = 520

	// MaxOpsPerScript is the maximum number of non-push operations a
	// script may execute.
	MaxOpsPerScript = 201

	// MaxStackSize is the maximum combined number of elements the data and
	// alternate stacks may hold.
	MaxStackSize = 1000

	// MaxPubKeysPerMultiSig is the maximum number of public keys
	// OP_CHECKMULTISIG accepts.
	MaxPubKeysPerMultiSig = 20
)

// EncodeDataPush returns the minimal bytecode that pushes the passed data:
//
//   - empty data encodes as OP_0
//   - a single byte in [1, 16] encodes as the matching OP_N
//   - a single 0x81 byte encodes as OP_1NEGATE
//   - up to 75 bytes use the direct OP_DATA_n opcodes
//   - longer payloads use the smallest of OP_PUSHDATA1/2/4
//
// This is the unique canonical encoding required by the minimal-encoding
// consensus rules.
func EncodeDataPush(data []byte) []byte {
	dataLen := len(data)
	switch {
	case dataLen == 0:
		return []byte{OP_0}
	case dataLen == 1 && data[0] >= 1 && data[0] <= 16:
		return []byte{OP_1 - 1 + data[0]}
	case dataLen == 1 && data[0] == 0x81:
		return []byte{OP_1NEGATE}
	}

	var prefix []byte
	switch {
	case dataLen <= 75:
		prefix = []byte{byte(dataLen)}
	case dataLen <= 0xff:
		prefix = []byte{OP_PUSHDATA1, byte(dataLen)}
	case dataLen <= 0xffff:
		prefix = make([]byte, 3)
		prefix[0] = OP_PUSHDATA2
		binary.LittleEndian.PutUint16(prefix[1:], uint16(dataLen))
	default:
		prefix = make([]byte, 5)
		prefix[0] = OP_PUSHDATA4
		binary.LittleEndian.PutUint32(prefix[1:], uint32(dataLen))
	}

	return append(prefix, data...)
}

// checkMinimalDataPush returns whether or not the provided instruction is the
// smallest possible way to represent the given data.  For example, the value
// 15 could be pushed with OP_DATA_1 15 (among other non-minimal encodings),
// however OP_15 is a single opcode that represents the same value and is only
// a single byte versus two bytes.
func checkMinimalDataPush(ins *Instruction) error {
	data := ins.Data
	dataLen := len(data)
	opcode := ins.Opcode
	switch {
	case dataLen == 0 && opcode != OP_0:
		str := fmt.Sprintf("zero length data push is encoded with "+
			"opcode %s instead of OP_0", opcodeArray[opcode].name)
		return scriptError(ErrMinimalData, str)
	case dataLen == 1 && data[0] >= 1 && data[0] <= 16:
		if opcode != OP_1+data[0]-1 {
			// Should have used OP_1 .. OP_16
			str := fmt.Sprintf("data push of the value %d encoded "+
				"with opcode %s instead of OP_%d", data[0],
				opcodeArray[opcode].name, data[0])
			return scriptError(ErrMinimalData, str)
		}
	case dataLen == 1 && data[0] == 0x81:
		if opcode != OP_1NEGATE {
			str := fmt.Sprintf("data push of the value -1 encoded "+
				"with opcode %s instead of OP_1NEGATE",
				opcodeArray[opcode].name)
			return scriptError(ErrMinimalData, str)
		}
	case dataLen <= 75:
		if int(opcode) != dataLen {
			// Should have used a direct push
			str := fmt.Sprintf("data push of %d bytes encoded with "+
				"opcode %s instead of OP_DATA_%d", dataLen,
				opcodeArray[opcode].name, dataLen)
			return scriptError(ErrMinimalData, str)
		}
	case dataLen <= 255:
		if opcode != OP_PUSHDATA1 {
			str := fmt.Sprintf("data push of %d bytes encoded with "+
				"opcode %s instead of OP_PUSHDATA1", dataLen,
				opcodeArray[opcode].name)
			return scriptError(ErrMinimalData, str)
		}
	case dataLen <= 65535:
		if opcode != OP_PUSHDATA2 {
			str := fmt.Sprintf("data push of %d bytes encoded with "+
				"opcode %s instead of OP_PUSHDATA2", dataLen,
				opcodeArray[opcode].name)
			return scriptError(ErrMinimalData, str)
		}
	}
	return nil
}

// IsPushOnlyScript returns whether the passed script only carries opcodes
// that push data.
//
// Note that OP_16 and below are considered pushes per the consensus
// definition of push-only used by the unlocking bytecode pre-check, even
// though OP_RESERVED technically is not a data push.
func IsPushOnlyScript(script []byte) bool {
	tokenizer := MakeScriptTokenizer(script)
	for tokenizer.Next() {
		if tokenizer.Opcode() > OP_16 {
			return false
		}
	}
	return tokenizer.Err() == nil
}

// isScriptHashScript returns whether the passed instruction list is exactly
// the pay-to-script-hash pattern: OP_HASH160 OP_DATA_20 <20 bytes> OP_EQUAL.
func isScriptHashScript(instructions []Instruction) bool {
	return len(instructions) == 3 &&
		instructions[0].Opcode == OP_HASH160 &&
		instructions[1].Opcode == OP_DATA_20 &&
		instructions[2].Opcode == OP_EQUAL
}

// isWitnessProgram returns whether the passed redeem script bytes have the
// shape of a segregated-witness program: a version push of OP_0 or
// OP_1 through OP_16, followed by a direct push whose declared length covers
// the rest of the script, with a total length of 4 through 42 bytes.
//
// A pay-to-script-hash spend whose redeem script has this shape and whose
// unlocking bytecode pushed nothing else is exempt from redeem evaluation so
// that funds accidentally sent to segwit addresses remain recoverable.
func isWitnessProgram(script []byte) bool {
	if len(script) < 4 || len(script) > 42 {
		return false
	}
	if script[0] != OP_0 && (script[0] < OP_1 || script[0] > OP_16) {
		return false
	}
	return int(script[1])+2 == len(script)
}

// DisasmString formats a bytecode script for human consumption as one line
// with opcodes separated by spaces.  Push payloads print as hex.  When the
// script fails to parse, the returned string carries the valid prefix
// followed by an error marker.
func DisasmString(script []byte) (string, error) {
	var disbuf strings.Builder
	tokenizer := MakeScriptTokenizer(script)
	if tokenizer.Next() {
		disasmInstruction(&disbuf, tokenizer.Opcode(), tokenizer.Data())
	}
	for tokenizer.Next() {
		disbuf.WriteByte(' ')
		disasmInstruction(&disbuf, tokenizer.Opcode(), tokenizer.Data())
	}
	if tokenizer.Err() != nil {
		if tokenizer.ByteIndex() != 0 {
			disbuf.WriteByte(' ')
		}
		disbuf.WriteString("[error]")
	}
	return disbuf.String(), tokenizer.Err()
}

// disasmInstruction writes a single-instruction disassembly to the builder.
func disasmInstruction(buf *strings.Builder, op byte, data []byte) {
	name := opcodeArray[op].name
	if replName, ok := opcodeOnelineRepls[name]; ok {
		buf.WriteString(replName)
		return
	}
	buf.WriteString(name)
	if data != nil {
		buf.WriteByte(' ')
		buf.WriteString(hex.EncodeToString(data))
	}
}

// OpcodeByName is a map of canonical opcode names to their byte values.  It
// is used by compilers to seed the opcode identifier table and by tooling
// that accepts textual opcodes.  Aliases of the data push opcodes
// (OP_PUSHBYTES_n for OP_DATA_n, OP_FALSE, OP_TRUE) are included.
var OpcodeByName = func() map[string]byte {
	registry := make(map[string]byte, 256+80)
	for _, op := range opcodeArray {
		registry[op.name] = op.value
	}
	for n := 1; n <= 75; n++ {
		registry[fmt.Sprintf("OP_PUSHBYTES_%d", n)] = byte(n)
	}
	registry["OP_FALSE"] = OP_0
	registry["OP_TRUE"] = OP_1
	return registry
}()
