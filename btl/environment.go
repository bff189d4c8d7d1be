// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import (
	"github.com/bauthsuite/bauth/bchscript"
)

// VariableType identifies the class of a template variable, which selects
// the operation table used to resolve it.
type VariableType int

// The supported variable classes.
const (
	KeyVariable VariableType = iota
	HdKeyVariable
	AddressDataVariable
	WalletDataVariable
)

// variableTypeOperations maps each variable class to the name of its
// operation table within Environment.Operations.
var variableTypeOperations = map[VariableType]string{
	KeyVariable:         "key",
	HdKeyVariable:       "hdKey",
	AddressDataVariable: "addressData",
	WalletDataVariable:  "walletData",
}

// Built-in variables resolve through operation tables of the same name
// without appearing in Environment.Variables.
const (
	builtinBlockHeight          = "current_block_height"
	builtinBlockTime            = "current_block_time"
	builtinSigningSerialization = "signing_serialization"
)

// builtinVariableOperations maps each built-in variable to its operation
// table name.
var builtinVariableOperations = map[string]string{
	builtinBlockHeight:          "currentBlockHeight",
	builtinBlockTime:            "currentBlockTime",
	builtinSigningSerialization: "signingSerialization",
}

// Variable describes a single template variable.
type Variable struct {
	// Type selects the operation table used to resolve the variable.
	Type VariableType

	// Description is optional documentation carried for tooling.
	Description string
}

// CompilerOperation is a pure function resolving one variable operation to
// bytecode.  The identifier is the full dotted identifier being resolved.  A
// returned error is recoverable: it becomes an error segment in the resolved
// tree rather than aborting compilation.
type CompilerOperation func(identifier string, data *Data, env *Environment) ([]byte, error)

// OperationSet dispatches the operations of one variable class.  A set
// resolves either directly through Default (for classes addressed without an
// operation identifier) or through ByID keyed by the identifier text after
// the first dot.  Example names a valid operation identifier for error
// messages.
type OperationSet struct {
	Default CompilerOperation
	ByID    map[string]CompilerOperation
	Example string
}

// EvaluateFn runs a compile-time evaluation over fully reduced bytecode and
// returns the top item of the final stack (nil when the stack is empty).  A
// nil EvaluateFn in the environment makes '$(...)' segments a compilation
// error.
type EvaluateFn func(bytecode []byte) ([]byte, error)

// Environment is the compilation environment a script is compiled against:
// the opcode identifier table, the nested scripts addressable by identifier,
// the declared variables with their operation tables, and the evaluation
// hook backing inline evaluations.
type Environment struct {
	// Opcodes maps opcode identifiers to their single bytecode byte.
	Opcodes map[string]byte

	// Scripts maps script identifiers to template source text.
	Scripts map[string]string

	// Variables maps variable identifiers to their declarations.
	Variables map[string]*Variable

	// Operations maps operation table names ("key", "addressData",
	// "currentBlockHeight", ...) to their operation sets.
	Operations map[string]*OperationSet

	// Flags select the instruction set variant used by compile-time
	// evaluations.
	Flags bchscript.Flags

	// Evaluate runs compile-time evaluations.  NewEnvironment installs a
	// bchscript-backed default.
	Evaluate EvaluateFn
}

// Data carries the per-compilation values compiler operations read: private
// keys, address and wallet data bytes, the current chain state, and the
// signing-serialization components produced by the transaction being
// authorized.  All values are caller-supplied; the compiler itself never
// serializes transactions.
type Data struct {
	// CurrentBlockHeight is the height resolved by current_block_height.
	CurrentBlockHeight int64

	// CurrentBlockTime is the UNIX timestamp resolved by
	// current_block_time.
	CurrentBlockTime int64

	// Keys maps Key variable identifiers to 32-byte private keys.
	Keys map[string][]byte

	// AddressData maps AddressData variable identifiers to their bytes.
	AddressData map[string][]byte

	// WalletData maps WalletData variable identifiers to their bytes.
	WalletData map[string][]byte

	// SigningSerialization maps signing-serialization component names to
	// their serialized bytes.
	SigningSerialization map[string][]byte
}

// NewEnvironment assembles a compilation environment with the standard
// opcode table, the standard operation tables, and a bchscript-backed
// evaluation hook running under the passed instruction set.  The scripts and
// variables maps may be nil.
func NewEnvironment(scripts map[string]string, variables map[string]*Variable, is bchscript.InstructionSet) *Environment {
	env := &Environment{
		Opcodes:    bchscript.OpcodeByName,
		Scripts:    scripts,
		Variables:  variables,
		Operations: standardOperations(),
		Flags:      is.Flags(),
	}
	env.Evaluate = func(bytecode []byte) ([]byte, error) {
		return evaluateBytecode(bytecode, env.Flags)
	}
	return env
}

// evaluateBytecode runs the passed bytecode in a fresh evaluation engine and
// returns a copy of the top stack item of the final state, or nil when the
// final stack is empty.
func evaluateBytecode(bytecode []byte, flags bchscript.Flags) ([]byte, error) {
	vm, err := bchscript.NewEvalEngine(bytecode, flags)
	if err != nil {
		return nil, err
	}
	finalStack, err := vm.ExecuteScript()
	if err != nil {
		return nil, err
	}
	if len(finalStack) == 0 {
		return nil, nil
	}

	// Copy out of the engine-owned view before it can be reused.
	top := finalStack[len(finalStack)-1]
	result := make([]byte, len(top))
	copy(result, top)
	return result, nil
}
