// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import "fmt"

// Flags is a bitmask defining additional operations or tests that will be
// done when executing a script.  The four flags are the real configuration;
// the named instruction sets are presets over them.
type Flags uint32

const (
	// ScriptDisallowUpgradableNops defines whether NOP1 through NOP10 that
	// remain undefined fail instead of behaving as no-ops.  Standard
	// transaction rules reserve them for future soft-fork upgrades.
	ScriptDisallowUpgradableNops Flags = 1 << iota

	// ScriptRequireBugValueZero defines whether the extra stack item
	// consumed by OP_CHECKMULTISIG due to the historic off-by-one bug must
	// be an empty push, rejecting the legacy tolerance of arbitrary
	// values.
	ScriptRequireBugValueZero

	// ScriptRequireMinimalEncoding defines whether numbers and data
	// pushes must use the smallest possible encoding.
	ScriptRequireMinimalEncoding

	// ScriptRequireNullSignatureFailures defines whether a failed
	// signature check must have consumed an empty signature, eliminating
	// that source of malleability.
	ScriptRequireNullSignatureFailures
)

// InstructionSet names a supported virtual machine variant.  Each variant is
// a preset combination of the strictness flags.
type InstructionSet uint8

const (
	// BCH2019May is the consensus instruction set deployed in the May 2019
	// upgrade.
	BCH2019May InstructionSet = iota

	// BCH2019MayStrict is BCH2019May with every standardness rule
	// enabled.
	BCH2019MayStrict

	// BCH2019Nov is the consensus instruction set deployed in the November
	// 2019 upgrade, which promoted minimal encoding to a consensus rule.
	BCH2019Nov

	// BCH2019NovStrict is BCH2019Nov with every standardness rule
	// enabled.
	BCH2019NovStrict
)

// strictFlags is the bundle every strict variant enables.
const strictFlags = ScriptDisallowUpgradableNops |
	ScriptRequireBugValueZero |
	ScriptRequireMinimalEncoding |
	ScriptRequireNullSignatureFailures

// instructionSetFlags maps each named variant to its flag preset.
var instructionSetFlags = map[InstructionSet]Flags{
	BCH2019May:       0,
	BCH2019MayStrict: strictFlags,
	BCH2019Nov:       ScriptRequireMinimalEncoding,
	BCH2019NovStrict: strictFlags,
}

// instructionSetStrings maps each named variant to its identifier.
var instructionSetStrings = map[InstructionSet]string{
	BCH2019May:       "BCH_2019_05",
	BCH2019MayStrict: "BCH_2019_05_STRICT",
	BCH2019Nov:       "BCH_2019_11",
	BCH2019NovStrict: "BCH_2019_11_STRICT",
}

// Flags returns the flag preset for the instruction set.
func (is InstructionSet) Flags() Flags {
	return instructionSetFlags[is]
}

// String returns the canonical identifier of the instruction set.
func (is InstructionSet) String() string {
	if s, ok := instructionSetStrings[is]; ok {
		return s
	}
	return fmt.Sprintf("Unknown InstructionSet (%d)", uint8(is))
}

// InstructionSetByName resolves a canonical instruction set identifier such
// as "BCH_2019_05_STRICT".
func InstructionSetByName(name string) (InstructionSet, error) {
	for is, s := range instructionSetStrings {
		if s == name {
			return is, nil
		}
	}
	str := fmt.Sprintf("unknown instruction set %q", name)
	return 0, scriptError(ErrUnsupportedInstructionSet, str)
}

// VerifyScripts validates the unlocking/locking script pair under the passed
// instruction set.  It is the consensus front door: pre-checks, unlocking and
// locking evaluation with the stack carried forward, pay-to-script-hash
// handling with the segregated-witness recovery exemption, and the final
// acceptance predicate.  A nil error means the input is valid.
func VerifyScripts(unlockingScript, lockingScript []byte, ctx *TxContext, is InstructionSet, sigCache *SigCache) error {
	vm, err := NewEngine(unlockingScript, lockingScript, ctx, is.Flags(),
		sigCache)
	if err != nil {
		return err
	}
	return vm.Execute()
}
