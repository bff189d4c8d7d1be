// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"fmt"
)

// Transaction-level constants the lock time opcodes interpret.
const (
	// LockTimeThreshold is the number below which a lock time is
	// interpreted to be a block number.  Since an average of one block is
	// generated per 10 minutes, this allows blocks for about 9,512 years.
	LockTimeThreshold = 5e8 // Tue Nov 5 00:53:20 1985 UTC

	// MaxInputSequence is the maximum sequence number an input can carry.
	// An input with this sequence number is considered finalized and
	// therefore exempt from lock time semantics.
	MaxInputSequence = 0xffffffff

	// SequenceLockTimeDisabled is a flag that if set on an input's
	// sequence number, the sequence number will not be interpreted as a
	// relative lock time.
	SequenceLockTimeDisabled = 1 << 31

	// SequenceLockTimeIsSeconds is a flag that if set on an input's
	// sequence number, the relative lock time has units of 512 seconds.
	SequenceLockTimeIsSeconds = 1 << 22

	// SequenceLockTimeMask is a mask that extracts the relative lock time
	// when masked against an input's sequence number.
	SequenceLockTimeMask = 0x0000ffff
)

// TxContext bundles the external transaction state the engine reads and never
// mutates: the fields of the input being validated and a callback producing
// the digests signatures commit to.  The engine deliberately knows nothing
// about transaction serialization; callers that validate real transactions
// supply a HashForSignature built over their wire types, while compile-time
// evaluations leave it nil, causing signature-checking opcodes to fail with
// ErrMissingSigningContext.
type TxContext struct {
	// Version is the version of the transaction being validated.
	Version int32

	// LockTime is the lock time of the transaction being validated.
	LockTime uint32

	// Sequence is the sequence number of the input being validated.
	Sequence uint32

	// InputIndex is the index of the input being validated.
	InputIndex uint32

	// HashForSignature returns the digest committed to by signatures over
	// the passed covered bytecode (the script since the most recent
	// OP_CODESEPARATOR) under the passed hash type.
	HashForSignature func(hashType SigHashType, coveredBytecode []byte) ([]byte, error)
}

// StepCallback is invoked after every executed instruction when registered
// via SetStepCallback.  scriptIdx and ip identify the instruction that just
// ran; the callback may inspect the engine stacks through GetStack and
// GetAltStack.  It is used by tooling that samples intermediate evaluation
// states.
type StepCallback func(vm *Engine, scriptIdx, ip int)

// Engine is the virtual machine that executes bitcoin cash scripts.
type Engine struct {
	scripts         [][]Instruction
	rawScripts      [][]byte
	scriptIdx       int
	ip              int
	lastCodeSep     int32
	dstack          stack // data stack
	astack          stack // alt stack
	ctx             *TxContext
	condStack       []int
	numOps          int
	flags           Flags
	crypto          *Crypto
	sigCache        *SigCache
	p2sh            bool     // treat execution as pay-to-script-hash
	savedFirstStack [][]byte // stack from first script for p2sh scripts
	onStep          StepCallback
}

// hasFlag returns whether the script engine instance has the passed flag set.
func (vm *Engine) hasFlag(flag Flags) bool {
	return vm.flags&flag == flag
}

// isBranchExecuting returns whether or not the current conditional branch is
// actively executing.  For example, when the data stack has a false value and
// an OP_IF is encountered, the branch is inactive until an OP_ELSE or
// OP_ENDIF is encountered.  It properly handles nested conditionals.
func (vm *Engine) isBranchExecuting() bool {
	if len(vm.condStack) == 0 {
		return true
	}
	return vm.condStack[len(vm.condStack)-1] == OpCondTrue
}

// currentInstruction returns the instruction the program counter points at.
// It must only be called while the program counter is valid.
func (vm *Engine) currentInstruction() *Instruction {
	return &vm.scripts[vm.scriptIdx][vm.ip]
}

// executeInstruction performs execution on the passed instruction.  It takes
// into account whether or not it is hidden by conditionals, but some rules
// still must be tested in this case.
func (vm *Engine) executeInstruction(ins *Instruction) error {
	// An instruction whose push was truncated fails when the program
	// counter reaches it.
	if ins.Malformed {
		str := fmt.Sprintf("opcode %s declares more push bytes than "+
			"remain in the script", opcodeArray[ins.Opcode].name)
		return scriptError(ErrMalformedPush, str)
	}

	op := &opcodeArray[ins.Opcode]

	// Disabled opcodes are fail on program counter.
	if op.isDisabled() {
		str := fmt.Sprintf("attempt to execute disabled opcode %s",
			op.name)
		return scriptError(ErrDisabledOpcode, str)
	}

	// Note that this includes OP_RESERVED which counts as a push
	// operation.
	if ins.Opcode > OP_16 {
		vm.numOps++
		if vm.numOps > MaxOpsPerScript {
			str := fmt.Sprintf("exceeded max operation limit of %d",
				MaxOpsPerScript)
			return scriptError(ErrTooManyOperations, str)
		}
	} else if len(ins.Data) > MaxScriptElementSize {
		str := fmt.Sprintf("element size %d exceeds max allowed size "+
			"%d", len(ins.Data), MaxScriptElementSize)
		return scriptError(ErrElementTooBig, str)
	}

	// Nothing left to do when this is not a conditional opcode and it is
	// not in an executing branch.
	executing := vm.isBranchExecuting()
	if !executing && !op.isConditional() {
		return nil
	}

	// Ensure all executed data push opcodes use the minimal encoding when
	// the flag is set.
	if vm.dstack.verifyMinimalData && executing &&
		ins.Opcode <= OP_PUSHDATA4 {

		if err := checkMinimalDataPush(ins); err != nil {
			return err
		}
	}

	return op.opfunc(op, ins.Data, vm)
}

// validPC returns an error when the current script offset is not valid for
// execution, nil otherwise.
func (vm *Engine) validPC() error {
	if vm.scriptIdx >= len(vm.scripts) {
		str := fmt.Sprintf("past input scripts %v:%v %v:xxxx",
			vm.scriptIdx, vm.ip, len(vm.scripts))
		return scriptError(ErrScriptUnfinished, str)
	}
	if vm.ip >= len(vm.scripts[vm.scriptIdx]) {
		str := fmt.Sprintf("past input scripts %v:%v %v:%04d",
			vm.scriptIdx, vm.ip, vm.scriptIdx,
			len(vm.scripts[vm.scriptIdx]))
		return scriptError(ErrScriptUnfinished, str)
	}
	return nil
}

// Step will execute the next instruction and move the program counter to the
// next instruction in the script, or the next script if the current one has
// ended.  Step will return true in the case that the last instruction was
// successfully executed.
//
// The result of calling Step or any other method is undefined if an error is
// returned.
func (vm *Engine) Step() (done bool, err error) {
	// Verify that it is pointing to a valid script address.
	if err := vm.validPC(); err != nil {
		return true, err
	}

	ins := vm.currentInstruction()
	if err := vm.executeInstruction(ins); err != nil {
		return true, err
	}

	// The number of elements in the combination of the data and alternate
	// stacks must not exceed the maximum number of stack elements allowed.
	combinedStackSize := vm.dstack.Depth() + vm.astack.Depth()
	if combinedStackSize > MaxStackSize {
		str := fmt.Sprintf("combined stack size %d > max allowed %d",
			combinedStackSize, MaxStackSize)
		return false, scriptError(ErrStackOverflow, str)
	}

	if vm.onStep != nil {
		vm.onStep(vm, vm.scriptIdx, vm.ip)
	}

	// Prepare for next instruction.
	vm.ip++
	if vm.ip >= len(vm.scripts[vm.scriptIdx]) {
		// Illegal to have a conditional that straddles two scripts.
		if len(vm.condStack) != 0 {
			return false, scriptError(ErrUnbalancedConditional,
				"end of script reached in conditional execution")
		}

		// Alt stack doesn't persist between scripts.
		if vm.astack.Depth() > 0 {
			_ = vm.astack.DropN(vm.astack.Depth())
		}

		vm.numOps = 0 // number of ops is per script.
		vm.lastCodeSep = 0
		vm.ip = 0
		if vm.scriptIdx == 0 && vm.p2sh {
			vm.scriptIdx++
			vm.savedFirstStack = vm.GetStack()
		} else if vm.scriptIdx == 1 && vm.p2sh {
			// Put us past the end for CheckErrorCondition().
			vm.scriptIdx++

			depth := len(vm.savedFirstStack)
			redeemScript := vm.savedFirstStack[depth-1]

			// The consensus exemption for script-hash spends whose
			// sole push has the shape of a segregated-witness
			// program: the redeem script is not evaluated and the
			// result of the locking script's equality check
			// stands as the final state.
			if depth != 1 || !isWitnessProgram(redeemScript) {
				// Check the locking script ran ok, then pull
				// the redeem script out of the first stack and
				// execute that.
				if err := vm.CheckErrorCondition(false); err != nil {
					return false, err
				}

				redeemInstructions := ParseScript(redeemScript)
				if ScriptIsMalformed(redeemInstructions) {
					return false, scriptError(
						ErrMalformedRedeemScript,
						"final push of redeem script is truncated")
				}
				vm.scripts = append(vm.scripts, redeemInstructions)
				vm.rawScripts = append(vm.rawScripts, redeemScript)

				// Set stack to be the stack from first script
				// minus the redeem script itself.
				vm.SetStack(vm.savedFirstStack[:depth-1])
			}
		} else {
			vm.scriptIdx++
		}

		// There are zero length scripts in the wild.
		if vm.scriptIdx < len(vm.scripts) &&
			vm.ip >= len(vm.scripts[vm.scriptIdx]) {

			vm.scriptIdx++
		}
		if vm.scriptIdx >= len(vm.scripts) {
			return true, nil
		}
	}
	return false, nil
}

// Execute will execute all scripts in the script engine and return either nil
// for successful validation or an error if one occurred.
func (vm *Engine) Execute() (err error) {
	done := false
	for !done {
		log.Tracef("%v", newLogClosure(func() string {
			dis, err := vm.DisasmPC()
			if err != nil {
				return fmt.Sprintf("stepping (%v)", err)
			}
			return fmt.Sprintf("stepping %v", dis)
		}))

		done, err = vm.Step()
		if err != nil {
			return err
		}
		log.Tracef("%v", newLogClosure(func() string {
			var dstr, astr string

			// Log the non-empty stacks when tracing.
			if vm.dstack.Depth() != 0 {
				dstr = "Stack:\n" + vm.dstack.String()
			}
			if vm.astack.Depth() != 0 {
				astr = "AltStack:\n" + vm.astack.String()
			}

			return dstr + astr
		}))
	}

	return vm.CheckErrorCondition(true)
}

// CheckErrorCondition returns nil if the running script has ended and was
// successful, leaving exactly one true boolean on the stack.  An error
// otherwise, including if the script has not finished.
func (vm *Engine) CheckErrorCondition(finalScript bool) error {
	// Check execution is actually done by ensuring the script index is
	// after the final script in the array.
	if vm.scriptIdx < len(vm.scripts) {
		return scriptError(ErrScriptUnfinished,
			"error check when script unfinished")
	}

	if vm.dstack.Depth() < 1 {
		return scriptError(ErrEmptyStack,
			"stack empty at end of script execution")
	}
	if finalScript && vm.dstack.Depth() != 1 {
		str := fmt.Sprintf("stack contains %d unexpected items",
			vm.dstack.Depth()-1)
		return scriptError(ErrCleanStack, str)
	}

	v, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !v {
		// Log interesting data.
		log.Tracef("%v", newLogClosure(func() string {
			dis0, _ := vm.DisasmScript(0)
			dis1, _ := vm.DisasmScript(1)
			return fmt.Sprintf("scripts failed: script0: %s\n"+
				"script1: %s", dis0, dis1)
		}))
		return scriptError(ErrEvalFalse,
			"false stack entry at end of script execution")
	}
	return nil
}

// DisasmScript returns the disassembly string for the script at the passed
// offset, where 0 is the unlocking script and 1 is the locking script.
func (vm *Engine) DisasmScript(idx int) (string, error) {
	if idx >= len(vm.rawScripts) {
		str := fmt.Sprintf("script index %d >= total scripts %d", idx,
			len(vm.rawScripts))
		return "", scriptError(ErrInvalidStackOperation, str)
	}
	return DisasmString(vm.rawScripts[idx])
}

// DisasmPC returns the string for the disassembly of the instruction that
// will execute when Step is called.
func (vm *Engine) DisasmPC() (string, error) {
	if err := vm.validPC(); err != nil {
		return "", err
	}
	ins := vm.currentInstruction()
	return fmt.Sprintf("%02x:%04x: %s", vm.scriptIdx, vm.ip,
		disasmInstructionString(ins)), nil
}

// disasmInstructionString renders a single instruction for the program
// counter disassembly.
func disasmInstructionString(ins *Instruction) string {
	var buf = make([]byte, 0, 32)
	buf = append(buf, opcodeArray[ins.Opcode].name...)
	if ins.Data != nil {
		buf = append(buf, ' ')
		buf = append(buf, fmt.Sprintf("%x", ins.Data)...)
	}
	return string(buf)
}

// subScript returns the script since the last OP_CODESEPARATOR.
func (vm *Engine) subScript() []byte {
	return vm.rawScripts[vm.scriptIdx][vm.lastCodeSep:]
}

// signatureHash produces the digest that signatures in the current script
// commit to by delegating to the external transaction state.
func (vm *Engine) signatureHash(hashType SigHashType, script []byte) ([]byte, error) {
	if vm.ctx == nil || vm.ctx.HashForSignature == nil {
		return nil, scriptError(ErrMissingSigningContext,
			"signature check requires a transaction signing context")
	}
	return vm.ctx.HashForSignature(hashType, script)
}

// verifySignature dispatches a signature to the configured secp256k1
// collaborator, consulting and updating the signature cache when one is set.
// A 64-byte signature selects the Schnorr variant; anything else is treated
// as DER-encoded ECDSA.
func (vm *Engine) verifySignature(sigHash, sig, pubKey []byte) bool {
	if vm.sigCache != nil && vm.sigCache.Exists(sigHash, sig, pubKey) {
		return true
	}

	var valid bool
	if len(sig) == schnorrSigLen {
		valid = vm.crypto.Secp256k1.VerifySchnorr(sigHash, sig, pubKey)
	} else {
		valid = vm.crypto.Secp256k1.VerifyECDSA(sigHash, sig, pubKey)
	}

	if valid && vm.sigCache != nil {
		vm.sigCache.Add(sigHash, sig, pubKey)
	}
	return valid
}

// getStack returns the contents of stack as a byte array bottom up.
func getStack(stack *stack) [][]byte {
	array := make([][]byte, stack.Depth())
	for i := range array {
		// PeekByteArray can't fail due to overflow, already checked.
		array[len(array)-i-1], _ = stack.PeekByteArray(int32(i))
	}
	return array
}

// setStack sets the stack to the contents of the array where the last item in
// the array is the top item in the stack.
func setStack(stack *stack, data [][]byte) {
	// This can not error.  Only errors are for invalid arguments.
	if stack.Depth() > 0 {
		_ = stack.DropN(stack.Depth())
	}

	for i := range data {
		stack.PushByteArray(data[i])
	}
}

// GetStack returns the contents of the primary stack as an array, where the
// last item in the array is the top of the stack.
func (vm *Engine) GetStack() [][]byte {
	return getStack(&vm.dstack)
}

// SetStack sets the contents of the primary stack to the contents of the
// provided array where the last item in the array will be the top of the
// stack.
func (vm *Engine) SetStack(data [][]byte) {
	setStack(&vm.dstack, data)
}

// GetAltStack returns the contents of the alternate stack as an array, where
// the last item in the array is the top of the stack.
func (vm *Engine) GetAltStack() [][]byte {
	return getStack(&vm.astack)
}

// SetAltStack sets the contents of the alternate stack to the contents of the
// provided array where the last item in the array will be the top of the
// stack.
func (vm *Engine) SetAltStack(data [][]byte) {
	setStack(&vm.astack, data)
}

// SetCrypto replaces the engine's crypto collaborators.  It must be called
// before Execute.
func (vm *Engine) SetCrypto(crypto *Crypto) {
	vm.crypto = crypto
}

// SetStepCallback registers a callback invoked after every executed
// instruction.  It must be called before Execute.
func (vm *Engine) SetStepCallback(cb StepCallback) {
	vm.onStep = cb
}

// NewEngine returns a new script engine for the provided unlocking and
// locking bytecode under the passed transaction context.  The flags modify
// the behavior of the script engine according to the description provided by
// each flag.
//
// The pre-checks required by consensus run here, in order: unlocking length,
// unlocking parse, locking length, locking parse, and the push-only
// requirement on the unlocking bytecode.  The sigCache is optional.
func NewEngine(unlockingScript, lockingScript []byte, ctx *TxContext, flags Flags, sigCache *SigCache) (*Engine, error) {
	if len(unlockingScript) > MaxScriptSize {
		str := fmt.Sprintf("unlocking script size %d is larger than "+
			"the max allowed size %d", len(unlockingScript),
			MaxScriptSize)
		return nil, scriptError(ErrUnlockingScriptTooBig, str)
	}
	if err := checkScriptParses(unlockingScript); err != nil {
		return nil, scriptError(ErrMalformedUnlockingScript,
			"final push of unlocking script is truncated")
	}
	if len(lockingScript) > MaxScriptSize {
		str := fmt.Sprintf("locking script size %d is larger than "+
			"the max allowed size %d", len(lockingScript),
			MaxScriptSize)
		return nil, scriptError(ErrLockingScriptTooBig, str)
	}
	if err := checkScriptParses(lockingScript); err != nil {
		return nil, scriptError(ErrMalformedLockingScript,
			"final push of locking script is truncated")
	}
	if !IsPushOnlyScript(unlockingScript) {
		return nil, scriptError(ErrSigPushOnly,
			"unlocking script is not push only")
	}

	// Scripts without signature checks may be validated without any
	// transaction state.
	if ctx == nil {
		ctx = &TxContext{}
	}

	vm := Engine{
		flags:    flags,
		ctx:      ctx,
		crypto:   DefaultCrypto(),
		sigCache: sigCache,
	}

	scripts := [][]byte{unlockingScript, lockingScript}
	vm.rawScripts = scripts
	vm.scripts = make([][]Instruction, len(scripts))
	for i, scr := range scripts {
		vm.scripts[i] = ParseScript(scr)

		// If the first scripts(s) are empty, must start on later ones.
		if i == 0 && len(scr) == 0 {
			vm.scriptIdx = i + 1
		}
	}

	vm.p2sh = isScriptHashScript(vm.scripts[1])

	if vm.hasFlag(ScriptRequireMinimalEncoding) {
		vm.dstack.verifyMinimalData = true
		vm.astack.verifyMinimalData = true
	}

	return &vm, nil
}

// NewEvalEngine returns a script engine that executes a single script with an
// empty initial stack and no transaction context.  It is the engine backing
// compile-time evaluations, where the evaluated bytecode occupies the locking
// position: the same length and parse limits apply, and signature-checking
// opcodes fail with ErrMissingSigningContext.
func NewEvalEngine(script []byte, flags Flags) (*Engine, error) {
	if len(script) > MaxScriptSize {
		str := fmt.Sprintf("script size %d is larger than the max "+
			"allowed size %d", len(script), MaxScriptSize)
		return nil, scriptError(ErrLockingScriptTooBig, str)
	}
	if err := checkScriptParses(script); err != nil {
		return nil, scriptError(ErrMalformedLockingScript,
			"final push of evaluated script is truncated")
	}

	vm := Engine{
		flags:  flags,
		ctx:    &TxContext{},
		crypto: DefaultCrypto(),
	}
	vm.rawScripts = [][]byte{script}
	vm.scripts = [][]Instruction{ParseScript(script)}
	if vm.hasFlag(ScriptRequireMinimalEncoding) {
		vm.dstack.verifyMinimalData = true
		vm.astack.verifyMinimalData = true
	}
	return &vm, nil
}

// ExecuteScript runs the engine to completion without applying the final
// acceptance predicate and returns the resulting data stack bottom-up.  It is
// used by compile-time evaluations, which consume the top stack item rather
// than requiring a clean true result.
func (vm *Engine) ExecuteScript() ([][]byte, error) {
	// Skip empty scripts so an empty evaluation yields its initial stack.
	for vm.scriptIdx < len(vm.scripts) &&
		len(vm.scripts[vm.scriptIdx]) == 0 {

		vm.scriptIdx++
	}

	done := vm.scriptIdx >= len(vm.scripts)
	for !done {
		var err error
		done, err = vm.Step()
		if err != nil {
			return nil, err
		}
	}
	return vm.GetStack(), nil
}
