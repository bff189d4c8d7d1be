// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// testContext returns a transaction context suitable for scripts without
// signature checks.
func testContext() *TxContext {
	return &TxContext{Version: 2}
}

// mustVerify runs the full validation pipeline and fails the test on error.
func mustVerify(t *testing.T, unlocking, locking []byte, is InstructionSet) {
	t.Helper()
	if err := VerifyScripts(unlocking, locking, testContext(), is, nil); err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
}

// mustFailWith runs the full validation pipeline and requires the passed
// error code.
func mustFailWith(t *testing.T, unlocking, locking []byte, is InstructionSet, code ErrorCode) {
	t.Helper()
	err := VerifyScripts(unlocking, locking, testContext(), is, nil)
	if !IsErrorCode(err, code) {
		t.Fatalf("unexpected validation result -- got %v, want code %v",
			err, code)
	}
}

// TestEngineArithmetic covers the basic unlock/lock flow with the stack
// carried between the scripts.
func TestEngineArithmetic(t *testing.T) {
	t.Parallel()

	// Unlocking pushes 1 and 2; locking adds them and compares with 3.
	unlocking := []byte{OP_1, OP_2}
	locking := []byte{OP_ADD, OP_3, OP_EQUAL}
	for _, is := range []InstructionSet{BCH2019May, BCH2019MayStrict,
		BCH2019Nov, BCH2019NovStrict} {

		mustVerify(t, unlocking, locking, is)
	}

	// A wrong sum must fail with a false final stack.
	mustFailWith(t, []byte{OP_1, OP_1}, locking, BCH2019NovStrict,
		ErrEvalFalse)
}

// TestEnginePreChecks covers the consensus pre-checks in their required
// order.
func TestEnginePreChecks(t *testing.T) {
	t.Parallel()

	big := bytes.Repeat([]byte{OP_NOP}, MaxScriptSize+1)
	trivial := []byte{OP_1}

	// Unlocking bytecode above the maximum size.
	mustFailWith(t, big, trivial, BCH2019Nov, ErrUnlockingScriptTooBig)

	// Unlocking bytecode with a truncated final push.
	mustFailWith(t, []byte{OP_DATA_2, 0x01}, trivial, BCH2019Nov,
		ErrMalformedUnlockingScript)

	// Locking bytecode above the maximum size.
	mustFailWith(t, nil, big, BCH2019Nov, ErrLockingScriptTooBig)

	// Locking bytecode with a truncated final push.
	mustFailWith(t, nil, []byte{OP_DATA_2, 0x01}, BCH2019Nov,
		ErrMalformedLockingScript)

	// Unlocking bytecode carrying a non-push opcode, under every variant.
	unlocking := []byte{OP_1, OP_2, OP_ADD}
	locking := []byte{OP_3, OP_EQUAL}
	for _, is := range []InstructionSet{BCH2019May, BCH2019MayStrict,
		BCH2019Nov, BCH2019NovStrict} {

		mustFailWith(t, unlocking, locking, is, ErrSigPushOnly)
	}
}

// TestEngineConditionals covers IF/ELSE/ENDIF branch execution and the
// unbalanced conditional failure.
func TestEngineConditionals(t *testing.T) {
	t.Parallel()

	// IF branch taken.
	mustVerify(t, []byte{OP_1},
		[]byte{OP_IF, OP_2, OP_ELSE, OP_3, OP_ENDIF, OP_2, OP_EQUAL},
		BCH2019NovStrict)

	// ELSE branch taken.
	mustVerify(t, []byte{OP_0},
		[]byte{OP_IF, OP_2, OP_ELSE, OP_3, OP_ENDIF, OP_3, OP_EQUAL},
		BCH2019NovStrict)

	// Nested skipped branches must still track nesting.
	mustVerify(t, []byte{OP_0},
		[]byte{OP_IF, OP_IF, OP_2, OP_ENDIF, OP_ELSE, OP_3, OP_ENDIF,
			OP_3, OP_EQUAL},
		BCH2019NovStrict)

	// A conditional left open at the end of a script fails.
	mustFailWith(t, []byte{OP_1}, []byte{OP_IF, OP_1},
		BCH2019NovStrict, ErrUnbalancedConditional)

	// OP_ENDIF with no matching OP_IF fails.
	mustFailWith(t, []byte{OP_1}, []byte{OP_ENDIF},
		BCH2019NovStrict, ErrUnbalancedConditional)
}

// TestEngineLimits covers the per-script resource limits.
func TestEngineLimits(t *testing.T) {
	t.Parallel()

	// 200 non-push operations are fine; 202 exceed the limit.
	okScript := append(bytes.Repeat([]byte{OP_NOP}, 200), OP_1)
	mustVerify(t, nil, okScript, BCH2019Nov)

	tooMany := append(bytes.Repeat([]byte{OP_NOP}, 202), OP_1)
	mustFailWith(t, nil, tooMany, BCH2019Nov, ErrTooManyOperations)

	// Pushing more than the maximum combined stack items fails.
	overflow := bytes.Repeat([]byte{OP_1}, MaxStackSize+1)
	mustFailWith(t, nil, overflow, BCH2019Nov, ErrStackOverflow)

	// A single element larger than the maximum element size fails.
	bigPush := append([]byte{OP_PUSHDATA2, 0x09, 0x02},
		bytes.Repeat([]byte{0x00}, MaxScriptElementSize+1)...)
	mustFailWith(t, nil, bigPush, BCH2019May, ErrElementTooBig)
}

// TestEngineCleanStack ensures the final acceptance predicate requires
// exactly one truthy stack item.
func TestEngineCleanStack(t *testing.T) {
	t.Parallel()

	mustFailWith(t, []byte{OP_1, OP_1}, []byte{OP_NOP}, BCH2019Nov,
		ErrCleanStack)
	mustFailWith(t, nil, []byte{OP_1, OP_DROP}, BCH2019Nov, ErrEmptyStack)
	mustFailWith(t, nil, []byte{OP_0}, BCH2019Nov, ErrEvalFalse)
}

// TestEngineMinimalData ensures non-minimal pushes only fail when the
// minimal-encoding flag is part of the instruction set.
func TestEngineMinimalData(t *testing.T) {
	t.Parallel()

	// OP_DATA_1 0x01 is a non-minimal encoding of OP_1.
	unlocking := []byte{OP_DATA_1, 0x01}
	locking := []byte{OP_1, OP_EQUAL}

	mustVerify(t, unlocking, locking, BCH2019May)
	mustFailWith(t, unlocking, locking, BCH2019Nov, ErrMinimalData)
}

// TestEngineDisabledOpcodes ensures a disabled opcode fails even inside a
// non-executing branch.
func TestEngineDisabledOpcodes(t *testing.T) {
	t.Parallel()

	locking := []byte{OP_IF, OP_MUL, OP_ENDIF, OP_1}
	mustFailWith(t, []byte{OP_0}, locking, BCH2019May, ErrDisabledOpcode)
}

// TestEngineUpgradableNops ensures NOP1-NOP10 are no-ops by default and fail
// under the strict variants.
func TestEngineUpgradableNops(t *testing.T) {
	t.Parallel()

	locking := []byte{OP_NOP4, OP_1}
	mustVerify(t, nil, locking, BCH2019Nov)
	mustFailWith(t, nil, locking, BCH2019NovStrict,
		ErrDiscourageUpgradableNOPs)
}

// p2shScripts builds the unlocking/locking pair spending a redeem script
// through the pay-to-script-hash pattern.
func p2shScripts(t *testing.T, redeem []byte, extraUnlocking []byte) (unlocking, locking []byte) {
	t.Helper()
	redeemHash := DefaultCrypto().Hash160(redeem)
	locking = append([]byte{OP_HASH160, OP_DATA_20}, redeemHash...)
	locking = append(locking, OP_EQUAL)
	unlocking = append(extraUnlocking, EncodeDataPush(redeem)...)
	return unlocking, locking
}

// TestEngineP2SH covers the pay-to-script-hash path: redeem script
// evaluation against the remaining unlocking stack.
func TestEngineP2SH(t *testing.T) {
	t.Parallel()

	// A trivially-true redeem script.
	unlocking, locking := p2shScripts(t, []byte{OP_1}, nil)
	mustVerify(t, unlocking, locking, BCH2019NovStrict)

	// The redeem script consumes an argument from the unlocking stack.
	redeem := []byte{OP_3, OP_EQUAL}
	unlocking, locking = p2shScripts(t, redeem, []byte{OP_3})
	mustVerify(t, unlocking, locking, BCH2019NovStrict)

	// A wrong argument leaves false.
	unlocking, locking = p2shScripts(t, redeem, []byte{OP_2})
	mustFailWith(t, unlocking, locking, BCH2019NovStrict, ErrEvalFalse)

	// A script hash that does not match fails on the locking equality
	// check before any redeem evaluation.
	unlocking, locking = p2shScripts(t, []byte{OP_1}, nil)
	locking[2] ^= 0xff
	mustFailWith(t, unlocking, locking, BCH2019NovStrict, ErrEvalFalse)
}

// TestEngineSegwitRecovery covers the exemption for script-hash spends whose
// sole push is shaped like a segregated-witness program.
func TestEngineSegwitRecovery(t *testing.T) {
	t.Parallel()

	// A version-0 program: OP_0 push-20 <20 bytes>.
	witnessProgram := append([]byte{OP_0, 0x14},
		bytes.Repeat([]byte{0xab}, 20)...)

	// With the exemption, the spend is accepted even though evaluating
	// the program as a script would not leave a single truthy item.
	unlocking, locking := p2shScripts(t, witnessProgram, nil)
	mustVerify(t, unlocking, locking, BCH2019NovStrict)

	// An additional unlocking push disqualifies the exemption and the
	// program is evaluated as an ordinary redeem script.
	unlocking, locking = p2shScripts(t, witnessProgram, []byte{OP_1})
	mustFailWith(t, unlocking, locking, BCH2019NovStrict, ErrCleanStack)

	// A push whose second byte is not its length minus two is not a
	// witness program.
	notAProgram := append([]byte{OP_0, 0x14},
		bytes.Repeat([]byte{0xab}, 21)...)
	unlocking, locking = p2shScripts(t, notAProgram, nil)
	mustFailWith(t, unlocking, locking, BCH2019NovStrict, ErrCleanStack)
}

// TestEngineCheckSig covers OP_CHECKSIG end to end with a real key pair and
// the null-failure rule.
func TestEngineCheckSig(t *testing.T) {
	t.Parallel()

	privKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x2a}, 32))
	pubKey := privKey.PubKey().SerializeCompressed()
	digest := chainhash.DoubleHashB([]byte("covered serialization"))

	ctx := &TxContext{
		Version: 2,
		HashForSignature: func(hashType SigHashType, coveredBytecode []byte) ([]byte, error) {
			return digest, nil
		},
	}

	hashType := SigHashAll | SigHashForkID
	sig := append(ecdsa.Sign(privKey, digest).Serialize(), byte(hashType))

	locking := append(EncodeDataPush(pubKey), OP_CHECKSIG)
	unlocking := EncodeDataPush(sig)

	err := VerifyScripts(unlocking, locking, ctx, BCH2019NovStrict, nil)
	require.NoError(t, err)

	// A signature over a different digest fails, and under the strict
	// variants the failure must have consumed an empty signature.
	otherDigest := chainhash.DoubleHashB([]byte("something else"))
	badSig := append(ecdsa.Sign(privKey, otherDigest).Serialize(),
		byte(hashType))
	badUnlocking := EncodeDataPush(badSig)

	err = VerifyScripts(badUnlocking, locking, ctx, BCH2019NovStrict, nil)
	require.True(t, IsErrorCode(err, ErrNullFail), "got %v", err)

	err = VerifyScripts(badUnlocking, locking, ctx, BCH2019Nov, nil)
	require.True(t, IsErrorCode(err, ErrEvalFalse), "got %v", err)

	// An empty signature fails cleanly under every variant.
	emptyUnlocking := []byte{OP_0}
	err = VerifyScripts(emptyUnlocking, locking, ctx, BCH2019NovStrict, nil)
	require.True(t, IsErrorCode(err, ErrEvalFalse), "got %v", err)

	// A signature without the fork id bit is rejected outright.
	noForkID := append(ecdsa.Sign(privKey, digest).Serialize(),
		byte(SigHashAll))
	err = VerifyScripts(EncodeDataPush(noForkID), locking, ctx,
		BCH2019NovStrict, nil)
	require.True(t, IsErrorCode(err, ErrSigHashType), "got %v", err)

	// Checking signatures without a signing context fails.
	err = VerifyScripts(unlocking, locking, testContext(),
		BCH2019NovStrict, nil)
	require.True(t, IsErrorCode(err, ErrMissingSigningContext),
		"got %v", err)
}

// TestEngineCheckDataSig covers OP_CHECKDATASIG with both signature
// variants.
func TestEngineCheckDataSig(t *testing.T) {
	t.Parallel()

	privKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))
	pubKey := privKey.PubKey().SerializeCompressed()
	message := []byte("checkdatasig message")
	digest := calcHash(message, DefaultCrypto().NewSHA256())

	locking := append(EncodeDataPush(pubKey), OP_CHECKDATASIG)

	// ECDSA variant.
	sig := ecdsa.Sign(privKey, digest).Serialize()
	unlocking := append(EncodeDataPush(sig), EncodeDataPush(message)...)
	err := VerifyScripts(unlocking, locking, testContext(),
		BCH2019NovStrict, nil)
	require.NoError(t, err)

	// Schnorr variant: a 64-byte signature selects the Schnorr check.
	schnorrSig, err := schnorr.Sign(privKey, digest)
	require.NoError(t, err)
	unlocking = append(EncodeDataPush(schnorrSig.Serialize()),
		EncodeDataPush(message)...)
	err = VerifyScripts(unlocking, locking, testContext(),
		BCH2019NovStrict, nil)
	require.NoError(t, err)

	// A signature over a different message fails.
	wrongMsg := append(EncodeDataPush(sig),
		EncodeDataPush([]byte("other message"))...)
	err = VerifyScripts(wrongMsg, locking, testContext(), BCH2019Nov, nil)
	require.True(t, IsErrorCode(err, ErrEvalFalse), "got %v", err)
}

// TestEngineSigCache ensures cached validations still accept and that the
// cache fills.
func TestEngineSigCache(t *testing.T) {
	t.Parallel()

	privKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x2a}, 32))
	pubKey := privKey.PubKey().SerializeCompressed()
	digest := chainhash.DoubleHashB([]byte("cached"))
	ctx := &TxContext{
		Version: 2,
		HashForSignature: func(hashType SigHashType, coveredBytecode []byte) ([]byte, error) {
			return digest, nil
		},
	}

	hashType := SigHashAll | SigHashForkID
	sig := append(ecdsa.Sign(privKey, digest).Serialize(), byte(hashType))
	locking := append(EncodeDataPush(pubKey), OP_CHECKSIG)
	unlocking := EncodeDataPush(sig)

	cache := NewSigCache(10)
	for i := 0; i < 2; i++ {
		err := VerifyScripts(unlocking, locking, ctx, BCH2019NovStrict,
			cache)
		require.NoError(t, err)
	}
	require.True(t, cache.Exists(digest, sig[:len(sig)-1], pubKey))
}

// TestEvalEngine covers the compile-time evaluation entry point.
func TestEvalEngine(t *testing.T) {
	t.Parallel()

	vm, err := NewEvalEngine([]byte{OP_1, OP_2, OP_ADD}, 0)
	require.NoError(t, err)
	finalStack, err := vm.ExecuteScript()
	require.NoError(t, err)
	require.Len(t, finalStack, 1)
	require.Equal(t, []byte{0x03}, finalStack[0])

	// An empty script leaves an empty stack.
	vm, err = NewEvalEngine(nil, 0)
	require.NoError(t, err)
	finalStack, err = vm.ExecuteScript()
	require.NoError(t, err)
	require.Len(t, finalStack, 0)
}

// TestEngineStepCallback ensures the step hook observes every executed
// instruction in order.
func TestEngineStepCallback(t *testing.T) {
	t.Parallel()

	vm, err := NewEvalEngine([]byte{OP_1, OP_2, OP_ADD}, 0)
	require.NoError(t, err)

	var ips []int
	vm.SetStepCallback(func(vm *Engine, scriptIdx, ip int) {
		ips = append(ips, ip)
	})
	_, err = vm.ExecuteScript()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, ips)
}
