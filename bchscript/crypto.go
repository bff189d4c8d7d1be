// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/ripemd160"
)

// SigVerifier abstracts the secp256k1 backend the signature-checking opcodes
// delegate to.  Implementations must be safe for concurrent use, or callers
// must supply one per engine.  The engine never retains views into buffers an
// implementation hands back; results are copied before reuse.
type SigVerifier interface {
	// VerifyECDSA reports whether sig is a valid DER-encoded ECDSA
	// signature over sigHash by the passed serialized public key.
	VerifyECDSA(sigHash, sig, pubKey []byte) bool

	// VerifySchnorr reports whether the 64-byte sig is a valid Schnorr
	// signature over sigHash by the passed serialized public key.
	VerifySchnorr(sigHash, sig, pubKey []byte) bool

	// ParsePubKey reports whether the passed bytes are a parseable
	// secp256k1 public key.
	ParsePubKey(pubKey []byte) error
}

// Crypto bundles the external hash and signature primitives the engine
// delegates to.  The hash factories follow the incremental init/update/final
// contract of the stdlib hash.Hash interface; each opcode execution obtains a
// fresh state, so a Crypto value may be shared across engines.
type Crypto struct {
	// NewSHA1 returns a fresh SHA-1 state for OP_SHA1.
	NewSHA1 func() hash.Hash

	// NewSHA256 returns a fresh SHA-256 state for OP_SHA256, OP_HASH160,
	// and the OP_CHECKDATASIG message digest.
	NewSHA256 func() hash.Hash

	// NewRIPEMD160 returns a fresh RIPEMD-160 state for OP_RIPEMD160 and
	// OP_HASH160.
	NewRIPEMD160 func() hash.Hash

	// Hash256 computes the double SHA-256 digest for OP_HASH256.
	Hash256 func([]byte) []byte

	// Secp256k1 performs signature verification.
	Secp256k1 SigVerifier
}

// DefaultCrypto returns the stock collaborators: stdlib SHA-1/SHA-256,
// x/crypto RIPEMD-160, chainhash double SHA-256, and the btcec-backed
// secp256k1 verifier.
func DefaultCrypto() *Crypto {
	return &Crypto{
		NewSHA1:      sha1.New,
		NewSHA256:    sha256.New,
		NewRIPEMD160: func() hash.Hash { return ripemd160.New() },
		Hash256:      chainhash.DoubleHashB,
		Secp256k1:    SecpVerifier{},
	}
}

// Hash160 computes ripemd160(sha256(data)) with the configured backends.
func (c *Crypto) Hash160(data []byte) []byte {
	return calcHash(calcHash(data, c.NewSHA256()), c.NewRIPEMD160())
}
