// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// SigHashType represents hash type bits at the end of a signature.
type SigHashType uint32

// Hash type bits from the end of a signature.
const (
	SigHashAll          SigHashType = 0x1
	SigHashNone         SigHashType = 0x2
	SigHashSingle       SigHashType = 0x3
	SigHashForkID       SigHashType = 0x40
	SigHashAnyOneCanPay SigHashType = 0x80

	// sigHashMask defines the number of bits of the hash type which are
	// used to identify which outputs are signed.
	sigHashMask = 0x1f
)

// schnorrSigLen is the length of a Schnorr signature without the hash type
// byte.  Within the signature-checking opcodes, a signature of exactly this
// length selects the Schnorr verification variant.
const schnorrSigLen = 64

// halfOrder is used to tame ECDSA malleability (see BIP-0062).
var halfOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// checkHashTypeEncoding returns whether or not the passed hash type adheres
// to the strict encoding requirements.  For bitcoin cash that means a base
// type of ALL, NONE, or SINGLE with the fork id bit set.
func checkHashTypeEncoding(hashType SigHashType) error {
	if hashType&SigHashForkID == 0 {
		str := fmt.Sprintf("hash type 0x%x does not include the fork "+
			"id bit", hashType)
		return scriptError(ErrSigHashType, str)
	}

	sigHashType := hashType &^ (SigHashAnyOneCanPay | SigHashForkID)
	if sigHashType < SigHashAll || sigHashType > SigHashSingle {
		str := fmt.Sprintf("invalid hash type 0x%x", hashType)
		return scriptError(ErrSigHashType, str)
	}
	return nil
}

// checkPubKeyEncoding returns whether or not the passed public key adheres to
// the strict encoding requirements: a 33-byte compressed or 65-byte
// uncompressed secp256k1 point.
func (vm *Engine) checkPubKeyEncoding(pubKey []byte) error {
	if len(pubKey) == 33 && (pubKey[0] == 0x02 || pubKey[0] == 0x03) {
		// Compressed
		return nil
	}
	if len(pubKey) == 65 && pubKey[0] == 0x04 {
		// Uncompressed
		return nil
	}
	return scriptError(ErrPubKeyType, "unsupported public key type")
}

// checkSignatureEncoding returns whether or not the passed signature adheres
// to the strict encoding requirements.  An empty signature passes (it simply
// fails verification), a 64-byte signature is the Schnorr variant and carries
// no DER structure, and everything else must be strict low-S DER.
func checkSignatureEncoding(sig []byte) error {
	if len(sig) == 0 || len(sig) == schnorrSigLen {
		return nil
	}

	// The format of a DER encoded signature is as follows:
	//
	// 0x30 <total length> 0x02 <length of R> <R> 0x02 <length of S> <S>
	//   - 0x30 is the ASN.1 identifier for a sequence
	//   - Total length is 1 byte and specifies length of all remaining data
	//   - 0x02 is the ASN.1 identifier that specifies an integer follows
	//   - Length of R is 1 byte and specifies how many bytes R occupies
	//   - R is the arbitrary length big-endian encoded number which
	//     represents the R value of the signature.  DER encoding dictates
	//     that the value must be encoded using the minimum possible number
	//     of bytes.  This implies the first byte can only be null if the
	//     highest bit of the next byte is set in order to prevent it from
	//     being interpreted as a negative number.
	//   - 0x02 is once again the ASN.1 integer identifier
	//   - Length of S is 1 byte and specifies how many bytes S occupies
	//   - S is the arbitrary length big-endian encoded number which
	//     represents the S value of the signature.  The encoding rules are
	//     identical as those for R.
	const (
		asn1SequenceID = 0x30
		asn1IntegerID  = 0x02

		// minSigLen is the minimum length of a DER encoded signature.
		//
		// It contains 1 byte each for the sequence, total length, and
		// the two integer type IDs and lengths, plus at least one byte
		// each for R and S.
		minSigLen = 8

		// maxSigLen is the maximum length of a DER encoded signature.
		maxSigLen = 72

		sequenceOffset = 0
		dataLenOffset  = 1
		rTypeOffset    = 2
		rLenOffset     = 3
		rOffset        = 4
	)

	sigLen := len(sig)
	if sigLen < minSigLen {
		str := fmt.Sprintf("malformed signature: too short: %d < %d",
			sigLen, minSigLen)
		return scriptError(ErrSigDER, str)
	}
	if sigLen > maxSigLen {
		str := fmt.Sprintf("malformed signature: too long: %d > %d",
			sigLen, maxSigLen)
		return scriptError(ErrSigDER, str)
	}

	if sig[sequenceOffset] != asn1SequenceID {
		str := fmt.Sprintf("malformed signature: format has wrong "+
			"type: %#x", sig[sequenceOffset])
		return scriptError(ErrSigDER, str)
	}

	if int(sig[dataLenOffset]) != sigLen-2 {
		str := fmt.Sprintf("malformed signature: bad length: %d != %d",
			sig[dataLenOffset], sigLen-2)
		return scriptError(ErrSigDER, str)
	}

	rLen := int(sig[rLenOffset])

	// Make sure S is inside the signature.
	sTypeOffset := rOffset + rLen
	sLenOffset := sTypeOffset + 1
	if sTypeOffset >= sigLen {
		return scriptError(ErrSigDER,
			"malformed signature: S type indicator missing")
	}
	if sLenOffset >= sigLen {
		return scriptError(ErrSigDER,
			"malformed signature: S length missing")
	}

	// The length of the elements does not match the length of the
	// signature.
	sOffset := sLenOffset + 1
	sLen := int(sig[sLenOffset])
	if sOffset+sLen != sigLen {
		return scriptError(ErrSigDER,
			"malformed signature: invalid S length")
	}

	// R elements must be ASN.1 integers.
	if sig[rTypeOffset] != asn1IntegerID {
		str := fmt.Sprintf("malformed signature: R integer marker: "+
			"%#x != %#x", sig[rTypeOffset], asn1IntegerID)
		return scriptError(ErrSigDER, str)
	}

	// Zero-length integers are not allowed for R.
	if rLen == 0 {
		return scriptError(ErrSigDER,
			"malformed signature: R length is zero")
	}

	// R must not be negative.
	if sig[rOffset]&0x80 != 0 {
		return scriptError(ErrSigDER,
			"malformed signature: R is negative")
	}

	// Null bytes at the start of R are not allowed, unless R would
	// otherwise be interpreted as a negative number.
	if rLen > 1 && sig[rOffset] == 0x00 && sig[rOffset+1]&0x80 == 0 {
		return scriptError(ErrSigDER,
			"malformed signature: R value has too much padding")
	}

	// S elements must be ASN.1 integers.
	if sig[sTypeOffset] != asn1IntegerID {
		str := fmt.Sprintf("malformed signature: S integer marker: "+
			"%#x != %#x", sig[sTypeOffset], asn1IntegerID)
		return scriptError(ErrSigDER, str)
	}

	// Zero-length integers are not allowed for S.
	if sLen == 0 {
		return scriptError(ErrSigDER,
			"malformed signature: S length is zero")
	}

	// S must not be negative.
	if sig[sOffset]&0x80 != 0 {
		return scriptError(ErrSigDER,
			"malformed signature: S is negative")
	}

	// Null bytes at the start of S are not allowed, unless S would
	// otherwise be interpreted as a negative number.
	if sLen > 1 && sig[sOffset] == 0x00 && sig[sOffset+1]&0x80 == 0 {
		return scriptError(ErrSigDER,
			"malformed signature: S value has too much padding")
	}

	// Verify the S value is <= half the order of the curve.  This check is
	// done because when it is higher, the complement modulo the order can
	// be used instead which is a shorter encoding by 1 byte.
	sValue := new(big.Int).SetBytes(sig[sOffset : sOffset+sLen])
	if sValue.Cmp(halfOrder) > 0 {
		return scriptError(ErrSigHighS, "signature is not canonical "+
			"due to unnecessarily high S value")
	}

	return nil
}

// SecpVerifier is the stock SigVerifier backed by btcec.  The Schnorr variant
// verifies 64-byte signatures with the scheme provided by the backend over
// the x coordinate of the passed public key.
type SecpVerifier struct{}

// VerifyECDSA parses the DER signature and public key with btcec and verifies
// the signature over the digest.
func (SecpVerifier) VerifyECDSA(sigHash, sig, pubKey []byte) bool {
	parsedPubKey, err := secp.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsedSig.Verify(sigHash, parsedPubKey)
}

// VerifySchnorr parses the 64-byte signature and public key with btcec and
// verifies the signature over the digest.
func (SecpVerifier) VerifySchnorr(sigHash, sig, pubKey []byte) bool {
	parsedPubKey, err := secp.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	parsedSig, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return parsedSig.Verify(sigHash, parsedPubKey)
}

// ParsePubKey reports whether the passed serialized bytes parse as a
// secp256k1 public key.
func (SecpVerifier) ParsePubKey(pubKey []byte) error {
	_, err := secp.ParsePubKey(pubKey)
	return err
}
