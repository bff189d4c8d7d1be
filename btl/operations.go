// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bauthsuite/bauth/bchscript"
)

// signingSerializationComponents lists the component names addressable as
// signing_serialization.<component>.  The bytes of each component are
// caller-supplied through Data.SigningSerialization.
var signingSerializationComponents = []string{
	"version",
	"transaction_outpoints",
	"transaction_outpoints_hash",
	"transaction_sequence_numbers",
	"transaction_sequence_numbers_hash",
	"outpoint_transaction_hash",
	"outpoint_index",
	"covered_bytecode_length",
	"covered_bytecode",
	"output_value",
	"sequence_number",
	"corresponding_output",
	"corresponding_output_hash",
	"transaction_outputs",
	"transaction_outputs_hash",
	"locktime",
}

// signatureComponents maps the serialization component a signature operation
// signs over to the hash type byte appended to the produced signature.
var signatureComponents = map[string]bchscript.SigHashType{
	"all_outputs":                      bchscript.SigHashAll | bchscript.SigHashForkID,
	"all_outputs_single_input":         bchscript.SigHashAll | bchscript.SigHashForkID | bchscript.SigHashAnyOneCanPay,
	"corresponding_output":             bchscript.SigHashSingle | bchscript.SigHashForkID,
	"corresponding_output_single_input": bchscript.SigHashSingle | bchscript.SigHashForkID | bchscript.SigHashAnyOneCanPay,
	"no_outputs":                       bchscript.SigHashNone | bchscript.SigHashForkID,
	"no_outputs_single_input":          bchscript.SigHashNone | bchscript.SigHashForkID | bchscript.SigHashAnyOneCanPay,
}

// standardOperations assembles the operation tables every environment built
// by NewEnvironment starts with.  HdKey variables deliberately register no
// table: resolving one reports that the operation type is not included.
func standardOperations() map[string]*OperationSet {
	return map[string]*OperationSet{
		"key":         keyOperations(),
		"addressData": {Default: addressDataOperation},
		"walletData":  {Default: walletDataOperation},
		"currentBlockHeight": {
			Default: currentBlockHeightOperation,
		},
		"currentBlockTime": {
			Default: currentBlockTimeOperation,
		},
		"signingSerialization": signingSerializationOperations(),
	}
}

// variableID returns the variable portion of a dotted identifier.
func variableID(identifier string) string {
	return strings.SplitN(identifier, ".", 2)[0]
}

// addressDataOperation resolves an AddressData variable to its
// caller-supplied bytes.
func addressDataOperation(identifier string, data *Data, env *Environment) ([]byte, error) {
	if data != nil {
		if value, ok := data.AddressData[variableID(identifier)]; ok {
			return value, nil
		}
	}
	return nil, fmt.Errorf("identifier %q refers to an AddressData "+
		"variable, but no bytecode for it was provided in the "+
		"compilation data", identifier)
}

// walletDataOperation resolves a WalletData variable to its caller-supplied
// bytes.
func walletDataOperation(identifier string, data *Data, env *Environment) ([]byte, error) {
	if data != nil {
		if value, ok := data.WalletData[variableID(identifier)]; ok {
			return value, nil
		}
	}
	return nil, fmt.Errorf("identifier %q refers to a WalletData "+
		"variable, but no bytecode for it was provided in the "+
		"compilation data", identifier)
}

// currentBlockHeightOperation resolves the current block height to a script
// number.
func currentBlockHeightOperation(identifier string, data *Data, env *Environment) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("the current block height was not " +
			"provided in the compilation data")
	}
	return bchscript.BigIntBytes(big.NewInt(data.CurrentBlockHeight)), nil
}

// currentBlockTimeOperation resolves the current block time to a script
// number of its UNIX timestamp.
func currentBlockTimeOperation(identifier string, data *Data, env *Environment) ([]byte, error) {
	if data == nil || data.CurrentBlockTime == 0 {
		return nil, fmt.Errorf("the current block time was not " +
			"provided in the compilation data")
	}
	return bchscript.BigIntBytes(big.NewInt(data.CurrentBlockTime)), nil
}

// signingSerializationOperations builds the by-identifier table resolving
// signing_serialization.<component> to the raw component bytes.
func signingSerializationOperations() *OperationSet {
	byID := make(map[string]CompilerOperation, len(signingSerializationComponents))
	for _, component := range signingSerializationComponents {
		component := component
		byID[component] = func(identifier string, data *Data, env *Environment) ([]byte, error) {
			if data != nil {
				if value, ok := data.SigningSerialization[component]; ok {
					return value, nil
				}
			}
			return nil, fmt.Errorf("the %q signing serialization "+
				"component was not provided in the compilation "+
				"data", component)
		}
	}
	return &OperationSet{ByID: byID, Example: "version"}
}

// keyOperations builds the by-identifier table for Key variables:
// public-key derivation plus ECDSA and Schnorr signing over each supported
// signing-serialization component.
func keyOperations() *OperationSet {
	byID := map[string]CompilerOperation{
		"public_key": keyPublicKeyOperation,
	}
	for component, hashType := range signatureComponents {
		byID["signature."+component] =
			keySignatureOperation(component, hashType, false)
		byID["schnorr_signature."+component] =
			keySignatureOperation(component, hashType, true)
	}
	return &OperationSet{ByID: byID, Example: "public_key"}
}

// privateKeyFor fetches the private key bytes declared for the variable
// portion of the passed identifier.
func privateKeyFor(identifier string, data *Data) ([]byte, error) {
	if data != nil {
		if key, ok := data.Keys[variableID(identifier)]; ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("identifier %q refers to a Key variable, "+
		"but no private key for it was provided in the compilation "+
		"data", identifier)
}

// keyPublicKeyOperation derives the compressed public key of a Key variable.
func keyPublicKeyOperation(identifier string, data *Data, env *Environment) ([]byte, error) {
	keyBytes, err := privateKeyFor(identifier, data)
	if err != nil {
		return nil, err
	}
	privKey, _ := btcec.PrivKeyFromBytes(keyBytes)
	return privKey.PubKey().SerializeCompressed(), nil
}

// keySignatureOperation returns the operation producing a transaction
// signature by a Key variable over the passed signing-serialization
// component.  The digest is the double SHA-256 of the caller-supplied
// serialization, and the hash type byte is appended to the signature.
func keySignatureOperation(component string, hashType bchscript.SigHashType, useSchnorr bool) CompilerOperation {
	return func(identifier string, data *Data, env *Environment) ([]byte, error) {
		keyBytes, err := privateKeyFor(identifier, data)
		if err != nil {
			return nil, err
		}

		var serialization []byte
		ok := false
		if data != nil {
			serialization, ok = data.SigningSerialization[component]
		}
		if !ok {
			return nil, fmt.Errorf("identifier %q requires the %q "+
				"signing serialization, which was not provided "+
				"in the compilation data", identifier, component)
		}

		digest := chainhash.DoubleHashB(serialization)
		privKey, _ := btcec.PrivKeyFromBytes(keyBytes)

		var sigBytes []byte
		if useSchnorr {
			sig, err := schnorr.Sign(privKey, digest)
			if err != nil {
				return nil, fmt.Errorf("schnorr signing failed "+
					"for %q: %v", identifier, err)
			}
			sigBytes = sig.Serialize()
		} else {
			sig := ecdsa.Sign(privKey, digest)
			sigBytes = sig.Serialize()
		}

		return append(sigBytes, byte(hashType)), nil
	}
}
