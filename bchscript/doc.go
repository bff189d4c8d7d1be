// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package bchscript implements the bitcoin cash transaction script language.

This package provides data structures and functions to parse and execute
bitcoin cash scripts.

# Script Overview

Bitcoin cash scripts are written in a stack-based, FORTH-like language.

The script language consists of a number of opcodes which fall into several
categories such as pushing and popping data to and from the stack, performing
basic and bitwise arithmetic, conditional branching, comparing hashes, and
checking cryptographic signatures.  Scripts are processed from left to right
and intentionally do not provide loops.

The vast majority of scripts at the time of this writing are of several
standard forms which consist of a spender providing a public key and a
signature which proves the spender owns the associated private key.  This
information is used to prove the spender is authorized to perform the
transaction.

# Instruction Sets

The engine's strictness is tuned by four boolean flags; the named instruction
sets (BCH2019May, BCH2019MayStrict, BCH2019Nov, BCH2019NovStrict) are presets
over those flags.

# External Collaborators

Hash primitives and secp256k1 signature verification are collaborators
supplied through the Crypto type rather than implementations of this package;
DefaultCrypto wires the stock backends.  Likewise the engine reads
transaction state through TxContext and never serializes transactions itself.

# Errors

Errors returned by this package are of type bchscript.Error and fully support
the IsErrorCode function to programmatically detect the specific consensus
violation.
*/
package bchscript
