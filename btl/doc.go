// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package btl implements the Bitauth Template Language compiler.

Template source text is parsed into a ranged tree, identifiers are resolved
against a caller-supplied compilation environment (opcodes, variables, and
nested scripts), and the resolved tree is reduced to a single bytecode blob.
Inline evaluations ('$(...)') run the bchscript virtual machine at compile
time and splice the top item of the final stack into the output.

Errors are values throughout: resolution failures embed in the resolved tree,
reduction collects them with their source ranges, and compilation returns a
best-effort partial result alongside the error list.
*/
package btl
