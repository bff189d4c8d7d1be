// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"
)

// hexToBytes converts the passed hex string into bytes and will panic if
// there is an error.  This is only provided for the hard-coded constants so
// errors in the source code can be detected.  It will only (and must only) be
// called with hard-coded values.
func hexToBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("invalid hex in source file: " + s)
	}
	return b
}

// TestScriptNumBytes ensures that converting from integral script numbers to
// byte representations works as expected.
func TestScriptNumBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		num        scriptNum
		serialized []byte
	}{
		{0, nil},
		{1, hexToBytes("01")},
		{-1, hexToBytes("81")},
		{127, hexToBytes("7f")},
		{-127, hexToBytes("ff")},
		{128, hexToBytes("8000")},
		{-128, hexToBytes("8080")},
		{129, hexToBytes("8100")},
		{-129, hexToBytes("8180")},
		{256, hexToBytes("0001")},
		{-256, hexToBytes("0081")},
		{32767, hexToBytes("ff7f")},
		{-32767, hexToBytes("ffff")},
		{32768, hexToBytes("008000")},
		{-32768, hexToBytes("008080")},
		{65535, hexToBytes("ffff00")},
		{-65535, hexToBytes("ffff80")},
		{524288, hexToBytes("000008")},
		{-524288, hexToBytes("000088")},
		{7340032, hexToBytes("000070")},
		{-7340032, hexToBytes("0000f0")},
		{8388608, hexToBytes("00008000")},
		{-8388608, hexToBytes("00008080")},
		{2147483647, hexToBytes("ffffff7f")},
		{-2147483647, hexToBytes("ffffffff")},
	}

	for _, test := range tests {
		gotBytes := test.num.Bytes()
		if !bytes.Equal(gotBytes, test.serialized) {
			t.Errorf("Bytes: did not get expected bytes for %d - "+
				"got %x, want %x", test.num, gotBytes,
				test.serialized)
			continue
		}
	}
}

// TestMakeScriptNum ensures that converting from byte representations to
// integral script numbers works as expected.
func TestMakeScriptNum(t *testing.T) {
	t.Parallel()

	// Errors used in the tests below defined here for convenience and to
	// keep the horizontal test size shorter.
	errNumTooBig := scriptError(ErrNumberTooBig, "")
	errMinimalData := scriptError(ErrMinimalData, "")

	tests := []struct {
		serialized      []byte
		num             scriptNum
		numLen          int
		minimalEncoding bool
		err             error
	}{
		// Minimal encoding must reject negative 0.
		{hexToBytes("80"), 0, defaultScriptNumLen, true, errMinimalData},

		// Minimally encoded valid values with minimal encoding flag.
		// Should not error and return expected integral number.
		{nil, 0, defaultScriptNumLen, true, nil},
		{hexToBytes("01"), 1, defaultScriptNumLen, true, nil},
		{hexToBytes("81"), -1, defaultScriptNumLen, true, nil},
		{hexToBytes("7f"), 127, defaultScriptNumLen, true, nil},
		{hexToBytes("ff"), -127, defaultScriptNumLen, true, nil},
		{hexToBytes("8000"), 128, defaultScriptNumLen, true, nil},
		{hexToBytes("8080"), -128, defaultScriptNumLen, true, nil},
		{hexToBytes("ffff00"), 65535, defaultScriptNumLen, true, nil},
		{hexToBytes("ffff80"), -65535, defaultScriptNumLen, true, nil},
		{hexToBytes("ffffff7f"), 2147483647, defaultScriptNumLen, true, nil},
		{hexToBytes("ffffffff"), -2147483647, defaultScriptNumLen, true, nil},
		{hexToBytes("ffffffff7f"), 549755813887, 5, true, nil},
		{hexToBytes("ffffffffff"), -549755813887, 5, true, nil},

		// Minimally encoded values that are out of range for data that
		// is interpreted as script numbers with the minimal encoding
		// flag set.  Should error and return 0.
		{hexToBytes("0000008000"), 0, defaultScriptNumLen, true, errNumTooBig},
		{hexToBytes("0000008080"), 0, defaultScriptNumLen, true, errNumTooBig},

		// Non-minimally encoded, but otherwise valid values with the
		// minimal encoding flag.  Should error and return 0.
		{hexToBytes("00"), 0, defaultScriptNumLen, true, errMinimalData},
		{hexToBytes("0100"), 0, defaultScriptNumLen, true, errMinimalData},
		{hexToBytes("7f00"), 0, defaultScriptNumLen, true, errMinimalData},
		{hexToBytes("800000"), 0, defaultScriptNumLen, true, errMinimalData},
		{hexToBytes("810000"), 0, defaultScriptNumLen, true, errMinimalData},

		// Non-minimally encoded, but otherwise valid values without
		// the minimal encoding flag.  Should not error and return the
		// expected integral number.
		{hexToBytes("00"), 0, defaultScriptNumLen, false, nil},
		{hexToBytes("0100"), 1, defaultScriptNumLen, false, nil},
		{hexToBytes("7f00"), 127, defaultScriptNumLen, false, nil},
		{hexToBytes("ffffffff00"), 4294967295, 5, false, nil},
	}

	for _, test := range tests {
		gotNum, err := makeScriptNum(test.serialized,
			test.minimalEncoding, test.numLen)
		if test.err != nil {
			if !IsErrorCode(err, test.err.(Error).ErrorCode) {
				t.Errorf("makeScriptNum(%x): did not receive "+
					"expected error -- got %v, want %v",
					test.serialized, err, test.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("makeScriptNum(%x): unexpected error %v",
				test.serialized, err)
			continue
		}
		if gotNum != test.num {
			t.Errorf("makeScriptNum(%x): did not get expected "+
				"number - got %d, want %d", test.serialized,
				gotNum, test.num)
		}
	}
}

// TestScriptNumInt32 ensures that the Int32 function behaves as expected.
func TestScriptNumInt32(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   scriptNum
		want int32
	}{
		// Values inside the valid int32 range are just the values
		// themselves cast to an int32.
		{0, 0},
		{1, 1},
		{-1, -1},
		{127, 127},
		{-127, -127},
		{2147483647, 2147483647},
		{-2147483647, -2147483647},

		// Values outside of the valid int32 range are limited to
		// int32.
		{2147483648, 2147483647},
		{-2147483648, -2147483648},
		{9223372036854775807, 2147483647},
		{-9223372036854775808, -2147483648},
	}

	for _, test := range tests {
		got := test.in.Int32()
		if got != test.want {
			t.Errorf("Int32: did not get expected value for %d - "+
				"got %d, want %d", test.in, got, test.want)
		}
	}
}

// TestBigIntBytes ensures the arbitrary-precision serialization agrees with
// the scriptNum encoding across the int64 range and extends past it.
func TestBigIntBytes(t *testing.T) {
	t.Parallel()

	// Agreement with scriptNum.Bytes.
	for _, n := range []int64{0, 1, -1, 127, -127, 128, -128, 256, -256,
		32767, -32768, 8388608, 2147483647, -2147483647} {

		want := scriptNum(n).Bytes()
		got := BigIntBytes(big.NewInt(n))
		if !bytes.Equal(got, want) {
			t.Errorf("BigIntBytes(%d): got %x, want %x", n, got,
				want)
		}
	}

	// A value outside the int64 range still serializes: 2^64 encodes to
	// nine little-endian bytes.
	huge := new(big.Int).Lsh(big.NewInt(1), 64)
	want := hexToBytes("000000000000000001")
	if got := BigIntBytes(huge); !bytes.Equal(got, want) {
		t.Errorf("BigIntBytes(2^64): got %x, want %x", got, want)
	}
}
