// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"testing"
)

// TestInstructionSetPresets ensures each named variant expands to the
// documented flag combination.
func TestInstructionSetPresets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		is    InstructionSet
		name  string
		flags Flags
	}{
		{BCH2019May, "BCH_2019_05", 0},
		{BCH2019MayStrict, "BCH_2019_05_STRICT",
			ScriptDisallowUpgradableNops |
				ScriptRequireBugValueZero |
				ScriptRequireMinimalEncoding |
				ScriptRequireNullSignatureFailures},
		{BCH2019Nov, "BCH_2019_11", ScriptRequireMinimalEncoding},
		{BCH2019NovStrict, "BCH_2019_11_STRICT",
			ScriptDisallowUpgradableNops |
				ScriptRequireBugValueZero |
				ScriptRequireMinimalEncoding |
				ScriptRequireNullSignatureFailures},
	}

	for _, test := range tests {
		if test.is.String() != test.name {
			t.Errorf("%v: unexpected name %q, want %q", test.is,
				test.is.String(), test.name)
		}
		if test.is.Flags() != test.flags {
			t.Errorf("%v: unexpected flags %#x, want %#x", test.is,
				test.is.Flags(), test.flags)
		}

		resolved, err := InstructionSetByName(test.name)
		if err != nil {
			t.Errorf("%v: lookup by name failed: %v", test.is, err)
			continue
		}
		if resolved != test.is {
			t.Errorf("%q: resolved to %v, want %v", test.name,
				resolved, test.is)
		}
	}

	if _, err := InstructionSetByName("BCH_1999_01"); !IsErrorCode(err, ErrUnsupportedInstructionSet) {
		t.Errorf("unknown set: got %v, want ErrUnsupportedInstructionSet",
			err)
	}
}
