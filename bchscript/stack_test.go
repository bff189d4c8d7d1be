// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"bytes"
	"testing"
)

// TestStackOperations exercises the stack primitives directly, including the
// underflow failures.
func TestStackOperations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup [][]byte
		op    func(s *stack) error
		want  [][]byte
		err   error
	}{
		{
			"push and pop",
			[][]byte{{1}, {2}},
			func(s *stack) error {
				v, err := s.PopByteArray()
				if err != nil {
					return err
				}
				if !bytes.Equal(v, []byte{2}) {
					t.Fatalf("pop: got %x", v)
				}
				return nil
			},
			[][]byte{{1}},
			nil,
		},
		{
			"pop empty",
			nil,
			func(s *stack) error {
				_, err := s.PopByteArray()
				return err
			},
			nil,
			scriptError(ErrInvalidStackOperation, ""),
		},
		{
			"nipN middle",
			[][]byte{{1}, {2}, {3}},
			func(s *stack) error { return s.NipN(1) },
			[][]byte{{1}, {3}},
			nil,
		},
		{
			"tuck",
			[][]byte{{1}, {2}},
			func(s *stack) error { return s.Tuck() },
			[][]byte{{2}, {1}, {2}},
			nil,
		},
		{
			"dupN",
			[][]byte{{1}, {2}},
			func(s *stack) error { return s.DupN(2) },
			[][]byte{{1}, {2}, {1}, {2}},
			nil,
		},
		{
			"rotN",
			[][]byte{{1}, {2}, {3}},
			func(s *stack) error { return s.RotN(1) },
			[][]byte{{2}, {3}, {1}},
			nil,
		},
		{
			"overN underflow",
			[][]byte{{1}},
			func(s *stack) error { return s.OverN(1) },
			nil,
			scriptError(ErrInvalidStackOperation, ""),
		},
		{
			"rollN",
			[][]byte{{1}, {2}, {3}},
			func(s *stack) error { return s.RollN(2) },
			[][]byte{{2}, {3}, {1}},
			nil,
		},
	}

	for _, test := range tests {
		s := &stack{}
		for _, item := range test.setup {
			s.PushByteArray(item)
		}

		err := test.op(s)
		if test.err != nil {
			if !IsErrorCode(err, test.err.(Error).ErrorCode) {
				t.Errorf("%q: got error %v, want code %v",
					test.name, err,
					test.err.(Error).ErrorCode)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", test.name, err)
			continue
		}

		if int(s.Depth()) != len(test.want) {
			t.Errorf("%q: depth %d, want %d", test.name, s.Depth(),
				len(test.want))
			continue
		}
		for i, want := range test.want {
			got, _ := s.PeekByteArray(int32(len(test.want) - i - 1))
			if !bytes.Equal(got, want) {
				t.Errorf("%q: item %d -- got %x, want %x",
					test.name, i, got, want)
			}
		}
	}
}

// TestAsBool ensures the consensus truthiness rules, including negative
// zero.
func TestAsBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []byte
		want bool
	}{
		{nil, false},
		{[]byte{0x00}, false},
		{[]byte{0x00, 0x00}, false},
		{[]byte{0x80}, false},             // negative zero
		{[]byte{0x00, 0x80}, false},       // negative zero, wide
		{[]byte{0x01}, true},
		{[]byte{0x80, 0x00}, true},
		{[]byte{0x00, 0x01}, true},
	}

	for _, test := range tests {
		if got := asBool(test.in); got != test.want {
			t.Errorf("asBool(%x): got %v, want %v", test.in, got,
				test.want)
		}
	}
}
