// This file is part of the detour project.
// Copyright (c) 2024-2026 The detour authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at https://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package detour

import "testing"

func TestDecodeOther(t *testing.T) {
	// push ebp; mov ebp, esp; sub esp, 0x10
	buf := []byte{0x55, 0x8B, 0xEC, 0x83, 0xEC, 0x10}
	dec := X86Decoder{}

	off := 0
	classes := []MnemonicClass{ClassOther, ClassOther, ClassOther}
	for i, want := range classes {
		insn, err := dec.Decode(buf[off:], Mode32)
		if err != nil {
			t.Fatalf("instruction %d: %v", i, err)
		}
		if insn.Class != want {
			t.Errorf("instruction %d: got class %v, want %v", i, insn.Class, want)
		}
		off += insn.Length
	}
	if off != len(buf) {
		t.Errorf("consumed %d bytes, want %d", off, len(buf))
	}
}

func TestDecodeJumpRel32(t *testing.T) {
	buf := []byte{0xE9, 0x10, 0x00, 0x00, 0x00}
	insn, err := (X86Decoder{}).Decode(buf, Mode64)
	if err != nil {
		t.Fatal(err)
	}
	if insn.Class != ClassJumpRel {
		t.Fatalf("got class %v, want ClassJumpRel", insn.Class)
	}
	if insn.Length != 5 {
		t.Errorf("got length %d, want 5", insn.Length)
	}
	if insn.Operand == nil || insn.Operand.Kind != OperandRel32 || insn.Operand.Displacement != 0x10 {
		t.Errorf("got operand %+v, want rel32=0x10", insn.Operand)
	}
}

func TestDecodeCallRel32(t *testing.T) {
	buf := []byte{0xE8, 0x10, 0x00, 0x00, 0x00}
	insn, err := (X86Decoder{}).Decode(buf, Mode64)
	if err != nil {
		t.Fatal(err)
	}
	if insn.Class != ClassCallRel {
		t.Fatalf("got class %v, want ClassCallRel", insn.Class)
	}
}

func TestDecodeShortJumpUnsafe(t *testing.T) {
	buf := []byte{0xEB, 0x10}
	insn, err := (X86Decoder{}).Decode(buf, Mode64)
	if err != nil {
		t.Fatal(err)
	}
	if insn.Class != ClassUnsafe {
		t.Fatalf("got class %v, want ClassUnsafe for short jump", insn.Class)
	}
}

func TestDecodeConditionalShortJumpUnsafe(t *testing.T) {
	buf := []byte{0x74, 0x10} // JE rel8
	insn, err := (X86Decoder{}).Decode(buf, Mode64)
	if err != nil {
		t.Fatal(err)
	}
	if insn.Class != ClassUnsafe {
		t.Fatalf("got class %v, want ClassUnsafe for conditional short jump", insn.Class)
	}
}

func TestDecodeRet(t *testing.T) {
	buf := []byte{0xC3}
	insn, err := (X86Decoder{}).Decode(buf, Mode64)
	if err != nil {
		t.Fatal(err)
	}
	if insn.Class != ClassTerminator {
		t.Fatalf("got class %v, want ClassTerminator for ret", insn.Class)
	}
}

func TestDecodeInt3(t *testing.T) {
	buf := []byte{0xCC}
	insn, err := (X86Decoder{}).Decode(buf, Mode64)
	if err != nil {
		t.Fatal(err)
	}
	if insn.Class != ClassTerminator {
		t.Fatalf("got class %v, want ClassTerminator for int3", insn.Class)
	}
}
