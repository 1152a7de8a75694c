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

import (
	"golang.org/x/arch/x86/x86asm"
)

// Mode selects the instruction-set width the decoder interprets a prologue
// under, matching x86asm.Decode's own bitMode argument.
type Mode int

const (
	Mode32 Mode = 32
	Mode64 Mode = 64
)

// MnemonicClass buckets a decoded instruction the way [DetourPatch.Apply]
// needs to reason about it: does it need its operand relocated, does it end
// straight-line control flow, or is it something the relocator refuses to
// touch at all.
type MnemonicClass int

const (
	// ClassOther copies unchanged into the trampoline.
	ClassOther MnemonicClass = iota
	// ClassJumpRel is an unconditional rel32 JMP: relocatable by rewriting
	// its displacement. The prologue scan continues past it until the stub
	// size is reached. A rel8 JMP is ClassUnsafe, not ClassJumpRel.
	ClassJumpRel
	// ClassCallRel is a rel32 CALL: relocatable the same way as ClassJumpRel,
	// without ending the scan.
	ClassCallRel
	// ClassTerminator is a RET, unconditional indirect JMP/CALL, or other
	// instruction that hands control elsewhere without a relocatable
	// operand baked into it; it may end the prologue scan.
	ClassTerminator
	// ClassUnsafe is an instruction the relocator has no rule for: a
	// short jump, a near conditional jump, or a RIP-relative memory operand.
	// Bytes [x86asm.Decode] itself rejects are reported as a
	// [DecodeFailure] instead. Encountering one before the scan reaches the
	// stub size always fails the patch.
	ClassUnsafe
)

// OperandKind describes the relocatable part of a ClassJumpRel/ClassCallRel
// instruction, or the reason a ClassUnsafe one earned that class.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandRel32
	OperandRel8
	OperandRipRelMem
)

// Operand is the piece of a decoded instruction the trampoline relocator
// rewrites, or refuses to.
type Operand struct {
	Kind         OperandKind
	Displacement int64
}

// DecodedInstruction is one instruction from a prologue scan.
type DecodedInstruction struct {
	Offset  int
	Length  int
	Class   MnemonicClass
	Operand *Operand
	Raw     []byte
}

// InstructionDecoder decodes one instruction at a time from the start of
// buf, the way [DetourPatch.Apply] walks a function's prologue to find where
// a JUMP_SIZE-byte stub would stop splitting a live instruction.
type InstructionDecoder interface {
	Decode(buf []byte, mode Mode) (DecodedInstruction, error)
}

// X86Decoder backs InstructionDecoder with golang.org/x/arch/x86/x86asm,
// used purely for its variable-length instruction-length decoding; branch
// classification is done on the raw leading opcode byte the way
// pboyd-redefine's relocateFunc checks Opcode>>24 against opcodeCALLrel,
// which sidesteps having to match against x86asm's full mnemonic string
// table for the handful of opcodes this package actually needs to
// distinguish.
type X86Decoder struct{}

const (
	opcodeJccShortLo = 0x70 // Jcc rel8, 0x70-0x7F
	opcodeJccShortHi = 0x7F
	opcodeJmpShort   = 0xEB // JMP rel8
	opcodeLoopLo     = 0xE0 // LOOPNE/LOOPE/LOOP/JCXZ rel8, 0xE0-0xE3
	opcodeLoopHi     = 0xE3
	opcodeCallRel    = 0xE8 // CALL rel32
	opcodeJmpRel     = 0xE9 // JMP rel32
	opcodeTwoByte    = 0x0F // two-byte opcode escape
	opcodeJccNearLo  = 0x80 // 0F 80-8F: Jcc rel32
	opcodeJccNearHi  = 0x8F
)

// Decode reads exactly one instruction from the front of buf.
func (X86Decoder) Decode(buf []byte, mode Mode) (DecodedInstruction, error) {
	inst, err := x86asm.Decode(buf, int(mode))
	if err != nil {
		return DecodedInstruction{}, &DecodeFailure{Reason: err.Error()}
	}

	di := DecodedInstruction{
		Length: inst.Len,
		Raw:    append([]byte(nil), buf[:inst.Len]...),
	}

	lead := byte(inst.Opcode >> 24)
	switch {
	case lead == opcodeJmpRel:
		di.Class = ClassJumpRel
		di.Operand = relOperand(inst, OperandRel32)
	case lead == opcodeCallRel:
		di.Class = ClassCallRel
		di.Operand = relOperand(inst, OperandRel32)
	case lead == opcodeJmpShort, lead >= opcodeJccShortLo && lead <= opcodeJccShortHi,
		lead >= opcodeLoopLo && lead <= opcodeLoopHi:
		// Short/conditional jumps carry an 8-bit displacement, too narrow to
		// re-target from a relocated trampoline slot; conditional near
		// jumps (0F 8x) hit the same wall via the two-byte-escape case
		// below. Both are refused rather than mis-relocated.
		di.Class = ClassUnsafe
		di.Operand = &Operand{Kind: OperandRel8}
	case lead == opcodeTwoByte && byte(inst.Opcode>>16) >= opcodeJccNearLo && byte(inst.Opcode>>16) <= opcodeJccNearHi:
		di.Class = ClassUnsafe
	case isRipRelative(inst):
		di.Class = ClassUnsafe
		di.Operand = &Operand{Kind: OperandRipRelMem}
	case isTerminator(inst):
		di.Class = ClassTerminator
	default:
		di.Class = ClassOther
	}

	return di, nil
}

func relOperand(inst x86asm.Inst, kind OperandKind) *Operand {
	for _, arg := range inst.Args {
		if arg == nil {
			continue
		}
		if rel, ok := arg.(x86asm.Rel); ok {
			return &Operand{Kind: kind, Displacement: int64(rel)}
		}
	}
	return &Operand{Kind: kind}
}

// isRipRelative reports whether inst addresses memory through the
// instruction pointer, the way a LEA or MOV built for a fixed load address
// commonly does; relocating the instruction elsewhere would silently change
// what it reads or writes.
func isRipRelative(inst x86asm.Inst) bool {
	for _, arg := range inst.Args {
		mem, ok := arg.(x86asm.Mem)
		if !ok {
			continue
		}
		if mem.Base == x86asm.RIP {
			return true
		}
	}
	return false
}

// isTerminator reports whether inst is a RET, INT3, or an indirect JMP/CALL:
// control leaves the function here (or drops into a debugger break with no
// guarantee the bytes after it continue the prologue linearly) through a
// path the relocator has no displacement to rewrite.
func isTerminator(inst x86asm.Inst) bool {
	switch inst.Op {
	case x86asm.RET, x86asm.LRET:
		return true
	case x86asm.INT:
		if imm, ok := inst.Args[0].(x86asm.Imm); ok && imm == 3 {
			return true
		}
	case x86asm.JMP, x86asm.CALL:
		for _, arg := range inst.Args {
			switch arg.(type) {
			case x86asm.Reg, x86asm.Mem:
				return true
			}
		}
	}
	return false
}
