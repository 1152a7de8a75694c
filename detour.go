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
	"runtime"

	"github.com/kirenrat/detour/internal/dlog"
)

const (
	maxInsnLen     = 15
	tramplCapacity = 3 * maxInsnLen
)

// DetourPatch redirects a function's entry point to a replacement while
// keeping a callable trampoline that runs the original prologue and falls
// through into the rest of the original function. This is the general
// engine the teacher's fixed 5/4-byte jump-only override is a
// self-process, single-purpose instance of: where override_amd64.go
// clobbers exactly jmpInstrLength bytes of a function it knows was
// compiled with room to spare, DetourPatch decodes however many
// instructions the entry jump actually displaces and relocates each one
// into a trampoline so the original is still reachable afterward.
//
// A DetourPatch's pointer identity is load-bearing: never copy one by
// value, only ever hold and pass *DetourPatch. Zero value is not usable;
// construct with [NewDetourPatch].
type DetourPatch struct {
	noCopy

	process  Process
	alloc    ExecutableAllocator
	decoder  InstructionDecoder
	mode     Mode
	target   uintptr
	detour   uintptr

	primary  ExecutableRegion
	auxPool  *auxSlotPool
	original []byte
	applied  bool
}

// NewDetourPatch constructs an unapplied detour redirecting target to
// detour once Apply is called. process and alloc are non-owning
// references; NewDetourPatch never touches them until Apply.
func NewDetourPatch(process Process, alloc ExecutableAllocator, target, detour uintptr) *DetourPatch {
	p := &DetourPatch{
		process: process,
		alloc:   alloc,
		decoder: X86Decoder{},
		mode:    nativeMode,
		target:  target,
		detour:  detour,
		auxPool: newAuxSlotPool(alloc),
	}
	runtime.SetFinalizer(p, (*DetourPatch).finalize)
	return p
}

// Apply installs the detour, following the nine-step protocol: allocate the
// trampoline, decode and relocate the prologue into it, append a tail jump
// back to the target, flush, capture the target's original bytes, write the
// entry jump, flush again, then mark applied. The trampoline is fully
// populated and flushed before the target's entry is overwritten, so a
// crash or concurrent caller between those two points still sees either the
// wholly-original function or the wholly-redirected one, never a half
// state. Any failure after the trampoline is allocated releases it and
// leaves the patch unapplied.
func (p *DetourPatch) Apply() error {
	if p.applied {
		return nil
	}

	region, err := p.alloc.Alloc(tramplCapacity, nil)
	if err != nil {
		return &AllocationFailure{Reason: err.Error()}
	}

	// Every step below through writeEntryJump can leave an aux slot
	// reserved in p.auxPool (buildJumpStub/buildCallStub reserve one
	// before they can fail on the entry-stub encoding itself). Until
	// commit is set just before the successful return, this defer
	// releases both the primary trampoline and whatever aux regions
	// were reserved along the way, so no Apply failure path leaks
	// executable memory that Close/finalize would never see (they only
	// act once p.applied is true).
	commit := false
	defer func() {
		if commit {
			return
		}
		_ = region.Close()
		_ = p.auxPool.Close()
	}()

	consumed, tramp, err := p.relocatePrologue(region.Base())
	if err != nil {
		return err
	}

	tailFrom := region.Base() + uintptr(len(tramp))
	tailEntry, err := p.buildJumpStub(tailFrom, p.target+uintptr(consumed))
	if err != nil {
		return err
	}
	tramp = append(tramp, tailEntry...)

	if err := region.Write(0, tramp); err != nil {
		return &IoFailure{Op: "write trampoline", Addr: region.Base(), Reason: err}
	}
	if err := p.process.FlushICache(region.Base(), len(tramp)); err != nil {
		return &IoFailure{Op: "flush", Addr: region.Base(), Reason: err}
	}

	original, err := p.process.ReadBytes(p.target, jumpSize)
	if err != nil {
		return &IoFailure{Op: "read", Addr: p.target, Reason: err}
	}

	if err := p.writeEntryJump(); err != nil {
		return err
	}

	if err := p.process.FlushICache(p.target, jumpSize); err != nil {
		return &IoFailure{Op: "flush", Addr: p.target, Reason: err}
	}

	p.primary = region
	p.original = original
	p.applied = true
	commit = true
	return nil
}

// writeEntryJump synthesises and writes the jumpSize-byte entry stub at
// p.target that redirects to p.detour.
func (p *DetourPatch) writeEntryJump() error {
	entry, err := p.buildJumpStub(p.target, p.detour)
	if err != nil {
		return err
	}
	if err := p.process.WriteBytes(p.target, entry); err != nil {
		return &IoFailure{Op: "write", Addr: p.target, Reason: err}
	}
	return nil
}

// buildJumpStub returns the jumpSize bytes to place at from that jump
// unconditionally to target, reserving and populating an auxSlotPool slot
// first when the platform needs an indirect stub.
func (p *DetourPatch) buildJumpStub(from, target uintptr) ([]byte, error) {
	return p.buildStub(from, target, synthesizeJump)
}

// buildCallStub is buildJumpStub's CALL counterpart, used when relocating a
// CallRel instruction out of the original prologue.
func (p *DetourPatch) buildCallStub(from, target uintptr) ([]byte, error) {
	return p.buildStub(from, target, synthesizeCall)
}

type stubSynth func(entryAddr, auxAddr, target uintptr) ([]byte, []byte, error)

func (p *DetourPatch) buildStub(from, target uintptr, synth stubSynth) ([]byte, error) {
	var auxAddr uintptr
	if needsAuxSlots {
		var err error
		auxAddr, err = p.auxPool.Reserve(from, buildAuxSlot(target))
		if err != nil {
			return nil, err
		}
	}
	entry, _, err := synth(from, auxAddr, target)
	if err != nil {
		return nil, err
	}
	if len(entry) != jumpSize {
		return nil, &StubSizeMismatch{Want: jumpSize, Got: len(entry)}
	}
	return entry, nil
}

// relocatePrologue decodes instructions from p.target until at least
// jumpSize bytes have been consumed, copying or relocating each one into a
// buffer meant to be written starting at trampBase. It returns the number
// of bytes consumed from the target's prologue and the relocated bytes
// (not yet including the tail jump Apply appends).
func (p *DetourPatch) relocatePrologue(trampBase uintptr) (int, []byte, error) {
	buf, err := p.process.ReadBytes(p.target, tramplCapacity)
	if err != nil {
		return 0, nil, &IoFailure{Op: "read", Addr: p.target, Reason: err}
	}

	var tramp []byte
	consumed := 0
	for consumed < jumpSize {
		if consumed >= len(buf) {
			return 0, nil, &DecodeFailure{Addr: p.target, Offset: consumed, Reason: "prologue shorter than jump size"}
		}

		insn, err := p.decoder.Decode(buf[consumed:], p.mode)
		if err != nil {
			return 0, nil, &DecodeFailure{Addr: p.target, Offset: consumed, Reason: err.Error()}
		}
		if insn.Length == 0 {
			return 0, nil, &DecodeFailure{Addr: p.target, Offset: consumed, Reason: "zero-length instruction"}
		}

		switch insn.Class {
		case ClassJumpRel, ClassCallRel:
			if insn.Operand == nil || insn.Operand.Kind != OperandRel32 {
				return 0, nil, &UnsafePrologue{Addr: p.target, Offset: consumed, Reason: "relative branch without rel32 operand"}
			}
			absTarget := int64(p.target) + int64(consumed) + int64(insn.Length) + insn.Operand.Displacement
			if absTarget >= int64(p.target) && absTarget < int64(p.target)+int64(jumpSize) {
				return 0, nil, &UnsafePrologue{Addr: p.target, Offset: consumed, Reason: "backward branch into overwritten prologue"}
			}

			stubFrom := trampBase + uintptr(len(tramp))
			var (
				entry    []byte
				buildErr error
			)
			if insn.Class == ClassJumpRel {
				entry, buildErr = p.buildJumpStub(stubFrom, uintptr(absTarget))
			} else {
				entry, buildErr = p.buildCallStub(stubFrom, uintptr(absTarget))
			}
			if buildErr != nil {
				return 0, nil, buildErr
			}
			tramp = append(tramp, entry...)

		case ClassUnsafe:
			return 0, nil, &UnsafePrologue{Addr: p.target, Offset: consumed, Reason: "unrelocatable instruction (short/conditional jump or RIP-relative operand)"}

		case ClassTerminator:
			return 0, nil, &UnsafePrologue{Addr: p.target, Offset: consumed, Reason: "terminator before jump size consumed"}

		default:
			tramp = append(tramp, insn.Raw...)
		}

		consumed += insn.Length
	}

	return consumed, tramp, nil
}

// Remove restores the target's original bytes and releases the trampoline
// and any auxiliary slots. Idempotent on an unapplied patch.
func (p *DetourPatch) Remove() error {
	if !p.applied {
		return nil
	}

	if err := p.process.WriteBytes(p.target, p.original); err != nil {
		return &IoFailure{Op: "restore", Addr: p.target, Reason: err}
	}
	if err := p.process.FlushICache(p.target, len(p.original)); err != nil {
		return &IoFailure{Op: "flush", Addr: p.target, Reason: err}
	}

	err := p.primary.Close()
	auxErr := p.auxPool.Close()
	if err == nil {
		err = auxErr
	}

	p.applied = false
	p.original = nil
	p.primary = nil
	return err
}

// IsApplied reports whether the detour is currently installed.
func (p *DetourPatch) IsApplied() bool { return p.applied }

// TrampolineAddress returns the address of the callable trampoline: calling
// it executes the original prologue and falls into the rest of the
// original function. It panics if the patch is not currently applied,
// matching spec.md's characterization of reading it while unapplied as a
// programming error rather than a recoverable one.
func (p *DetourPatch) TrampolineAddress() uintptr {
	if !p.applied || p.primary == nil {
		panic("detour: TrampolineAddress called on an unapplied DetourPatch")
	}
	return p.primary.Base()
}

// Close performs a best-effort Remove: any failure is logged and returned,
// the trampoline and auxiliary regions are released, and the patch is
// forced to the not-applied empty shape regardless.
func (p *DetourPatch) Close() error {
	runtime.SetFinalizer(p, nil)
	if !p.applied {
		return nil
	}
	err := p.Remove()
	if err != nil {
		dlog.CloseFailed("DetourPatch", p.target, err)
		if p.primary != nil {
			_ = p.primary.Close()
		}
		_ = p.auxPool.Close()
	}
	p.applied = false
	p.primary = nil
	p.original = nil
	return err
}

func (p *DetourPatch) finalize() {
	if !p.applied {
		return
	}
	if err := p.Remove(); err != nil {
		dlog.CloseFailed("DetourPatch", p.target, err)
	}
	p.applied = false
}
