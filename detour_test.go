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
	"bytes"
	"testing"
)

// simplePrologue is `push ebp; mov ebp, esp; sub esp, 0x10`, 6 bytes: long
// enough to satisfy JUMP_SIZE on both amd64 (6) and 386 (5), and free of
// any branch instruction, matching S2 from the testable-properties scenarios.
var simplePrologue = []byte{0x55, 0x8B, 0xEC, 0x83, 0xEC, 0x10}

func paddedTarget(prologue []byte) []byte {
	buf := make([]byte, tramplCapacity)
	copy(buf, prologue)
	for i := len(prologue); i < len(buf); i++ {
		buf[i] = 0x90 // NOP padding, never executed by these tests
	}
	return buf
}

func TestDetourPatchApplyAndRemove(t *testing.T) {
	const target = 0x4000
	const detour = 0x9000
	mem := paddedTarget(simplePrologue)
	proc := newFakeProcess(target, mem)
	alloc := newFakeAllocator(0x100000)

	p := NewDetourPatch(proc, alloc, target, detour)
	if p.IsApplied() {
		t.Fatal("new patch reports applied")
	}

	if err := p.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !p.IsApplied() {
		t.Fatal("patch not applied after Apply")
	}

	entry, _ := proc.ReadBytes(target, jumpSize)
	if bytes.Equal(entry, simplePrologue[:jumpSize]) {
		t.Error("target entry bytes unchanged after Apply")
	}

	tramp := p.TrampolineAddress()
	if tramp == 0 {
		t.Fatal("zero trampoline address")
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if p.IsApplied() {
		t.Fatal("patch still applied after Remove")
	}
	if got, _ := proc.ReadBytes(target, len(simplePrologue)); !bytes.Equal(got, simplePrologue) {
		t.Errorf("target prologue after Remove = % X, want % X", got, simplePrologue)
	}
}

func TestDetourPatchTrampolineAddressPanicsUnapplied(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading TrampolineAddress on an unapplied patch")
		}
	}()

	p := NewDetourPatch(newFakeProcess(0x4000, paddedTarget(simplePrologue)), newFakeAllocator(0x100000), 0x4000, 0x9000)
	_ = p.TrampolineAddress()
}

func TestDetourPatchRefusesShortRet(t *testing.T) {
	prologue := append([]byte{0xC3}, simplePrologue...) // ret first, per S4
	proc := newFakeProcess(0x4000, paddedTarget(prologue))
	alloc := newFakeAllocator(0x100000)

	p := NewDetourPatch(proc, alloc, 0x4000, 0x9000)
	err := p.Apply()
	if err == nil {
		t.Fatal("expected UnsafePrologue, got nil")
	}
	if _, ok := err.(*UnsafePrologue); !ok {
		t.Fatalf("got %T, want *UnsafePrologue", err)
	}
	if p.IsApplied() {
		t.Fatal("patch reports applied after failed Apply")
	}
	if got, _ := proc.ReadBytes(0x4000, 1); got[0] != 0xC3 {
		t.Error("target bytes modified despite failed Apply")
	}
}

func TestDetourPatchRefusesLeadingInt3(t *testing.T) {
	prologue := append([]byte{0xCC}, simplePrologue...) // int3 first
	proc := newFakeProcess(0x4000, paddedTarget(prologue))
	alloc := newFakeAllocator(0x100000)

	p := NewDetourPatch(proc, alloc, 0x4000, 0x9000)
	err := p.Apply()
	if err == nil {
		t.Fatal("expected UnsafePrologue, got nil")
	}
	if _, ok := err.(*UnsafePrologue); !ok {
		t.Fatalf("got %T, want *UnsafePrologue", err)
	}
	if p.IsApplied() {
		t.Fatal("patch reports applied after failed Apply")
	}
	if got, _ := proc.ReadBytes(0x4000, 1); got[0] != 0xCC {
		t.Error("target bytes modified despite failed Apply")
	}
}

func TestDetourPatchCloseIsBestEffort(t *testing.T) {
	proc := newFakeProcess(0x4000, paddedTarget(simplePrologue))
	alloc := newFakeAllocator(0x100000)
	p := NewDetourPatch(proc, alloc, 0x4000, 0x9000)

	if err := p.Apply(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.IsApplied() {
		t.Fatal("patch reports applied after Close")
	}
	// Close is idempotent.
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDetourPatchRelocatesRelativeCall(t *testing.T) {
	// call rel32 to +0x10, per S3, followed by simplePrologue so the scan
	// has more than JUMP_SIZE bytes to consume either way.
	prologue := append([]byte{0xE8, 0x10, 0x00, 0x00, 0x00}, simplePrologue...)
	proc := newFakeProcess(0x4000, paddedTarget(prologue))
	alloc := newFakeAllocator(0x100000)

	p := NewDetourPatch(proc, alloc, 0x4000, 0x9000)
	if err := p.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !p.IsApplied() {
		t.Fatal("patch not applied")
	}
}
