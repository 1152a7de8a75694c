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

//go:build amd64

package detour

import "encoding/binary"

// jumpSize is the width of the indirect stub this package writes into a
// patched function's entry point. amd64 targets and detour destinations
// routinely land further apart than a signed 32-bit displacement reaches,
// so unlike the teacher's own amd64 override (a direct 5-byte rel32 JMP,
// safe only because it targets a stub the test binary itself just linked
// in), a general-purpose detour needs the indirect FF/25 form: a 6-byte
// `JMP [rip+disp32]` at the hook site, reading an 8-byte absolute pointer
// out of an auxSlotPool slot elsewhere within reach.
const (
	jumpSize      = 6
	callSize      = 6
	auxSlotSize   = 8
	needsAuxSlots = true
	nativeMode    = Mode64
)

// buildAuxSlot returns the auxSlotSize bytes an auxSlotPool slot must hold
// for a stub targeting target: just the absolute address, little-endian.
// Unlike the entry stub, this never depends on where the slot ends up, so
// it can be computed before a slot is reserved.
func buildAuxSlot(target uintptr) []byte {
	aux := make([]byte, auxSlotSize)
	binary.LittleEndian.PutUint64(aux, uint64(target))
	return aux
}

// synthesizeJump returns the jumpSize bytes to place at entryAddr, encoding
// an unconditional jump through the auxSlotPool slot at auxAddr:
// `FF 25 <disp32>` where disp32 = auxAddr-(entryAddr+jumpSize). auxAddr must
// already hold target's address (see buildAuxSlot).
func synthesizeJump(entryAddr, auxAddr, target uintptr) (entry, aux []byte, err error) {
	return synthesizeIndirect(entryAddr, auxAddr, target, 0x25)
}

// synthesizeCall is the CALL counterpart, encoding `FF 15 <disp32>`.
func synthesizeCall(entryAddr, auxAddr, target uintptr) (entry, aux []byte, err error) {
	return synthesizeIndirect(entryAddr, auxAddr, target, 0x15)
}

func synthesizeIndirect(entryAddr, auxAddr, target uintptr, modrm byte) ([]byte, []byte, error) {
	disp := int64(auxAddr) - int64(entryAddr+jumpSize)
	if disp > (1<<31-1) || disp < -(1<<31) {
		return nil, nil, &AllocationFailure{Target: auxAddr, Reason: "aux slot outside rip-relative reach"}
	}

	entry := make([]byte, jumpSize)
	entry[0] = 0xFF
	entry[1] = modrm
	binary.LittleEndian.PutUint32(entry[2:6], uint32(int32(disp)))

	return entry, buildAuxSlot(target), nil
}
