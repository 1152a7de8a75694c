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

//go:build 386

package detour

import "encoding/binary"

// On 386 every address in the process fits a signed 32-bit displacement, so
// the direct 5-byte relative form the teacher's own amd64 override uses is
// always reachable here; no auxiliary pointer slot is needed.
const (
	jumpSize      = 5
	callSize      = 5
	auxSlotSize   = 0
	needsAuxSlots = false
	nativeMode    = Mode32
)

const (
	opJmpRel32  = 0xE9
	opCallRel32 = 0xE8
)

// buildAuxSlot is a no-op on this arch: direct rel32 stubs never need an
// auxiliary pointer slot.
func buildAuxSlot(target uintptr) []byte { return nil }

// synthesizeJump returns the jumpSize bytes to place at entryAddr, encoding
// a direct `JMP rel32` to target. auxAddr is ignored on this arch; aux is
// always nil.
func synthesizeJump(entryAddr, auxAddr, target uintptr) (entry, aux []byte, err error) {
	return synthesizeRel(entryAddr, target, opJmpRel32)
}

func synthesizeCall(entryAddr, auxAddr, target uintptr) (entry, aux []byte, err error) {
	return synthesizeRel(entryAddr, target, opCallRel32)
}

func synthesizeRel(entryAddr, target uintptr, opcode byte) ([]byte, []byte, error) {
	rel := int64(target) - int64(entryAddr+jumpSize)
	if rel > (1<<31-1) || rel < -(1<<31) {
		return nil, nil, &AllocationFailure{Target: target, Reason: "target outside rel32 reach"}
	}
	entry := make([]byte, jumpSize)
	entry[0] = opcode
	binary.LittleEndian.PutUint32(entry[1:5], uint32(int32(rel)))
	return entry, nil, nil
}
