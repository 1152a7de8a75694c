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

func TestRawPatchRoundTrip(t *testing.T) {
	const base = 0x2000
	mem := []byte{0x00, 0x11, 0x22, 0x33, 0x44}
	proc := newFakeProcess(base, mem)

	p := NewRawPatch(proc, base, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE})

	if p.IsApplied() {
		t.Fatal("new patch reports applied")
	}
	if err := p.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !p.IsApplied() {
		t.Fatal("patch not applied after Apply")
	}
	if got, _ := proc.ReadBytes(base, 5); !bytes.Equal(got, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}) {
		t.Errorf("target bytes after apply = % X", got)
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if p.IsApplied() {
		t.Fatal("patch still applied after Remove")
	}
	if got, _ := proc.ReadBytes(base, 5); !bytes.Equal(got, []byte{0x00, 0x11, 0x22, 0x33, 0x44}) {
		t.Errorf("target bytes after remove = % X", got)
	}
}

func TestRawPatchApplyIdempotent(t *testing.T) {
	const base = 0x2000
	mem := []byte{0x00, 0x11}
	proc := newFakeProcess(base, mem)
	p := NewRawPatch(proc, base, []byte{0xAA, 0xBB})

	if err := p.Apply(); err != nil {
		t.Fatal(err)
	}
	if err := p.Apply(); err != nil {
		t.Fatalf("second Apply should be a no-op, got %v", err)
	}
}

func TestRawPatchRemoveIdempotent(t *testing.T) {
	const base = 0x2000
	proc := newFakeProcess(base, []byte{0x00, 0x11})
	p := NewRawPatch(proc, base, []byte{0xAA, 0xBB})

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove on unapplied patch should be a no-op, got %v", err)
	}
}

func TestRawPatchCloseRestores(t *testing.T) {
	const base = 0x2000
	mem := []byte{0x00, 0x11}
	proc := newFakeProcess(base, mem)
	p := NewRawPatch(proc, base, []byte{0xAA, 0xBB})

	if err := p.Apply(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got, _ := proc.ReadBytes(base, 2); !bytes.Equal(got, []byte{0x00, 0x11}) {
		t.Errorf("target bytes after Close = % X", got)
	}
	if p.IsApplied() {
		t.Fatal("patch reports applied after Close")
	}
}
