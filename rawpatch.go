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

// RawPatch applies and reverts an arbitrary byte overwrite at a fixed
// address, remembering the bytes it clobbered so Remove can restore them.
// It performs no instruction decoding or jump synthesis — that is
// [DetourPatch]'s job; RawPatch generalizes the teacher's fixed 5/4-byte
// jump-clobber pattern (override_amd64.go/override_arm64.go) to an
// arbitrary caller-supplied span, the way HadesMem's PatchRaw is a plain
// ReadVector/WriteVector/FlushInstructionCache sandwich with no assembler
// involved at all.
//
// A RawPatch's pointer identity is load-bearing: never copy a RawPatch by
// value, only ever hold and pass *RawPatch. Zero value is not usable;
// construct with [NewRawPatch].
type RawPatch struct {
	noCopy

	process     Process
	target      uintptr
	replacement []byte

	original []byte
	applied  bool
}

// NewRawPatch constructs an unapplied raw patch that will overwrite
// len(replacement) bytes at target with replacement's contents once
// Apply is called.
func NewRawPatch(process Process, target uintptr, replacement []byte) *RawPatch {
	p := &RawPatch{
		process:     process,
		target:      target,
		replacement: append([]byte(nil), replacement...),
	}
	runtime.SetFinalizer(p, (*RawPatch).finalize)
	return p
}

// Apply captures the current bytes at target, overwrites them with the
// patch's replacement, and flushes the instruction cache over the region.
// A second Apply on an already-applied patch is a no-op.
func (p *RawPatch) Apply() error {
	if p.applied {
		return nil
	}

	original, err := p.process.ReadBytes(p.target, len(p.replacement))
	if err != nil {
		return &IoFailure{Op: "read", Addr: p.target, Reason: err}
	}

	if err := p.process.WriteBytes(p.target, p.replacement); err != nil {
		return &IoFailure{Op: "write", Addr: p.target, Reason: err}
	}

	if err := p.process.FlushICache(p.target, len(p.replacement)); err != nil {
		return &IoFailure{Op: "flush", Addr: p.target, Reason: err}
	}

	p.original = original
	p.applied = true
	return nil
}

// Remove restores the bytes captured by Apply. A Remove on an unapplied
// patch is a no-op.
func (p *RawPatch) Remove() error {
	if !p.applied {
		return nil
	}

	if err := p.process.WriteBytes(p.target, p.original); err != nil {
		return &IoFailure{Op: "restore", Addr: p.target, Reason: err}
	}
	if err := p.process.FlushICache(p.target, len(p.original)); err != nil {
		return &IoFailure{Op: "flush", Addr: p.target, Reason: err}
	}

	p.applied = false
	p.original = nil
	return nil
}

// IsApplied reports whether the patch is currently installed.
func (p *RawPatch) IsApplied() bool { return p.applied }

// Close performs a best-effort Remove: any failure is logged and returned,
// and the patch is forced to the not-applied empty shape regardless, so a
// caller that drops a patch without checking Close's error still cannot
// leave it in a state a later finalizer pass would double-restore.
func (p *RawPatch) Close() error {
	runtime.SetFinalizer(p, nil)
	if !p.applied {
		return nil
	}
	err := p.Remove()
	if err != nil {
		dlog.CloseFailed("RawPatch", p.target, err)
	}
	p.applied = false
	p.original = nil
	return err
}

func (p *RawPatch) finalize() {
	if !p.applied {
		return
	}
	if err := p.Remove(); err != nil {
		dlog.CloseFailed("RawPatch", p.target, err)
	}
	p.applied = false
}
