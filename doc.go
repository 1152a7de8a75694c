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

//go:build ((linux || darwin) && (amd64 || 386)) || (windows && (amd64 || 386))

/*
Package detour installs and reverses in-place code patches in a live
process's own address space: raw byte overwrites ([RawPatch]) and relocatable
inline detours ([DetourPatch]) that redirect a function's entry point to
replacement code while preserving a callable trampoline back to the
original.

# Scope

This package modifies the executing binary at runtime, so it is OS- and
CPU-architecture-specific.

Supported combinations:
  - Linux / amd64, 386
  - Windows / amd64, 386
  - macOS / amd64

It operates exclusively on the calling process's own address space via
[NewSelfProcess] and [NewSelfAllocator]. It never attaches to, injects into, or
otherwise touches a different process — that is explicitly out of scope; see
[DetourPatch] and [RawPatch] for the primitives, and the mockhook
subpackage for a ready-made function-mocking layer built on top of them.

# Safety

Both patch types assume the target's threads are not concurrently executing
the bytes being overwritten. Nothing in this package suspends or freezes
other goroutines or OS threads; callers who need that guarantee must arrange
it externally. See [DetourPatch.Apply] for the exact ordering guarantees
that are provided.

Typical use, redirecting a function to a replacement and calling through to
the original from within it:

	target := reflect.ValueOf(original).Pointer()
	detourAddr := reflect.ValueOf(replacement).Pointer()

	patch := detour.NewDetourPatch(detour.NewSelfProcess(), detour.NewSelfAllocator(), target, detourAddr)
	if err := patch.Apply(); err != nil {
	    log.Fatal(err)
	}
	defer patch.Close()

	orig := *(*func(int) int)(unsafe.Pointer(&struct{ uintptr }{patch.TrampolineAddress()}))
	_ = orig(42) // executes the original prologue, then falls into the rest of original
*/
package detour
