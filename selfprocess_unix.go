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

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package detour

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// makeWritable widens the page range covering [addr, addr+size) to
// read-write-execute, generalizing the teacher's makeMemWritable from a
// fixed jmpInstrLength span to an arbitrary one.
func makeWritable(addr uintptr, size int) error {
	start, sz := calcBoundaries(addr, size)
	page := unsafe.Slice((*byte)(unsafe.Pointer(start)), sz)
	return unix.Mprotect(page, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC)
}

// flushICache is a no-op on x86/x86-64: unlike ARM, the architecture
// guarantees instruction-fetch coherency with the data-cache view of
// self-modifying code (subject to the usual serializing-instruction
// caveats the CPU itself handles on the next fetch), so there is no
// equivalent of the teacher's override_arm64.go __builtin___clear_cache
// call to make here. The call is kept in the Process interface so a
// future ARM backend has somewhere to put one.
func flushICache(addr uintptr, n int) error {
	return nil
}

func systemInfo() (SystemInfo, error) {
	return SystemInfo{
		PageSize:      os.Getpagesize(),
		MinAppAddress: minAppAddress,
		MaxAppAddress: maxAppAddress,
	}, nil
}

// allocExecutable maps size bytes (rounded up to a whole page) of RWX
// anonymous memory. When addrHint is non-zero it is passed to mmap as a
// placement hint without MAP_FIXED, then verified: mmap is free to ignore a
// hint entirely, so a hinted call that lands outside the caller's
// displacement window is treated as a failure and unmapped, letting the
// near-target search in Self.Alloc try the next candidate page. The
// higher-level unix.Mmap wrapper has no way to pass a placement hint, so
// this goes straight to the mmap(2) syscall the way other trampoline
// allocators in the wild do when they need an address hint.
func allocExecutable(addrHint uintptr, size int) (uintptr, error) {
	pageSize := os.Getpagesize()
	length := (size + pageSize - 1) &^ (pageSize - 1)

	prot := uintptr(unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC)
	flags := uintptr(unix.MAP_PRIVATE | unix.MAP_ANON)

	base, _, errno := unix.Syscall6(unix.SYS_MMAP, addrHint, uintptr(length), prot, flags, ^uintptr(0), 0)
	if errno != 0 {
		return 0, errno
	}

	if addrHint != 0 && !withinDisplacement(base, addrHint) {
		_, _, _ = unix.Syscall(unix.SYS_MUNMAP, base, uintptr(length), 0)
		return 0, errNotReachable
	}

	return base, nil
}

func freeExecutable(addr uintptr, size int) error {
	pageSize := os.Getpagesize()
	length := (size + pageSize - 1) &^ (pageSize - 1)
	return unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(addr)), length))
}

var errNotReachable = notReachableError{}

type notReachableError struct{}

func (notReachableError) Error() string { return "mapped page outside displacement window" }
