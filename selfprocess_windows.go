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

//go:build windows

package detour

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// makeWritable widens the pages covering [addr, addr+size) to
// execute-read-write, the way the teacher's makeMemRX does for the fixed-size
// prologue overwrite it performs.
func makeWritable(addr uintptr, size int) error {
	var oldPerms uint32
	return windows.VirtualProtect(addr, uintptr(size), windows.PAGE_EXECUTE_READWRITE, &oldPerms)
}

// flushICache asks the OS to make the n bytes at addr visible to instruction
// fetch. x86/x86-64 doesn't need this for coherency (see the unix build's
// flushICache), but Windows exposes FlushInstructionCache cheaply and calling
// it costs nothing on architectures where it is a no-op, so this backend
// calls it unconditionally rather than special-casing it away.
func flushICache(addr uintptr, n int) error {
	return windows.FlushInstructionCache(windows.CurrentProcess(), unsafe.Pointer(addr), uintptr(n))
}

func systemInfo() (SystemInfo, error) {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)
	return SystemInfo{
		PageSize:      int(info.PageSize),
		MinAppAddress: uintptr(info.MinimumApplicationAddress),
		MaxAppAddress: uintptr(info.MaximumApplicationAddress),
	}, nil
}

// allocExecutable reserves and commits size bytes of RWX memory. When
// addrHint is non-zero it is passed to VirtualAlloc as the requested address;
// VirtualAlloc either honours it exactly or fails outright (unlike mmap it
// never silently relocates), so a non-zero return here always satisfies the
// hint and the caller in Self.Alloc only needs to try the next candidate on
// error.
func allocExecutable(addrHint uintptr, size int) (uintptr, error) {
	addr, err := windows.VirtualAlloc(addrHint, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return 0, err
	}
	return addr, nil
}

func freeExecutable(addr uintptr, size int) error {
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
