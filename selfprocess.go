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
	"os"
	"unsafe"

	"github.com/kirenrat/detour/internal/dlog"
)

// calcBoundaries returns the page-aligned start and length of the page
// range spanning [addr, addr+size), the way the teacher's calcBoundaries
// does for the fixed-size prologue overwrite it performs.
func calcBoundaries(addr uintptr, size int) (uintptr, uintptr) {
	pageSize := uintptr(os.Getpagesize())
	areaStart := addr &^ (pageSize - 1)
	areaSize := (addr + uintptr(size)) - areaStart
	return areaStart, areaSize
}

// Self is the default [Process] and [ExecutableAllocator], operating on the
// calling process's own address space. It carries no state, so the same
// instance (or two throwaway ones) can satisfy both roles; [NewSelfProcess]
// and [NewSelfAllocator] are separate constructors purely so call sites read
// like the interface they're satisfying.
//
// This is the only Process implementation this package ships: process
// attachment and cross-process memory primitives are out of scope (see
// package doc). Self patches the binary it is linked into.
type Self struct{}

// NewSelfProcess returns a [Process] backed by the calling process's own
// address space.
func NewSelfProcess() *Self { return &Self{} }

// NewSelfAllocator returns an [ExecutableAllocator] backed by the calling
// process's own address space.
func NewSelfAllocator() *Self { return &Self{} }

// ReadBytes copies n bytes starting at addr out of the current process.
func (*Self) ReadBytes(addr uintptr, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	dst := make([]byte, n)
	copy(dst, src)
	return dst, nil
}

// WriteBytes writes data into the current process starting at addr. The
// destination is widened to RWX first (and left that way, the way the
// teacher's makeMemWritable leaves a hooked function's page — restoring it
// to read-execute-only after every write would be needless syscall churn
// for memory this package expects to keep patching), so this works for
// mocked functions living in the binary's normally-read-only text segment.
func (*Self) WriteBytes(addr uintptr, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := makeWritable(addr, len(data)); err != nil {
		return &IoFailure{Op: "write", Addr: addr, Reason: err}
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data))
	copy(dst, data)
	return nil
}

// FlushICache makes writes to the n bytes at addr visible to the
// instruction fetch path. See flushICache (platform-specific) for the
// x86/x86-64 rationale.
func (*Self) FlushICache(addr uintptr, n int) error {
	return flushICache(addr, n)
}

// SystemInfo reports the current process's page size and the address
// range the near-target allocator is allowed to search.
func (*Self) SystemInfo() (SystemInfo, error) {
	return systemInfo()
}

// Alloc reserves at least size bytes of RWX memory. With hint == nil the
// placement is unconstrained; with hint != nil the region's base is
// searched for within maxDisplacement of hint.Target, alternating above and
// below in page-sized strides the way HadesMem's AllocTrampolineNear does.
func (s *Self) Alloc(size int, hint *AllocHint) (ExecutableRegion, error) {
	info, err := s.SystemInfo()
	if err != nil {
		return nil, &AllocationFailure{Reason: err.Error()}
	}
	pageSize := uintptr(info.PageSize)
	if hint == nil {
		base, err := allocExecutable(0, size)
		if err != nil {
			return nil, &AllocationFailure{Reason: err.Error()}
		}
		return &selfRegion{base: base, size: size}, nil
	}

	target := hint.Target
	searchBeg := info.MinAppAddress
	if target > maxDisplacement && target-maxDisplacement > searchBeg {
		searchBeg = target - maxDisplacement
	}
	searchEnd := info.MaxAppAddress
	if target+maxDisplacement < searchEnd {
		searchEnd = target + maxDisplacement
	}

	for index := uintptr(0); target+index < searchEnd || (index < target && target-index > searchBeg); index += pageSize {
		if higher := target + index; higher < searchEnd {
			if base, err := allocExecutable(higher, size); err == nil {
				return &selfRegion{base: base, size: size}, nil
			} else {
				dlog.AllocRetry(higher, err)
			}
		}
		if index == 0 || index >= target {
			continue
		}
		if lower := target - index; lower > searchBeg {
			if base, err := allocExecutable(lower, size); err == nil {
				return &selfRegion{base: base, size: size}, nil
			} else {
				dlog.AllocRetry(lower, err)
			}
		}
	}

	return nil, &AllocationFailure{Target: target, Reason: "no_reachable_page"}
}

// selfRegion is the [ExecutableRegion] backing Self's allocations.
type selfRegion struct {
	base uintptr
	size int
}

func (r *selfRegion) Base() uintptr { return r.base }
func (r *selfRegion) Len() int      { return r.size }

func (r *selfRegion) Write(off int, data []byte) error {
	if off < 0 || off+len(data) > r.size {
		return &IoFailure{Op: "write region", Addr: r.base + uintptr(off), Reason: errRegionOverflow}
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(r.base+uintptr(off))), len(data))
	copy(dst, data)
	return nil
}

func (r *selfRegion) Close() error {
	if r.base == 0 {
		return nil
	}
	err := freeExecutable(r.base, r.size)
	r.base = 0
	return err
}

var errRegionOverflow = regionOverflowError{}

type regionOverflowError struct{}

func (regionOverflowError) Error() string { return "write exceeds region bounds" }
