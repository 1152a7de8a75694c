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

// Canonical amd64 user-space bounds for the near-target allocator search.
// Linux, Darwin and Windows all currently limit the user-mode canonical
// range to 47 address bits; a page one byte below zero or above this
// ceiling is never a valid mmap/VirtualAlloc placement, so the search in
// Self.Alloc treats them as its outer walls instead of walking off into
// the non-canonical hole.
const (
	minAppAddress uintptr = 0x10000
	maxAppAddress uintptr = 1 << 47
)
