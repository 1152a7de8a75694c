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

// On a 32-bit address space every reachable page is already within a rel32
// jump of any other, so the near-target search in Self.Alloc rarely has to
// walk far before it finds one; these bounds just keep it from wrapping
// past the ends of user space.
const (
	minAppAddress uintptr = 0x10000
	maxAppAddress uintptr = 0xC0000000
)
