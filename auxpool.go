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

import "errors"

// auxSlotPool hands out 8-byte absolute-pointer slots (see jump_amd64.go)
// out of a shared page instead of dedicating a whole [ExecutableRegion] to
// each one: a single page fits hundreds of slots, and the near-target
// allocator search is the expensive part of standing one up. This mirrors
// the choice a from-scratch amd64 detour library has to make once it
// outgrows a single indirect stub per hook site.
type auxSlotPool struct {
	alloc   ExecutableAllocator
	regions []ExecutableRegion
	used    int
}

const auxPoolPageSlots = 128

func newAuxSlotPool(alloc ExecutableAllocator) *auxSlotPool {
	return &auxSlotPool{alloc: alloc}
}

// current returns the pool's most recently allocated region, the only one
// Reserve ever writes fresh slots into; earlier regions are full or out of
// reach and are kept solely so Close can release them.
func (p *auxSlotPool) current() ExecutableRegion {
	if len(p.regions) == 0 {
		return nil
	}
	return p.regions[len(p.regions)-1]
}

// Reserve returns the address of a free slot within maxDisplacement of
// target and writes value into it, growing the pool with a fresh
// near-target page when the current one has none left or none in reach. A
// patch may need slots near several sites more than 2^31 bytes apart (the
// trampoline and the target, say); Reserve keeps every region it has ever
// allocated so Close can release all of them, not just the last.
func (p *auxSlotPool) Reserve(target uintptr, value []byte) (uintptr, error) {
	if !needsAuxSlots {
		return 0, nil
	}

	cur := p.current()
	if cur == nil || p.used >= auxPoolPageSlots || !withinDisplacement(cur.Base(), target) {
		region, err := p.alloc.Alloc(auxPoolPageSlots*auxSlotSize, &AllocHint{Target: target})
		if err != nil {
			return 0, err
		}
		p.regions = append(p.regions, region)
		cur = region
		p.used = 0
	}

	off := p.used * auxSlotSize
	if err := cur.Write(off, value); err != nil {
		return 0, err
	}
	addr := cur.Base() + uintptr(off)
	p.used++
	return addr, nil
}

// Close releases every region the pool has ever allocated, joining any
// errors so one failed release doesn't stop the rest from being attempted.
func (p *auxSlotPool) Close() error {
	var err error
	for _, region := range p.regions {
		if cerr := region.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	p.regions = nil
	p.used = 0
	return err
}
