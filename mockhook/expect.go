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

package mockhook

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"testing"
	"unsafe"

	"github.com/kirenrat/detour"
)

// Expect holds one entry in the override chain: the function it replaces,
// how many calls are expected, and the arguments seen so far.
type Expect struct {
	ctx      context.Context
	expCount int
	actCount int
	mockAddr unsafe.Pointer
	orgAddr  unsafe.Pointer
	args     []reflect.Value
	orgName  string
	patch    *detour.DetourPatch
}

var chain []*Expect

// Expectation can only be called from inside a mock function; it looks up
// the currently-active override by the mock's own entry PC, verifies it was
// called in the order [Override] established, and — if this was the
// override's last expected call — removes the detour and activates the next
// one in the chain.
func Expectation() *Expect {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		panic("mockhook: cannot identify calling function")
	}
	entry := runtime.FuncForPC(pc).Entry()

	var (
		expect *Expect
		order  int
	)
	for i, e := range chain {
		if uintptr(e.mockAddr) == entry {
			if e.expCount == Always || numLeadingAlways() == i {
				expect, order = e, i
				break
			}
			panic("mockhook: unexpected function call")
		}
	}
	if expect == nil {
		panic("mockhook: unexpected function call - not from an active mock")
	}

	expect.actCount++
	if expect.actCount == expect.expCount && expect.expCount != Unlimited && expect.expCount != Always {
		if err := expect.patch.Close(); err != nil {
			panic(fmt.Sprintf("mockhook: failed to restore %s: %v", expect.orgName, err))
		}
		chain = slices.Delete(chain, order, order+1)
		activateNextInChain()
	}

	return expect
}

func numLeadingAlways() int {
	for i, e := range chain {
		if e.expCount != Always {
			return i
		}
	}
	return len(chain)
}

func activateNextInChain() {
	next := numLeadingAlways()
	if next >= len(chain) {
		return
	}
	e := chain[next]
	e.patch = detour.NewDetourPatch(
		detour.NewSelfProcess(),
		detour.NewSelfAllocator(),
		uintptr(e.orgAddr),
		uintptr(e.mockAddr),
	)
	if err := e.patch.Apply(); err != nil {
		panic(fmt.Sprintf("mockhook: failed to override %s: %v", e.orgName, err))
	}
}

// RunNumber returns the zero-based sequence number of the current call
// among this override's expected calls.
func (e Expect) RunNumber() int {
	return e.actCount - 1
}

// Expect records the argument values expected on the next call, checked by
// a subsequent call to [Expect.CheckArgs].
func (e *Expect) Expect(args ...any) *Expect {
	expArgs := make([]reflect.Value, len(args))
	for i := range args {
		expArgs[i] = reflect.ValueOf(args[i])
	}
	e.args = expArgs
	return e
}

// CheckArgs compares args against the values previously set with
// [Expect.Expect] (or, when using the generic [Override] form, against the
// call recorded at override time), reporting mismatches via the embedded
// [testing.T].
func (e Expect) CheckArgs(args ...any) {
	t := e.Testing()
	t.Helper()

	if len(args) != len(e.args) {
		if len(e.args) == 0 {
			t.Errorf("no expected args set")
		} else {
			t.Errorf("actual arg count %d doesn't match expected %d", len(args), len(e.args))
		}
		return
	}

	for i, a := range args {
		actualArg := reflect.ValueOf(a)
		expectedArg := e.args[i]
		if a == nil {
			if expectedArg.IsValid() && (!isNillable(expectedArg) || !expectedArg.IsNil()) {
				if e.expCount > 1 || e.expCount == Unlimited || e.expCount == Always {
					t.Errorf("arg %d on the run %d actual value is nil while non-nil is expected", i, e.actCount-1)
				} else {
					t.Errorf("arg %d actual value is nil while non-nil is expected", i)
				}
				return
			}
			continue
		}
		res, msg := deepEqual(actualArg, expectedArg)
		if !res {
			if e.expCount > 1 || e.expCount == Unlimited || e.expCount == Always {
				t.Errorf("arg %d on the run %d: %s", i, e.actCount-1, msg)
			} else {
				t.Errorf("arg %d: %s", i, msg)
			}
			return
		}
	}
}

// Context returns the context passed to [Override].
func (e Expect) Context() context.Context { return e.ctx }

// Testing returns the [testing.T] embedded in the context passed to
// [Override].
func (e Expect) Testing() *testing.T { return Testing(e.ctx) }
