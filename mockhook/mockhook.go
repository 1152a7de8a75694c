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
	"errors"
	"fmt"
	"reflect"
	"runtime"

	"github.com/kirenrat/detour"
)

const (
	Once      = 1
	Unlimited = -1
	Always    = -2

	minOccurrenceCount = Always
)

// ErrExpectationsNotMet is joined into the error [ExpectationsWereMet]
// returns when one or more overrides were not called the expected number
// of times.
var ErrExpectationsNotMet = errors.New("mockhook: expectations were not met")

// Override redirects org to mock using a [detour.DetourPatch] over the
// current process, and returns a same-signature function that records the
// arguments of the call that sets up the expectation (mirroring the
// teacher's compile-time-checked argument capture). count must be a
// positive number of expected calls, or [Unlimited], or [Always].
//
// Only the first override for a given org address (or the first override in
// a chain of overrides for distinct functions) is installed immediately;
// subsequent Override calls queue behind it and are installed as
// [Expectation] retires the ones ahead of them, so call order in test code
// must match call order at runtime.
func Override[T any](ctx context.Context, org T, count int, mock T) T {
	if reflect.ValueOf(org).Kind() != reflect.Func || reflect.ValueOf(mock).Kind() != reflect.Func {
		panic("mockhook: Override() can only be called for a function or method")
	}
	if len(chain) > 0 && chain[len(chain)-1].expCount == Unlimited {
		panic("mockhook: previous override in chain has unlimited repetitions, so this override is unreachable")
	}
	if count < minOccurrenceCount || count == 0 {
		panic("mockhook: invalid count, must be positive or Unlimited/Always")
	}
	Testing(ctx) // panics on a malformed context, matching this package's other T-lookups

	orgPtr := reflect.ValueOf(org).UnsafePointer()
	mockPtr := reflect.ValueOf(mock).UnsafePointer()

	for _, e := range chain {
		if e.orgAddr == orgPtr {
			if e.expCount == Always {
				panic("mockhook: cannot override a function previously overridden with Always count")
			} else if count == Always {
				panic("mockhook: cannot Always-override a function that was previously overridden")
			}
		}
	}

	entry := &Expect{
		ctx:      ctx,
		expCount: count,
		mockAddr: mockPtr,
		orgAddr:  orgPtr,
		orgName:  runtime.FuncForPC(uintptr(orgPtr)).Name(),
	}

	typ := reflect.ValueOf(org).Type()
	captured := reflect.MakeFunc(typ, func(args []reflect.Value) []reflect.Value {
		entry.args = args
		ret := make([]reflect.Value, typ.NumOut())
		for i := range ret {
			ret[i] = reflect.Zero(typ.Out(i))
		}
		return ret
	})

	var argSetter T
	reflect.ValueOf(&argSetter).Elem().Set(captured)

	if count == Always || len(chain) == numLeadingAlways() {
		entry.patch = detour.NewDetourPatch(detour.NewSelfProcess(), detour.NewSelfAllocator(), uintptr(orgPtr), uintptr(mockPtr))
		if err := entry.patch.Apply(); err != nil {
			panic(fmt.Sprintf("mockhook: failed to override %s: %v", entry.orgName, err))
		}
	}
	chain = append(chain, entry)

	return argSetter
}

// ExpectationsWereMet restores every function still overridden and reports
// an error joining one message per override that was not called the
// expected number of times. It must be called at the end of a test case
// that used [Override], both to check expectations and to restore original
// function bodies.
func ExpectationsWereMet() error {
	defer func() { chain = nil }()

	var err error
	for i, e := range chain {
		if e.patch != nil {
			if cerr := e.patch.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("restoring %s: %w", e.orgName, cerr))
			}
		}
		if e.expCount == Unlimited && i == len(chain)-1 || e.expCount == Always {
			continue
		}
		if e.actCount == 0 {
			err = errors.Join(err, fmt.Errorf("function %s was not called", e.orgName))
		} else if e.actCount != e.expCount {
			err = errors.Join(err, fmt.Errorf("function %s was called %d time(s) instead of %d", e.orgName, e.actCount, e.expCount))
		}
	}
	if err != nil {
		err = errors.Join(ErrExpectationsNotMet, err)
	}
	return err
}
