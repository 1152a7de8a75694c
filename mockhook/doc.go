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
Package mockhook overrides functions and methods in the current test binary
with scripted mocks, built on top of [github.com/kirenrat/detour]'s
DetourPatch instead of a hand-rolled jump clobber.

It should be used only for unit testing and never in production.

It is recommended to disable inlining and compiler optimisations when
running tests that use this package:

	go test -gcflags="all=-N -l" [<path>]

Typical use:

	func foo() error {
	    if err := bar(baz); err != nil {
	        return err
	    }
	    return nil
	}

	func bar(baz int) error {
	    ...
	}

	func TestBarFailing(t *testing.T) {
	    Override(TestingContext(t), bar, Once, func(a int) error {
	        Expectation().CheckArgs(a)
	        return ErrInvalid
	    })(42)

	    err := foo()
	    if !errors.Is(err, ErrInvalid) {
	        t.Errorf("unexpected %v", err)
	    }
	    if err := ExpectationsWereMet(); err != nil {
	        t.Error(err)
	    }
	}
*/
package mockhook
