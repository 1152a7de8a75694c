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
	"reflect"
	"testing"
)

func TestDeepEqualScalarsAndSlices(t *testing.T) {
	if ok, _ := deepEqual(reflect.ValueOf(42), reflect.ValueOf(42)); !ok {
		t.Error("equal ints reported unequal")
	}
	if ok, _ := deepEqual(reflect.ValueOf(42), reflect.ValueOf(43)); ok {
		t.Error("unequal ints reported equal")
	}
	if ok, _ := deepEqual(reflect.ValueOf([]int{1, 2, 3}), reflect.ValueOf([]int{1, 2, 3})); !ok {
		t.Error("equal slices reported unequal")
	}
	if ok, _ := deepEqual(reflect.ValueOf([]int{1, 2, 3}), reflect.ValueOf([]int{1, 2, 4})); ok {
		t.Error("unequal slices reported equal")
	}
}

func TestDeepEqualStructs(t *testing.T) {
	type point struct{ X, Y int }
	if ok, _ := deepEqual(reflect.ValueOf(point{1, 2}), reflect.ValueOf(point{1, 2})); !ok {
		t.Error("equal structs reported unequal")
	}
	ok, msg := deepEqual(reflect.ValueOf(point{1, 2}), reflect.ValueOf(point{1, 3}))
	if ok {
		t.Error("unequal structs reported equal")
	}
	if msg == "" {
		t.Error("expected a mismatch message naming the differing field")
	}
}

func TestDeepEqualTypeMismatch(t *testing.T) {
	ok, msg := deepEqual(reflect.ValueOf(int32(1)), reflect.ValueOf(int64(1)))
	if ok {
		t.Error("different types reported equal")
	}
	if msg == "" {
		t.Error("expected a type-mismatch message")
	}
}
