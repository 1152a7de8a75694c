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
	"fmt"
	"reflect"
)

// mismatch renders the "actual differs from expected" message deepEqual's
// scalar and leaf cases share, so a caller walking into a compound value
// never has to fill in a blank message a nested call declined to produce.
func mismatch(actual, expected reflect.Value) string {
	return fmt.Sprintf("actual value '%v' differs from expected '%v'", actual, expected)
}

// deepEqual compares two reflect.Values the way reflect.Value.Equal
// declines to: it walks into pointers, slices, maps and structs, and
// reports which nested piece differed instead of just yes/no. Every
// mismatch branch produces its own message directly, so callers walking a
// compound type (CheckArgs, or deepEqual recursing into a field/element)
// never need to backfill an empty one.
func deepEqual(actual, expected reflect.Value) (bool, string) {
	if actual.Kind() == reflect.Interface {
		actual = actual.Elem()
	}
	if expected.Kind() == reflect.Interface {
		expected = expected.Elem()
	}

	if !actual.IsValid() || !expected.IsValid() {
		return actual.IsValid() == expected.IsValid(), "cannot compare invalid value with valid one"
	}

	if actual.Kind() != expected.Kind() || actual.Type() != expected.Type() {
		return false, fmt.Sprintf("actual type '%s' differs from expected '%s'", actual.Type(), expected.Type())
	}

	switch actual.Kind() {
	case reflect.Bool:
		if actual.Bool() == expected.Bool() {
			return true, ""
		}
		return false, mismatch(actual, expected)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if actual.Int() == expected.Int() {
			return true, ""
		}
		return false, mismatch(actual, expected)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if actual.Uint() == expected.Uint() {
			return true, ""
		}
		return false, mismatch(actual, expected)
	case reflect.Float32, reflect.Float64:
		if actual.Float() == expected.Float() {
			return true, ""
		}
		return false, mismatch(actual, expected)
	case reflect.Complex64, reflect.Complex128:
		if actual.Complex() == expected.Complex() {
			return true, ""
		}
		return false, mismatch(actual, expected)
	case reflect.String:
		if actual.String() == expected.String() {
			return true, ""
		}
		return false, mismatch(actual, expected)
	case reflect.Chan:
		if actual.Pointer() == expected.Pointer() {
			return true, ""
		}
		return false, mismatch(actual, expected)
	case reflect.Pointer, reflect.UnsafePointer:
		if actual.Pointer() == expected.Pointer() {
			return true, ""
		}
		if res, msg := deepEqual(reflect.Indirect(actual), reflect.Indirect(expected)); !res {
			return false, msg
		}
		return true, ""
	case reflect.Array:
		n := actual.Len()
		for i := 0; i < n; i++ {
			if res, msg := deepEqual(actual.Index(i), expected.Index(i)); !res {
				return false, fmt.Sprintf("array elem %d: %s", i, msg)
			}
		}
		return true, ""
	case reflect.Struct:
		for i := 0; i < actual.NumField(); i++ {
			if res, msg := deepEqual(actual.Field(i), expected.Field(i)); !res {
				return false, fmt.Sprintf("struct field '%s': %s", actual.Type().Field(i).Name, msg)
			}
		}
		return true, ""
	case reflect.Map:
		if actual.Pointer() == expected.Pointer() {
			return true, ""
		}
		keys := actual.MapKeys()
		if len(keys) != len(expected.MapKeys()) {
			return false, "map lengths differ"
		}
		for _, k := range keys {
			if res, msg := deepEqual(actual.MapIndex(k), expected.MapIndex(k)); !res {
				return false, fmt.Sprintf("map value for key '%v': %s", k, msg)
			}
		}
		return true, ""
	case reflect.Func:
		if actual.Pointer() == expected.Pointer() {
			return true, ""
		}
		return false, mismatch(actual, expected)
	case reflect.Slice:
		if actual.Pointer() == expected.Pointer() {
			return true, ""
		}
		n := actual.Len()
		if n != expected.Len() {
			return false, "slice lengths differ"
		}
		for i := 0; i < n; i++ {
			if res, msg := deepEqual(actual.Index(i), expected.Index(i)); !res {
				return false, fmt.Sprintf("slice elem %d: %s", i, msg)
			}
		}
		return true, ""
	}
	return false, "invalid variable Kind"
}

func isNillable(val reflect.Value) bool {
	switch val.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Pointer, reflect.UnsafePointer, reflect.Interface, reflect.Slice:
		return true
	default:
		return false
	}
}
