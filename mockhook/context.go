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
	"testing"
)

type contextKey int

const testingKey = contextKey(1)

// TestingContext returns a context with the given [testing.T] embedded, for
// passing to [Override].
func TestingContext(t *testing.T) context.Context {
	return context.WithValue(context.Background(), testingKey, t)
}

// Testing returns the [testing.T] embedded in ctx by [TestingContext]. It
// panics if ctx was not built that way.
func Testing(ctx context.Context) *testing.T {
	return ctx.Value(testingKey).(*testing.T)
}
