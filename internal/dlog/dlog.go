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

// Package dlog is the diagnostic-and-swallow logging sink for paths that
// cannot propagate an error to a caller: Close()/finalizer best-effort
// cleanup, and the near-target allocator's retry trace. It is a thin
// wrapper over github.com/containerd/log so the rest of the package logs
// through one place with one field vocabulary.
package dlog

import (
	"context"

	"github.com/containerd/log"
)

// CloseFailed records that a best-effort Close()/finalizer path failed to
// remove a patch and forced it to the not-applied empty shape anyway.
// Close also returns the error to its caller; the finalizer drops it.
func CloseFailed(component string, target uintptr, err error) {
	log.G(context.Background()).
		WithField("component", component).
		WithField("target", target).
		WithError(err).
		Warn("detour: best-effort release failed, forcing empty state")
}

// AllocRetry traces one failed candidate page during the near-target
// allocator search, at debug level since a search routinely tries and
// discards many pages before succeeding.
func AllocRetry(candidate uintptr, err error) {
	log.G(context.Background()).
		WithField("candidate", candidate).
		WithError(err).
		Debug("detour: candidate page rejected")
}
