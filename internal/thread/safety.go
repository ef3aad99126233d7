// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package thread

import (
	"context"
	"sync/atomic"
)

// SafetyFlag guards tasks that outlive their owner. The owner calls
// SetNotAlive on teardown and every task wrapped by Guard becomes a no-op.
type SafetyFlag struct {
	alive atomic.Bool
}

// NewSafetyFlag returns a flag in the alive state.
func NewSafetyFlag() *SafetyFlag {
	f := &SafetyFlag{}
	f.alive.Store(true)

	return f
}

// Alive reports whether the owner is still alive.
func (f *SafetyFlag) Alive() bool {
	return f.alive.Load()
}

// SetNotAlive marks the owner as torn down.
func (f *SafetyFlag) SetNotAlive() {
	f.alive.Store(false)
}

// Guard wraps fn so it only runs while the flag is alive.
func (f *SafetyFlag) Guard(fn Task) Task {
	return func(ctx context.Context) {
		if !f.Alive() {
			return
		}
		fn(ctx)
	}
}
