// Package sync provides synchronization primitive implementations for
// spinlocks.
package sync

import (
	"runtime"
	"sync/atomic"
)

// spinsBeforeYielding defines the number of failed acquisition attempts
// before the lock invokes yieldFn.
const spinsBeforeYielding = 128

var (
	// TODO: replace with the scheduler's yield once context-switching is
	// implemented.
	yieldFn = runtime.Gosched
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available. The lock is not reentrant; there is no
// ownership transfer and no priority inheritance.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for spins := uint32(0); !atomic.CompareAndSwapUint32(&l.state, 0, 1); spins++ {
		if spins >= spinsBeforeYielding {
			spins = 0
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
