//go:build !linux

package shmem

import (
	"sync/atomic"
	"time"
)

// No cross-process futex on this platform; waiters nap and re-check.
const napInterval = 200 * time.Microsecond

// Wait sleeps briefly if *addr == val. Callers re-check their condition.
func Wait(addr *atomic.Uint32, val uint32) {
	if addr.Load() == val {
		time.Sleep(napInterval)
	}
}

// WakeAll is a no-op; sleepers notice the change on their next nap.
func WakeAll(addr *atomic.Uint32) {}
