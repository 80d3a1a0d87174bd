//go:build linux

package shmem

import (
	"math"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Shared (non-private) futex operations so waiters in other processes that
// map the same file are woken too.
const (
	futexWait = 0
	futexWake = 1
)

// Wait sleeps while *addr == val. It may return spuriously; callers
// re-check their condition.
func Wait(addr *atomic.Uint32, val uint32) {
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWait, uintptr(val), 0, 0, 0)
}

// WakeAll wakes every waiter sleeping on addr.
func WakeAll(addr *atomic.Uint32) {
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWake, uintptr(math.MaxInt32), 0, 0, 0)
}
