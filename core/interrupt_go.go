//go:build !tinygo

package core

import "sync"

// CriticalState is the saved state returned by EnterCritical.
type CriticalState uintptr

// On a host there are no interrupts to mask; callers running on different
// goroutines are serialised instead.
var criticalMu sync.Mutex

// EnterCritical starts a critical section. Sections must not nest.
func EnterCritical() CriticalState {
	criticalMu.Lock()
	return 0
}

// ExitCritical ends the critical section started by EnterCritical.
func ExitCritical(state CriticalState) {
	criticalMu.Unlock()
}
