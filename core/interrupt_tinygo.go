//go:build tinygo

package core

import "runtime/interrupt"

// CriticalState is the saved interrupt mask returned by EnterCritical.
type CriticalState = interrupt.State

// EnterCritical disables interrupts and returns the previous state
func EnterCritical() CriticalState {
	return interrupt.Disable()
}

// ExitCritical restores the interrupt state
func ExitCritical(state CriticalState) {
	interrupt.Restore(state)
}
