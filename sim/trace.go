// Package sim simulates the STM32F103 SPI and GPIO register blocks so the
// MCAL drivers can run, and be observed, on a host.
package sim

import (
	"sync"

	"bluepill-mcal/core"

	"periph.io/x/conn/v3/gpio"
)

// TraceKind tags a trace entry.
type TraceKind uint8

const (
	TraceCR1       TraceKind = iota + 1 // CR1 written
	TraceCR2                            // CR2 written
	TraceData                           // DR written (a frame was shifted out)
	TraceBusyPoll                       // SR read while BSY was set
	TracePin                            // GPIO output changed level
	TraceDataRead                       // DR read
)

func (k TraceKind) String() string {
	switch k {
	case TraceCR1:
		return "cr1"
	case TraceCR2:
		return "cr2"
	case TraceData:
		return "data"
	case TraceBusyPoll:
		return "busy"
	case TracePin:
		return "pin"
	case TraceDataRead:
		return "read"
	default:
		return "unknown"
	}
}

// TraceEntry is one observed hardware interaction.
type TraceEntry struct {
	Kind    TraceKind
	Unit    core.SPIBusID   // SPI entries
	Channel core.DioChannel // Pin entries
	Level   gpio.Level      // Pin entries
	Value   uint32          // Register value written, or frame shifted out
}

// Trace records hardware interactions in the order they happen.
// A single Trace may be shared by several simulated peripherals.
type Trace struct {
	mu      sync.Mutex
	entries []TraceEntry
}

// NewTrace returns an empty trace
func NewTrace() *Trace {
	return &Trace{}
}

func (t *Trace) add(e TraceEntry) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
}

// Entries returns a copy of everything recorded so far
func (t *Trace) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEntry(nil), t.entries...)
}

// Filter returns the entries of the given kinds
func (t *Trace) Filter(kinds ...TraceKind) []TraceEntry {
	var out []TraceEntry
	for _, e := range t.Entries() {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Len returns the number of recorded entries
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Reset clears the trace
func (t *Trace) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}
