package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures a driver state transition for post-mortem analysis
type Event struct {
	Type  uint8  // Event type code
	Unit  uint8  // Hardware unit involved, 0 if none
	ID    uint16 // Sequence or job id, depending on Type
	Stamp uint32 // Monotonic event counter
	Value uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSeqStart    = 1 // Sequence admitted
	EvtJobStart    = 2 // Job started, unit busy
	EvtJobEnd      = 3 // Job finished, unit idle
	EvtSeqEnd      = 4 // Sequence finished
	EvtTimeout     = 5 // Busy-wait expired; Value = element index
	EvtSeqRejected = 6 // Admission refused
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventStamp    uint32
	eventsEnabled bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// SetEventsEnabled turns event capture on or off.
func SetEventsEnabled(enabled bool) {
	eventsEnabled = enabled
}

// RecordEvent captures an event in the ring buffer.
// Never blocks and never allocates; safe to call from the transfer path.
func RecordEvent(eventType, unit uint8, id uint16, value uint32) {
	if !eventsEnabled {
		return
	}
	state := EnterCritical()
	eventStamp++
	idx := eventRingHead
	eventRing[idx] = Event{
		Type:  eventType,
		Unit:  unit,
		ID:    id,
		Stamp: eventStamp,
		Value: value,
	}
	eventRingHead = (idx + 1) % EventRingSize
	ExitCritical(state)
}

// Events returns the captured events, oldest first.
func Events() []Event {
	state := EnterCritical()
	defer ExitCritical(state)

	out := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Type == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns a short tag for an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtSeqStart:
		return "SEQ_START"
	case EvtJobStart:
		return "JOB_START"
	case EvtJobEnd:
		return "JOB_END"
	case EvtSeqEnd:
		return "SEQ_END"
	case EvtTimeout:
		return "TIMEOUT!"
	case EvtSeqRejected:
		return "SEQ_REJECTED"
	default:
		return "UNKNOWN"
	}
}

// DumpEvents outputs the event ring (call on shutdown/error)
func DumpEvents() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENT] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENT] " + EventName(evt.Type) +
			" #" + Utoa(evt.Stamp) +
			" unit=" + itoa(int(evt.Unit)) +
			" id=" + itoa(int(evt.ID)) +
			" v=" + Utoa(evt.Value))
	}
	debugPrintln("[EVENT] === End Dump ===")
}

// ClearEvents clears the event ring
func ClearEvents() {
	state := EnterCritical()
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
	eventStamp = 0
	ExitCritical(state)
}
