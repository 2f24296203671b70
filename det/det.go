// Package det is the Development Error Tracer: a bounded log of
// (module, instance, api, error) reports raised by the MCAL drivers, with
// optional export of every report to an off-chip sink.
package det

import (
	"errors"
	"sync"

	"bluepill-mcal/core"
	"bluepill-mcal/protocol"
)

// DefaultCapacity is the number of reports kept on the board
const DefaultCapacity = 5

var (
	ErrNotInitialized = errors.New("det: not initialized")
	ErrFull           = errors.New("det: report buffer full")
)

// Record is one development error report.
type Record = protocol.DetReport

// Sink receives reports as they are raised. *protocol.Encoder is a Sink.
type Sink interface {
	DetReport(r protocol.DetReport) error
	DetLost(count uint32) error
}

// Tracer collects reports. Reports made before Init are rejected; reports
// made after Init but before Start are kept and exported once Start runs.
type Tracer struct {
	mu          sync.Mutex
	capacity    int
	records     []Record
	initialized bool
	started     bool
	lost        uint32
	exported    int
	sink        Sink
}

// New creates a tracer keeping up to capacity reports. A capacity <= 0
// selects DefaultCapacity. sink may be nil.
func New(capacity int, sink Sink) *Tracer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracer{
		capacity: capacity,
		records:  make([]Record, 0, capacity),
		sink:     sink,
	}
}

// Init enables reporting and clears the log
func (t *Tracer) Init() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialized = true
	t.started = false
	t.records = t.records[:0]
	t.lost = 0
	t.exported = 0
}

// Start begins exporting to the sink, flushing what was logged since Init
func (t *Tracer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return ErrNotInitialized
	}
	t.started = true
	return t.flushLocked()
}

// ReportError logs one report. It returns ErrNotInitialized before Init and
// ErrFull when the log has no room; a full log still exports the report.
func (t *Tracer) ReportError(moduleID uint16, instanceID, apiID, errorID uint8) error {
	r := Record{ModuleID: moduleID, InstanceID: instanceID, APIID: apiID, ErrorID: errorID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return ErrNotInitialized
	}

	if core.IsDebugEnabled() {
		core.DebugPrintln("[DET] mod=" + core.Utoa(uint32(moduleID)) +
			" inst=" + core.Utoa(uint32(instanceID)) +
			" api=" + core.Hex8(apiID) +
			" err=" + core.Hex8(errorID))
	}

	var err error
	if len(t.records) < t.capacity {
		t.records = append(t.records, r)
	} else {
		t.lost++
		err = ErrFull
	}

	if t.started && t.sink != nil {
		_ = t.sink.DetReport(r)
		if err == nil {
			t.exported = len(t.records)
		}
	}
	return err
}

// flushLocked exports logged reports not yet sent, then the lost count
func (t *Tracer) flushLocked() error {
	if t.sink == nil {
		return nil
	}
	for _, r := range t.records[t.exported:] {
		if err := t.sink.DetReport(r); err != nil {
			return err
		}
		t.exported++
	}
	if t.lost > 0 {
		return t.sink.DetLost(t.lost)
	}
	return nil
}

// Records returns a copy of the logged reports, oldest first
func (t *Tracer) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Record(nil), t.records...)
}

// Lost returns how many reports did not fit the log
func (t *Tracer) Lost() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lost
}

// Reset empties the log without changing the initialized state
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = t.records[:0]
	t.lost = 0
	t.exported = 0
}
