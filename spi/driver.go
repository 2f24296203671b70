package spi

import (
	"sync/atomic"

	"bluepill-mcal/core"

	"periph.io/x/conn/v3/gpio"
)

// ChipSelect drives software chip-select pins. *dio.Driver satisfies it.
type ChipSelect interface {
	WriteChannel(ch core.DioChannel, level gpio.Level) error
}

const (
	stateUninit uint32 = iota
	stateInitializing
	stateReady
)

// ebDescriptor is the binding made by SetupEB for one external channel.
type ebDescriptor struct {
	src    []byte
	dst    []byte
	length uint16
}

// runState is everything Init creates. It is published atomically so the
// query services never observe a half-built configuration.
type runState struct {
	cfg       *Config
	jobs      []atomic.Uint32 // JobResult by job id
	seqs      []atomic.Uint32 // SeqResult by sequence id
	ib        [][]byte        // nil for external channels
	ibWritten []atomic.Bool
	eb        []ebDescriptor
}

// Driver is one instance of the SPI Handler/Driver.
type Driver struct {
	regs core.SPIRegisterMap
	cs   ChipSelect
	rep  ErrorReporter

	state atomic.Uint32
	rs    atomic.Pointer[runState]
	units [NumUnits]atomic.Uint32 // Status by unit-1

	// Units and channels held by in-flight sequences; guarded by
	// core.EnterCritical
	claimed claim
}

// New creates a driver over the given register blocks. cs may be nil when
// every job uses hardware chip select; rep may be nil to drop error reports.
func New(regs core.SPIRegisterMap, cs ChipSelect, rep ErrorReporter) *Driver {
	return &Driver{regs: regs, cs: cs, rep: rep}
}

// report forwards an error to the tracer. Before Init there is no
// configuration to consult, so reports are always made.
func (d *Driver) report(cfg *Config, api APIID, code ErrorCode) {
	if d.rep == nil || (cfg != nil && !cfg.DevErrorDetect) {
		return
	}
	_ = d.rep.ReportError(ModuleID, 0, uint8(api), uint8(code))
}

func (d *Driver) fail(cfg *Config, api APIID, code ErrorCode) *Error {
	d.report(cfg, api, code)
	return &Error{API: api, Code: code}
}

// Init stores cfg and programs both units as masters. The configuration is
// copied shallowly with defaults applied; its slices must not be modified
// afterwards.
func (d *Driver) Init(cfg *Config) error {
	if cfg == nil {
		return d.fail(nil, APIInit, ErrParamPointer)
	}
	if !d.state.CompareAndSwap(stateUninit, stateInitializing) {
		return d.fail(cfg, APIInit, ErrAlreadyInitialized)
	}

	c := *cfg
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		d.state.Store(stateUninit)
		e := d.fail(&c, APIInit, ErrParamPointer)
		e.Err = err
		return e
	}
	for i := range c.Jobs {
		if _, ok := d.regs.SPIRegisters(c.Jobs[i].Unit.bus()); !ok {
			d.state.Store(stateUninit)
			e := d.fail(&c, APIInit, ErrParamUnit)
			e.Err = &unitError{job: c.Jobs[i].ID, unit: c.Jobs[i].Unit}
			return e
		}
	}

	rs := &runState{
		cfg:       &c,
		jobs:      make([]atomic.Uint32, len(c.Jobs)),
		seqs:      make([]atomic.Uint32, len(c.Sequences)),
		ib:        make([][]byte, len(c.Channels)),
		ibWritten: make([]atomic.Bool, len(c.Channels)),
		eb:        make([]ebDescriptor, len(c.Channels)),
	}
	for i := range c.Channels {
		if c.Channels[i].Buffer == InternalBuffer {
			rs.ib[i] = make([]byte, c.Channels[i].Size())
		}
	}

	for u := SPI1; u <= SPI2; u++ {
		regs, ok := d.regs.SPIRegisters(u.bus())
		if !ok {
			continue
		}
		regs.CR1.Set(0)
		regs.CR2.Set(0)
		cr1 := core.SetBit(uint32(0), core.SPICR1MSTR)
		cr1 = core.SetBit(cr1, core.SPICR1SSM)
		cr1 = core.SetBit(cr1, core.SPICR1SSI)
		regs.CR1.Set(cr1)
		regs.CR1.Set(core.SetBit(cr1, core.SPICR1SPE))
		d.units[u-1].Store(uint32(Idle))
	}

	d.rs.Store(rs)
	d.state.Store(stateReady)

	if core.IsDebugEnabled() {
		core.DebugPrintln("[SPI] init: channels=" + core.Utoa(uint32(len(c.Channels))) +
			" jobs=" + core.Utoa(uint32(len(c.Jobs))) +
			" sequences=" + core.Utoa(uint32(len(c.Sequences))))
	}
	return nil
}

// DeInit disables both units and returns the driver to Uninit. It fails
// while a sequence is in flight.
func (d *Driver) DeInit() error {
	rs := d.rs.Load()
	if rs == nil {
		return d.fail(nil, APIDeInit, ErrUninit)
	}

	state := core.EnterCritical()
	busy := !d.claimed.empty()
	if !busy {
		d.rs.Store(nil)
	}
	core.ExitCritical(state)
	if busy {
		return d.fail(rs.cfg, APIDeInit, ErrSeqPending)
	}

	for u := SPI1; u <= SPI2; u++ {
		if regs, ok := d.regs.SPIRegisters(u.bus()); ok {
			core.ClearRegBit(regs.CR1, core.SPICR1SPE)
		}
		d.units[u-1].Store(uint32(Uninit))
	}
	d.state.Store(stateUninit)
	return nil
}

// GetStatus aggregates the unit states: Busy if any unit is busy, else Idle
// if any unit is idle, else Uninit.
func (d *Driver) GetStatus() Status {
	agg := Uninit
	for i := range d.units {
		switch Status(d.units[i].Load()) {
		case Busy:
			return Busy
		case Idle:
			agg = Idle
		}
	}
	return agg
}

// GetHWUnitStatus returns the state of one unit; Uninit for unknown units.
func (d *Driver) GetHWUnitStatus(unit HWUnit) Status {
	if !unit.valid() {
		var cfg *Config
		if rs := d.rs.Load(); rs != nil {
			cfg = rs.cfg
		}
		d.report(cfg, APIGetHWUnitStatus, ErrParamUnit)
		return Uninit
	}
	return Status(d.units[unit-1].Load())
}

// GetJobResult returns the result of the last transmission of job.
// JobFailed is returned for unknown jobs and before Init.
func (d *Driver) GetJobResult(job JobID) JobResult {
	rs := d.rs.Load()
	if rs == nil {
		d.report(nil, APIGetJobResult, ErrUninit)
		return JobFailed
	}
	if int(job) >= len(rs.jobs) {
		d.report(rs.cfg, APIGetJobResult, ErrParamJob)
		return JobFailed
	}
	return JobResult(rs.jobs[job].Load())
}

// GetSequenceResult returns the result of the last transmission of seq.
// SeqFailed is returned for unknown sequences and before Init.
func (d *Driver) GetSequenceResult(seq SequenceID) SeqResult {
	rs := d.rs.Load()
	if rs == nil {
		d.report(nil, APIGetSequenceResult, ErrUninit)
		return SeqFailed
	}
	if int(seq) >= len(rs.seqs) {
		d.report(rs.cfg, APIGetSequenceResult, ErrParamSeq)
		return SeqFailed
	}
	return SeqResult(rs.seqs[seq].Load())
}

// GetVersionInfo fills info with the driver identification
func (d *Driver) GetVersionInfo(info *VersionInfo) error {
	if info == nil {
		var cfg *Config
		if rs := d.rs.Load(); rs != nil {
			cfg = rs.cfg
		}
		return d.fail(cfg, APIGetVersionInfo, ErrParamPointer)
	}
	*info = VersionInfo{
		VendorID: VendorID,
		ModuleID: ModuleID,
		SWMajor:  SWMajorVersion,
		SWMinor:  SWMinorVersion,
		SWPatch:  SWPatchVersion,
	}
	return nil
}

// Config returns the active configuration, or nil before Init
func (d *Driver) Config() *Config {
	if rs := d.rs.Load(); rs != nil {
		return rs.cfg
	}
	return nil
}

type unitError struct {
	job  JobID
	unit HWUnit
}

func (e *unitError) Error() string {
	return "job " + core.Utoa(uint32(e.job)) + ": no registers for " + e.unit.String()
}
