package spi

import (
	"errors"
	"fmt"
	"time"

	"bluepill-mcal/core"

	"periph.io/x/conn/v3/gpio"
)

var errNoChipSelect = errors.New("software chip select without a chip-select driver")

// SyncTransmit runs every job of seq in order and returns when the last
// frame has been exchanged.
//
// Admission happens inside a critical section. Without
// ConcurrentSyncTransmit a sequence is rejected while any other is in
// flight; with it, only sequences sharing a hardware unit or a channel are
// rejected.
// A unit that stays busy longer than TransferTimeout fails the job and the
// sequence; later jobs are not started.
func (d *Driver) SyncTransmit(seq SequenceID) error {
	rs := d.rs.Load()
	if rs == nil {
		return d.fail(nil, APISyncTransmit, ErrUninit)
	}

	cl, err := d.admit(rs, seq)
	if err != nil {
		core.RecordEvent(core.EvtSeqRejected, 0, uint16(seq), uint32(err.Code))
		return err
	}
	core.RecordEvent(core.EvtSeqStart, 0, uint16(seq), uint32(cl.units))

	result := SeqOK
	var jobErr error
	for _, jid := range rs.cfg.Sequences[seq].Jobs {
		if jobErr = d.runJob(rs, jid); jobErr != nil {
			result = SeqFailed
			break
		}
	}
	rs.seqs[seq].Store(uint32(result))
	d.release(cl)
	core.RecordEvent(core.EvtSeqEnd, 0, uint16(seq), uint32(result))

	if jobErr != nil {
		// Hardware faults are production errors, reported regardless of
		// DevErrorDetect
		if d.rep != nil {
			_ = d.rep.ReportError(ModuleID, 0, uint8(APISyncTransmit), uint8(ErrHardware))
		}
		core.DebugPrintln("[SPI] sequence " + core.Utoa(uint32(seq)) + " failed: " + jobErr.Error())
		return &Error{API: APISyncTransmit, Code: ErrHardware, Err: jobErr}
	}
	return nil
}

// admit claims the units and channels of seq, marking it pending, or
// refuses it without touching any state.
func (d *Driver) admit(rs *runState, seq SequenceID) (claim, *Error) {
	cfg := rs.cfg
	var code ErrorCode
	var cl claim

	state := core.EnterCritical()
	switch {
	case d.rs.Load() != rs:
		code = ErrUninit
	case !cfg.ConcurrentSyncTransmit && (!d.claimed.empty() || d.GetStatus() != Idle):
		code = ErrSeqPending
	case int(seq) >= len(cfg.Sequences):
		code = ErrParamSeq
	default:
		cl = cfg.claimOf(seq)
		if d.claimed.overlaps(cl) {
			code = ErrSeqPending
		}
	}
	if code == 0 {
		d.claimed.add(cl)
		rs.seqs[seq].Store(uint32(SeqPending))
	}
	core.ExitCritical(state)

	switch code {
	case 0:
		return cl, nil
	case ErrSeqPending:
		d.report(cfg, APISyncTransmit, ErrSeqInProcess)
		return claim{}, &Error{API: APISyncTransmit, Code: ErrSeqPending}
	default:
		return claim{}, d.fail(cfg, APISyncTransmit, code)
	}
}

func (d *Driver) release(cl claim) {
	state := core.EnterCritical()
	d.claimed.remove(cl)
	core.ExitCritical(state)
}

// runJob transmits one job with its unit marked busy.
func (d *Driver) runJob(rs *runState, jid JobID) error {
	job := &rs.cfg.Jobs[jid]
	regs, _ := d.regs.SPIRegisters(job.Unit.bus())
	unit := &d.units[job.Unit-1]

	unit.Store(uint32(Busy))
	rs.jobs[jid].Store(uint32(JobPending))
	core.RecordEvent(core.EvtJobStart, uint8(job.Unit), uint16(jid), 0)

	d.configureJob(regs, job, &rs.cfg.Channels[job.Channels[0]])
	err := d.selectChip(regs, job)
	if err == nil {
		for _, ch := range job.Channels {
			if err = d.transferChannel(rs, regs, job, ch); err != nil {
				break
			}
		}
		if csErr := d.deselectChip(regs, job); err == nil {
			err = csErr
		}
	}

	result := JobOK
	if err != nil {
		result = JobFailed
	}
	rs.jobs[jid].Store(uint32(result))
	unit.Store(uint32(Idle))
	core.RecordEvent(core.EvtJobEnd, uint8(job.Unit), uint16(jid), uint32(result))

	if err != nil {
		return fmt.Errorf("job %d on %s: %w", jid, job.Unit, err)
	}
	return nil
}

// configureJob programs clock and slave-select mode with the unit disabled,
// along with the frame format of the first channel.
func (d *Driver) configureJob(regs *core.SPIRegisters, job *JobConfig, first *ChannelConfig) {
	cr1 := regs.CR1.Get()
	cr1 = core.SetBit(cr1, core.SPICR1MSTR)
	cr1 = core.AssignBit(cr1, core.SPICR1CPOL, job.Polarity == PolarityHigh)
	cr1 = core.AssignBit(cr1, core.SPICR1CPHA, job.Phase == PhaseSecond)
	cr1 = core.ReplaceBits(cr1, uint32(job.Baud), core.SPICR1BRMask, core.SPICR1BR)
	cr1 = core.AssignBit(cr1, core.SPICR1SSM, !job.HardwareCS)
	cr1 = core.AssignBit(cr1, core.SPICR1SSI, !job.HardwareCS)
	cr1 = frameFormat(cr1, first)

	regs.CR1.Set(core.ClearBit(cr1, core.SPICR1SPE))
	core.WriteRegBit(regs.CR2, core.SPICR2SSOE, job.HardwareCS)
}

// frameFormat sets DFF and LSBFIRST of cr1 for ch
func frameFormat(cr1 uint32, ch *ChannelConfig) uint32 {
	cr1 = core.AssignBit(cr1, core.SPICR1DFF, ch.Width == Width16)
	return core.AssignBit(cr1, core.SPICR1LSBFIRST, ch.Order == LSBFirst)
}

// selectChip enables the unit and asserts chip select. With hardware chip
// select, enabling the unit drives NSS low.
func (d *Driver) selectChip(regs *core.SPIRegisters, job *JobConfig) error {
	core.SetRegBit(regs.CR1, core.SPICR1SPE)
	if job.HardwareCS {
		return nil
	}
	if d.cs == nil {
		return errNoChipSelect
	}
	return d.cs.WriteChannel(job.CSPin, gpio.Low)
}

func (d *Driver) deselectChip(regs *core.SPIRegisters, job *JobConfig) error {
	if job.HardwareCS {
		core.ClearRegBit(regs.CR1, core.SPICR1SPE)
		return nil
	}
	if d.cs == nil {
		return errNoChipSelect
	}
	return d.cs.WriteChannel(job.CSPin, gpio.High)
}

// transferChannel exchanges every element of one channel.
func (d *Driver) transferChannel(rs *runState, regs *core.SPIRegisters, job *JobConfig, id ChannelID) error {
	ch := &rs.cfg.Channels[id]

	// DFF may only change while the unit is disabled
	cr1 := regs.CR1.Get()
	if next := frameFormat(cr1, ch); next != cr1 {
		regs.CR1.Set(core.ClearBit(next, core.SPICR1SPE))
		regs.CR1.Set(next)
	}

	var src, dst []byte
	var n int
	if ch.Buffer == InternalBuffer {
		n = int(ch.Elements)
		dst = rs.ib[id]
		if rs.ibWritten[id].Load() {
			src = dst
		}
	} else {
		eb := rs.eb[id]
		n = int(eb.length)
		src, dst = eb.src, eb.dst
	}

	wide := ch.Width == Width16
	for i := 0; i < n; i++ {
		tx := ch.DefaultData
		if src != nil {
			if wide {
				tx = uint16(src[2*i])<<8 | uint16(src[2*i+1])
			} else {
				tx = uint16(src[i])
			}
		}

		regs.DR.Set(uint32(tx))
		if !waitNotBusy(regs.SR, rs.cfg.TransferTimeout) {
			core.RecordEvent(core.EvtTimeout, uint8(job.Unit), uint16(job.ID), uint32(i))
			return fmt.Errorf("channel %d element %d: unit still busy after %v", id, i, rs.cfg.TransferTimeout)
		}
		// The received frame sits in the low 8 or 16 bits of DR
		rx := uint16(regs.DR.Get())

		if dst != nil {
			if wide {
				dst[2*i] = byte(rx >> 8)
				dst[2*i+1] = byte(rx)
			} else {
				dst[i] = byte(rx)
			}
		}
	}
	return nil
}

// waitNotBusy spins on BSY until it clears or timeout expires
func waitNotBusy(sr core.Register, timeout time.Duration) bool {
	if !core.RegBit(sr, core.SPISRBSY) {
		return true
	}
	deadline := time.Now().Add(timeout)
	for core.RegBit(sr, core.SPISRBSY) {
		if time.Now().After(deadline) {
			return false
		}
	}
	return true
}
