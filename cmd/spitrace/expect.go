package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"bluepill-mcal/core"
	"bluepill-mcal/dio"
	"bluepill-mcal/sim"
	"bluepill-mcal/spi"
)

// jobFrames is what one job puts on MOSI, in the bit order an MSB-first
// logic analyzer decodes it.
type jobFrames struct {
	Job   spi.JobID
	Unit  spi.HWUnit
	CS    core.DioChannel
	HWCS  bool
	Bytes []byte
}

// expectedFrames runs seq on simulated peripherals and collects the MOSI
// bytes of each job. data preloads internal buffers.
func expectedFrames(cfg *spi.Config, seq spi.SequenceID, data map[spi.ChannelID][]byte) ([]jobFrames, error) {
	trace := sim.NewTrace()
	d := spi.New(
		sim.Map(sim.NewSPI(core.SPIBus1, trace), sim.NewSPI(core.SPIBus2, trace)),
		dio.New(sim.NewGPIO(trace).Registers()),
		nil,
	)
	if err := d.Init(cfg); err != nil {
		return nil, err
	}
	for ch, b := range data {
		if err := d.WriteIB(ch, b); err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
	}
	trace.Reset()
	if err := d.SyncTransmit(seq); err != nil {
		return nil, err
	}

	active := d.Config()
	jobs := active.Sequences[seq].Jobs
	cr1 := make(map[core.SPIBusID]uint32)
	var out []jobFrames
	for _, e := range trace.Entries() {
		switch e.Kind {
		case sim.TraceCR1:
			cr1[e.Unit] = e.Value
		case sim.TraceCR2:
			// Every job programs CR2 exactly once, before its first frame
			if len(out) == len(jobs) {
				return nil, errors.New("more jobs ran than the sequence holds")
			}
			job := &active.Jobs[jobs[len(out)]]
			out = append(out, jobFrames{Job: job.ID, Unit: job.Unit, CS: job.CSPin, HWCS: job.HardwareCS})
		case sim.TraceData:
			if len(out) == 0 {
				return nil, errors.New("frame before any job started")
			}
			f := &out[len(out)-1]
			f.Bytes = appendFrame(f.Bytes, uint16(e.Value), cr1[e.Unit])
		}
	}
	return out, nil
}

func appendFrame(b []byte, v uint16, cr1 uint32) []byte {
	lsb := core.GetBit(cr1, core.SPICR1LSBFIRST) != 0
	if core.GetBit(cr1, core.SPICR1DFF) == 0 {
		x := uint8(v)
		if lsb {
			x = bits.Reverse8(x)
		}
		return append(b, x)
	}
	if lsb {
		v = bits.Reverse16(v)
	}
	return append(b, byte(v>>8), byte(v))
}

// selectJobs keeps the jobs visible on one capture: those on unit, and
// when cs is valid, only those asserting that pin.
func selectJobs(frames []jobFrames, unit spi.HWUnit, cs core.DioChannel) []jobFrames {
	var out []jobFrames
	for _, f := range frames {
		if unit != 0 && f.Unit != unit {
			continue
		}
		if cs != core.DioChannelInvalid && (f.HWCS || f.CS != cs) {
			continue
		}
		out = append(out, f)
	}
	return out
}

type mismatch struct {
	Index int // transaction index in the capture
	Job   spi.JobID
	Want  []byte
	Got   []byte
}

// compare matches captured transactions against want, repeated as often as
// the capture holds. It returns the number of complete sequence runs seen.
func compare(want []jobFrames, got [][]byte) (runs int, bad []mismatch) {
	if len(want) == 0 {
		return 0, nil
	}
	for i, tx := range got {
		w := want[i%len(want)]
		if !bytes.Equal(tx, w.Bytes) {
			bad = append(bad, mismatch{Index: i, Job: w.Job, Want: w.Bytes, Got: tx})
		}
	}
	return len(got) / len(want), bad
}

// ibFlag collects -ib channel=hexdata arguments.
type ibFlag map[spi.ChannelID][]byte

func (f ibFlag) String() string {
	var parts []string
	for ch, b := range f {
		parts = append(parts, fmt.Sprintf("%d=%x", ch, b))
	}
	return strings.Join(parts, ",")
}

func (f ibFlag) Set(s string) error {
	id, data, ok := strings.Cut(s, "=")
	if !ok {
		return errors.New("want channel=hexdata")
	}
	ch, err := strconv.ParseUint(id, 10, 8)
	if err != nil {
		return fmt.Errorf("channel %q: %w", id, err)
	}
	b, err := hex.DecodeString(data)
	if err != nil {
		return fmt.Errorf("data %q: %w", data, err)
	}
	f[spi.ChannelID(ch)] = b
	return nil
}
