package sim

import (
	"sync"

	"bluepill-mcal/core"
)

// Responder computes the frame a simulated slave shifts back for tx.
type Responder func(tx uint16) uint16

// Echo is a Responder for a MISO-MOSI loopback.
func Echo(tx uint16) uint16 { return tx }

// SPI simulates one STM32F1 SPI peripheral.
//
// A write to DR latches the frame, sets BSY for BusyPolls status reads and
// loads the receive register with the responder's answer. When Stuck is
// set BSY never clears.
type SPI struct {
	Bus core.SPIBusID

	mu        sync.Mutex
	trace     *Trace
	cr1       uint32
	cr2       uint32
	rx        uint16
	rxne      bool
	busyLeft  int
	busyPolls int
	stuck     bool
	respond   Responder
	sent      []uint16
	regs      *core.SPIRegisters
}

// NewSPI returns a loopback peripheral that reports BSY once per frame.
func NewSPI(bus core.SPIBusID, trace *Trace) *SPI {
	s := &SPI{
		Bus:       bus,
		trace:     trace,
		busyPolls: 1,
		respond:   Echo,
	}
	s.regs = &core.SPIRegisters{
		CR1: &spiReg{s: s, off: core.SPIOffsetCR1},
		CR2: &spiReg{s: s, off: core.SPIOffsetCR2},
		SR:  &spiReg{s: s, off: core.SPIOffsetSR},
		DR:  &spiReg{s: s, off: core.SPIOffsetDR},
	}
	return s
}

// Registers returns the register block of the peripheral
func (s *SPI) Registers() *core.SPIRegisters {
	return s.regs
}

// SetResponder replaces the slave model
func (s *SPI) SetResponder(r Responder) {
	s.mu.Lock()
	s.respond = r
	s.mu.Unlock()
}

// SetBusyPolls sets how many SR reads report BSY after each frame
func (s *SPI) SetBusyPolls(n int) {
	s.mu.Lock()
	s.busyPolls = n
	s.mu.Unlock()
}

// SetStuck makes BSY stay set forever after the next frame
func (s *SPI) SetStuck(stuck bool) {
	s.mu.Lock()
	s.stuck = stuck
	s.mu.Unlock()
}

// Sent returns every frame written to DR, in order
func (s *SPI) Sent() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.sent...)
}

// CR1 returns the current control register 1 value
func (s *SPI) CR1() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cr1
}

// CR2 returns the current control register 2 value
func (s *SPI) CR2() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cr2
}

func (s *SPI) read(off uintptr) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch off {
	case core.SPIOffsetCR1:
		return s.cr1
	case core.SPIOffsetCR2:
		return s.cr2
	case core.SPIOffsetSR:
		sr := core.SetBit(uint32(0), core.SPISRTXE)
		if s.rxne {
			sr = core.SetBit(sr, core.SPISRRXNE)
		}
		if s.stuck || s.busyLeft > 0 {
			if s.busyLeft > 0 {
				s.busyLeft--
			}
			s.trace.add(TraceEntry{Kind: TraceBusyPoll, Unit: s.Bus})
			sr = core.SetBit(sr, core.SPISRBSY)
		}
		return sr
	case core.SPIOffsetDR:
		s.rxne = false
		s.trace.add(TraceEntry{Kind: TraceDataRead, Unit: s.Bus, Value: uint32(s.rx)})
		return uint32(s.rx)
	}
	return 0
}

func (s *SPI) write(off uintptr, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch off {
	case core.SPIOffsetCR1:
		s.cr1 = v & 0xFFFF
		s.trace.add(TraceEntry{Kind: TraceCR1, Unit: s.Bus, Value: s.cr1})
	case core.SPIOffsetCR2:
		s.cr2 = v & 0xFF
		s.trace.add(TraceEntry{Kind: TraceCR2, Unit: s.Bus, Value: s.cr2})
	case core.SPIOffsetSR:
		// Flags are cleared by hardware sequences, not writes
	case core.SPIOffsetDR:
		tx := uint16(v)
		if core.GetBit(s.cr1, core.SPICR1DFF) == 0 {
			tx &= 0xFF
		}
		s.sent = append(s.sent, tx)
		s.trace.add(TraceEntry{Kind: TraceData, Unit: s.Bus, Value: uint32(tx)})
		rx := s.respond(tx)
		if core.GetBit(s.cr1, core.SPICR1DFF) == 0 {
			rx &= 0xFF
		}
		s.rx = rx
		s.rxne = true
		s.busyLeft = s.busyPolls
	}
}

// spiReg routes register accesses to the owning peripheral
type spiReg struct {
	s   *SPI
	off uintptr
}

func (r *spiReg) Get() uint32  { return r.s.read(r.off) }
func (r *spiReg) Set(v uint32) { r.s.write(r.off, v) }

// Map bundles simulated peripherals into a core.SPIRegisterMap.
func Map(units ...*SPI) core.SPIRegisterTable {
	table := make(core.SPIRegisterTable, len(units))
	for _, u := range units {
		table[u.Bus] = u.Registers()
	}
	return table
}
