package sim

import (
	"sync"

	"bluepill-mcal/core"

	"periph.io/x/conn/v3/gpio"
)

// Port simulates one STM32F1 GPIO port. Output pins read back their driven
// level on IDR; Inputs supplies the level of the remaining pins.
type Port struct {
	ID core.GPIOPortID

	mu     sync.Mutex
	trace  *Trace
	crl    uint32
	crh    uint32
	odr    uint32
	inputs uint32
	regs   *core.GPIORegisters
}

// NewPort returns a port with all outputs low. CRL/CRH reset to floating inputs.
func NewPort(id core.GPIOPortID, trace *Trace) *Port {
	p := &Port{ID: id, trace: trace, crl: 0x44444444, crh: 0x44444444}
	p.regs = &core.GPIORegisters{
		CRL:  &portReg{p: p, off: core.GPIOOffsetCRL},
		CRH:  &portReg{p: p, off: core.GPIOOffsetCRH},
		IDR:  &portReg{p: p, off: core.GPIOOffsetIDR},
		ODR:  &portReg{p: p, off: core.GPIOOffsetODR},
		BSRR: &portReg{p: p, off: core.GPIOOffsetBSRR},
		BRR:  &portReg{p: p, off: core.GPIOOffsetBRR},
	}
	return p
}

// Registers returns the register block of the port
func (p *Port) Registers() *core.GPIORegisters {
	return p.regs
}

// Level returns the driven output level of pin
func (p *Port) Level(pin uint8) gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return core.GetBit(p.odr, pin) != 0
}

// SetInput sets the externally applied level of pin
func (p *Port) SetInput(pin uint8, level gpio.Level) {
	p.mu.Lock()
	p.inputs = core.AssignBit(p.inputs, pin, bool(level))
	p.mu.Unlock()
}

func (p *Port) read(off uintptr) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch off {
	case core.GPIOOffsetCRL:
		return p.crl
	case core.GPIOOffsetCRH:
		return p.crh
	case core.GPIOOffsetIDR:
		return (p.odr & p.outputMask()) | (p.inputs &^ p.outputMask())
	case core.GPIOOffsetODR:
		return p.odr
	}
	// BSRR and BRR are write-only
	return 0
}

func (p *Port) write(off uintptr, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch off {
	case core.GPIOOffsetCRL:
		p.crl = v
	case core.GPIOOffsetCRH:
		p.crh = v
	case core.GPIOOffsetODR:
		p.setODR(v & 0xFFFF)
	case core.GPIOOffsetBSRR:
		// Set has priority over reset for the same pin
		p.setODR((p.odr &^ (v >> 16)) | (v & 0xFFFF))
	case core.GPIOOffsetBRR:
		p.setODR(p.odr &^ (v & 0xFFFF))
	}
}

// setODR latches a new output value and traces every pin that changed.
func (p *Port) setODR(next uint32) {
	changed := p.odr ^ next
	p.odr = next
	for pin := uint8(0); pin < core.GPIOPortWidth; pin++ {
		if core.GetBit(changed, pin) == 0 {
			continue
		}
		p.trace.add(TraceEntry{
			Kind:    TracePin,
			Channel: core.DioChannel(uint8(p.ID)*core.GPIOPortWidth + pin),
			Level:   core.GetBit(next, pin) != 0,
		})
	}
}

// outputMask returns the pins whose MODE bits select an output
func (p *Port) outputMask() uint32 {
	var mask uint32
	for pin := uint8(0); pin < 8; pin++ {
		if (p.crl>>(pin*4))&0x3 != 0 {
			mask = core.SetBit(mask, pin)
		}
		if (p.crh>>(pin*4))&0x3 != 0 {
			mask = core.SetBit(mask, pin+8)
		}
	}
	return mask
}

type portReg struct {
	p   *Port
	off uintptr
}

func (r *portReg) Get() uint32  { return r.p.read(r.off) }
func (r *portReg) Set(v uint32) { r.p.write(r.off, v) }

// GPIO bundles the three ports of the STM32F103C8.
type GPIO struct {
	Ports [core.GPIOPortCount]*Port
}

// NewGPIO returns ports A, B and C sharing trace
func NewGPIO(trace *Trace) *GPIO {
	g := &GPIO{}
	for i := range g.Ports {
		g.Ports[i] = NewPort(core.GPIOPortID(i), trace)
	}
	return g
}

// Registers returns the register blocks indexed by port
func (g *GPIO) Registers() [core.GPIOPortCount]*core.GPIORegisters {
	var regs [core.GPIOPortCount]*core.GPIORegisters
	for i, p := range g.Ports {
		regs[i] = p.Registers()
	}
	return regs
}

// Level returns the driven output level of a DIO channel
func (g *GPIO) Level(ch core.DioChannel) gpio.Level {
	port, pin := ch.Port()
	if int(port) >= len(g.Ports) {
		return gpio.Low
	}
	return g.Ports[port].Level(pin)
}
