// Package dio drives digital I/O channels of the bluepill board through the
// GPIO set/reset registers. It is the pin-level primitive the SPI handler
// uses for software chip select.
package dio

import (
	"errors"

	"bluepill-mcal/core"

	"periph.io/x/conn/v3/gpio"
)

// Errors returned by the driver.
var (
	ErrInvalidChannel = errors.New("dio: invalid channel")
	ErrInvalidPort    = errors.New("dio: invalid port")
)

// Channels routed to header pins on the bluepill, per port.
// PA13/PA14 carry SWD, PB2 is BOOT1, only PC13-PC15 exist on port C.
var usableMask = [core.GPIOPortCount]uint32{
	0x9FFF, // PA0-PA12, PA15
	0xFFFB, // PB0, PB1, PB3-PB15
	0xE000, // PC13-PC15
}

// Driver implements core.GPIODriver over GPIO register blocks.
type Driver struct {
	ports [core.GPIOPortCount]*core.GPIORegisters
}

// New creates a driver over the register blocks of ports A, B and C.
func New(ports [core.GPIOPortCount]*core.GPIORegisters) *Driver {
	return &Driver{ports: ports}
}

func (d *Driver) resolve(ch core.DioChannel) (*core.GPIORegisters, uint8, error) {
	port, pin := ch.Port()
	if int(port) >= len(d.ports) || d.ports[port] == nil {
		return nil, 0, ErrInvalidChannel
	}
	if core.GetBit(usableMask[port], pin) == 0 {
		return nil, 0, ErrInvalidChannel
	}
	return d.ports[port], pin, nil
}

// Valid reports whether ch names a usable pin.
func (d *Driver) Valid(ch core.DioChannel) bool {
	_, _, err := d.resolve(ch)
	return err == nil
}

// WriteChannel implements core.GPIODriver. High goes through BSRR, low
// through BRR so no read-modify-write of ODR is needed.
func (d *Driver) WriteChannel(ch core.DioChannel, level gpio.Level) error {
	regs, pin, err := d.resolve(ch)
	if err != nil {
		return err
	}
	if level == gpio.High {
		regs.BSRR.Set(core.SetBit(uint32(0), pin))
	} else {
		regs.BRR.Set(core.SetBit(uint32(0), pin))
	}
	return nil
}

// ReadChannel implements core.GPIODriver.
func (d *Driver) ReadChannel(ch core.DioChannel) (gpio.Level, error) {
	regs, pin, err := d.resolve(ch)
	if err != nil {
		return gpio.Low, err
	}
	return gpio.Level(core.RegBit(regs.IDR, pin)), nil
}

// FlipChannel inverts the output level of ch and returns the new level.
func (d *Driver) FlipChannel(ch core.DioChannel) (gpio.Level, error) {
	regs, pin, err := d.resolve(ch)
	if err != nil {
		return gpio.Low, err
	}
	next := gpio.Level(!core.RegBit(regs.ODR, pin))
	if err := d.WriteChannel(ch, next); err != nil {
		return gpio.Low, err
	}
	return next, nil
}

// ReadPort returns the input levels of every pin of port.
func (d *Driver) ReadPort(port core.GPIOPortID) (uint16, error) {
	if int(port) >= len(d.ports) || d.ports[port] == nil {
		return 0, ErrInvalidPort
	}
	return uint16(d.ports[port].IDR.Get()), nil
}

// WritePort drives every output pin of port at once.
func (d *Driver) WritePort(port core.GPIOPortID, level uint16) error {
	if int(port) >= len(d.ports) || d.ports[port] == nil {
		return ErrInvalidPort
	}
	d.ports[port].ODR.Set(uint32(level))
	return nil
}

// Pin configuration nibbles (CNF[1:0] MODE[1:0])
const (
	pinModeOutput2MHz     = 0x2 // general purpose push-pull, 2 MHz
	pinModeAlternate50MHz = 0xB // alternate function push-pull, 50 MHz
	pinModeInputFloating  = 0x4
)

func (d *Driver) setMode(ch core.DioChannel, mode uint32) error {
	regs, pin, err := d.resolve(ch)
	if err != nil {
		return err
	}
	cr := regs.CRL
	if pin >= 8 {
		cr = regs.CRH
		pin -= 8
	}
	cr.Set(core.ReplaceBits(cr.Get(), mode, 0xF, pin*4))
	return nil
}

// ConfigureOutput switches ch to a push-pull output and drives it to
// initial. Chip-select pins are configured this way before the SPI handler
// is initialised.
func (d *Driver) ConfigureOutput(ch core.DioChannel, initial gpio.Level) error {
	// Latch the level first so the pin never glitches when it becomes an output
	if err := d.WriteChannel(ch, initial); err != nil {
		return err
	}
	return d.setMode(ch, pinModeOutput2MHz)
}

// ConfigureAlternate hands ch to its peripheral, e.g. SCK and MOSI.
func (d *Driver) ConfigureAlternate(ch core.DioChannel) error {
	return d.setMode(ch, pinModeAlternate50MHz)
}

// ConfigureInput makes ch a floating input, e.g. MISO.
func (d *Driver) ConfigureInput(ch core.DioChannel) error {
	return d.setMode(ch, pinModeInputFloating)
}

var _ core.GPIODriver = (*Driver)(nil)
