package core

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
)

// DioChannel identifies a digital I/O channel.
// Channels 0-15 map to port A, 16-31 to port B and 32-47 to port C.
type DioChannel uint8

// DioChannelInvalid marks an unset chip-select pin.
const DioChannelInvalid DioChannel = 0xFF

// Port returns the port index (0 = A) and the pin within the port.
func (c DioChannel) Port() (port uint8, pin uint8) {
	return uint8(c) / GPIOPortWidth, uint8(c) % GPIOPortWidth
}

// Valid reports whether c names a pin of ports A to C.
func (c DioChannel) Valid() bool {
	return uint8(c) < GPIOPortCount*GPIOPortWidth
}

// String returns the pin name, e.g. "PB12".
func (c DioChannel) String() string {
	if c == DioChannelInvalid {
		return "none"
	}
	port, pin := c.Port()
	return "P" + string(rune('A'+port)) + Utoa(uint32(pin))
}

var errPinName = errors.New("pin name must look like PA0..PC15")

// ParseDioChannel parses a pin name such as "PA4" or "pc13".
func ParseDioChannel(name string) (DioChannel, error) {
	if len(name) < 3 || len(name) > 4 || (name[0] != 'P' && name[0] != 'p') {
		return DioChannelInvalid, errPinName
	}
	port := name[1] | 0x20
	if port < 'a' || port >= 'a'+GPIOPortCount {
		return DioChannelInvalid, errPinName
	}
	var pin uint8
	for _, c := range []byte(name[2:]) {
		if c < '0' || c > '9' {
			return DioChannelInvalid, errPinName
		}
		pin = pin*10 + (c - '0')
	}
	if pin >= GPIOPortWidth {
		return DioChannelInvalid, errPinName
	}
	return DioChannel((port-'a')*GPIOPortWidth + pin), nil
}

// GPIODriver is the abstract pin-level interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// WriteChannel drives the channel to level
	// Returns error if the channel does not exist
	WriteChannel(ch DioChannel, level gpio.Level) error

	// ReadChannel samples the input level of the channel
	ReadChannel(ch DioChannel) (gpio.Level, error)
}

// GPIOPortID identifies a GPIO port (0 = A, 1 = B, 2 = C).
type GPIOPortID uint8

// GPIO ports present on the STM32F103C8
const (
	GPIOPortA GPIOPortID = 0
	GPIOPortB GPIOPortID = 1
	GPIOPortC GPIOPortID = 2

	GPIOPortCount = 3
)

// GPIORegisters is the register block of one GPIO port.
type GPIORegisters struct {
	CRL  Register // Mode/config for pins 0-7
	CRH  Register // Mode/config for pins 8-15
	IDR  Register // Input data
	ODR  Register // Output data
	BSRR Register // Bit set (low half) / reset (high half)
	BRR  Register // Bit reset
}
