package core

// SPIBusID identifies a hardware SPI peripheral.
// The numbering follows the MCU: 1 = SPI1, 2 = SPI2.
type SPIBusID uint8

// Hardware SPI peripherals on the STM32F103C8
const (
	SPIBus1 SPIBusID = 1
	SPIBus2 SPIBusID = 2
)

// SPIRegisters is the register block of one SPI peripheral.
type SPIRegisters struct {
	CR1 Register // Control register 1: mode, clock, frame format
	CR2 Register // Control register 2: slave-select output, DMA, IRQ enables
	SR  Register // Status register (BSY, TXE, RXNE, error flags)
	DR  Register // Data register
}

// SPIRegisterMap resolves the register block of a hardware unit.
// Platform code supplies memory-mapped registers, tests supply simulated ones.
type SPIRegisterMap interface {
	// SPIRegisters returns the block for bus, or false if the bus does not exist
	SPIRegisters(bus SPIBusID) (*SPIRegisters, bool)
}

// SPIRegisterTable is a fixed SPIRegisterMap.
type SPIRegisterTable map[SPIBusID]*SPIRegisters

// SPIRegisters implements SPIRegisterMap.
func (t SPIRegisterTable) SPIRegisters(bus SPIBusID) (*SPIRegisters, bool) {
	regs, ok := t[bus]
	if !ok || regs == nil {
		return nil, false
	}
	return regs, true
}
