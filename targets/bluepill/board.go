//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"

	"bluepill-mcal/core"
	"bluepill-mcal/spi"
)

// Pins of the bluepill wiring
const (
	pinLED   core.DioChannel = 45 // PC13, active low
	pinCS1   core.DioChannel = 4  // PA4
	pinSCK1  core.DioChannel = 5  // PA5
	pinMISO1 core.DioChannel = 6  // PA6
	pinMOSI1 core.DioChannel = 7  // PA7
	pinCS2   core.DioChannel = 28 // PB12
	pinSCK2  core.DioChannel = 29 // PB13
	pinMISO2 core.DioChannel = 30 // PB14
	pinMOSI2 core.DioChannel = 31 // PB15
)

// Channels, jobs and sequences of boardConfig
const (
	chIDCommand spi.ChannelID = iota // JEDEC read-id opcode plus dummy bytes
	chDACWord                        // 16-bit DAC command word
	chFlashData                      // flash payload, bound with SetupEB
	chStripData                      // APA102 frames, bound with SetupEB

	seqReadID  spi.SequenceID = 0
	seqDAC     spi.SequenceID = 1
	seqFlashIO spi.SequenceID = 2
	seqStrip   spi.SequenceID = 3
)

// boardConfig drives a SPI NOR flash on SPI1, and a 12-bit DAC plus an
// APA102 LED strip on SPI2. The strip has no chip select; its job uses
// hardware NSS, which is not routed to a pin.
var boardConfig = spi.Config{
	Channels: []spi.ChannelConfig{
		{ID: chIDCommand, Buffer: spi.InternalBuffer, Width: spi.Width8, Elements: 4, DefaultData: 0xFF},
		{ID: chDACWord, Buffer: spi.InternalBuffer, Width: spi.Width16, Elements: 1, DefaultData: 0x3000},
		{ID: chFlashData, Buffer: spi.ExternalBuffer, Width: spi.Width8, Elements: 16, DefaultData: 0xFF},
		{ID: chStripData, Buffer: spi.ExternalBuffer, Width: spi.Width8, Elements: 16},
	},
	Jobs: []spi.JobConfig{
		{ID: 0, Unit: spi.SPI1, Baud: spi.Div8, CSPin: pinCS1, Channels: []spi.ChannelID{chIDCommand}},
		{ID: 1, Unit: spi.SPI2, Baud: spi.Div4, CSPin: pinCS2, Channels: []spi.ChannelID{chDACWord}},
		{ID: 2, Unit: spi.SPI1, Baud: spi.Div8, CSPin: pinCS1, Channels: []spi.ChannelID{chFlashData}},
		{ID: 3, Unit: spi.SPI2, Baud: spi.Div16, HardwareCS: true, CSPin: core.DioChannelInvalid, Channels: []spi.ChannelID{chStripData}},
	},
	Sequences: []spi.SequenceConfig{
		{ID: seqReadID, Jobs: []spi.JobID{0}},
		{ID: seqDAC, Jobs: []spi.JobID{1}},
		{ID: seqFlashIO, Jobs: []spi.JobID{2}},
		{ID: seqStrip, Jobs: []spi.JobID{3}},
	},
	DevErrorDetect:         true,
	ConcurrentSyncTransmit: true,
}

func mmio(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

func spiRegisters(base uintptr) *core.SPIRegisters {
	return &core.SPIRegisters{
		CR1: mmio(base + core.SPIOffsetCR1),
		CR2: mmio(base + core.SPIOffsetCR2),
		SR:  mmio(base + core.SPIOffsetSR),
		DR:  mmio(base + core.SPIOffsetDR),
	}
}

func gpioRegisters(base uintptr) *core.GPIORegisters {
	return &core.GPIORegisters{
		CRL:  mmio(base + core.GPIOOffsetCRL),
		CRH:  mmio(base + core.GPIOOffsetCRH),
		IDR:  mmio(base + core.GPIOOffsetIDR),
		ODR:  mmio(base + core.GPIOOffsetODR),
		BSRR: mmio(base + core.GPIOOffsetBSRR),
		BRR:  mmio(base + core.GPIOOffsetBRR),
	}
}

// enableClocks turns on the GPIO ports, AFIO and both SPI units
func enableClocks() {
	apb2 := mmio(core.RCCBase + core.RCCOffsetAPB2ENR)
	apb2.SetBits(1<<core.RCCAPB2ENRAFIOEN | 1<<core.RCCAPB2ENRIOPAEN |
		1<<core.RCCAPB2ENRIOPBEN | 1<<core.RCCAPB2ENRIOPCEN | 1<<core.RCCAPB2ENRSPI1EN)
	mmio(core.RCCBase + core.RCCOffsetAPB1ENR).SetBits(1 << core.RCCAPB1ENRSPI2EN)
}
