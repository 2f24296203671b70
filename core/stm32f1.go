package core

// STM32F103 register map for the peripherals the MCAL drives.
// Reference: RM0008, sections 9 (GPIO) and 25 (SPI).

// Peripheral base addresses
const (
	GPIOABase uintptr = 0x40010800
	GPIOBBase uintptr = 0x40010C00
	GPIOCBase uintptr = 0x40011000

	SPI1Base uintptr = 0x40013000
	SPI2Base uintptr = 0x40003800

	RCCBase uintptr = 0x40021000
)

// RCC clock-enable registers and bits
const (
	RCCOffsetAPB2ENR = 0x18
	RCCOffsetAPB1ENR = 0x1C

	RCCAPB2ENRAFIOEN   = 0
	RCCAPB2ENRIOPAEN   = 2
	RCCAPB2ENRIOPBEN   = 3
	RCCAPB2ENRIOPCEN   = 4
	RCCAPB2ENRSPI1EN   = 12
	RCCAPB2ENRUSART1EN = 14

	RCCAPB1ENRSPI2EN = 14
)

// Bus clocks after the default 72 MHz setup. SPI1 sits on APB2, SPI2 on APB1.
const (
	PCLK2Hz = 72000000
	PCLK1Hz = 36000000
)

// GPIO register offsets
const (
	GPIOOffsetCRL  = 0x00
	GPIOOffsetCRH  = 0x04
	GPIOOffsetIDR  = 0x08
	GPIOOffsetODR  = 0x0C
	GPIOOffsetBSRR = 0x10
	GPIOOffsetBRR  = 0x14
	GPIOOffsetLCKR = 0x18
)

// SPI register offsets
const (
	SPIOffsetCR1 = 0x00
	SPIOffsetCR2 = 0x04
	SPIOffsetSR  = 0x08
	SPIOffsetDR  = 0x0C
)

// SPI_CR1 bit positions
const (
	SPICR1CPHA     = 0
	SPICR1CPOL     = 1
	SPICR1MSTR     = 2
	SPICR1BR       = 3 // BR[2:0] starts here
	SPICR1SPE      = 6
	SPICR1LSBFIRST = 7
	SPICR1SSI      = 8
	SPICR1SSM      = 9
	SPICR1RXONLY   = 10
	SPICR1DFF      = 11
	SPICR1CRCNEXT  = 12
	SPICR1CRCEN    = 13
	SPICR1BIDIOE   = 14
	SPICR1BIDIMODE = 15

	SPICR1BRMask = 0x7
)

// SPI_CR2 bit positions
const (
	SPICR2RXDMAEN = 0
	SPICR2TXDMAEN = 1
	SPICR2SSOE    = 2
	SPICR2ERRIE   = 5
	SPICR2RXNEIE  = 6
	SPICR2TXEIE   = 7
)

// SPI_SR bit positions
const (
	SPISRRXNE   = 0
	SPISRTXE    = 1
	SPISRCHSIDE = 2
	SPISRUDR    = 3
	SPISRCRCERR = 4
	SPISRMODF   = 5
	SPISROVR    = 6
	SPISRBSY    = 7
)

// Pins per GPIO port
const GPIOPortWidth = 16
