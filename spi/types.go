// Package spi is the SPI Handler/Driver for the STM32F103: a configured
// hierarchy of channels, jobs and sequences transmitted synchronously over
// the SPI1 and SPI2 peripherals.
//
// A Channel is the smallest unit of data, buffered either internally (IB,
// owned by the driver) or externally (EB, caller supplied). A Job is an
// ordered list of channels sent with one chip-select assertion on one
// hardware unit. A Sequence is an ordered list of jobs forming one
// transaction.
package spi

import "bluepill-mcal/core"

type (
	ChannelID  uint8
	JobID      uint16
	SequenceID uint8
)

// HWUnit is an SPI peripheral, numbered like the MCU does
type HWUnit uint8

const (
	SPI1 HWUnit = 1
	SPI2 HWUnit = 2
)

// NumUnits is the number of hardware units on the STM32F103C8
const NumUnits = 2

func (u HWUnit) valid() bool {
	return u >= SPI1 && u <= SPI2
}

func (u HWUnit) bus() core.SPIBusID {
	return core.SPIBusID(u)
}

// mask returns the bit claimed by u in an admission mask
func (u HWUnit) mask() uint8 {
	return 1 << (u - 1)
}

func (u HWUnit) String() string {
	switch u {
	case SPI1:
		return "SPI1"
	case SPI2:
		return "SPI2"
	default:
		return "SPI?"
	}
}

// Status is the state of the driver or of one hardware unit.
type Status uint8

const (
	Uninit Status = iota
	Idle
	Busy
)

func (s Status) String() string {
	switch s {
	case Uninit:
		return "UNINIT"
	case Idle:
		return "IDLE"
	case Busy:
		return "BUSY"
	default:
		return "UNKNOWN"
	}
}

// JobResult is the outcome of the last transmission of a job.
type JobResult uint8

const (
	JobOK JobResult = iota
	JobPending
	JobFailed
	JobQueued
)

func (r JobResult) String() string {
	switch r {
	case JobOK:
		return "JOB_OK"
	case JobPending:
		return "JOB_PENDING"
	case JobFailed:
		return "JOB_FAILED"
	case JobQueued:
		return "JOB_QUEUED"
	default:
		return "UNKNOWN"
	}
}

// SeqResult is the outcome of the last transmission of a sequence.
type SeqResult uint8

const (
	SeqOK SeqResult = iota
	SeqPending
	SeqFailed
	SeqCancelled
)

func (r SeqResult) String() string {
	switch r {
	case SeqOK:
		return "SEQ_OK"
	case SeqPending:
		return "SEQ_PENDING"
	case SeqFailed:
		return "SEQ_FAILED"
	case SeqCancelled:
		return "SEQ_CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// BufferKind selects who owns a channel's data.
type BufferKind uint8

const (
	InternalBuffer BufferKind = iota
	ExternalBuffer
)

func (k BufferKind) String() string {
	switch k {
	case InternalBuffer:
		return "IB"
	case ExternalBuffer:
		return "EB"
	default:
		return "UNKNOWN"
	}
}

// DataWidth is the frame size of a channel.
type DataWidth uint8

const (
	Width8 DataWidth = iota
	Width16
)

// Bytes returns the buffer bytes used by one element
func (w DataWidth) Bytes() int {
	if w == Width16 {
		return 2
	}
	return 1
}

func (w DataWidth) String() string {
	switch w {
	case Width8:
		return "8bit"
	case Width16:
		return "16bit"
	default:
		return "UNKNOWN"
	}
}

// BitOrder selects which end of a frame is shifted out first.
type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

func (o BitOrder) String() string {
	switch o {
	case MSBFirst:
		return "MSB"
	case LSBFirst:
		return "LSB"
	default:
		return "UNKNOWN"
	}
}

// ClockPolarity is the idle level of SCK (CPOL).
type ClockPolarity uint8

const (
	PolarityLow ClockPolarity = iota
	PolarityHigh
)

func (p ClockPolarity) String() string {
	switch p {
	case PolarityLow:
		return "CPOL0"
	case PolarityHigh:
		return "CPOL1"
	default:
		return "UNKNOWN"
	}
}

// ClockPhase selects the SCK edge data is captured on (CPHA).
type ClockPhase uint8

const (
	PhaseFirst ClockPhase = iota
	PhaseSecond
)

func (p ClockPhase) String() string {
	switch p {
	case PhaseFirst:
		return "CPHA0"
	case PhaseSecond:
		return "CPHA1"
	default:
		return "UNKNOWN"
	}
}

// BaudDivisor is the SPI clock prescaler; its value is the BR[2:0] field.
type BaudDivisor uint8

const (
	Div2 BaudDivisor = iota
	Div4
	Div8
	Div16
	Div32
	Div64
	Div128
	Div256
)

// Divisor returns the factor the peripheral clock is divided by
func (b BaudDivisor) Divisor() int {
	return 2 << b
}

func (b BaudDivisor) String() string {
	if b > Div256 {
		return "UNKNOWN"
	}
	return "fPCLK/" + core.Utoa(uint32(b.Divisor()))
}

// VersionInfo identifies the driver build.
type VersionInfo struct {
	VendorID uint16
	ModuleID uint16
	SWMajor  uint8
	SWMinor  uint8
	SWPatch  uint8
}
