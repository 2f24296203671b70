//go:build stm32f103

package main

import (
	"image/color"
	"machine"
	"time"

	"bluepill-mcal/core"
	"bluepill-mcal/det"
	"bluepill-mcal/dio"
	"bluepill-mcal/protocol"
	"bluepill-mcal/spi"

	"periph.io/x/conn/v3/gpio"
	"tinygo.org/x/drivers/apa102"
)

var (
	encoder *protocol.Encoder
	tracer  *det.Tracer
	pins    *dio.Driver
	handler *spi.Driver

	// Stamp of the newest event already exported
	lastStamp uint32
)

func main() {
	enableClocks()

	// USART1 on PA9/PA10 carries the report frames
	uart := machine.UART1
	if err := uart.Configure(machine.UARTConfig{BaudRate: 115200}); err != nil {
		return
	}
	encoder = protocol.NewEncoder(uart)

	tracer = det.New(det.DefaultCapacity, encoder)
	tracer.Init()

	pins = dio.New([core.GPIOPortCount]*core.GPIORegisters{
		gpioRegisters(core.GPIOABase),
		gpioRegisters(core.GPIOBBase),
		gpioRegisters(core.GPIOCBase),
	})
	configurePins()

	handler = spi.New(core.SPIRegisterTable{
		core.SPIBus1: spiRegisters(core.SPI1Base),
		core.SPIBus2: spiRegisters(core.SPI2Base),
	}, pins, tracer)
	if err := handler.Init(&boardConfig); err != nil {
		// The tracer already holds the report; export it and halt
		_ = tracer.Start()
		halt()
	}

	_ = encoder.Identify()
	_ = tracer.Start()

	flash, err := spi.NewBus(handler, chFlashData, seqFlashIO)
	if err != nil {
		halt()
	}
	stripBus, err := spi.NewBus(handler, chStripData, seqStrip)
	if err != nil {
		halt()
	}
	strip := apa102.New(stripBus)
	colors := make([]color.RGBA, 8)

	var dac uint16
	var tick uint8
	for {
		_, _ = pins.FlipChannel(pinLED)

		readID()
		updateDAC(dac)
		dac = (dac + 64) & 0x0FFF
		readStatus(flash)

		// The strip shows which sequences failed last round
		for i := range colors {
			colors[i] = color.RGBA{G: tick, A: 0x20}
		}
		for i := spi.SequenceID(0); i < seqStrip && int(i) < len(colors); i++ {
			if handler.GetSequenceResult(i) == spi.SeqFailed {
				colors[i] = color.RGBA{R: 0xFF, A: 0x20}
			}
		}
		_, _ = strip.WriteColors(colors)
		tick += 8

		exportEvents()
		time.Sleep(250 * time.Millisecond)
	}
}

func configurePins() {
	_ = pins.ConfigureOutput(pinLED, gpio.High)
	_ = pins.ConfigureOutput(pinCS1, gpio.High)
	_ = pins.ConfigureOutput(pinCS2, gpio.High)
	for _, ch := range []core.DioChannel{pinSCK1, pinMOSI1, pinSCK2, pinMOSI2} {
		_ = pins.ConfigureAlternate(ch)
	}
	_ = pins.ConfigureInput(pinMISO1)
	_ = pins.ConfigureInput(pinMISO2)
}

// readID sends JEDEC 0x9F and leaves the three id bytes in the buffer
func readID() {
	_ = handler.WriteIB(chIDCommand, []byte{0x9F, 0xFF, 0xFF, 0xFF})
	if err := handler.SyncTransmit(seqReadID); err != nil {
		return
	}
	var id [4]byte
	_, _ = handler.ReadIB(chIDCommand, id[:])
}

// updateDAC writes channel A, gain 1x, output enabled
func updateDAC(value uint16) {
	word := 0x3000 | value&0x0FFF
	_ = handler.WriteIB(chDACWord, []byte{byte(word >> 8), byte(word)})
	_ = handler.SyncTransmit(seqDAC)
}

// readStatus reads the flash status register through the bus adapter
func readStatus(bus *spi.Bus) byte {
	w := []byte{0x05, 0xFF}
	r := make([]byte, len(w))
	if err := bus.Tx(w, r); err != nil {
		return 0
	}
	return r[1]
}

// exportEvents sends events recorded since the last call
func exportEvents() {
	for _, e := range core.Events() {
		if e.Stamp <= lastStamp {
			continue
		}
		if encoder.Event(e) != nil {
			return
		}
		lastStamp = e.Stamp
	}
}

func halt() {
	for {
		_, _ = pins.FlipChannel(pinLED)
		time.Sleep(50 * time.Millisecond)
	}
}
