package dio

import (
	"testing"

	"bluepill-mcal/core"
	"bluepill-mcal/sim"

	"periph.io/x/conn/v3/gpio"
)

func newTestDriver() (*Driver, *sim.GPIO, *sim.Trace) {
	trace := sim.NewTrace()
	g := sim.NewGPIO(trace)
	return New(g.Registers()), g, trace
}

func TestWriteChannelSetAndReset(t *testing.T) {
	d, g, _ := newTestDriver()

	// PB12, a typical SPI2 NSS pin
	ch := core.DioChannel(28)
	if err := d.WriteChannel(ch, gpio.High); err != nil {
		t.Fatalf("WriteChannel(high) failed: %v", err)
	}
	if g.Level(ch) != gpio.High {
		t.Errorf("expected PB12 high")
	}
	if err := d.WriteChannel(ch, gpio.Low); err != nil {
		t.Fatalf("WriteChannel(low) failed: %v", err)
	}
	if g.Level(ch) != gpio.Low {
		t.Errorf("expected PB12 low")
	}
}

func TestWriteChannelDoesNotDisturbNeighbours(t *testing.T) {
	d, g, _ := newTestDriver()

	a4, a5 := core.DioChannel(4), core.DioChannel(5)
	_ = d.WriteChannel(a4, gpio.High)
	_ = d.WriteChannel(a5, gpio.High)
	_ = d.WriteChannel(a4, gpio.Low)

	if g.Level(a4) != gpio.Low || g.Level(a5) != gpio.High {
		t.Errorf("got A4=%v A5=%v, want A4=Low A5=High", g.Level(a4), g.Level(a5))
	}
}

func TestInvalidChannels(t *testing.T) {
	d, _, trace := newTestDriver()

	invalid := []core.DioChannel{13, 14, 18, 32, 44, 48, core.DioChannelInvalid}
	for _, ch := range invalid {
		if err := d.WriteChannel(ch, gpio.High); err != ErrInvalidChannel {
			t.Errorf("channel %d: got %v, want ErrInvalidChannel", ch, err)
		}
		if d.Valid(ch) {
			t.Errorf("channel %d reported valid", ch)
		}
	}
	if trace.Len() != 0 {
		t.Errorf("invalid writes touched hardware: %v", trace.Entries())
	}

	for _, ch := range []core.DioChannel{0, 15, 16, 17, 19, 45, 47} {
		if !d.Valid(ch) {
			t.Errorf("channel %d reported invalid", ch)
		}
	}
}

func TestConfigureOutputAndReadBack(t *testing.T) {
	d, g, _ := newTestDriver()

	// PC13 drives the on-board LED
	led := core.DioChannel(45)
	if err := d.ConfigureOutput(led, gpio.High); err != nil {
		t.Fatalf("ConfigureOutput failed: %v", err)
	}
	crh := g.Ports[core.GPIOPortC].Registers().CRH.Get()
	if mode := (crh >> 20) & 0xF; mode != pinModeOutput2MHz {
		t.Errorf("PC13 mode bits = 0x%X, want 0x%X", mode, pinModeOutput2MHz)
	}

	level, err := d.ReadChannel(led)
	if err != nil {
		t.Fatalf("ReadChannel failed: %v", err)
	}
	if level != gpio.High {
		t.Errorf("expected output to read back high")
	}

	level, err = d.FlipChannel(led)
	if err != nil {
		t.Fatalf("FlipChannel failed: %v", err)
	}
	if level != gpio.Low || g.Level(led) != gpio.Low {
		t.Errorf("FlipChannel did not drive the pin low")
	}
}

func TestReadChannelInput(t *testing.T) {
	d, g, _ := newTestDriver()

	g.Ports[core.GPIOPortA].SetInput(0, gpio.High)
	level, err := d.ReadChannel(0)
	if err != nil {
		t.Fatalf("ReadChannel failed: %v", err)
	}
	if level != gpio.High {
		t.Errorf("expected PA0 input high")
	}
}

func TestPortAccess(t *testing.T) {
	d, g, _ := newTestDriver()

	if err := d.WritePort(core.GPIOPortB, 0x1001); err != nil {
		t.Fatalf("WritePort failed: %v", err)
	}
	if g.Level(16) != gpio.High || g.Level(28) != gpio.High || g.Level(17) != gpio.Low {
		t.Errorf("WritePort did not drive PB0/PB12")
	}
	if _, err := d.ReadPort(3); err != ErrInvalidPort {
		t.Errorf("ReadPort(3) = %v, want ErrInvalidPort", err)
	}
}

func TestConfigureSPIPins(t *testing.T) {
	d, g, _ := newTestDriver()

	// SPI2 on PB13 (SCK), PB14 (MISO), PB15 (MOSI)
	for _, ch := range []core.DioChannel{29, 31} {
		if err := d.ConfigureAlternate(ch); err != nil {
			t.Fatalf("ConfigureAlternate(%d) failed: %v", ch, err)
		}
	}
	if err := d.ConfigureInput(30); err != nil {
		t.Fatalf("ConfigureInput failed: %v", err)
	}

	crh := g.Ports[core.GPIOPortB].Registers().CRH.Get()
	if crh>>20 != 0xB4B {
		t.Errorf("CRH = 0x%08X, want PB13-PB15 = B,4,B", crh)
	}
	// Untouched pins keep their reset configuration
	if crh&0xFFFFF != 0x44444 {
		t.Errorf("CRH low pins changed: 0x%08X", crh)
	}
	if err := d.ConfigureAlternate(14); err != ErrInvalidChannel {
		t.Errorf("ConfigureAlternate(PA14) = %v, want ErrInvalidChannel", err)
	}
}
