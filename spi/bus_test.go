package spi

import (
	"errors"
	"testing"

	"bluepill-mcal/sim"

	"periph.io/x/conn/v3"
	periphspi "periph.io/x/conn/v3/spi"
)

func busConfig() *Config {
	return &Config{
		Channels: []ChannelConfig{
			{ID: 0, Buffer: InternalBuffer, Width: Width8, Elements: 1, DefaultData: 0x03},
			{ID: 1, Buffer: ExternalBuffer, Width: Width8, Elements: 4},
			{ID: 2, Buffer: ExternalBuffer, Width: Width16, Elements: 4},
		},
		Jobs: []JobConfig{
			{ID: 0, Unit: SPI1, CSPin: csPA4, Channels: []ChannelID{1}},
			{ID: 1, Unit: SPI2, CSPin: csPB12, Channels: []ChannelID{0, 2}},
		},
		Sequences: []SequenceConfig{
			{ID: 0, Jobs: []JobID{0}},
			{ID: 1, Jobs: []JobID{1}},
		},
		MaxEBLength: 3,
	}
}

func TestNewBusValidation(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := NewBus(f.d, 1, 0); !errors.Is(err, ErrUninit) {
		t.Errorf("before Init: got %v", err)
	}

	f = newFixture(t, busConfig())
	tests := []struct {
		name string
		ch   ChannelID
		seq  SequenceID
		want error
	}{
		{"internal channel", 0, 1, ErrParamChannel},
		{"unknown channel", 7, 0, ErrParamChannel},
		{"unknown sequence", 1, 4, ErrParamSeq},
		{"channel outside sequence", 2, 0, ErrParamChannel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewBus(f.d, tc.ch, tc.seq); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}

	b, err := NewBus(f.d, 1, 0)
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}
	if got := b.String(); got != "SPI1/seq0/ch1" {
		t.Errorf("String() = %q", got)
	}
	if b.Duplex() != conn.Full {
		t.Errorf("Duplex() = %v", b.Duplex())
	}
}

func TestBusTxChunks(t *testing.T) {
	f := newFixture(t, busConfig())
	f.spi1.SetResponder(func(tx uint16) uint16 { return tx + 1 })
	b, err := NewBus(f.d, 1, 0)
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}

	w := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	r := make([]byte, len(w))
	if err := b.Tx(w, r); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	for i := range w {
		if r[i] != w[i]+1 {
			t.Errorf("r[%d] = %d, want %d", i, r[i], w[i]+1)
		}
	}

	// Limit 3 splits eight bytes into three runs, each framed by chip select
	if pins := f.trace.Filter(sim.TracePin); len(pins) != 6 {
		t.Errorf("chip select toggled %d times, want 6", len(pins))
	}
	if got := f.d.GetSequenceResult(0); got != SeqOK {
		t.Errorf("GetSequenceResult(0) = %s", got)
	}

	rx, err := b.Transfer(0x40)
	if err != nil || rx != 0x41 {
		t.Errorf("Transfer(0x40) = 0x%02X, %v", rx, err)
	}
}

func TestBusReleasesCallerBuffers(t *testing.T) {
	f := newFixture(t, busConfig())
	f.spi1.SetResponder(func(tx uint16) uint16 { return 0xA5 })
	b, _ := NewBus(f.d, 1, 0)

	w := []byte{1, 2}
	r := make([]byte, 2)
	if err := b.Tx(w, r); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	r[0], r[1] = 0, 0

	// A direct run of the sequence must not reach the slices Tx was given
	if err := f.d.SyncTransmit(0); err != nil {
		t.Fatalf("SyncTransmit failed: %v", err)
	}
	if r[0] != 0 || r[1] != 0 {
		t.Errorf("caller buffer written after Tx returned: %X", r)
	}
	sent := f.spi1.Sent()
	if len(sent) != 3 || sent[2] != 0 {
		t.Errorf("sent %X, want [1 2 0]", sent)
	}
}

func TestBusReadOnlyAndWriteOnly(t *testing.T) {
	f := newFixture(t, busConfig())
	b, _ := NewBus(f.d, 1, 0)

	if err := b.Tx([]byte{9, 8}, nil); err != nil {
		t.Fatalf("write-only Tx failed: %v", err)
	}
	r := make([]byte, 2)
	if err := b.Tx(nil, r); err != nil {
		t.Fatalf("read-only Tx failed: %v", err)
	}
	sent := f.spi1.Sent()
	if len(sent) != 4 || sent[0] != 9 || sent[2] != 0 || sent[3] != 0 {
		t.Errorf("sent %X, want [9 8 0 0]", sent)
	}

	if err := b.Tx(make([]byte, 2), make([]byte, 3)); !errors.Is(err, ErrParamLength) {
		t.Errorf("mismatched lengths: got %v", err)
	}
}

func TestBusSixteenBit(t *testing.T) {
	f := newFixture(t, busConfig())
	b, err := NewBus(f.d, 2, 1)
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}

	if err := b.Tx([]byte{0x12, 0x34, 0x56}, nil); !errors.Is(err, ErrParamLength) {
		t.Errorf("odd byte count: got %v", err)
	}
	if err := b.Tx([]byte{0x12, 0x34, 0xAB, 0xCD}, nil); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}

	// The internal channel of the same job goes first with its default
	sent := f.spi2.Sent()
	if len(sent) != 3 || sent[0] != 0x03 || sent[1] != 0x1234 || sent[2] != 0xABCD {
		t.Errorf("sent %X, want [3 1234 ABCD]", sent)
	}
}

func TestBusTxPackets(t *testing.T) {
	f := newFixture(t, busConfig())
	b, _ := NewBus(f.d, 1, 0)

	r := make([]byte, 2)
	packets := []periphspi.Packet{
		{W: []byte{0xA1}},
		{W: []byte{0xB1, 0xB2}, R: r, BitsPerWord: 8},
	}
	if err := b.TxPackets(packets); err != nil {
		t.Fatalf("TxPackets failed: %v", err)
	}
	if r[0] != 0xB1 || r[1] != 0xB2 {
		t.Errorf("r = %X", r)
	}
	if len(f.spi1.Sent()) != 3 {
		t.Errorf("sent %X", f.spi1.Sent())
	}

	if err := b.TxPackets([]periphspi.Packet{{W: []byte{1}, KeepCS: true}}); !errors.Is(err, errKeepCS) {
		t.Errorf("KeepCS: got %v", err)
	}
	if err := b.TxPackets([]periphspi.Packet{{W: []byte{1, 2}, BitsPerWord: 16}}); !errors.Is(err, ErrParamLength) {
		t.Errorf("BitsPerWord 16 on an 8-bit channel: got %v", err)
	}
}
