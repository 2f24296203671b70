package spi

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	periphspi "periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

var errKeepCS = errors.New("spi: bus: KeepCS is not supported, chip select follows the job")

// Bus exposes one external channel of a configured sequence as a plain SPI
// connection, so that device drivers written against tinygo.org/x/drivers
// or periph.io can run over the handler.
//
// Every transfer is staged with SetupEB and sent with SyncTransmit. A
// transfer longer than the channel's external buffer limit is split into
// several sequence runs, and chip select is released between them. When
// Tx returns the channel no longer refers to the caller's slices: a later
// SyncTransmit of the sequence sends the channel default and discards what
// it receives.
type Bus struct {
	d   *Driver
	ch  ChannelID
	seq SequenceID

	mu sync.Mutex
}

// NewBus binds ch, which must be an external channel used by seq.
func NewBus(d *Driver, ch ChannelID, seq SequenceID) (*Bus, error) {
	cfg := d.Config()
	if cfg == nil {
		return nil, fmt.Errorf("spi: bus: %w", ErrUninit)
	}
	if int(seq) >= len(cfg.Sequences) {
		return nil, fmt.Errorf("spi: bus: sequence %d: %w", seq, ErrParamSeq)
	}
	if int(ch) >= len(cfg.Channels) || cfg.Channels[ch].Buffer != ExternalBuffer {
		return nil, fmt.Errorf("spi: bus: channel %d is not external: %w", ch, ErrParamChannel)
	}
	for _, j := range cfg.Sequences[seq].Jobs {
		for _, c := range cfg.Jobs[j].Channels {
			if c == ch {
				return &Bus{d: d, ch: ch, seq: seq}, nil
			}
		}
	}
	return nil, fmt.Errorf("spi: bus: sequence %d does not use channel %d: %w", seq, ch, ErrParamChannel)
}

// String implements conn.Resource.
func (b *Bus) String() string {
	cfg := b.d.Config()
	if cfg == nil {
		return "spi-bus(uninit)"
	}
	unit := cfg.Jobs[cfg.Sequences[b.seq].Jobs[0]].Unit
	return fmt.Sprintf("%s/seq%d/ch%d", unit, b.seq, b.ch)
}

// Halt implements conn.Resource. Transfers are synchronous, so there is
// nothing to stop.
func (b *Bus) Halt() error {
	return nil
}

// Duplex implements conn.Conn.
func (b *Bus) Duplex() conn.Duplex {
	return conn.Full
}

// Tx implements drivers.SPI and conn.Conn. Either w or r may be nil; when
// both are given they must have the same length.
func (b *Bus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg := b.d.Config()
	if cfg == nil {
		return fmt.Errorf("spi: bus: %w", ErrUninit)
	}
	chCfg := &cfg.Channels[b.ch]
	width := chCfg.Width.Bytes()

	if w != nil && r != nil && len(w) != len(r) {
		return fmt.Errorf("spi: bus: write %d bytes, read %d bytes: %w", len(w), len(r), ErrParamLength)
	}
	n := max(len(w), len(r))
	if n%width != 0 {
		return fmt.Errorf("spi: bus: %d bytes is not a whole number of %s frames: %w", n, chCfg.Width, ErrParamLength)
	}

	bound := false
	defer func() {
		if bound {
			_ = b.d.SetupEB(b.ch, nil, nil, 1)
		}
	}()

	chunk := int(min(cfg.MaxEBLength, chCfg.Elements)) * width
	for off := 0; off < n; off += chunk {
		end := min(off+chunk, n)
		var ws, rs []byte
		if w != nil {
			ws = w[off:end]
		}
		if r != nil {
			rs = r[off:end]
		}
		if err := b.d.SetupEB(b.ch, ws, rs, uint16((end-off)/width)); err != nil {
			return err
		}
		bound = true
		if err := b.d.SyncTransmit(b.seq); err != nil {
			return err
		}
	}
	return nil
}

// Transfer implements drivers.SPI.
func (b *Bus) Transfer(w byte) (byte, error) {
	var r [1]byte
	err := b.Tx([]byte{w}, r[:])
	return r[0], err
}

// TxPackets implements spi.Conn. Each packet is a separate transfer.
func (b *Bus) TxPackets(p []periphspi.Packet) error {
	cfg := b.d.Config()
	if cfg == nil {
		return fmt.Errorf("spi: bus: %w", ErrUninit)
	}
	bits := uint8(8 * cfg.Channels[b.ch].Width.Bytes())
	for i := range p {
		if p[i].KeepCS {
			return errKeepCS
		}
		if p[i].BitsPerWord != 0 && p[i].BitsPerWord != bits {
			return fmt.Errorf("spi: bus: packet %d wants %d bits per word, channel has %d: %w",
				i, p[i].BitsPerWord, bits, ErrParamLength)
		}
		if err := b.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ drivers.SPI    = (*Bus)(nil)
	_ periphspi.Conn = (*Bus)(nil)
)
