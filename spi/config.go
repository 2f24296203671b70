package spi

import (
	"errors"
	"fmt"
	"time"

	"bluepill-mcal/core"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
	periphspi "periph.io/x/conn/v3/spi"
)

// Limits and defaults
const (
	MaxIBElements          = 16
	DefaultMaxEBLength     = 10
	DefaultTransferTimeout = 10 * time.Millisecond
)

// ChannelConfig describes one channel.
type ChannelConfig struct {
	ID     ChannelID
	Buffer BufferKind
	Width  DataWidth
	Order  BitOrder
	// Elements is the internal buffer size, or the largest length SetupEB
	// accepts for an external channel.
	Elements uint16
	// DefaultData is sent for every element when no source data is set
	DefaultData uint16
}

// Size returns the number of buffer bytes for Elements elements
func (c *ChannelConfig) Size() int {
	return int(c.Elements) * c.Width.Bytes()
}

// JobConfig describes one job.
type JobConfig struct {
	ID       JobID
	Unit     HWUnit
	Polarity ClockPolarity
	Phase    ClockPhase
	Baud     BaudDivisor
	// CSPin is driven low for the duration of the job unless HardwareCS is
	// set, in which case the unit drives its NSS pin.
	CSPin      core.DioChannel
	HardwareCS bool
	Channels   []ChannelID
}

// Mode returns the clock mode in periph.io terms
func (j *JobConfig) Mode() periphspi.Mode {
	m := periphspi.Mode0
	if j.Polarity == PolarityHigh {
		m |= periphspi.Mode2
	}
	if j.Phase == PhaseSecond {
		m |= periphspi.Mode1
	}
	return m
}

// Frequency returns the SCK frequency for a peripheral clock of pclk
func (j *JobConfig) Frequency(pclk physic.Frequency) physic.Frequency {
	return pclk / physic.Frequency(j.Baud.Divisor())
}

// SequenceConfig describes one sequence.
type SequenceConfig struct {
	ID   SequenceID
	Jobs []JobID
}

// Config is the complete, immutable driver configuration. Ids are indices:
// Channels[i].ID must equal i, and likewise for jobs and sequences.
type Config struct {
	Channels  []ChannelConfig
	Jobs      []JobConfig
	Sequences []SequenceConfig

	// DevErrorDetect enables reporting of development errors
	DevErrorDetect bool
	// ConcurrentSyncTransmit lets sequences on disjoint units run at once
	ConcurrentSyncTransmit bool
	// MaxEBLength caps SetupEB lengths for every channel
	MaxEBLength uint16
	// TransferTimeout bounds the wait for one frame
	TransferTimeout time.Duration
}

// ApplyDefaults fills zero limits with their defaults
func (c *Config) ApplyDefaults() {
	if c.MaxEBLength == 0 {
		c.MaxEBLength = DefaultMaxEBLength
	}
	if c.TransferTimeout == 0 {
		c.TransferTimeout = DefaultTransferTimeout
	}
}

// Validate reports every structural problem of the configuration.
func (c *Config) Validate() error {
	var err error

	if len(c.Sequences) == 0 {
		err = multierr.Append(err, errors.New("no sequences configured"))
	}
	if c.TransferTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("negative transfer timeout %v", c.TransferTimeout))
	}

	for i := range c.Channels {
		ch := &c.Channels[i]
		if int(ch.ID) != i {
			err = multierr.Append(err, fmt.Errorf("channel at index %d has id %d", i, ch.ID))
		}
		if ch.Buffer > ExternalBuffer {
			err = multierr.Append(err, fmt.Errorf("channel %d: unknown buffer kind %d", i, ch.Buffer))
		}
		if ch.Width > Width16 {
			err = multierr.Append(err, fmt.Errorf("channel %d: unknown data width %d", i, ch.Width))
		}
		if ch.Elements == 0 {
			err = multierr.Append(err, fmt.Errorf("channel %d: zero elements", i))
		}
		if ch.Buffer == InternalBuffer && ch.Elements > MaxIBElements {
			err = multierr.Append(err, fmt.Errorf("channel %d: %d elements exceed internal buffer limit %d",
				i, ch.Elements, MaxIBElements))
		}
		if ch.Width == Width8 && ch.DefaultData > 0xFF {
			err = multierr.Append(err, fmt.Errorf("channel %d: default data 0x%X does not fit 8 bits", i, ch.DefaultData))
		}
	}

	for i := range c.Jobs {
		job := &c.Jobs[i]
		if int(job.ID) != i {
			err = multierr.Append(err, fmt.Errorf("job at index %d has id %d", i, job.ID))
		}
		if !job.Unit.valid() {
			err = multierr.Append(err, fmt.Errorf("job %d: unknown hardware unit %d", i, job.Unit))
		}
		if job.Baud > Div256 {
			err = multierr.Append(err, fmt.Errorf("job %d: unknown baud divisor %d", i, job.Baud))
		}
		if !job.HardwareCS && !job.CSPin.Valid() {
			err = multierr.Append(err, fmt.Errorf("job %d: software chip select on pin %s", i, job.CSPin))
		}
		if len(job.Channels) == 0 {
			err = multierr.Append(err, fmt.Errorf("job %d: no channels", i))
		}
		for _, ch := range job.Channels {
			if int(ch) >= len(c.Channels) {
				err = multierr.Append(err, fmt.Errorf("job %d: unknown channel %d", i, ch))
			}
		}
	}

	for i := range c.Sequences {
		seq := &c.Sequences[i]
		if int(seq.ID) != i {
			err = multierr.Append(err, fmt.Errorf("sequence at index %d has id %d", i, seq.ID))
		}
		if len(seq.Jobs) == 0 {
			err = multierr.Append(err, fmt.Errorf("sequence %d: no jobs", i))
		}
		for _, j := range seq.Jobs {
			if int(j) >= len(c.Jobs) {
				err = multierr.Append(err, fmt.Errorf("sequence %d: unknown job %d", i, j))
			}
		}
	}

	return err
}

// claim is what an in-flight sequence holds: its hardware units and every
// channel its jobs exchange.
type claim struct {
	units    uint8
	channels [4]uint64 // bit set indexed by ChannelID
}

func (c *claim) overlaps(o claim) bool {
	if c.units&o.units != 0 {
		return true
	}
	for i := range c.channels {
		if c.channels[i]&o.channels[i] != 0 {
			return true
		}
	}
	return false
}

func (c *claim) add(o claim) {
	c.units |= o.units
	for i := range c.channels {
		c.channels[i] |= o.channels[i]
	}
}

func (c *claim) remove(o claim) {
	c.units &^= o.units
	for i := range c.channels {
		c.channels[i] &^= o.channels[i]
	}
}

func (c *claim) empty() bool {
	return *c == claim{}
}

// claimOf returns the units and channels seq touches
func (c *Config) claimOf(seq SequenceID) claim {
	var cl claim
	for _, j := range c.Sequences[seq].Jobs {
		job := &c.Jobs[j]
		cl.units |= job.Unit.mask()
		for _, ch := range job.Channels {
			cl.channels[ch/64] |= 1 << (ch % 64)
		}
	}
	return cl
}
