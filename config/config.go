// Package config loads SPI handler configurations from JSON for the host
// tools. Firmware builds compile their spi.Config in directly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"bluepill-mcal/core"
	"bluepill-mcal/spi"

	"go.uber.org/multierr"
)

// Document is the JSON form of a configuration.
type Document struct {
	DevErrorDetect         bool   `json:"dev_error_detect"`
	ConcurrentSyncTransmit bool   `json:"concurrent_sync_transmit"`
	MaxEBLength            uint16 `json:"max_eb_length"`
	TransferTimeout        string `json:"transfer_timeout"`

	Channels  []Channel  `json:"channels"`
	Jobs      []Job      `json:"jobs"`
	Sequences []Sequence `json:"sequences"`
}

// Channel is the JSON form of spi.ChannelConfig. Ids may be omitted, in
// which case the position in the list is used.
type Channel struct {
	ID          *uint8 `json:"id,omitempty"`
	Buffer      string `json:"buffer"`   // "internal" or "external"
	Width       int    `json:"width"`    // 8 or 16
	Order       string `json:"order"`    // "msb" or "lsb"
	Elements    uint16 `json:"elements"`
	DefaultData uint16 `json:"default_data"`
}

// Job is the JSON form of spi.JobConfig.
type Job struct {
	ID         *uint16 `json:"id,omitempty"`
	Unit       string  `json:"unit"`        // "SPI1" or "SPI2"
	Mode       int     `json:"mode"`        // SPI mode 0-3
	Divisor    int     `json:"divisor"`     // 2, 4, ... 256
	CSPin      string  `json:"cs_pin"`      // e.g. "PA4"
	HardwareCS bool    `json:"hardware_cs"`
	Channels   []uint8 `json:"channels"`
}

// Sequence is the JSON form of spi.SequenceConfig.
type Sequence struct {
	ID   *uint8   `json:"id,omitempty"`
	Name string   `json:"name,omitempty"`
	Jobs []uint16 `json:"jobs"`
}

// Load parses a JSON configuration, fills in defaults and validates it.
func Load(jsonData []byte) (*spi.Config, error) {
	doc, err := Parse(jsonData)
	if err != nil {
		return nil, err
	}
	cfg, err := doc.Build()
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// LoadFile reads and parses the configuration at path.
func LoadFile(path string) (*spi.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Load(data)
}

// applyDefaults fills in missing values with the settings of a typical
// 8-bit mode 0 device
func applyDefaults(doc *Document) {
	if doc.TransferTimeout == "" {
		doc.TransferTimeout = spi.DefaultTransferTimeout.String()
	}
	for i := range doc.Channels {
		ch := &doc.Channels[i]
		if ch.Buffer == "" {
			ch.Buffer = "internal"
		}
		if ch.Width == 0 {
			ch.Width = 8
		}
		if ch.Order == "" {
			ch.Order = "msb"
		}
	}
	for i := range doc.Jobs {
		if doc.Jobs[i].Divisor == 0 {
			doc.Jobs[i].Divisor = 64
		}
	}
}

// Build converts the document into a driver configuration. Every field
// that fails to convert is reported.
func (doc *Document) Build() (*spi.Config, error) {
	var errs error
	cfg := &spi.Config{
		DevErrorDetect:         doc.DevErrorDetect,
		ConcurrentSyncTransmit: doc.ConcurrentSyncTransmit,
		MaxEBLength:            doc.MaxEBLength,
	}

	if doc.TransferTimeout != "" {
		d, err := time.ParseDuration(doc.TransferTimeout)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("transfer_timeout: %w", err))
		}
		cfg.TransferTimeout = d
	}

	for i, c := range doc.Channels {
		ch := spi.ChannelConfig{
			ID:          spi.ChannelID(i),
			Elements:    c.Elements,
			DefaultData: c.DefaultData,
		}
		if c.ID != nil {
			ch.ID = spi.ChannelID(*c.ID)
		}
		switch strings.ToLower(c.Buffer) {
		case "internal", "ib":
			ch.Buffer = spi.InternalBuffer
		case "external", "eb":
			ch.Buffer = spi.ExternalBuffer
		default:
			errs = multierr.Append(errs, fmt.Errorf("channel %d: unknown buffer %q", i, c.Buffer))
		}
		switch c.Width {
		case 8:
			ch.Width = spi.Width8
		case 16:
			ch.Width = spi.Width16
		default:
			errs = multierr.Append(errs, fmt.Errorf("channel %d: width %d is not 8 or 16", i, c.Width))
		}
		switch strings.ToLower(c.Order) {
		case "msb":
			ch.Order = spi.MSBFirst
		case "lsb":
			ch.Order = spi.LSBFirst
		default:
			errs = multierr.Append(errs, fmt.Errorf("channel %d: unknown bit order %q", i, c.Order))
		}
		cfg.Channels = append(cfg.Channels, ch)
	}

	for i, j := range doc.Jobs {
		job := spi.JobConfig{ID: spi.JobID(i), HardwareCS: j.HardwareCS}
		if j.ID != nil {
			job.ID = spi.JobID(*j.ID)
		}
		switch strings.ToUpper(j.Unit) {
		case "SPI1":
			job.Unit = spi.SPI1
		case "SPI2":
			job.Unit = spi.SPI2
		default:
			errs = multierr.Append(errs, fmt.Errorf("job %d: unknown unit %q", i, j.Unit))
		}
		if j.Mode < 0 || j.Mode > 3 {
			errs = multierr.Append(errs, fmt.Errorf("job %d: mode %d out of range", i, j.Mode))
		}
		job.Polarity = spi.ClockPolarity((j.Mode >> 1) & 1)
		job.Phase = spi.ClockPhase(j.Mode & 1)

		baud, err := divisor(j.Divisor)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("job %d: %w", i, err))
		}
		job.Baud = baud

		job.CSPin = core.DioChannelInvalid
		if j.CSPin != "" {
			pin, err := core.ParseDioChannel(j.CSPin)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("job %d: cs_pin %q: %w", i, j.CSPin, err))
			}
			job.CSPin = pin
		} else if !j.HardwareCS {
			errs = multierr.Append(errs, fmt.Errorf("job %d: cs_pin required without hardware_cs", i))
		}

		for _, c := range j.Channels {
			job.Channels = append(job.Channels, spi.ChannelID(c))
		}
		cfg.Jobs = append(cfg.Jobs, job)
	}

	for i, s := range doc.Sequences {
		seq := spi.SequenceConfig{ID: spi.SequenceID(i)}
		if s.ID != nil {
			seq.ID = spi.SequenceID(*s.ID)
		}
		for _, j := range s.Jobs {
			seq.Jobs = append(seq.Jobs, spi.JobID(j))
		}
		cfg.Sequences = append(cfg.Sequences, seq)
	}

	if errs != nil {
		return nil, fmt.Errorf("config: %w", errs)
	}
	return cfg, nil
}

// SequenceByName returns the id of the sequence called name.
func (doc *Document) SequenceByName(name string) (spi.SequenceID, bool) {
	for i, s := range doc.Sequences {
		if s.Name == name {
			if s.ID != nil {
				return spi.SequenceID(*s.ID), true
			}
			return spi.SequenceID(i), true
		}
	}
	return 0, false
}

func divisor(n int) (spi.BaudDivisor, error) {
	for b := spi.Div2; b <= spi.Div256; b++ {
		if b.Divisor() == n {
			return b, nil
		}
	}
	return 0, fmt.Errorf("divisor %d is not a power of two between 2 and 256", n)
}

// Parse reads a document without building it, for tools that need the
// sequence names.
func Parse(jsonData []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyDefaults(&doc)
	return &doc, nil
}
