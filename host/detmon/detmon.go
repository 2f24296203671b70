// Package detmon reads the error-report frames a board streams over its
// UART and turns them into log lines.
package detmon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"bluepill-mcal/core"
	"bluepill-mcal/protocol"
	"bluepill-mcal/spi"

	"go.uber.org/zap"
)

// Handler receives every decoded message in arrival order.
type Handler func(*protocol.Decoded)

// Summary counts what a monitor has seen.
type Summary struct {
	Frames  protocol.Stats
	Reports map[protocol.DetReport]int
	Events  int
	Lost    uint32 // reports the board dropped before export
	Bad     int    // frames with an undecodable payload
	Version string
}

// Monitor decodes one byte stream.
type Monitor struct {
	r      io.Reader
	logger *zap.SugaredLogger
	dec    *protocol.Decoder

	// Follow keeps reading after io.EOF, for serial ports whose read
	// timeout surfaces as EOF.
	Follow bool

	mu  sync.Mutex
	sum Summary
}

// New creates a monitor reading from r.
func New(r io.Reader, logger *zap.SugaredLogger) *Monitor {
	return &Monitor{
		r:      r,
		logger: logger,
		dec:    protocol.NewDecoder(),
		sum:    Summary{Reports: make(map[protocol.DetReport]int)},
	}
}

// Run reads until ctx is done, the reader fails, or the input ends when
// Follow is off. Every decoded message is logged and passed to fn, which
// may be nil.
func (m *Monitor) Run(ctx context.Context, fn Handler) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := m.r.Read(buf)
		if n > 0 {
			m.feed(buf[:n], fn)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if !m.Follow {
				return nil
			}
		default:
			return fmt.Errorf("detmon: read: %w", err)
		}
	}
}

func (m *Monitor) feed(data []byte, fn Handler) {
	for _, msg := range m.dec.Feed(data) {
		d, err := protocol.DecodePayload(msg.Payload)
		if err != nil {
			m.mu.Lock()
			m.sum.Bad++
			m.mu.Unlock()
			m.logger.Warnw("undecodable frame", "seq", msg.Sequence&protocol.MessageSeqMask, "error", err)
			continue
		}
		m.record(d)
		m.log(d)
		if fn != nil {
			fn(d)
		}
	}
}

func (m *Monitor) record(d *protocol.Decoded) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch d.ID {
	case protocol.MsgIdentify:
		m.sum.Version = d.Version
	case protocol.MsgDetReport:
		m.sum.Reports[d.Det]++
	case protocol.MsgEvent:
		m.sum.Events++
	case protocol.MsgDetLost:
		m.sum.Lost += d.Lost
	}
}

func (m *Monitor) log(d *protocol.Decoded) {
	switch d.ID {
	case protocol.MsgIdentify:
		m.logger.Infow("board connected", "protocol", d.Version)
	case protocol.MsgDetReport:
		m.logger.Errorw("development error", "report", DescribeReport(d.Det))
	case protocol.MsgEvent:
		m.logger.Debugw("event", "event", DescribeEvent(d.Event))
	case protocol.MsgDetLost:
		m.logger.Warnw("reports lost on the board", "count", d.Lost)
	}
}

// Summary returns a snapshot of the counters.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sum
	s.Reports = make(map[protocol.DetReport]int, len(m.sum.Reports))
	for k, v := range m.sum.Reports {
		s.Reports[k] = v
	}
	s.Frames = m.dec.Stats()
	return s
}

// DescribeReport names the service and error of reports from the SPI
// handler; other modules are shown numerically.
func DescribeReport(r protocol.DetReport) string {
	if r.ModuleID != spi.ModuleID {
		return fmt.Sprintf("module %d instance %d api 0x%02X error 0x%02X",
			r.ModuleID, r.InstanceID, r.APIID, r.ErrorID)
	}
	return fmt.Sprintf("Spi_%s: %s (0x%02X)",
		spi.APIID(r.APIID), spi.ErrorCode(r.ErrorID).Error(), r.ErrorID)
}

// DescribeEvent formats one driver event.
func DescribeEvent(e core.Event) string {
	s := fmt.Sprintf("#%d %s", e.Stamp, core.EventName(e.Type))
	if e.Unit != 0 {
		s += " " + spi.HWUnit(e.Unit).String()
	}
	switch e.Type {
	case core.EvtSeqStart, core.EvtSeqEnd, core.EvtSeqRejected:
		s += fmt.Sprintf(" seq=%d", e.ID)
	default:
		s += fmt.Sprintf(" job=%d", e.ID)
	}
	switch e.Type {
	case core.EvtJobEnd:
		s += " " + spi.JobResult(e.Value).String()
	case core.EvtSeqEnd:
		s += " " + spi.SeqResult(e.Value).String()
	case core.EvtSeqRejected:
		s += " " + spi.ErrorCode(e.Value).Error()
	case core.EvtTimeout:
		s += fmt.Sprintf(" element=%d", e.Value)
	}
	return s
}
