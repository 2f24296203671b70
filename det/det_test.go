package det

import (
	"bytes"
	"testing"

	"bluepill-mcal/protocol"
)

type recordingSink struct {
	reports []protocol.DetReport
	lost    []uint32
}

func (s *recordingSink) DetReport(r protocol.DetReport) error {
	s.reports = append(s.reports, r)
	return nil
}

func (s *recordingSink) DetLost(count uint32) error {
	s.lost = append(s.lost, count)
	return nil
}

func TestReportBeforeInit(t *testing.T) {
	tr := New(0, nil)
	if err := tr.ReportError(38, 0, 0x0A, 0x3A); err != ErrNotInitialized {
		t.Errorf("got %v, want ErrNotInitialized", err)
	}
	if len(tr.Records()) != 0 {
		t.Errorf("report stored before Init")
	}
	if err := tr.Start(); err != ErrNotInitialized {
		t.Errorf("Start before Init: got %v", err)
	}
}

func TestBufferSaturation(t *testing.T) {
	tr := New(0, nil)
	tr.Init()

	for i := 0; i < DefaultCapacity; i++ {
		if err := tr.ReportError(38, 0, uint8(i), 0x0A); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}
	if err := tr.ReportError(38, 0, 0x09, 0x10); err != ErrFull {
		t.Errorf("got %v, want ErrFull", err)
	}

	records := tr.Records()
	if len(records) != DefaultCapacity {
		t.Fatalf("expected %d records, got %d", DefaultCapacity, len(records))
	}
	for i, r := range records {
		if r.APIID != uint8(i) || r.ModuleID != 38 || r.ErrorID != 0x0A {
			t.Errorf("record %d = %+v", i, r)
		}
	}
	if tr.Lost() != 1 {
		t.Errorf("Lost() = %d, want 1", tr.Lost())
	}

	tr.Reset()
	if len(tr.Records()) != 0 || tr.Lost() != 0 {
		t.Errorf("Reset did not clear the log")
	}
	if err := tr.ReportError(38, 0, 0, 0x1A); err != nil {
		t.Errorf("report after Reset: %v", err)
	}
}

func TestStartFlushesAndForwards(t *testing.T) {
	sink := &recordingSink{}
	tr := New(2, sink)
	tr.Init()

	_ = tr.ReportError(38, 0, 0x02, 0x1A)
	if len(sink.reports) != 0 {
		t.Fatalf("exported before Start")
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(sink.reports) != 1 || sink.reports[0].APIID != 0x02 {
		t.Fatalf("Start did not flush: %+v", sink.reports)
	}

	_ = tr.ReportError(38, 0, 0x04, 0x0A)
	_ = tr.ReportError(38, 0, 0x05, 0x0A)
	if len(sink.reports) != 3 {
		t.Errorf("expected full log to still export, got %d reports", len(sink.reports))
	}
	if tr.Lost() != 1 {
		t.Errorf("Lost() = %d, want 1", tr.Lost())
	}
}

func TestStartReportsLost(t *testing.T) {
	sink := &recordingSink{}
	tr := New(1, sink)
	tr.Init()
	_ = tr.ReportError(38, 0, 0x00, 0x10)
	_ = tr.ReportError(38, 0, 0x00, 0x4A)

	_ = tr.Start()
	if len(sink.reports) != 1 {
		t.Errorf("expected 1 flushed report, got %d", len(sink.reports))
	}
	if len(sink.lost) != 1 || sink.lost[0] != 1 {
		t.Errorf("expected lost notification of 1, got %v", sink.lost)
	}
}

func TestExportOverFrames(t *testing.T) {
	var wire bytes.Buffer
	tr := New(0, protocol.NewEncoder(&wire))
	tr.Init()
	_ = tr.Start()
	_ = tr.ReportError(38, 0, 0x0A, 0x5A)

	msgs := protocol.NewDecoder().Feed(wire.Bytes())
	if len(msgs) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(msgs))
	}
	d, err := protocol.DecodePayload(msgs[0].Payload)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	want := Record{ModuleID: 38, APIID: 0x0A, ErrorID: 0x5A}
	if d.ID != protocol.MsgDetReport || d.Det != want {
		t.Errorf("decoded %+v, want %+v", d.Det, want)
	}
}
