package core

import (
	"strings"
	"testing"
)

func TestEventRingOrder(t *testing.T) {
	ClearEvents()
	defer ClearEvents()

	RecordEvent(EvtSeqStart, 0, 3, 0)
	RecordEvent(EvtJobStart, 1, 7, 0)
	RecordEvent(EvtJobEnd, 1, 7, 0)

	events := Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	wantTypes := []uint8{EvtSeqStart, EvtJobStart, EvtJobEnd}
	for i, evt := range events {
		if evt.Type != wantTypes[i] {
			t.Errorf("event %d: type %d, want %d", i, evt.Type, wantTypes[i])
		}
		if evt.Stamp != uint32(i+1) {
			t.Errorf("event %d: stamp %d, want %d", i, evt.Stamp, i+1)
		}
	}
}

func TestEventRingWraps(t *testing.T) {
	ClearEvents()
	defer ClearEvents()

	for i := 0; i < EventRingSize+5; i++ {
		RecordEvent(EvtJobStart, 1, uint16(i), 0)
	}

	events := Events()
	if len(events) != EventRingSize {
		t.Fatalf("expected %d events, got %d", EventRingSize, len(events))
	}
	if events[0].ID != 5 {
		t.Errorf("oldest event id = %d, want 5", events[0].ID)
	}
	if last := events[len(events)-1]; last.ID != EventRingSize+4 {
		t.Errorf("newest event id = %d, want %d", last.ID, EventRingSize+4)
	}
}

func TestDumpEventsUsesWriter(t *testing.T) {
	ClearEvents()
	defer ClearEvents()

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	RecordEvent(EvtTimeout, 2, 4, 17)
	DumpEvents()

	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[1], "TIMEOUT!") || !strings.Contains(lines[1], "unit=2") ||
		!strings.Contains(lines[1], "id=4") || !strings.Contains(lines[1], "v=17") {
		t.Errorf("unexpected dump line %q", lines[1])
	}
}

func TestDebugPrintlnGated(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if len(got) != 1 || got[0] != "shown" {
		t.Errorf("got %q, want [shown]", got)
	}
}

func TestFormatting(t *testing.T) {
	if s := itoa(-42); s != "-42" {
		t.Errorf("itoa(-42) = %q", s)
	}
	if s := Utoa(0); s != "0" {
		t.Errorf("Utoa(0) = %q", s)
	}
	if s := Utoa(4294967295); s != "4294967295" {
		t.Errorf("Utoa(max) = %q", s)
	}
	if s := Hex8(0x3A); s != "0x3A" {
		t.Errorf("Hex8(0x3A) = %q", s)
	}
}
