package protocol

import (
	"bytes"
	"testing"
)

func TestRingKeepsOrderAcrossWrap(t *testing.T) {
	r := newRing(8)

	if n := r.write([]byte{1, 2, 3, 4, 5, 6}); n != 6 {
		t.Fatalf("wrote %d bytes, want 6", n)
	}
	r.discard(4)

	// The tail wraps to the start of the backing array
	if n := r.write([]byte{7, 8, 9, 10, 11, 12}); n != 6 {
		t.Fatalf("wrote %d bytes, want 6", n)
	}
	if got := r.peek(); !bytes.Equal(got, []byte{5, 6, 7, 8, 9, 10, 11, 12}) {
		t.Errorf("peek() = %v", got)
	}

	// Full: nothing more fits until the decoder consumes
	if n := r.write([]byte{13}); n != 0 {
		t.Errorf("wrote %d bytes into a full ring", n)
	}
	r.discard(5)
	if got := r.peek(); !bytes.Equal(got, []byte{10, 11, 12}) || r.len() != 3 {
		t.Errorf("after discard: peek() = %v, len() = %d", got, r.len())
	}

	r.discard(10)
	if r.len() != 0 || len(r.peek()) != 0 {
		t.Errorf("discard past the end left %d bytes", r.len())
	}
	r.reset()
	if n := r.write(make([]byte, 9)); n != 8 {
		t.Errorf("after reset wrote %d bytes, want the full capacity", n)
	}
}

// A frame split across the wrap point of the decoder's input buffer must
// still come out whole.
func TestDecoderFrameAcrossWrap(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	for i := 0; i < 60; i++ {
		if err := enc.DetReport(DetReport{ModuleID: 38, APIID: uint8(i), ErrorID: 0x0A}); err != nil {
			t.Fatalf("DetReport failed: %v", err)
		}
	}
	raw := wire.Bytes()

	dec := NewDecoder()
	var got []*Message
	for len(raw) > 0 {
		n := min(7, len(raw))
		got = append(got, dec.Feed(raw[:n])...)
		raw = raw[n:]
	}
	if len(got) != 60 {
		t.Fatalf("decoded %d frames, want 60", len(got))
	}
	for i, m := range got {
		d, err := DecodePayload(m.Payload)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if d.Det.APIID != uint8(i) {
			t.Errorf("frame %d carries api 0x%02X", i, d.Det.APIID)
		}
	}
	if s := dec.Stats(); s.CRCErrors != 0 || s.Resyncs != 0 || s.Lost != 0 {
		t.Errorf("clean stream produced %+v", s)
	}
}
