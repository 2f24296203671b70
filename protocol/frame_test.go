package protocol

import (
	"bytes"
	"errors"
	"testing"

	"bluepill-mcal/core"
)

func TestEncodeDecodeDetReport(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)

	report := DetReport{ModuleID: 83, InstanceID: 0, APIID: 0x0A, ErrorID: 0x3A}
	if err := enc.DetReport(report); err != nil {
		t.Fatalf("DetReport failed: %v", err)
	}

	raw := wire.Bytes()
	if int(raw[MessagePositionLen]) != len(raw) {
		t.Errorf("length byte %d, frame is %d bytes", raw[MessagePositionLen], len(raw))
	}
	if raw[len(raw)-1] != MessageValueSync {
		t.Errorf("frame does not end with sync byte")
	}

	dec := NewDecoder()
	msgs := dec.Feed(raw)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Sequence != MessageDest {
		t.Errorf("first frame sequence 0x%02X, want 0x%02X", msgs[0].Sequence, MessageDest)
	}

	d, err := DecodePayload(msgs[0].Payload)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if d.ID != MsgDetReport || d.Det != report {
		t.Errorf("decoded %s %+v, want det_report %+v", d.ID, d.Det, report)
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)

	ev := core.Event{Type: core.EvtTimeout, Unit: 2, ID: 7, Stamp: 1 << 30, Value: 0xFFFFFFFF}
	if err := enc.Event(ev); err != nil {
		t.Fatalf("Event failed: %v", err)
	}

	msgs := NewDecoder().Feed(wire.Bytes())
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	d, err := DecodePayload(msgs[0].Payload)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if d.ID != MsgEvent || d.Event != ev {
		t.Errorf("decoded %+v, want %+v", d.Event, ev)
	}
}

func TestIdentifyAndLost(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	_ = enc.Identify()
	_ = enc.DetLost(3)

	msgs := NewDecoder().Feed(wire.Bytes())
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	d, err := DecodePayload(msgs[0].Payload)
	if err != nil || d.ID != MsgIdentify || d.Version != Version {
		t.Errorf("identify decoded as %+v, %v", d, err)
	}
	d, err = DecodePayload(msgs[1].Payload)
	if err != nil || d.ID != MsgDetLost || d.Lost != 3 {
		t.Errorf("det_lost decoded as %+v, %v", d, err)
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	for i := 0; i < 3; i++ {
		_ = enc.DetReport(DetReport{ModuleID: 83, ErrorID: uint8(i)})
	}

	dec := NewDecoder()
	var msgs []*Message
	for _, b := range wire.Bytes() {
		msgs = append(msgs, dec.Feed([]byte{b})...)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if s := dec.Stats(); s.Frames != 3 || s.Lost != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestDecoderResyncAfterGarbage(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	_ = enc.DetReport(DetReport{ModuleID: 83, ErrorID: 1})
	good := append([]byte(nil), wire.Bytes()...)

	stream := append([]byte{0xFF, 0x01, 0x02, MessageValueSync}, good...)
	dec := NewDecoder()
	msgs := dec.Feed(stream)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after garbage, got %d", len(msgs))
	}
	if dec.Stats().Resyncs == 0 {
		t.Errorf("expected the decoder to report a resync")
	}
}

func TestDecoderCorruptCRC(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	_ = enc.DetReport(DetReport{ModuleID: 83, ErrorID: 1})
	_ = enc.DetReport(DetReport{ModuleID: 83, ErrorID: 2})

	raw := wire.Bytes()
	raw[MessageHeaderSize] ^= 0x01

	dec := NewDecoder()
	msgs := dec.Feed(raw)
	if len(msgs) != 1 {
		t.Fatalf("expected only the intact frame, got %d", len(msgs))
	}
	d, _ := DecodePayload(msgs[0].Payload)
	if d.Det.ErrorID != 2 {
		t.Errorf("expected second report, got %+v", d.Det)
	}
	if s := dec.Stats(); s.CRCErrors != 1 {
		t.Errorf("CRCErrors = %d, want 1", s.CRCErrors)
	}
}

func TestDecoderCountsLostFrames(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)

	var frames [][]byte
	for i := 0; i < 4; i++ {
		wire.Reset()
		_ = enc.DetReport(DetReport{ModuleID: 83, ErrorID: uint8(i)})
		frames = append(frames, append([]byte(nil), wire.Bytes()...))
	}

	dec := NewDecoder()
	dec.Feed(frames[0])
	dec.Feed(frames[3])
	if s := dec.Stats(); s.Lost != 2 || s.Frames != 2 {
		t.Errorf("stats %+v, want 2 frames and 2 lost", s)
	}
}

func TestSequenceWraps(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	for i := 0; i < 20; i++ {
		_ = enc.DetLost(uint32(i))
	}
	dec := NewDecoder()
	msgs := dec.Feed(wire.Bytes())
	if len(msgs) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(msgs))
	}
	if msgs[16].Sequence != MessageDest {
		t.Errorf("sequence did not wrap: 0x%02X", msgs[16].Sequence)
	}
	if dec.Stats().Lost != 0 {
		t.Errorf("wrap counted as loss: %+v", dec.Stats())
	}
}

func TestFrameTooLong(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire)
	err := enc.EncodeFrame(func(b []byte) []byte {
		return append(b, make([]byte, MessageLengthMax)...)
	})
	if !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("got %v, want ErrFrameTooLong", err)
	}
	if wire.Len() != 0 {
		t.Errorf("oversized frame was written")
	}
}

func TestDecodeUnknownMessage(t *testing.T) {
	_, err := DecodePayload([]byte{0x50})
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("got %v, want ErrUnknownMessage", err)
	}
	if _, err := DecodePayload([]byte{byte(MsgDetReport), 83}); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("truncated report: got %v, want ErrBufferTooSmall", err)
	}
}
