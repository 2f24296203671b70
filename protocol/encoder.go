package protocol

import (
	"errors"
	"io"

	"bluepill-mcal/core"
)

// ErrFrameTooLong is returned when a payload does not fit MessageLengthMax.
var ErrFrameTooLong = errors.New("protocol: frame too long")

// Encoder frames messages onto a byte stream, typically the board's UART.
// Each frame carries the next sequence number so the receiver can count
// frames lost in transit. An Encoder is not safe for concurrent use.
type Encoder struct {
	w   io.Writer
	buf [MessageMax]byte
	seq uint8
}

// NewEncoder returns an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, seq: MessageDest}
}

// EncodeFrame builds one frame around the payload fill appends to its
// argument and sends it in a single Write. Frames are built in a fixed
// buffer, so encoding does not allocate.
func (e *Encoder) EncodeFrame(fill func(frame []byte) []byte) error {
	frame := fill(append(e.buf[:0], 0, e.seq))

	msgLen := len(frame) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return ErrFrameTooLong
	}
	frame[MessagePositionLen] = uint8(msgLen)

	crc := CRC16(frame)
	frame = append(frame, byte(crc>>8), byte(crc), MessageValueSync)

	e.seq = ((e.seq + 1) & MessageSeqMask) | MessageDest

	_, err := e.w.Write(frame)
	return err
}

// Identify announces the wire format version
func (e *Encoder) Identify() error {
	return e.EncodeFrame(func(b []byte) []byte {
		b = AppendVLQUint(b, uint32(MsgIdentify))
		return AppendVLQString(b, Version)
	})
}

// DetReport sends one development error report
func (e *Encoder) DetReport(r DetReport) error {
	return e.EncodeFrame(func(b []byte) []byte {
		b = AppendVLQUint(b, uint32(MsgDetReport))
		b = AppendVLQUint(b, uint32(r.ModuleID))
		b = AppendVLQUint(b, uint32(r.InstanceID))
		b = AppendVLQUint(b, uint32(r.APIID))
		return AppendVLQUint(b, uint32(r.ErrorID))
	})
}

// Event sends one entry of the transfer event ring
func (e *Encoder) Event(ev core.Event) error {
	return e.EncodeFrame(func(b []byte) []byte {
		b = AppendVLQUint(b, uint32(MsgEvent))
		b = AppendVLQUint(b, uint32(ev.Type))
		b = AppendVLQUint(b, uint32(ev.Unit))
		b = AppendVLQUint(b, uint32(ev.ID))
		b = AppendVLQUint(b, ev.Stamp)
		return AppendVLQUint(b, ev.Value)
	})
}

// DetLost tells the receiver how many reports were dropped on the board
func (e *Encoder) DetLost(count uint32) error {
	return e.EncodeFrame(func(b []byte) []byte {
		return AppendVLQUint(AppendVLQUint(b, uint32(MsgDetLost)), count)
	})
}
