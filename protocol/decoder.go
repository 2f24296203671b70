package protocol

// Stats counts what the decoder has seen on the stream.
type Stats struct {
	Frames    uint64 // valid frames delivered
	CRCErrors uint64 // frames dropped for a bad checksum
	Resyncs   uint64 // times the decoder lost framing
	Lost      uint64 // frames missing according to sequence numbers
}

// Decoder reassembles frames from a byte stream. Framing errors drop the
// decoder out of sync; it then discards bytes up to the next sync byte.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	input        *ring
	synchronized bool
	started      bool
	expected     uint8
	stats        Stats
}

// NewDecoder returns a decoder that assumes the stream starts on a frame
// boundary
func NewDecoder() *Decoder {
	return &Decoder{
		input:        newRing(512),
		synchronized: true,
	}
}

// Feed appends received bytes and returns every frame completed by them.
func (d *Decoder) Feed(data []byte) []*Message {
	var msgs []*Message
	for len(data) > 0 {
		n := d.input.write(data)
		data = data[n:]
		msgs = d.process(msgs)
	}
	return msgs
}

// Stats returns a snapshot of the counters
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Reset drops buffered bytes and sequence tracking
func (d *Decoder) Reset() {
	d.input.reset()
	d.synchronized = true
	d.started = false
}

func (d *Decoder) desync() {
	d.synchronized = false
	d.stats.Resyncs++
}

func (d *Decoder) process(msgs []*Message) []*Message {
	data := d.input.peek()

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.desync()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.stats.CRCErrors++
			d.desync()
			continue
		}

		payload := make([]byte, msgLen-MessageHeaderSize-MessageTrailerSize)
		copy(payload, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		msgs = append(msgs, &Message{
			Length:   uint8(msgLen),
			Sequence: seq,
			Payload:  payload,
			CRC:      frameCRC,
		})
		data = data[msgLen:]
		d.track(seq)
	}

	d.input.discard(d.input.len() - len(data))
	return msgs
}

// track counts sequence gaps; the first frame only sets the reference.
func (d *Decoder) track(seq uint8) {
	d.stats.Frames++
	if d.started && seq != d.expected {
		d.stats.Lost += uint64((seq - d.expected) & MessageSeqMask)
	}
	d.started = true
	d.expected = ((seq + 1) & MessageSeqMask) | MessageDest
}
