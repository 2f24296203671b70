// Package protocol frames the diagnostic stream the board sends over its
// UART: development error reports and SPI transfer events. Frames reuse the
// block layout [len][seq][payload][crc hi][crc lo][0x7E] with VLQ encoded
// payload fields.
package protocol

// Version is the wire format version announced in the identify message.
const Version = "detlink-1"

// Frame layout
const (
	MessageMax         = 128 // Encoder scratch size
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// Sequence byte: high nibble is always MessageDest, low nibble counts frames
	MessageDest     = 0x10
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)

// MessageID identifies the payload of a frame. It is the first VLQ of the
// payload.
type MessageID uint8

const (
	MsgIdentify  MessageID = iota // version string
	MsgDetReport                  // module, instance, api, error
	MsgEvent                      // type, unit, id, stamp, value
	MsgDetLost                    // count of reports the tracer had to drop
)

func (m MessageID) String() string {
	switch m {
	case MsgIdentify:
		return "identify"
	case MsgDetReport:
		return "det_report"
	case MsgEvent:
		return "event"
	case MsgDetLost:
		return "det_lost"
	default:
		return "unknown"
	}
}

// Message is one validated frame.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // Frame data without header/trailer
	CRC      uint16
}
