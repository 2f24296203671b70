package protocol

import (
	"errors"
	"fmt"

	"bluepill-mcal/core"
)

// ErrUnknownMessage is returned for payloads with an unassigned MessageID.
var ErrUnknownMessage = errors.New("protocol: unknown message")

// DetReport is the wire form of one development error report.
type DetReport struct {
	ModuleID   uint16
	InstanceID uint8
	APIID      uint8
	ErrorID    uint8
}

// Decoded is a parsed payload. Only the field matching ID is meaningful.
type Decoded struct {
	ID      MessageID
	Version string
	Det     DetReport
	Event   core.Event
	Lost    uint32
}

// DecodePayload parses the payload of a validated frame.
func DecodePayload(payload []byte) (*Decoded, error) {
	data := payload
	id, err := DecodeVLQUint(&data)
	if err != nil {
		return nil, err
	}

	d := &Decoded{ID: MessageID(id)}
	switch d.ID {
	case MsgIdentify:
		d.Version, err = DecodeVLQString(&data)
	case MsgDetReport:
		var f [4]uint32
		if err = decodeFields(&data, f[:]); err == nil {
			d.Det = DetReport{
				ModuleID:   uint16(f[0]),
				InstanceID: uint8(f[1]),
				APIID:      uint8(f[2]),
				ErrorID:    uint8(f[3]),
			}
		}
	case MsgEvent:
		var f [5]uint32
		if err = decodeFields(&data, f[:]); err == nil {
			d.Event = core.Event{
				Type:  uint8(f[0]),
				Unit:  uint8(f[1]),
				ID:    uint16(f[2]),
				Stamp: f[3],
				Value: f[4],
			}
		}
	case MsgDetLost:
		d.Lost, err = DecodeVLQUint(&data)
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownMessage, id)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.ID, err)
	}
	return d, nil
}

func decodeFields(data *[]byte, fields []uint32) error {
	for i := range fields {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		fields[i] = v
	}
	return nil
}
