package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// maxVLQLen is the longest encoding of a 32-bit value
const maxVLQLen = 5

// vlqFits reports whether v encodes in n groups. The first group carries
// six value bits and a sign bit, each further group seven value bits, and
// the encodable range is skewed positive: [-2^(7n-2), 3*2^(7n-2)).
func vlqFits(v int32, n int) bool {
	if n >= maxVLQLen {
		return true
	}
	bits := uint(7*n - 2)
	return int64(v) >= -(int64(1)<<bits) && int64(v) < 3<<bits
}

// AppendVLQ appends v to dst most significant group first. Every byte but
// the last has its high bit set.
func AppendVLQ(dst []byte, v int32) []byte {
	n := 1
	for !vlqFits(v, n) {
		n++
	}
	for shift := 7 * (n - 1); shift > 0; shift -= 7 {
		dst = append(dst, byte(v>>shift)&0x7F|0x80)
	}
	return append(dst, byte(v)&0x7F)
}

// AppendVLQUint appends the bit pattern of v. Values of 2^31 and above
// travel as negative numbers, so stamps close to wrapping stay short.
func AppendVLQUint(dst []byte, v uint32) []byte {
	return AppendVLQ(dst, int32(v))
}

// AppendVLQString appends the length of s followed by its bytes.
func AppendVLQString(dst []byte, s string) []byte {
	return append(AppendVLQUint(dst, uint32(len(s))), s...)
}

// DecodeVLQInt consumes one value from the front of data. A value running
// past maxVLQLen bytes is ErrInvalidVLQ; a truncated one ErrBufferTooSmall.
func DecodeVLQInt(data *[]byte) (int32, error) {
	var v uint32
	for i, b := range *data {
		if i == maxVLQLen {
			return 0, ErrInvalidVLQ
		}
		if i == 0 && b&0x60 == 0x60 {
			v = ^uint32(0)
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			*data = (*data)[i+1:]
			return int32(v), nil
		}
	}
	return 0, ErrBufferTooSmall
}

// DecodeVLQUint is DecodeVLQInt for values sent with AppendVLQUint.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// DecodeVLQString consumes a length-prefixed string.
func DecodeVLQString(data *[]byte) (string, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return "", err
	}
	if uint32(len(*data)) < n {
		return "", ErrBufferTooSmall
	}
	s := string((*data)[:n])
	*data = (*data)[n:]
	return s, nil
}
