package core

// Number formatting without pulling fmt into the firmware image.

// Utoa converts an unsigned integer to decimal
func Utoa(n uint32) string {
	var buf [10]byte
	return string(appendUint(buf[:0], n))
}

// itoa converts a signed integer to decimal
func itoa(n int) string {
	var buf [11]byte
	if n < 0 {
		return string(appendUint(append(buf[:0], '-'), uint32(-n)))
	}
	return string(appendUint(buf[:0], uint32(n)))
}

// appendUint appends the decimal digits of n to dst
func appendUint(dst []byte, n uint32) []byte {
	if n == 0 {
		return append(dst, '0')
	}
	var tmp [10]byte
	pos := len(tmp)
	for n > 0 {
		pos--
		tmp[pos] = byte('0' + n%10)
		n /= 10
	}
	return append(dst, tmp[pos:]...)
}

// Hex8 formats a byte as two upper-case hex digits with a 0x prefix
func Hex8(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{'0', 'x', digits[b>>4], digits[b&0x0F]})
}
