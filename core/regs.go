package core

import "golang.org/x/exp/constraints"

// Register is one 32-bit memory-mapped peripheral register.
// On TinyGo targets *volatile.Register32 satisfies it directly.
type Register interface {
	Get() uint32
	Set(value uint32)
}

// SetBit returns v with bit n set.
func SetBit[T constraints.Unsigned](v T, n uint8) T {
	return v | T(1)<<n
}

// ClearBit returns v with bit n cleared.
func ClearBit[T constraints.Unsigned](v T, n uint8) T {
	return v &^ (T(1) << n)
}

// GetBit returns bit n of v (0 or 1).
func GetBit[T constraints.Unsigned](v T, n uint8) T {
	return (v >> n) & 1
}

// AssignBit sets or clears bit n of v.
func AssignBit[T constraints.Unsigned](v T, n uint8, set bool) T {
	if set {
		return SetBit(v, n)
	}
	return ClearBit(v, n)
}

// ReplaceBits replaces the field (mask << pos) of v with value.
func ReplaceBits[T constraints.Unsigned](v, value, mask T, pos uint8) T {
	return (v &^ (mask << pos)) | ((value & mask) << pos)
}

// SetRegBit performs a read-modify-write setting bit n of r.
func SetRegBit(r Register, n uint8) {
	r.Set(SetBit(r.Get(), n))
}

// ClearRegBit performs a read-modify-write clearing bit n of r.
func ClearRegBit(r Register, n uint8) {
	r.Set(ClearBit(r.Get(), n))
}

// WriteRegBit sets or clears bit n of r.
func WriteRegBit(r Register, n uint8, set bool) {
	r.Set(AssignBit(r.Get(), n, set))
}

// RegBit reports whether bit n of r is set.
func RegBit(r Register, n uint8) bool {
	return GetBit(r.Get(), n) != 0
}
