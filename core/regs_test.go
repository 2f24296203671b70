package core

import "testing"

// memReg is a plain in-memory Register
type memReg struct{ v uint32 }

func (r *memReg) Get() uint32  { return r.v }
func (r *memReg) Set(v uint32) { r.v = v }

func TestBitHelpers(t *testing.T) {
	testCases := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"set bit 0", SetBit(uint32(0), 0), 0x1},
		{"set bit 11", SetBit(uint32(0x40), 11), 0x840},
		{"clear bit 6", ClearBit(uint32(0x44), 6), 0x04},
		{"clear unset bit", ClearBit(uint32(0x04), 1), 0x04},
		{"get set bit", GetBit(uint32(0x80), 7), 1},
		{"get clear bit", GetBit(uint32(0x80), 6), 0},
		{"assign true", AssignBit(uint32(0), 9, true), 0x200},
		{"assign false", AssignBit(uint32(0x200), 9, false), 0},
		{"replace BR field", ReplaceBits(uint32(0x7C), 0x2, SPICR1BRMask, SPICR1BR), 0x54},
	}

	for _, tc := range testCases {
		if tc.got != tc.want {
			t.Errorf("%s: got 0x%X, want 0x%X", tc.name, tc.got, tc.want)
		}
	}
}

func TestBitHelpersNarrowTypes(t *testing.T) {
	if got := SetBit(uint8(0), 7); got != 0x80 {
		t.Errorf("SetBit(uint8) = 0x%X, want 0x80", got)
	}
	if got := ClearBit(uint16(0xFFFF), 15); got != 0x7FFF {
		t.Errorf("ClearBit(uint16) = 0x%X, want 0x7FFF", got)
	}
}

func TestRegisterReadModifyWrite(t *testing.T) {
	r := &memReg{v: 0x0004}

	SetRegBit(r, SPICR1SPE)
	if r.v != 0x0044 {
		t.Fatalf("after SetRegBit: 0x%X", r.v)
	}
	if !RegBit(r, SPICR1SPE) {
		t.Errorf("RegBit(SPE) = false after set")
	}

	ClearRegBit(r, SPICR1MSTR)
	if r.v != 0x0040 {
		t.Errorf("after ClearRegBit: 0x%X", r.v)
	}

	WriteRegBit(r, SPICR1DFF, true)
	WriteRegBit(r, SPICR1SPE, false)
	if r.v != 0x0800 {
		t.Errorf("after WriteRegBit: 0x%X", r.v)
	}
}

func TestDioChannelPort(t *testing.T) {
	testCases := []struct {
		ch   DioChannel
		port uint8
		pin  uint8
	}{
		{0, 0, 0},
		{4, 0, 4},
		{15, 0, 15},
		{16, 1, 0},
		{28, 1, 12},
		{45, 2, 13},
	}
	for _, tc := range testCases {
		port, pin := tc.ch.Port()
		if port != tc.port || pin != tc.pin {
			t.Errorf("channel %d: got port=%d pin=%d, want port=%d pin=%d",
				tc.ch, port, pin, tc.port, tc.pin)
		}
	}
}

func TestSPIRegisterTable(t *testing.T) {
	regs := &SPIRegisters{CR1: &memReg{}, CR2: &memReg{}, SR: &memReg{}, DR: &memReg{}}
	table := SPIRegisterTable{SPIBus1: regs, SPIBus2: nil}

	if got, ok := table.SPIRegisters(SPIBus1); !ok || got != regs {
		t.Errorf("SPIBus1 lookup failed")
	}
	if _, ok := table.SPIRegisters(SPIBus2); ok {
		t.Errorf("nil entry should not resolve")
	}
	if _, ok := table.SPIRegisters(3); ok {
		t.Errorf("unknown bus should not resolve")
	}
}
