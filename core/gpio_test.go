package core

import "testing"

func TestDioChannelNames(t *testing.T) {
	tests := []struct {
		name string
		ch   DioChannel
	}{
		{"PA0", 0},
		{"PA4", 4},
		{"PB12", 28},
		{"PC13", 45},
		{"PC15", 47},
	}
	for _, tc := range tests {
		ch, err := ParseDioChannel(tc.name)
		if err != nil {
			t.Errorf("ParseDioChannel(%q) failed: %v", tc.name, err)
			continue
		}
		if ch != tc.ch {
			t.Errorf("ParseDioChannel(%q) = %d, want %d", tc.name, ch, tc.ch)
		}
		if got := ch.String(); got != tc.name {
			t.Errorf("DioChannel(%d).String() = %q, want %q", ch, got, tc.name)
		}
	}

	if ch, err := ParseDioChannel("pb5"); err != nil || ch != 21 {
		t.Errorf("lower case: got %d, %v", ch, err)
	}
	for _, bad := range []string{"", "A4", "PD1", "PA16", "PA", "PAx", "PA100"} {
		if _, err := ParseDioChannel(bad); err == nil {
			t.Errorf("ParseDioChannel(%q) accepted", bad)
		}
	}
	if DioChannelInvalid.String() != "none" {
		t.Errorf("invalid channel name = %q", DioChannelInvalid.String())
	}
	if DioChannelInvalid.Valid() || DioChannel(48).Valid() || !DioChannel(47).Valid() {
		t.Error("Valid() does not stop at PC15")
	}
}
