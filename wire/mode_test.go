package wire

import "testing"

func TestModeFromPacketSize(t *testing.T) {
	cases := []struct {
		size int
		want Mode
		ok   bool
	}{
		{8, ModeLTP, true},
		{28, ModeQuote, true},
		{44, ModeQuote, true},
		{32, ModeFull, true},
		{184, ModeFull, true},
		{13, 0, false},
	}
	for _, c := range cases {
		got, ok := ModeFromPacketSize(c.size)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ModeFromPacketSize(%d) = (%v, %v), want (%v, %v)", c.size, got, ok, c.want, c.ok)
		}
	}
}

func TestModeStringRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeLTP, ModeQuote, ModeFull} {
		if got := ModeFromString(m.String()); got != m {
			t.Errorf("ModeFromString(%q) = %v, want %v", m.String(), got, m)
		}
	}
	if ModeFromString("bogus") != ModeQuote {
		t.Error("unrecognized mode string should default to quote")
	}
}
