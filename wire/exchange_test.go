package wire

import "testing"

func TestExchangeFromToken(t *testing.T) {
	cases := []struct {
		token uint32
		want  Exchange
	}{
		{408065, ExchangeNSE}, // 408065 & 0xFF = 1
		{0x00000101, ExchangeNSE},
		{0x00000102, ExchangeNFO},
		{0x00000109, ExchangeIndices},
		{0x000000FF, ExchangeNSE}, // unrecognized low byte defaults to NSE
	}
	for _, c := range cases {
		got := ExchangeFromToken(c.token)
		if got != c.want {
			t.Errorf("ExchangeFromToken(%d) = %v, want %v", c.token, got, c.want)
		}
	}
}

func TestExchangeDivisor(t *testing.T) {
	if ExchangeCDS.Divisor() != 1000000.0 {
		t.Errorf("CDS divisor = %v, want 1000000.0", ExchangeCDS.Divisor())
	}
	if ExchangeBCD.Divisor() != 1000.0 {
		t.Errorf("BCD divisor = %v, want 1000.0", ExchangeBCD.Divisor())
	}
	if ExchangeNSE.Divisor() != 100.0 {
		t.Errorf("NSE divisor = %v, want 100.0", ExchangeNSE.Divisor())
	}
}

func TestExchangeIsTradable(t *testing.T) {
	if ExchangeIndices.IsTradable() {
		t.Error("Indices should not be tradable")
	}
	if !ExchangeNSE.IsTradable() {
		t.Error("NSE should be tradable")
	}
}

func TestExchangeStringRoundTrip(t *testing.T) {
	for _, e := range []Exchange{ExchangeNSE, ExchangeNFO, ExchangeCDS, ExchangeBSE,
		ExchangeBFO, ExchangeBCD, ExchangeMCX, ExchangeMCXSX, ExchangeIndices} {
		s := e.String()
		if got := ExchangeFromString(s); got != e {
			t.Errorf("ExchangeFromString(%q) = %v, want %v", s, got, e)
		}
	}
	if ExchangeFromString("bogus") != ExchangeNSE {
		t.Error("unrecognized exchange string should default to NSE")
	}
}
