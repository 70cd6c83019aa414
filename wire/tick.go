package wire

import (
	"encoding/binary"
	"fmt"
)

// Tick is the canonical decoded quote for one instrument at one instant.
// Fields beyond the ones implied by Mode are left at their zero value;
// callers distinguish "absent" from "zero" using the surrounding Mode
// the same way the wire format does (a Quote tick simply never touched
// the Full-only fields).
type Tick struct {
	Mode             Mode
	InstrumentToken  uint32
	Exchange         Exchange
	IsTradable       bool
	IsIndex          bool

	LastTradedQty   uint32
	HasLastTradedQty bool
	AvgTradedPrice   float64
	HasAvgTradedPrice bool
	LastPrice        float64
	HasLastPrice     bool
	VolumeTraded     uint32
	HasVolumeTraded  bool
	TotalBuyQty      uint32
	HasTotalBuyQty   bool
	TotalSellQty     uint32
	HasTotalSellQty  bool
	OHLC             OHLC
	HasOHLC          bool

	LastTradedTimestamp    uint32
	HasLastTradedTimestamp bool
	OI                     uint32
	HasOI                  bool
	OIDayHigh              uint32
	HasOIDayHigh           bool
	OIDayLow               uint32
	HasOIDayLow            bool
	ExchangeTimestamp      uint32
	HasExchangeTimestamp   bool

	NetChange    float64
	HasNetChange bool
	Depth        Depth
	HasDepth     bool
}

// ParseError reports a packet body length outside the recognized set
// {8, 28, 32, 44, 184}.
type ParseError struct {
	Size int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid tick size: %d", e.Size)
}

// TryTick decodes one packet body into a Tick, dispatching on its exact
// length. Any length outside {8, 28, 32, 44, 184} is a ParseError.
func TryTick(body []byte) (Tick, error) {
	switch len(body) {
	case 8, 28, 32, 44, 184:
		return tickFromBytes(body), nil
	default:
		return Tick{}, &ParseError{Size: len(body)}
	}
}

// tickFromBytes progressively fills a Tick from a validated-length body,
// following the wire layout exactly: the first 8 bytes are always
// present (LTP), bytes 8..N are the Quote section (index or tradable
// layout differs), and the remainder, if present, is the Full section.
func tickFromBytes(body []byte) Tick {
	var t Tick

	t.InstrumentToken = binary.BigEndian.Uint32(body[0:4])
	t.Exchange = ExchangeFromToken(t.InstrumentToken)
	t.IsIndex = !t.Exchange.IsTradable()
	t.IsTradable = !t.IsIndex

	t.Mode = ModeLTP
	t.LastPrice = t.Exchange.Price(int32(binary.BigEndian.Uint32(body[4:8])))
	t.HasLastPrice = true

	if t.IsIndex {
		if len(body) >= 28 {
			t.Mode = ModeQuote
			bs := body[8:28]
			t.OHLC = OHLCFromIndexBytes(bs[0:16], t.Exchange)
			t.HasOHLC = true
			t.NetChange = t.Exchange.Price(int32(binary.BigEndian.Uint32(bs[16:20])))
			t.HasNetChange = true
		}
		if len(body) >= 32 {
			t.Mode = ModeFull
			t.ExchangeTimestamp = binary.BigEndian.Uint32(body[28:32])
			t.HasExchangeTimestamp = true
		}
		return t
	}

	if len(body) >= 44 {
		t.Mode = ModeQuote
		bs := body[8:44]
		t.LastTradedQty = binary.BigEndian.Uint32(bs[0:4])
		t.HasLastTradedQty = true
		t.AvgTradedPrice = t.Exchange.Price(int32(binary.BigEndian.Uint32(bs[4:8])))
		t.HasAvgTradedPrice = true
		t.VolumeTraded = binary.BigEndian.Uint32(bs[8:12])
		t.HasVolumeTraded = true
		t.TotalBuyQty = binary.BigEndian.Uint32(bs[12:16])
		t.HasTotalBuyQty = true
		t.TotalSellQty = binary.BigEndian.Uint32(bs[16:20])
		t.HasTotalSellQty = true
		t.OHLC = OHLCFromBytes(bs[20:36], t.Exchange)
		t.HasOHLC = true
	}

	if len(body) >= 184 {
		t.Mode = ModeFull
		bs := body[44:184]
		t.LastTradedTimestamp = binary.BigEndian.Uint32(bs[0:4])
		t.HasLastTradedTimestamp = true
		t.OI = binary.BigEndian.Uint32(bs[4:8])
		t.HasOI = true
		t.OIDayHigh = binary.BigEndian.Uint32(bs[8:12])
		t.HasOIDayHigh = true
		t.OIDayLow = binary.BigEndian.Uint32(bs[12:16])
		t.HasOIDayLow = true
		t.ExchangeTimestamp = binary.BigEndian.Uint32(bs[16:20])
		t.HasExchangeTimestamp = true
		if d, ok := DepthFromBytes(bs[20:140], t.Exchange); ok {
			t.Depth = d
			t.HasDepth = true
		}

		if t.HasOHLC && t.OHLC.Close != 0 {
			t.NetChange = t.LastPrice - t.OHLC.Close
			t.HasNetChange = true
		}
	}

	return t
}
