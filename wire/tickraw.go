package wire

import (
	"encoding/binary"
	"fmt"
)

// Sizes of the three zero-copy view layouts. TickFullSize and
// IndexQuoteSize are packet body lengths of a Full and an index
// snapshot packet; InstHeaderSize is the header prefix of a Full body.
const (
	TickFullSize   = 184
	IndexQuoteSize = 32
	InstHeaderSize = 64
)

// TickRaw is a zero-copy, endian-aware view over a validated 184-byte
// Full packet body. It never copies the backing slice; every accessor
// reads directly from it on demand. The caller must keep the backing
// bytes alive for as long as the view is used.
type TickRaw struct {
	b []byte
}

// AsTickRaw validates that b is exactly TickFullSize bytes and returns a
// view over it, or an error naming the actual length. It never copies b.
func AsTickRaw(b []byte) (TickRaw, error) {
	if len(b) != TickFullSize {
		return TickRaw{}, fmt.Errorf("tick raw view: expected %d bytes, got %d", TickFullSize, len(b))
	}
	return TickRaw{b: b}, nil
}

func (v TickRaw) InstrumentToken() uint32 { return binary.BigEndian.Uint32(v.b[0:4]) }
func (v TickRaw) LastPriceRaw() int32     { return int32(binary.BigEndian.Uint32(v.b[4:8])) }
func (v TickRaw) LastTradedQty() uint32   { return binary.BigEndian.Uint32(v.b[8:12]) }
func (v TickRaw) AvgTradedPriceRaw() int32 {
	return int32(binary.BigEndian.Uint32(v.b[12:16]))
}
func (v TickRaw) VolumeTraded() uint32   { return binary.BigEndian.Uint32(v.b[16:20]) }
func (v TickRaw) TotalBuyQty() uint32    { return binary.BigEndian.Uint32(v.b[20:24]) }
func (v TickRaw) TotalSellQty() uint32   { return binary.BigEndian.Uint32(v.b[24:28]) }
func (v TickRaw) OHLCBytes() []byte      { return v.b[28:44] }
func (v TickRaw) LastTradedTimestamp() uint32 { return binary.BigEndian.Uint32(v.b[44:48]) }
func (v TickRaw) OI() uint32             { return binary.BigEndian.Uint32(v.b[48:52]) }
func (v TickRaw) OIDayHigh() uint32      { return binary.BigEndian.Uint32(v.b[52:56]) }
func (v TickRaw) OIDayLow() uint32       { return binary.BigEndian.Uint32(v.b[56:60]) }
func (v TickRaw) ExchangeTimestamp() uint32 { return binary.BigEndian.Uint32(v.b[60:64]) }

// Depth returns a view over the 120-byte depth block following the
// 64-byte header.
func (v TickRaw) Depth() DepthRaw { return DepthRaw{b: v.b[64:184]} }

// DepthRaw is a zero-copy view over a 120-byte depth block: 5 buy
// entries followed by 5 sell entries, 12 bytes per entry.
type DepthRaw struct {
	b []byte
}

// Buy returns the i-th buy level (0-4).
func (d DepthRaw) Buy(i int) DepthItemRaw { return DepthItemRaw{b: d.b[i*12 : i*12+12]} }

// Sell returns the i-th sell level (0-4).
func (d DepthRaw) Sell(i int) DepthItemRaw { return DepthItemRaw{b: d.b[60+i*12 : 60+i*12+12]} }

// DepthItemRaw is a zero-copy view over one 12-byte depth entry.
type DepthItemRaw struct {
	b []byte
}

func (d DepthItemRaw) Qty() uint32     { return binary.BigEndian.Uint32(d.b[0:4]) }
func (d DepthItemRaw) PriceRaw() int32 { return int32(binary.BigEndian.Uint32(d.b[4:8])) }
func (d DepthItemRaw) Orders() uint16  { return binary.BigEndian.Uint16(d.b[8:10]) }

// IndexQuoteRaw32 is a zero-copy view over a validated 32-byte index
// snapshot packet: token, LTP, H, L, O, C, price-change, exchange-ts.
type IndexQuoteRaw32 struct {
	b []byte
}

// AsIndexQuoteRaw32 validates that b is exactly IndexQuoteSize bytes.
func AsIndexQuoteRaw32(b []byte) (IndexQuoteRaw32, error) {
	if len(b) != IndexQuoteSize {
		return IndexQuoteRaw32{}, fmt.Errorf("index quote raw view: expected %d bytes, got %d", IndexQuoteSize, len(b))
	}
	return IndexQuoteRaw32{b: b}, nil
}

func (v IndexQuoteRaw32) Token() uint32        { return binary.BigEndian.Uint32(v.b[0:4]) }
func (v IndexQuoteRaw32) LTPRaw() int32        { return int32(binary.BigEndian.Uint32(v.b[4:8])) }
func (v IndexQuoteRaw32) HighRaw() int32       { return int32(binary.BigEndian.Uint32(v.b[8:12])) }
func (v IndexQuoteRaw32) LowRaw() int32        { return int32(binary.BigEndian.Uint32(v.b[12:16])) }
func (v IndexQuoteRaw32) OpenRaw() int32       { return int32(binary.BigEndian.Uint32(v.b[16:20])) }
func (v IndexQuoteRaw32) CloseRaw() int32      { return int32(binary.BigEndian.Uint32(v.b[20:24])) }
func (v IndexQuoteRaw32) PriceChangeRaw() int32 {
	return int32(binary.BigEndian.Uint32(v.b[24:28]))
}
func (v IndexQuoteRaw32) ExchangeTimestamp() uint32 { return binary.BigEndian.Uint32(v.b[28:32]) }

// InstHeaderRaw64 is a zero-copy view over a validated 64-byte
// instrument header: the same fields as TickRaw's header, without depth.
type InstHeaderRaw64 struct {
	b []byte
}

// AsInstHeaderRaw64 validates that b is exactly InstHeaderSize bytes.
func AsInstHeaderRaw64(b []byte) (InstHeaderRaw64, error) {
	if len(b) != InstHeaderSize {
		return InstHeaderRaw64{}, fmt.Errorf("instrument header raw view: expected %d bytes, got %d", InstHeaderSize, len(b))
	}
	return InstHeaderRaw64{b: b}, nil
}

func (v InstHeaderRaw64) InstrumentToken() uint32   { return binary.BigEndian.Uint32(v.b[0:4]) }
func (v InstHeaderRaw64) LTPRaw() int32             { return int32(binary.BigEndian.Uint32(v.b[4:8])) }
func (v InstHeaderRaw64) LTQ() uint32               { return binary.BigEndian.Uint32(v.b[8:12]) }
func (v InstHeaderRaw64) ATPRaw() int32             { return int32(binary.BigEndian.Uint32(v.b[12:16])) }
func (v InstHeaderRaw64) Volume() uint32            { return binary.BigEndian.Uint32(v.b[16:20]) }
func (v InstHeaderRaw64) TotalBuyQty() uint32       { return binary.BigEndian.Uint32(v.b[20:24]) }
func (v InstHeaderRaw64) TotalSellQty() uint32      { return binary.BigEndian.Uint32(v.b[24:28]) }
func (v InstHeaderRaw64) OpenRaw() int32            { return int32(binary.BigEndian.Uint32(v.b[28:32])) }
func (v InstHeaderRaw64) HighRaw() int32            { return int32(binary.BigEndian.Uint32(v.b[32:36])) }
func (v InstHeaderRaw64) LowRaw() int32             { return int32(binary.BigEndian.Uint32(v.b[36:40])) }
func (v InstHeaderRaw64) CloseRaw() int32           { return int32(binary.BigEndian.Uint32(v.b[40:44])) }
func (v InstHeaderRaw64) LastTradedTimestamp() uint32 {
	return binary.BigEndian.Uint32(v.b[44:48])
}
func (v InstHeaderRaw64) OI() uint32        { return binary.BigEndian.Uint32(v.b[48:52]) }
func (v InstHeaderRaw64) OIDayHigh() uint32 { return binary.BigEndian.Uint32(v.b[52:56]) }
func (v InstHeaderRaw64) OIDayLow() uint32  { return binary.BigEndian.Uint32(v.b[56:60]) }
func (v InstHeaderRaw64) ExchangeTimestamp() uint32 {
	return binary.BigEndian.Uint32(v.b[60:64])
}
