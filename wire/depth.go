package wire

import "encoding/binary"

// DepthItem is a single level of the market depth book: quantity, price,
// and the number of orders resting at that price. On the wire each entry
// is 12 bytes: u32 qty | i32 price | u16 orders | u16 pad.
type DepthItem struct {
	Qty    uint32
	Price  float64
	Orders uint16
}

// Depth holds the top 5 buy and 5 sell levels of the limit-order book,
// in the descending/ascending price order the venue produces them in.
type Depth struct {
	Buy  [5]DepthItem
	Sell [5]DepthItem
}

// depthItemFromBytes decodes one 12-byte depth entry. The trailing 2
// bytes are padding and are not read.
func depthItemFromBytes(b []byte, exch Exchange) DepthItem {
	return DepthItem{
		Qty:    binary.BigEndian.Uint32(b[0:4]),
		Price:  exch.Price(int32(binary.BigEndian.Uint32(b[4:8]))),
		Orders: binary.BigEndian.Uint16(b[8:10]),
	}
}

// DepthFromBytes decodes a 120-byte depth block: 60 bytes of buy levels
// followed by 60 bytes of sell levels, 12 bytes per level. A short input
// yields a zero-value Depth rather than an error — the field is simply
// absent on the parsed Tick, matching the wire format's tolerance for a
// malformed depth block inside an otherwise valid packet.
func DepthFromBytes(b []byte, exch Exchange) (Depth, bool) {
	if len(b) < 120 {
		return Depth{}, false
	}
	var d Depth
	for i := 0; i < 5; i++ {
		start := i * 12
		d.Buy[i] = depthItemFromBytes(b[start:start+10], exch)
	}
	for i := 0; i < 5; i++ {
		start := 60 + i*12
		d.Sell[i] = depthItemFromBytes(b[start:start+10], exch)
	}
	return d, true
}
