package wire

import "encoding/binary"

// OHLC holds the day's scaled open/high/low/close prices.
type OHLC struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// OHLCFromBytes decodes a 16-byte tradable-instrument OHLC block, field
// order open, high, low, close.
func OHLCFromBytes(b []byte, exch Exchange) OHLC {
	return OHLC{
		Open:  exch.Price(int32(binary.BigEndian.Uint32(b[0:4]))),
		High:  exch.Price(int32(binary.BigEndian.Uint32(b[4:8]))),
		Low:   exch.Price(int32(binary.BigEndian.Uint32(b[8:12]))),
		Close: exch.Price(int32(binary.BigEndian.Uint32(b[12:16]))),
	}
}

// OHLCFromIndexBytes decodes a 16-byte index OHLC block. On the wire
// the field order for indices is high, low, open, close.
func OHLCFromIndexBytes(b []byte, exch Exchange) OHLC {
	return OHLC{
		High:  exch.Price(int32(binary.BigEndian.Uint32(b[0:4]))),
		Low:   exch.Price(int32(binary.BigEndian.Uint32(b[4:8]))),
		Open:  exch.Price(int32(binary.BigEndian.Uint32(b[8:12]))),
		Close: exch.Price(int32(binary.BigEndian.Uint32(b[12:16]))),
	}
}
