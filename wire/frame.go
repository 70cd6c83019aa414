package wire

import (
	"encoding/binary"
	"fmt"
)

// ParseFrame decodes one binary WebSocket frame into its TickMessages,
// following the layout `u16 packet_count | (u16 body_len | body)*`.
//
// Parsing keeps partial progress: if one packet's body length is
// unrecognized, the tick is skipped and reported via the returned error
// but every packet already decoded is still returned. If the frame's
// length-prefix bookkeeping itself overruns the buffer, parsing stops
// immediately and whatever was already decoded is returned alongside
// the overrun error — packets after the overrun are simply never seen.
func ParseFrame(frame []byte) ([]TickMessage, error) {
	if len(frame) < 2 {
		return nil, nil
	}

	count := int(binary.BigEndian.Uint16(frame[0:2]))
	ticks := make([]TickMessage, 0, count)
	offset := 2
	var firstErr error

	for i := 0; i < count; i++ {
		if offset+2 > len(frame) {
			return ticks, fmt.Errorf("packet length field overruns frame (packet %d of %d)", i, count)
		}
		bodyLen := int(binary.BigEndian.Uint16(frame[offset : offset+2]))
		bodyStart := offset + 2
		bodyEnd := bodyStart + bodyLen
		if bodyEnd > len(frame) {
			return ticks, fmt.Errorf("packet body overruns frame (packet %d of %d)", i, count)
		}

		tick, err := TryTick(frame[bodyStart:bodyEnd])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			ticks = append(ticks, TickMessage{InstrumentToken: tick.InstrumentToken, Tick: tick})
		}

		offset = bodyEnd
	}

	return ticks, firstErr
}
