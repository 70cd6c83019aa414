package wire

import "testing"

// TestParseFrameLTP decodes a single-packet frame with an LTP body.
func TestParseFrameLTP(t *testing.T) {
	frame := []byte{
		0x00, 0x01, // packet count = 1
		0x00, 0x08, // body length = 8
		0x00, 0x06, 0x3A, 0x01, // instrument token = 408065
		0x00, 0x02, 0x67, 0xDF, // last price = 0x267DF
	}

	ticks, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame returned error: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("len(ticks) = %d, want 1", len(ticks))
	}
	if ticks[0].InstrumentToken != 408065 {
		t.Errorf("InstrumentToken = %d, want 408065", ticks[0].InstrumentToken)
	}
	if ticks[0].Tick.Mode != ModeLTP {
		t.Errorf("Mode = %v, want ModeLTP", ticks[0].Tick.Mode)
	}
}

func TestParseFrameEmpty(t *testing.T) {
	ticks, err := ParseFrame(nil)
	if err != nil || ticks != nil {
		t.Fatalf("ParseFrame(nil) = (%v, %v), want (nil, nil)", ticks, err)
	}
	ticks, err = ParseFrame([]byte{0x00})
	if err != nil || ticks != nil {
		t.Fatalf("ParseFrame(1 byte) = (%v, %v), want (nil, nil)", ticks, err)
	}
}

func TestParseFrameMultiplePackets(t *testing.T) {
	ltpBody := func(token uint32, price uint32) []byte {
		return []byte{
			byte(token >> 24), byte(token >> 16), byte(token >> 8), byte(token),
			byte(price >> 24), byte(price >> 16), byte(price >> 8), byte(price),
		}
	}
	b1 := ltpBody(100, 1000)
	b2 := ltpBody(200, 2000)

	frame := []byte{0x00, 0x02}
	frame = append(frame, 0x00, 0x08)
	frame = append(frame, b1...)
	frame = append(frame, 0x00, 0x08)
	frame = append(frame, b2...)

	ticks, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame returned error: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("len(ticks) = %d, want 2", len(ticks))
	}
	if ticks[0].InstrumentToken != 100 || ticks[1].InstrumentToken != 200 {
		t.Errorf("tokens = %d, %d, want 100, 200", ticks[0].InstrumentToken, ticks[1].InstrumentToken)
	}
}

// TestParseFrameSkipsUnrecognizedSize covers partial-failure semantics:
// an unrecognized body length is skipped and reported, but packets
// decoded before and after it are still returned.
func TestParseFrameSkipsUnrecognizedSize(t *testing.T) {
	good := []byte{0x00, 0x00, 0x00, 0x64, 0x00, 0x00, 0x03, 0xE8} // token=100, price=1000
	bad := make([]byte, 13)                                       // unrecognized size

	frame := []byte{0x00, 0x02}
	frame = append(frame, 0x00, byte(len(bad)))
	frame = append(frame, bad...)
	frame = append(frame, 0x00, 0x08)
	frame = append(frame, good...)

	ticks, err := ParseFrame(frame)
	if err == nil {
		t.Fatal("expected error for unrecognized packet size")
	}
	if len(ticks) != 1 {
		t.Fatalf("len(ticks) = %d, want 1 (the valid packet should still decode)", len(ticks))
	}
	if ticks[0].InstrumentToken != 100 {
		t.Errorf("InstrumentToken = %d, want 100", ticks[0].InstrumentToken)
	}
}

// TestParseFrameOverrun covers the length-prefix-overrun case: parsing
// stops immediately but whatever decoded so far is still returned.
func TestParseFrameOverrun(t *testing.T) {
	good := []byte{0x00, 0x00, 0x00, 0x64, 0x00, 0x00, 0x03, 0xE8}

	frame := []byte{0x00, 0x02}
	frame = append(frame, 0x00, 0x08)
	frame = append(frame, good...)
	frame = append(frame, 0x00, 0xFF) // claims a 255-byte body that isn't there

	ticks, err := ParseFrame(frame)
	if err == nil {
		t.Fatal("expected overrun error")
	}
	if len(ticks) != 1 {
		t.Fatalf("len(ticks) = %d, want 1", len(ticks))
	}
}
