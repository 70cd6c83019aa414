package wire

import (
	"encoding/json"
	"testing"
)

func TestSubscribeRequestJSON(t *testing.T) {
	req := SubscribeRequest([]uint32{408065, 738561})
	b, err := req.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded["a"] != "subscribe" {
		t.Errorf("a = %v, want subscribe", decoded["a"])
	}
	v, ok := decoded["v"].([]any)
	if !ok || len(v) != 2 {
		t.Fatalf("v = %v, want 2-element array", decoded["v"])
	}
}

func TestModeRequestJSON(t *testing.T) {
	req := ModeRequest(ModeFull, []uint32{408065})
	b, err := req.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var decoded struct {
		A string `json:"a"`
		V []any  `json:"v"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.A != "mode" {
		t.Errorf("a = %q, want mode", decoded.A)
	}
	if len(decoded.V) != 2 || decoded.V[0] != "full" {
		t.Errorf("v = %v, want [\"full\", [tokens]]", decoded.V)
	}
}

func TestRequestStringMatchesToJSON(t *testing.T) {
	req := UnsubscribeRequest([]uint32{1, 2, 3})
	b, _ := req.ToJSON()
	if req.String() != string(b) {
		t.Errorf("String() = %q, want %q", req.String(), string(b))
	}
}
