package wire

import "encoding/json"

// TextMessage is the raw shape of a non-binary WebSocket frame:
// `{"type":"order"|"error"|<other>,"data":<json>}`.
type TextMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseTextMessage decodes a text frame's JSON body into a TextMessage.
func ParseTextMessage(b []byte) (TextMessage, error) {
	var tm TextMessage
	err := json.Unmarshal(b, &tm)
	return tm, err
}

// ToTickerMessage converts a TextMessage into the TickerMessage variant
// its type names: "order" decodes data into an Order (capturing any
// decode failure as the message's error string rather than failing the
// whole read), "error" re-serializes data as a string, and anything
// else is passed through as opaque JSON.
func (tm TextMessage) ToTickerMessage() TickerMessage {
	switch tm.Type {
	case "order":
		var o Order
		if err := json.Unmarshal(tm.Data, &o); err != nil {
			return OrderPostbackMessage{Err: err.Error()}
		}
		return OrderPostbackMessage{Order: &o}
	case "error":
		var s string
		if err := json.Unmarshal(tm.Data, &s); err == nil {
			return ErrorMessage{Err: s}
		}
		return ErrorMessage{Err: string(tm.Data)}
	default:
		var v any
		_ = json.Unmarshal(tm.Data, &v)
		return TextMessageVariant{Data: v}
	}
}
