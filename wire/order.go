package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state carried on an order postback.
type OrderStatus string

const (
	OrderStatusComplete  OrderStatus = "COMPLETE"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusUpdate    OrderStatus = "UPDATE"
)

// OrderTransactionType is the buy/sell side of an order.
type OrderTransactionType string

const (
	TransactionBuy  OrderTransactionType = "BUY"
	TransactionSell OrderTransactionType = "SELL"
)

// OrderValidity is the time-in-force of an order.
type OrderValidity string

const (
	ValidityDay OrderValidity = "DAY"
	ValidityIOC OrderValidity = "IOC"
	ValidityTTL OrderValidity = "TTL"
)

// orderTimestampLayout is the wire format for the three order
// timestamps: local time, no timezone suffix, always UTC.
const orderTimestampLayout = "2006-01-02 15:04:05"

// OrderTimestamp is a `YYYY-MM-DD HH:MM:SS` UTC timestamp as carried on
// order postbacks, marshaled to/from that exact text form.
type OrderTimestamp struct {
	time.Time
}

// UnixSeconds returns the timestamp as seconds since the Unix epoch.
func (t OrderTimestamp) UnixSeconds() int64 { return t.Time.Unix() }

func (t OrderTimestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(orderTimestampLayout))
}

func (t *OrderTimestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(orderTimestampLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("order timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Order is the structured record deserialized from the `data` field of
// a `{"type":"order",...}` text message.
type Order struct {
	OrderID               string               `json:"order_id"`
	ExchangeOrderID       *string              `json:"exchange_order_id"`
	ParentOrderID         *string              `json:"parent_order_id"`
	PlacedBy              string               `json:"placed_by"`
	AppID                 uint64               `json:"app_id"`
	Status                OrderStatus          `json:"status"`
	StatusMessage         *string              `json:"status_message"`
	StatusMessageRaw      *string              `json:"status_message_raw"`
	TradingSymbol         string               `json:"tradingsymbol"`
	InstrumentToken       uint32               `json:"instrument_token"`
	Exchange              Exchange             `json:"-"`
	ExchangeName          string               `json:"exchange"`
	OrderType             string               `json:"order_type"`
	TransactionType       OrderTransactionType `json:"transaction_type"`
	Validity              OrderValidity        `json:"validity"`
	Variety               string               `json:"variety"`
	Product               *string              `json:"product"`
	AveragePrice          float64              `json:"average_price"`
	DisclosedQuantity     float64              `json:"disclosed_quantity"`
	Price                 float64              `json:"price"`
	Quantity              uint64               `json:"quantity"`
	FilledQuantity        uint64               `json:"filled_quantity"`
	UnfilledQuantity      uint64               `json:"unfilled_quantity"`
	PendingQuantity       uint64               `json:"pending_quantity"`
	CancelledQuantity     uint64               `json:"cancelled_quantity"`
	TriggerPrice          float64              `json:"trigger_price"`
	UserID                string               `json:"user_id"`
	OrderTimestamp        OrderTimestamp       `json:"order_timestamp"`
	ExchangeTimestamp     OrderTimestamp       `json:"exchange_timestamp"`
	ExchangeUpdateTimestamp OrderTimestamp     `json:"exchange_update_timestamp"`
	Checksum              string               `json:"checksum"`
	Meta                  map[string]any       `json:"meta,omitempty"`
	Tag                   *string              `json:"tag,omitempty"`
}

// UnmarshalJSON decodes an Order and, on success, derives Exchange from
// the wire's textual exchange name.
func (o *Order) UnmarshalJSON(b []byte) error {
	type alias Order
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*o = Order(a)
	o.Exchange = ExchangeFromString(o.ExchangeName)
	return nil
}

// MarshalJSON re-serializes the exchange name from the derived Exchange
// before delegating to the default struct encoding.
func (o Order) MarshalJSON() ([]byte, error) {
	type alias Order
	a := alias(o)
	a.ExchangeName = o.Exchange.String()
	return json.Marshal(a)
}
