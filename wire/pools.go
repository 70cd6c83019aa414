package wire

import "sync"

// tickPool reuses Tick values across decodes to keep the hot parse path
// allocation-free. The wire format unifies LTP/Quote/Full into one
// progressively-filled struct, so a single pool covers every packet
// shape.
var tickPool = sync.Pool{
	New: func() any { return new(Tick) },
}

// AcquireTick returns a zeroed *Tick from the pool.
func AcquireTick() *Tick {
	t := tickPool.Get().(*Tick)
	*t = Tick{}
	return t
}

// ReleaseTick returns t to the pool. Callers must not retain any
// reference to t (or copies of its Depth array by pointer) afterward.
func ReleaseTick(t *Tick) {
	if t == nil {
		return
	}
	tickPool.Put(t)
}

// WithTick decodes body into a pooled *Tick, invokes fn with it, and
// returns the Tick to the pool before returning. The Tick is only valid
// for the duration of fn; copy *t inside fn to retain values past it.
func WithTick(body []byte, fn func(*Tick) error) error {
	t, err := TryTick(body)
	if err != nil {
		return err
	}
	pooled := AcquireTick()
	*pooled = t
	defer ReleaseTick(pooled)
	return fn(pooled)
}

// WithTickRaw decodes a 184-byte Full packet body as a zero-copy
// TickRaw view and invokes fn with it. There is nothing to pool here —
// the view borrows body directly — but the helper is provided for
// symmetry with WithTick's auto-releasing callback shape.
func WithTickRaw(body []byte, fn func(TickRaw) error) error {
	v, err := AsTickRaw(body)
	if err != nil {
		return err
	}
	return fn(v)
}
