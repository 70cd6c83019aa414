package session

import (
	"context"

	"github.com/kiteticker-go/kiteticker/wire"
)

// Subscriber is a per-subscription view over a Session: it remembers
// which tokens (and at what mode) this particular subscriber owns, and
// issues subscribe/unsubscribe/mode control messages over the
// session's command queue accordingly.
//
// This handle's local table is a convenience cache only — a managed
// connection that also issues commands directly (bypassing this type)
// is the source of truth, and this handle's table can drift from it
// under concurrent external mutation of the same tokens.
type Subscriber struct {
	session *Session
	rx      *Receiver[wire.TickerMessage]
	tokens  map[uint32]wire.Mode
}

// NewSubscriber creates a Subscriber over sess, initially subscribing
// to tokens at the given mode (ModeQuote if mode is zero).
func NewSubscriber(sess *Session, tokens []uint32, mode wire.Mode) (*Subscriber, error) {
	if mode == 0 {
		mode = wire.ModeQuote
	}
	s := &Subscriber{
		session: sess,
		rx:      sess.SubscribeParsed(),
		tokens:  make(map[uint32]wire.Mode, len(tokens)),
	}
	if len(tokens) > 0 {
		if err := sess.SendRequest(wire.SubscribeRequest(tokens)); err != nil {
			return nil, err
		}
		if err := sess.SendRequest(wire.ModeRequest(mode, tokens)); err != nil {
			return nil, err
		}
		for _, t := range tokens {
			s.tokens[t] = mode
		}
	}
	return s, nil
}

// Subscribed returns the tokens this subscriber currently owns.
func (s *Subscriber) Subscribed() []uint32 {
	out := make([]uint32, 0, len(s.tokens))
	for t := range s.tokens {
		out = append(out, t)
	}
	return out
}

// subscribedOr intersects tokens with the owned set, or returns every
// owned token when tokens is empty — the "empty input means all" rule
// shared by SetMode and Unsubscribe.
func (s *Subscriber) subscribedOr(tokens []uint32) []uint32 {
	if len(tokens) == 0 {
		return s.Subscribed()
	}
	out := make([]uint32, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := s.tokens[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Subscribe adds tokens not already owned by this subscriber. If mode
// is non-nil, a mode command is also sent for the newly added tokens.
// All commands are fire-and-forget: a dropped write is surfaced to
// consumers via the parsed-message channel, not returned here.
func (s *Subscriber) Subscribe(tokens []uint32, mode *wire.Mode) error {
	fresh := make([]uint32, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := s.tokens[t]; !ok {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := s.session.SendRequest(wire.SubscribeRequest(fresh)); err != nil {
		return err
	}

	m := wire.ModeQuote
	if mode != nil {
		m = *mode
		if err := s.session.SendRequest(wire.ModeRequest(m, fresh)); err != nil {
			return err
		}
	}

	for _, t := range fresh {
		s.tokens[t] = m
	}
	return nil
}

// SetMode changes the mode for tokens already owned by this subscriber
// (intersected with the current table; empty input means every owned
// token). A no-op if the intersection is empty.
func (s *Subscriber) SetMode(tokens []uint32, mode wire.Mode) error {
	target := s.subscribedOr(tokens)
	if len(target) == 0 {
		return nil
	}
	if err := s.session.SendRequest(wire.ModeRequest(mode, target)); err != nil {
		return err
	}
	for _, t := range target {
		s.tokens[t] = mode
	}
	return nil
}

// Unsubscribe drops tokens owned by this subscriber (intersected with
// the current table; empty input means every owned token).
func (s *Subscriber) Unsubscribe(tokens []uint32) error {
	target := s.subscribedOr(tokens)
	if len(target) == 0 {
		return nil
	}
	if err := s.session.SendRequest(wire.UnsubscribeRequest(target)); err != nil {
		return err
	}
	for _, t := range target {
		delete(s.tokens, t)
	}
	return nil
}

// NextMessage awaits the next parsed message for this subscriber. It
// returns (nil, nil) once the underlying session closes (the Rust
// original's `Ok(None)` case), and a *LaggedError if this subscriber's
// receiver fell behind the broadcast's ring buffer.
func (s *Subscriber) NextMessage(ctx context.Context) (wire.TickerMessage, error) {
	msg, err := s.rx.Recv(ctx)
	if err == ErrClosed {
		return nil, nil
	}
	return msg, err
}
