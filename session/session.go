package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/kiteticker-go/kiteticker/middleware"
	"github.com/kiteticker-go/kiteticker/wire"
)

// Session represents one established WebSocket connection to the
// venue's streaming service: a writer task draining an unbounded
// command queue, a reader task that never blocks on a full parse
// queue, a parser task decoding frames per the wire package, and the
// raw-frame / parsed-message broadcast fan-out consumers subscribe to.
type Session struct {
	ID  string
	cfg Config

	conn *websocket.Conn

	cmd      *cmdQueue
	throttle *rate.Limiter

	parseQueue chan []byte

	rawBroadcast    *Broadcast[[]byte]
	parsedBroadcast *Broadcast[wire.TickerMessage]

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// Dial upgrades a TLS WebSocket connection to host with the given
// credentials and starts the writer, reader, and parser tasks. On HTTP
// upgrade failure the returned error's message includes the status
// code.
func Dial(ctx context.Context, creds Credentials, opts ...Option) (*Session, error) {
	cfg := newConfig(opts...)
	if cfg.Host == "" {
		return nil, fmt.Errorf("session: Config.Host must be set")
	}

	u := url.URL{
		Scheme: "wss",
		Host:   cfg.Host,
		Path:   "/",
		RawQuery: url.Values{
			"api_key":      {creds.APIKey},
			"access_token": {creds.AccessToken},
		}.Encode(),
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, fmt.Errorf("session: connect failed (status %d): %w", status, err)
	}

	s := &Session{
		ID:              uuid.NewString(),
		cfg:             cfg,
		conn:            conn,
		cmd:             newCmdQueue(),
		throttle:        rate.NewLimiter(rate.Limit(50), 100),
		parseQueue:      make(chan []byte, cfg.ParseQueueSize),
		rawBroadcast:    NewBroadcast[[]byte](cfg.RawBufferSize),
		parsedBroadcast: NewBroadcast[wire.TickerMessage](cfg.ParsedBufferSize),
		closed:          make(chan struct{}),
	}

	if cfg.Metrics != nil {
		cfg.Metrics.RecordConnection(true)
	}

	s.wg.Add(3)
	go s.writeLoop()
	go s.readLoop()
	go s.parseLoop()

	return s, nil
}

// Send enqueues a text frame for the writer task. It never blocks: the
// command queue is unbounded (see cmdQueue).
func (s *Session) Send(frame []byte) {
	s.cmd.push(frame)
}

// SendRequest encodes and enqueues a wire.Request.
func (s *Session) SendRequest(req wire.Request) error {
	b, err := req.ToJSON()
	if err != nil {
		return err
	}
	s.Send(b)
	return nil
}

// SubscribeRawFrames returns a fresh receiver over the session's
// raw-frame broadcast, for zero-copy consumers that project wire.TickRaw
// views directly over the bytes.
func (s *Session) SubscribeRawFrames() *Receiver[[]byte] {
	return s.rawBroadcast.Subscribe()
}

// SubscribeParsed returns a fresh receiver over the session's
// parsed-message broadcast.
func (s *Session) SubscribeParsed() *Receiver[wire.TickerMessage] {
	return s.parsedBroadcast.Subscribe()
}

// Done returns a channel closed once Close has been called.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Close closes the writer channel (which closes the socket cleanly)
// and waits for every task to finish.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cmd.close()
		err = s.conn.Close()
		s.wg.Wait()
		s.rawBroadcast.Close()
		s.parsedBroadcast.Close()
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordConnection(false)
		}
	})
	return err
}

func (s *Session) writeLoop() {
	defer s.wg.Done()
	for {
		frame, ok := s.cmd.pop()
		if !ok {
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
		if err := s.throttle.Wait(context.Background()); err != nil {
			return
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			s.cfg.Logger.Warn().Err(err).Str("session", s.ID).Msg("write failed")
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.RecordError()
			}
			return
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordFrameSent(len(frame))
		}
	}
}

// readLoop pulls frames off the socket and fans them out to the
// raw-frame broadcast and the bounded parse queue. It must never block:
// a full parse queue causes the frame to be dropped (with a warning)
// rather than stall the socket read. Per-message handling is routed
// through the configured middleware chain (logging/metrics/recovery/
// timeout) when one is configured.
func (s *Session) readLoop() {
	defer s.wg.Done()
	defer s.cmd.close()
	defer close(s.parseQueue)

	handle := middleware.FrameHandler(s.dispatchFrame)
	if s.cfg.Middleware != nil {
		handle = s.cfg.Middleware(handle)
	}

	ctx := context.Background()
	for {
		start := time.Now()
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				s.parsedBroadcast.Send(wire.ClosingMessage{Code: ce.Code, Reason: ce.Text})
				return
			}
			s.parsedBroadcast.Send(wire.ErrorMessage{Err: fmt.Sprintf("WebSocket error: %v", err)})
			s.cfg.Logger.Error().Err(err).Str("session", s.ID).Msg("read failed")
			return
		}

		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordFrameReceived(len(data), time.Since(start))
		}

		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}

		// gorilla's ReadMessage result is only valid until the next read
		// call, so every downstream consumer needs its own copy: one
		// owned copy is handed to the raw-frame broadcast (zero-copy
		// views read it for however long a slow consumer takes), and a
		// second, independent, pool-backed copy feeds the parse queue
		// (reclaimed once the parser is done with it).
		if msgType == websocket.BinaryMessage {
			owned := make([]byte, len(data))
			copy(owned, data)
			s.rawBroadcast.Send(owned)
		}

		if err := handle(ctx, s.taggedFrame(msgType, data)); err != nil {
			s.cfg.Logger.Warn().Err(err).Str("session", s.ID).Msg("message handler failed")
		}
	}
}

// dispatchFrame is the innermost handler the middleware chain wraps: it
// enqueues a tagged frame on the bounded parse queue, dropping it (and
// returning it to the buffer pool immediately) rather than blocking
// when the queue is full.
func (s *Session) dispatchFrame(_ context.Context, tagged []byte) error {
	select {
	case s.parseQueue <- tagged:
	default:
		s.cfg.Logger.Warn().Str("session", s.ID).Msg("parse queue full, dropping frame")
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordError()
		}
		s.releaseTagged(tagged)
	}
	return nil
}

// taggedFrame prefixes the frame with a one-byte message-type tag so
// the single parseQueue channel can carry both text and binary frames
// without a second channel (and thus without a second place for the
// reader to potentially block). The backing buffer comes from the
// configured BufferPool when present, to keep the reader off the
// allocator on the hot path; it is never shared with the raw-frame
// broadcast, which owns its own copy (see readLoop), so reclaiming it
// back to the pool after parsing can never corrupt a live view.
func (s *Session) taggedFrame(msgType int, data []byte) []byte {
	var tagged []byte
	if s.cfg.BufferPool != nil {
		tagged = s.cfg.BufferPool.Get(len(data) + 1)
	} else {
		tagged = make([]byte, len(data)+1)
	}
	if msgType == websocket.TextMessage {
		tagged[0] = 't'
	} else {
		tagged[0] = 'b'
	}
	copy(tagged[1:], data)
	return tagged
}

// releaseTagged returns a tagged buffer to the configured BufferPool. A
// no-op when no pool is configured.
func (s *Session) releaseTagged(tagged []byte) {
	if s.cfg.BufferPool != nil {
		s.cfg.BufferPool.Put(tagged)
	}
}

// parseLoop consumes the bounded parse queue and decodes frames per
// frames, publishing results to the parsed-message broadcast. When the
// session is raw-only, frames are drained but never decoded. Every
// tagged buffer is returned to the configured BufferPool once this
// loop is done reading it, regardless of outcome.
func (s *Session) parseLoop() {
	defer s.wg.Done()
	for tagged := range s.parseQueue {
		s.parseOne(tagged)
	}
}

func (s *Session) parseOne(tagged []byte) {
	defer s.releaseTagged(tagged)

	if len(tagged) == 0 {
		return
	}
	kind, body := tagged[0], tagged[1:]

	if s.cfg.RawOnly {
		return
	}

	switch kind {
	case 't':
		tm, err := wire.ParseTextMessage(body)
		if err != nil {
			s.parsedBroadcast.Send(wire.ErrorMessage{Err: err.Error()})
			return
		}
		s.parsedBroadcast.Send(tm.ToTickerMessage())
	case 'b':
		if len(body) < 2 {
			// A 1-byte binary frame is a heartbeat: silently dropped,
			// it only updates liveness (via the raw broadcast above).
			return
		}
		ticks, err := wire.ParseFrame(body)
		if len(ticks) > 0 {
			s.parsedBroadcast.Send(wire.TicksMessage{Ticks: ticks})
		}
		if err != nil {
			s.parsedBroadcast.Send(wire.ErrorMessage{Err: err.Error()})
		}
	}
}

// cmdQueue is a growable, unbounded FIFO queue fed by any number of
// producers and drained by exactly one consumer (the writer task). Go's
// channels are inherently bounded, so an unbounded mpsc is original
// code, following the same hand-rolled-primitive approach as
// Broadcast, to give producers a writer channel that is unbounded and
// safe for multiple concurrent producers.
type cmdQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [][]byte
	closed bool
}

func newCmdQueue() *cmdQueue {
	q := &cmdQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *cmdQueue) push(item []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *cmdQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *cmdQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
