package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kiteticker-go/kiteticker/session"
	"github.com/kiteticker-go/kiteticker/wire"
)

// ManagedConnection wraps one session.Session with its symbol table,
// stats, health flag, and last-frame timestamp.
type ManagedConnection struct {
	ID          ChannelId
	correlation string // uuid assigned at construction; not included in log lines

	sess       *session.Session
	subscriber *session.Subscriber

	tableMu     sync.Mutex
	symbolTable map[uint32]wire.Mode

	statsMu sync.RWMutex
	stats   ConnectionStats

	healthy      atomic.Bool
	lastFrameTS  atomic.Int64 // unix seconds

	cfg    Config
	logger *zerolog.Logger

	out *tickerQueue // unbounded: fed by the pump task, drained by Processor

	pumpDone chan struct{}
	hbDone   chan struct{}
}

// newManagedConnection constructs an unconnected ManagedConnection.
func newManagedConnection(id ChannelId, cfg Config) *ManagedConnection {
	mc := &ManagedConnection{
		ID:          id,
		correlation: uuid.NewString(),
		symbolTable: make(map[uint32]wire.Mode),
		cfg:         cfg,
		logger:      cfg.Logger,
		out:         newTickerQueue(cfg.ConnectionBufferSize),
	}
	mc.stats.ConnectionID = id.ToIndex()
	return mc
}

// Connect establishes the underlying session with a hard timeout,
// initializes last_frame_ts, and starts the heartbeat watcher.
func (mc *ManagedConnection) Connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, mc.cfg.ConnectionTimeout)
	defer cancel()

	sess, err := session.Dial(connectCtx, mc.cfg.Credentials,
		session.WithHost(mc.cfg.Host),
		session.WithRawOnly(mc.cfg.RawOnly),
		session.WithDialTimeout(mc.cfg.ConnectionTimeout),
		session.WithLogger(mc.logger),
	)
	if err != nil {
		return fmt.Errorf("connection %d: %w", mc.ID.ToIndex(), err)
	}
	mc.sess = sess

	mc.lastFrameTS.Store(time.Now().Unix())
	mc.healthy.Store(true)

	mc.statsMu.Lock()
	mc.stats.IsConnected = true
	mc.stats.ConnectionUptime = 0
	mc.statsMu.Unlock()

	mc.hbDone = make(chan struct{})
	go mc.heartbeatWatcher()

	return nil
}

// heartbeatWatcher subscribes to the session's raw-frame broadcast and
// records the time of every inbound binary frame, including 1-byte
// heartbeats — the raw broadcast sees every binary frame regardless of
// the session's raw-only flag or parse-queue pressure, so liveness
// tracking survives both. Text frames are not published on the raw
// broadcast and do not update the last-frame time.
func (mc *ManagedConnection) heartbeatWatcher() {
	defer close(mc.hbDone)
	rx := mc.sess.SubscribeRawFrames()
	ctx := context.Background()
	for {
		_, err := rx.Recv(ctx)
		if err != nil {
			if _, ok := err.(*session.LaggedError); ok {
				mc.lastFrameTS.Store(time.Now().Unix())
				continue
			}
			return
		}
		mc.lastFrameTS.Store(time.Now().Unix())
	}
}

// SubscribeSymbols performs the initial subscribe for this connection:
// creates the session subscriber and updates the symbol table. It does
// not yet start parser-output forwarding — call StartMessageProcessing
// for that, exactly once, after the first subscribe.
func (mc *ManagedConnection) SubscribeSymbols(tokens []uint32, mode wire.Mode) error {
	sub, err := session.NewSubscriber(mc.sess, tokens, mode)
	if err != nil {
		return err
	}
	mc.subscriber = sub

	mc.tableMu.Lock()
	for _, t := range tokens {
		mc.symbolTable[t] = mode
	}
	count := len(mc.symbolTable)
	mc.tableMu.Unlock()

	mc.statsMu.Lock()
	mc.stats.SymbolCount = count
	mc.statsMu.Unlock()

	return nil
}

// StartMessageProcessing moves the subscriber into a pump task that
// reads parsed messages and forwards them to the connection's output
// channel, which Processor consumes. Calling this more than once is a
// no-op with a warning, matching Processor.Start's own guard.
func (mc *ManagedConnection) StartMessageProcessing() {
	if mc.pumpDone != nil {
		mc.logger.Warn().Int("connection", mc.ID.ToIndex()).Msg("message processing already started")
		return
	}
	mc.pumpDone = make(chan struct{})
	go mc.pumpLoop()
}

func (mc *ManagedConnection) pumpLoop() {
	defer close(mc.pumpDone)
	defer mc.out.close()
	ctx := context.Background()
	lastUpdate := time.Now()
	var receivedSinceFlush uint64

	for {
		msg, err := mc.subscriber.NextMessage(ctx)
		if err != nil {
			if _, ok := err.(*session.LaggedError); ok {
				continue
			}
			mc.healthy.Store(false)
			mc.flushStats(&lastUpdate, &receivedSinceFlush, true)
			return
		}
		if msg == nil {
			mc.healthy.Store(false)
			mc.flushStats(&lastUpdate, &receivedSinceFlush, true)
			return
		}

		receivedSinceFlush++
		// The queue is unbounded, so this never drops a parsed message;
		// backpressure lives at the reader's parse queue only.
		mc.out.push(msg)

		mc.flushStats(&lastUpdate, &receivedSinceFlush, false)
	}
}

// flushStats batches counter updates and only takes the stats lock at
// roughly 1Hz cadence (or when force is set, on loop exit) to bound
// lock contention.
func (mc *ManagedConnection) flushStats(lastUpdate *time.Time, pending *uint64, force bool) {
	if !force && time.Since(*lastUpdate) < time.Second {
		return
	}
	mc.statsMu.Lock()
	mc.stats.MessagesReceived += *pending
	mc.stats.LastMessageTime = time.Now()
	mc.stats.IsConnected = mc.healthy.Load()
	mc.statsMu.Unlock()
	*pending = 0
	*lastUpdate = time.Now()
}

// AddSymbols incrementally subscribes tokens not already in the table.
func (mc *ManagedConnection) AddSymbols(tokens []uint32, mode wire.Mode) error {
	fresh := mc.filterNew(tokens)
	if len(fresh) == 0 {
		return nil
	}
	m := mode
	if err := mc.subscriber.Subscribe(fresh, &m); err != nil {
		return err
	}

	mc.tableMu.Lock()
	for _, t := range fresh {
		mc.symbolTable[t] = mode
	}
	count := len(mc.symbolTable)
	mc.tableMu.Unlock()

	mc.statsMu.Lock()
	mc.stats.SymbolCount = count
	mc.statsMu.Unlock()
	return nil
}

// RemoveSymbols unsubscribes tokens present in the table; idempotent
// for tokens not present.
func (mc *ManagedConnection) RemoveSymbols(tokens []uint32) error {
	present := mc.filterPresent(tokens)
	if len(present) == 0 {
		return nil
	}
	if err := mc.subscriber.Unsubscribe(present); err != nil {
		return err
	}

	mc.tableMu.Lock()
	for _, t := range present {
		delete(mc.symbolTable, t)
	}
	count := len(mc.symbolTable)
	mc.tableMu.Unlock()

	mc.statsMu.Lock()
	mc.stats.SymbolCount = count
	mc.statsMu.Unlock()
	return nil
}

// ChangeMode sends a mode command directly over the command channel
// (bypassing the subscriber handle) and updates the table.
func (mc *ManagedConnection) ChangeMode(tokens []uint32, mode wire.Mode) error {
	if err := mc.sess.SendRequest(wire.ModeRequest(mode, tokens)); err != nil {
		return err
	}
	mc.tableMu.Lock()
	for _, t := range tokens {
		mc.symbolTable[t] = mode
	}
	mc.tableMu.Unlock()
	return nil
}

func (mc *ManagedConnection) filterNew(tokens []uint32) []uint32 {
	mc.tableMu.Lock()
	defer mc.tableMu.Unlock()
	out := make([]uint32, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := mc.symbolTable[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (mc *ManagedConnection) filterPresent(tokens []uint32) []uint32 {
	mc.tableMu.Lock()
	defer mc.tableMu.Unlock()
	out := make([]uint32, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := mc.symbolTable[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// SymbolCount returns the number of tokens currently owned.
func (mc *ManagedConnection) SymbolCount() int {
	mc.tableMu.Lock()
	defer mc.tableMu.Unlock()
	return len(mc.symbolTable)
}

// CanAcceptSymbols reports whether adding n more tokens would stay
// within max.
func (mc *ManagedConnection) CanAcceptSymbols(n, max int) bool {
	return mc.SymbolCount()+n <= max
}

// IsHealthy returns the atomic health flag, lock-free.
func (mc *ManagedConnection) IsHealthy() bool { return mc.healthy.Load() }

// LastFrameTime returns the time of the last inbound frame of any kind.
func (mc *ManagedConnection) LastFrameTime() time.Time {
	return time.Unix(mc.lastFrameTS.Load(), 0)
}

// CheckLiveness flips the health flag to false once no binary frame —
// including 1-byte heartbeats — has arrived within threshold. A read
// error ends the session's reader without closing its broadcasts, so
// the last frame time simply stops advancing and this check is what
// marks such a connection unhealthy, just as it does a socket that
// goes quiet without an error. pumpLoop also clears the flag when the
// session's parsed-message stream ends.
func (mc *ManagedConnection) CheckLiveness(threshold time.Duration) {
	if !mc.healthy.Load() {
		return
	}
	if time.Since(mc.LastFrameTime()) > threshold {
		mc.healthy.Store(false)
	}
}

// Stats returns a snapshot of this connection's stats.
func (mc *ManagedConnection) Stats() ConnectionStats {
	mc.statsMu.RLock()
	defer mc.statsMu.RUnlock()
	return mc.stats
}

// Output returns the queue Processor consumes from.
func (mc *ManagedConnection) Output() *tickerQueue { return mc.out }

// Stop closes the underlying session and waits for the heartbeat
// watcher and pump tasks to finish.
func (mc *ManagedConnection) Stop() error {
	var err error
	if mc.sess != nil {
		err = mc.sess.Close()
	}
	if mc.hbDone != nil {
		<-mc.hbDone
	}
	if mc.pumpDone != nil {
		<-mc.pumpDone
	}
	return err
}
