package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	kiteticker "github.com/kiteticker-go/kiteticker"
	"github.com/kiteticker-go/kiteticker/session"
	"github.com/kiteticker-go/kiteticker/wire"
)

// Manager owns a fixed-size pool of ManagedConnections and distributes
// a symbol universe across them using round-robin placement with
// capacity checks. Round-robin cursor advance keeps placement fair
// across the pool instead of always favoring the first connection with
// free capacity.
//
// Manager's public mutators are not safe for concurrent invocation;
// callers serialize access externally if needed.
type Manager struct {
	cfg Config

	connections []*ManagedConnection
	processors  []*Processor
	limiter     *placementLimiter
	health      *HealthMonitor

	globalIndex map[uint32]ChannelId
	nextIndex   int

	startTime time.Time
	started   bool
}

// New constructs a Manager. Call Start to establish connections.
func New(opts ...Option) (*Manager, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:         cfg,
		globalIndex: make(map[uint32]ChannelId),
	}, nil
}

// Start dials every connection in the pool, wires up its processor,
// and — if HealthCheckInterval is positive — starts the health
// monitor. ConnectError from any connection is fatal and aborts start.
func (m *Manager) Start(ctx context.Context) error {
	m.startTime = time.Now()
	m.limiter = newPlacementLimiter(m.cfg.MaxConnections, m.cfg.MaxSymbolsPerConnection)

	m.connections = make([]*ManagedConnection, m.cfg.MaxConnections)
	m.processors = make([]*Processor, m.cfg.MaxConnections)

	for i := 0; i < m.cfg.MaxConnections; i++ {
		id := ChannelId(i)
		conn := newManagedConnection(id, m.cfg)
		if err := conn.Connect(ctx); err != nil {
			return &kiteticker.ConnectError{Err: fmt.Errorf("connection %d: %w", i, err)}
		}
		m.connections[i] = conn

		proc := NewProcessor(id, conn.Output(), m.cfg.ParserBufferSize, m.cfg.Logger)
		if m.cfg.EnableDedicatedParsers {
			proc.Start()
		}
		m.processors[i] = proc
	}

	if m.cfg.HealthCheckInterval > 0 {
		m.health = newHealthMonitor(m.connections, m.cfg.HealthCheckInterval, m.cfg.HeartbeatLiveness, m.cfg.Logger)
		m.health.Start()
	}

	m.started = true
	return nil
}

// findAvailableConnection scans up to MaxConnections slots starting
// from nextIndex, returning the first with capacity for one more
// token. Ties are broken in favor of the lower-indexed connection
// because the cursor advances only after a successful placement. token
// is carried only to label the CapacityError if none accept.
func (m *Manager) findAvailableConnection(token uint32) (ChannelId, error) {
	for i := 0; i < m.cfg.MaxConnections; i++ {
		idx := (m.nextIndex + i) % m.cfg.MaxConnections
		if m.limiter.canAccept(idx, 1) {
			m.nextIndex = (idx + 1) % m.cfg.MaxConnections
			return ChannelId(idx), nil
		}
	}
	return 0, &kiteticker.CapacityError{Token: token}
}

// allocate walks tokens, skipping any already in the global index, and
// commits each new token to the next connection with capacity: limiter
// count bumped, global index updated, cursor advanced. A CapacityError
// stops the walk but already-committed tokens from this same call stay
// committed (best-effort partial-failure semantics).
func (m *Manager) allocate(tokens []uint32) (map[ChannelId][]uint32, error) {
	byConnection := make(map[ChannelId][]uint32)
	for _, t := range tokens {
		if _, exists := m.globalIndex[t]; exists {
			continue
		}
		id, err := m.findAvailableConnection(t)
		if err != nil {
			return byConnection, err
		}
		m.limiter.add(id.ToIndex(), 1)
		m.globalIndex[t] = id
		byConnection[id] = append(byConnection[id], t)
	}
	return byConnection, nil
}

// release removes tokens present in the global index, returning them
// grouped by the connection that owned them. Absent tokens are skipped.
func (m *Manager) release(tokens []uint32) map[ChannelId][]uint32 {
	byConnection := make(map[ChannelId][]uint32)
	for _, t := range tokens {
		id, ok := m.globalIndex[t]
		if !ok {
			continue
		}
		byConnection[id] = append(byConnection[id], t)
		delete(m.globalIndex, t)
		m.limiter.remove(id.ToIndex(), 1)
	}
	return byConnection
}

// SubscribeSymbols allocates tokens across the pool via round-robin
// placement and subscribes each connection to its share. Tokens already
// present in the global index are skipped. A CapacityError aborts the
// call but leaves already-placed tokens from this same call in place
// (best-effort partial-failure semantics).
func (m *Manager) SubscribeSymbols(tokens []uint32, mode *wire.Mode) error {
	if !m.started {
		return &kiteticker.StateError{Msg: "manager: not started"}
	}
	effectiveMode := m.cfg.DefaultMode
	if mode != nil {
		effectiveMode = *mode
	}

	byConnection, allocErr := m.allocate(tokens)

	for id, toks := range byConnection {
		conn := m.connections[id.ToIndex()]
		if len(toks) == 0 {
			continue
		}
		var err error
		if conn.SymbolCount() == 0 {
			// This connection had no symbols before this call.
			err = conn.SubscribeSymbols(toks, effectiveMode)
			if err == nil {
				conn.StartMessageProcessing()
			}
		} else {
			err = conn.AddSymbols(toks, effectiveMode)
		}
		if err != nil {
			return fmt.Errorf("manager: subscribe on connection %d: %w", id.ToIndex(), err)
		}
	}
	// Tokens placed before capacity ran out are subscribed above and
	// stay placed; the caller still learns the walk did not finish.
	return allocErr
}

// UnsubscribeSymbols removes tokens present in the global index.
func (m *Manager) UnsubscribeSymbols(tokens []uint32) error {
	if !m.started {
		return &kiteticker.StateError{Msg: "manager: not started"}
	}
	for id, toks := range m.release(tokens) {
		conn := m.connections[id.ToIndex()]
		if err := conn.RemoveSymbols(toks); err != nil {
			return fmt.Errorf("manager: unsubscribe on connection %d: %w", id.ToIndex(), err)
		}
	}
	return nil
}

// ChangeMode changes the subscription mode for tokens already placed.
// When Config.ModeChangeFallback is set, this performs an
// unsubscribe-then-resubscribe instead of a bare mode command, for
// callers whose upstream silently ignores a widening mode change.
func (m *Manager) ChangeMode(tokens []uint32, mode wire.Mode) error {
	if !m.started {
		return &kiteticker.StateError{Msg: "manager: not started"}
	}
	byConnection := make(map[ChannelId][]uint32)
	for _, t := range tokens {
		id, ok := m.globalIndex[t]
		if !ok {
			continue
		}
		byConnection[id] = append(byConnection[id], t)
	}

	for id, toks := range byConnection {
		conn := m.connections[id.ToIndex()]
		if m.cfg.ModeChangeFallback {
			if err := conn.RemoveSymbols(toks); err != nil {
				return fmt.Errorf("manager: mode-change unsubscribe on connection %d: %w", id.ToIndex(), err)
			}
			if err := conn.AddSymbols(toks, mode); err != nil {
				return fmt.Errorf("manager: mode-change resubscribe on connection %d: %w", id.ToIndex(), err)
			}
			continue
		}
		if err := conn.ChangeMode(toks, mode); err != nil {
			return fmt.Errorf("manager: mode change on connection %d: %w", id.ToIndex(), err)
		}
	}
	return nil
}

// GetChannel returns a fresh broadcast receiver for one connection's
// processor output.
func (m *Manager) GetChannel(id ChannelId) (*session.Receiver[wire.TickerMessage], error) {
	idx := id.ToIndex()
	if idx < 0 || idx >= len(m.processors) {
		return nil, fmt.Errorf("manager: invalid channel id %d", idx)
	}
	return m.processors[idx].Subscribe(), nil
}

// GetAllChannels returns a fresh receiver per connection.
func (m *Manager) GetAllChannels() map[ChannelId]*session.Receiver[wire.TickerMessage] {
	out := make(map[ChannelId]*session.Receiver[wire.TickerMessage], len(m.processors))
	for i, p := range m.processors {
		out[ChannelId(i)] = p.Subscribe()
	}
	return out
}

// GetRawFrameChannel returns a fresh receiver over one connection's raw
// frame broadcast, for zero-copy consumers.
func (m *Manager) GetRawFrameChannel(id ChannelId) (*session.Receiver[[]byte], error) {
	idx := id.ToIndex()
	if idx < 0 || idx >= len(m.connections) {
		return nil, fmt.Errorf("manager: invalid channel id %d", idx)
	}
	return m.connections[idx].sess.SubscribeRawFrames(), nil
}

// GetAllRawFrameChannels returns a fresh raw-frame receiver per connection.
func (m *Manager) GetAllRawFrameChannels() map[ChannelId]*session.Receiver[[]byte] {
	out := make(map[ChannelId]*session.Receiver[[]byte], len(m.connections))
	for i, c := range m.connections {
		out[ChannelId(i)] = c.sess.SubscribeRawFrames()
	}
	return out
}

// GetStats delegates to the health monitor; an error if it was never
// started (HealthCheckInterval <= 0).
func (m *Manager) GetStats() (ManagerStats, error) {
	if m.health == nil {
		return ManagerStats{}, fmt.Errorf("manager: health monitor not running")
	}
	return m.health.GetManagerStats(), nil
}

// GetHealth delegates to the health monitor.
func (m *Manager) GetHealth() (HealthSummary, error) {
	if m.health == nil {
		return HealthSummary{}, fmt.Errorf("manager: health monitor not running")
	}
	return m.health.GetHealthSummary(), nil
}

// GetProcessorStats returns per-channel processor throughput stats.
func (m *Manager) GetProcessorStats() map[ChannelId]ProcessorStats {
	out := make(map[ChannelId]ProcessorStats, len(m.processors))
	for i, p := range m.processors {
		out[ChannelId(i)] = p.Stats()
	}
	return out
}

// HasCapacity reports whether any connection in the pool can accept one
// more symbol. Used by higher-level callers (e.g. a multi-credential
// facade) that need to decide whether this manager is a viable
// round-robin target before committing to it.
func (m *Manager) HasCapacity() bool {
	if m.limiter == nil {
		return false
	}
	for i := 0; i < m.cfg.MaxConnections; i++ {
		if m.limiter.canAccept(i, 1) {
			return true
		}
	}
	return false
}

// GetSymbolDistribution returns the full token → ChannelId map grouped
// by connection.
func (m *Manager) GetSymbolDistribution() map[ChannelId][]uint32 {
	out := make(map[ChannelId][]uint32)
	for t, id := range m.globalIndex {
		out[id] = append(out[id], t)
	}
	return out
}

// Stop stops the health monitor, then every processor, then every
// connection (which aborts that session's reader/writer/parser tasks
// and waits for them).
func (m *Manager) Stop() error {
	if m.health != nil {
		m.health.Stop()
	}

	var wg sync.WaitGroup
	for _, p := range m.processors {
		p.Stop()
	}

	errs := make([]error, len(m.connections))
	wg.Add(len(m.connections))
	for i, c := range m.connections {
		go func(i int, c *ManagedConnection) {
			defer wg.Done()
			errs[i] = c.Stop()
		}(i, c)
	}
	wg.Wait()

	m.started = false
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
