// Package multicredential wraps multiple independent manager.Managers —
// one per credential set — behind a single facade: symbols are
// distributed across credentials with the same round-robin,
// capacity-checked placement policy manager.Manager uses across its own
// connection pool, and every credential's output is merged onto one
// unified channel tagged with the originating credential's ID.
//
// Grounded on the original's MultiApiKiteTickerManager, which layers
// the identical two-level round-robin (API key, then connection within
// that key) over a HashMap of per-API-key connection groups.
package multicredential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiteticker-go/kiteticker/manager"
	"github.com/kiteticker-go/kiteticker/session"
	"github.com/kiteticker-go/kiteticker/wire"
)

// CredentialID names one of the facade's configured credential sets
// (the original's ApiKeyId).
type CredentialID string

// DistributionStrategy controls whether SubscribeSymbols may
// auto-distribute across credentials.
type DistributionStrategy int

const (
	// DistributionAuto allows SubscribeSymbols to round-robin tokens
	// across every configured credential.
	DistributionAuto DistributionStrategy = iota
	// DistributionManual requires every token to be placed explicitly
	// via SubscribeSymbolsTo; SubscribeSymbols refuses to run.
	DistributionManual
)

// CredentialMessage tags a parsed message with the credential whose
// connection produced it, for consumers of the unified channel.
type CredentialMessage struct {
	CredentialID CredentialID
	Message      wire.TickerMessage
}

// Stats aggregates ManagerStats across every credential.
type Stats struct {
	TotalCredentials      int
	TotalConnections      int
	TotalSymbols          int
	TotalMessagesReceived uint64
	TotalErrors           uint64
	Uptime                time.Duration
	PerCredential         map[CredentialID]manager.ManagerStats
}

// Builder assembles a Facade's per-credential manager configuration
// before Start dials anything, mirroring the original's
// MultiApiKiteTickerManagerBuilder.
type Builder struct {
	order    []CredentialID
	opts     map[CredentialID][]manager.Option
	strategy DistributionStrategy
}

// NewBuilder returns an empty Builder with DistributionAuto.
func NewBuilder() *Builder {
	return &Builder{opts: make(map[CredentialID][]manager.Option)}
}

// AddCredential registers one credential set's manager options. Adding
// the same id twice replaces its options and keeps its original
// position in the round-robin order.
func (b *Builder) AddCredential(id CredentialID, opts ...manager.Option) *Builder {
	if _, exists := b.opts[id]; !exists {
		b.order = append(b.order, id)
	}
	b.opts[id] = opts
	return b
}

// WithDistributionStrategy sets the strategy SubscribeSymbols enforces.
func (b *Builder) WithDistributionStrategy(s DistributionStrategy) *Builder {
	b.strategy = s
	return b
}

// Build constructs the Facade. Managers are not started (and nothing is
// dialed) until Start is called.
func (b *Builder) Build() (*Facade, error) {
	if len(b.order) == 0 {
		return nil, fmt.Errorf("multicredential: no credentials configured")
	}
	f := &Facade{
		strategy:           b.strategy,
		order:              append([]CredentialID(nil), b.order...),
		opts:               make(map[CredentialID][]manager.Option, len(b.opts)),
		managers:           make(map[CredentialID]*manager.Manager, len(b.opts)),
		symbolToCredential: make(map[uint32]CredentialID),
	}
	for id, opts := range b.opts {
		f.opts[id] = opts
	}
	return f, nil
}

// Facade is a thin round-robin layer over N manager.Managers. Its
// public mutators are not safe for concurrent invocation, matching
// manager.Manager's own concurrency contract.
type Facade struct {
	strategy DistributionStrategy

	order []CredentialID
	opts  map[CredentialID][]manager.Option

	managers map[CredentialID]*manager.Manager

	symbolToCredential map[uint32]CredentialID
	nextIndex          int

	unified *session.Broadcast[CredentialMessage]

	forwardersWG sync.WaitGroup

	startTime time.Time
	started   bool
}

// Start constructs and starts every configured credential's manager,
// then spawns one forwarder goroutine per connection channel that
// copies its output onto the unified channel tagged with its
// credential ID. The unified channel's ring capacity is fixed at 4096;
// a slow unified consumer falls behind exactly like any other
// session.Broadcast subscriber (LaggedError, not disconnection).
func (f *Facade) Start(ctx context.Context) error {
	f.unified = session.NewBroadcast[CredentialMessage](4096)
	f.startTime = time.Now()

	for _, id := range f.order {
		m, err := manager.New(f.opts[id]...)
		if err != nil {
			return fmt.Errorf("multicredential: credential %s: %w", id, err)
		}
		if err := m.Start(ctx); err != nil {
			return fmt.Errorf("multicredential: credential %s: %w", id, err)
		}
		f.managers[id] = m

		for _, rx := range m.GetAllChannels() {
			f.forwardersWG.Add(1)
			go f.forward(id, rx)
		}
	}

	f.started = true
	return nil
}

func (f *Facade) forward(id CredentialID, rx *session.Receiver[wire.TickerMessage]) {
	defer f.forwardersWG.Done()
	ctx := context.Background()
	for {
		msg, err := rx.Recv(ctx)
		if err != nil {
			if _, ok := err.(*session.LaggedError); ok {
				continue
			}
			return
		}
		f.unified.Send(CredentialMessage{CredentialID: id, Message: msg})
	}
}

// findAvailableCredential scans the configured credentials starting
// from nextIndex, round-robin, returning the first with spare capacity
// on any of its connections.
func (f *Facade) findAvailableCredential(token uint32) (CredentialID, error) {
	for i := 0; i < len(f.order); i++ {
		idx := (f.nextIndex + i) % len(f.order)
		id := f.order[idx]
		if f.managers[id].HasCapacity() {
			f.nextIndex = (idx + 1) % len(f.order)
			return id, nil
		}
	}
	return "", fmt.Errorf("multicredential: all credentials at capacity for token %d", token)
}

// SubscribeSymbols auto-distributes tokens across every configured
// credential via round-robin placement. Returns an error immediately
// if the facade was built with DistributionManual.
func (f *Facade) SubscribeSymbols(tokens []uint32, mode *wire.Mode) error {
	if f.strategy == DistributionManual {
		return fmt.Errorf("multicredential: auto-subscribe disabled under DistributionManual, use SubscribeSymbolsTo")
	}
	if !f.started {
		return fmt.Errorf("multicredential: not started")
	}

	byCredential := make(map[CredentialID][]uint32)
	for _, t := range tokens {
		if _, exists := f.symbolToCredential[t]; exists {
			continue
		}
		id, err := f.findAvailableCredential(t)
		if err != nil {
			return err
		}
		f.symbolToCredential[t] = id
		byCredential[id] = append(byCredential[id], t)
	}

	for id, toks := range byCredential {
		if err := f.managers[id].SubscribeSymbols(toks, mode); err != nil {
			return fmt.Errorf("multicredential: credential %s: %w", id, err)
		}
	}
	return nil
}

// SubscribeSymbolsTo subscribes tokens to one named credential
// explicitly, bypassing round-robin distribution. Valid regardless of
// DistributionStrategy.
func (f *Facade) SubscribeSymbolsTo(id CredentialID, tokens []uint32, mode *wire.Mode) error {
	if !f.started {
		return fmt.Errorf("multicredential: not started")
	}
	m, ok := f.managers[id]
	if !ok {
		return fmt.Errorf("multicredential: unknown credential %s", id)
	}

	fresh := make([]uint32, 0, len(tokens))
	for _, t := range tokens {
		if _, exists := f.symbolToCredential[t]; exists {
			continue
		}
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := m.SubscribeSymbols(fresh, mode); err != nil {
		return fmt.Errorf("multicredential: credential %s: %w", id, err)
	}
	for _, t := range fresh {
		f.symbolToCredential[t] = id
	}
	return nil
}

// UnsubscribeSymbols removes tokens from whichever credential they were
// placed on, grouping by credential so each manager sees one batched
// call.
func (f *Facade) UnsubscribeSymbols(tokens []uint32) error {
	if !f.started {
		return fmt.Errorf("multicredential: not started")
	}
	byCredential := make(map[CredentialID][]uint32)
	for _, t := range tokens {
		id, ok := f.symbolToCredential[t]
		if !ok {
			continue
		}
		byCredential[id] = append(byCredential[id], t)
		delete(f.symbolToCredential, t)
	}
	for id, toks := range byCredential {
		if err := f.managers[id].UnsubscribeSymbols(toks); err != nil {
			return fmt.Errorf("multicredential: credential %s: %w", id, err)
		}
	}
	return nil
}

// ChangeMode changes the subscription mode for tokens already placed,
// grouping by credential.
func (f *Facade) ChangeMode(tokens []uint32, mode wire.Mode) error {
	if !f.started {
		return fmt.Errorf("multicredential: not started")
	}
	byCredential := make(map[CredentialID][]uint32)
	for _, t := range tokens {
		id, ok := f.symbolToCredential[t]
		if !ok {
			continue
		}
		byCredential[id] = append(byCredential[id], t)
	}
	for id, toks := range byCredential {
		if err := f.managers[id].ChangeMode(toks, mode); err != nil {
			return fmt.Errorf("multicredential: credential %s: %w", id, err)
		}
	}
	return nil
}

// GetUnifiedChannel returns a fresh receiver over every credential's
// merged, tagged output.
func (f *Facade) GetUnifiedChannel() *session.Receiver[CredentialMessage] {
	return f.unified.Subscribe()
}

// GetChannel returns a fresh receiver over one credential's connection
// output, for callers that need a single credential's stream
// untagged.
func (f *Facade) GetChannel(id CredentialID, channelID manager.ChannelId) (*session.Receiver[wire.TickerMessage], error) {
	m, ok := f.managers[id]
	if !ok {
		return nil, fmt.Errorf("multicredential: unknown credential %s", id)
	}
	return m.GetChannel(channelID)
}

// GetCredentialIDs returns the configured credential IDs in their
// round-robin order.
func (f *Facade) GetCredentialIDs() []CredentialID {
	return append([]CredentialID(nil), f.order...)
}

// GetSymbolDistribution returns the full token placement, grouped by
// credential then by connection within that credential.
func (f *Facade) GetSymbolDistribution() map[CredentialID]map[manager.ChannelId][]uint32 {
	out := make(map[CredentialID]map[manager.ChannelId][]uint32, len(f.managers))
	for id, m := range f.managers {
		out[id] = m.GetSymbolDistribution()
	}
	return out
}

// GetStats aggregates ManagerStats across every credential; credentials
// whose manager has no running health monitor are skipped rather than
// failing the whole call.
func (f *Facade) GetStats() Stats {
	stats := Stats{
		TotalCredentials: len(f.managers),
		TotalSymbols:     len(f.symbolToCredential),
		Uptime:           time.Since(f.startTime),
		PerCredential:    make(map[CredentialID]manager.ManagerStats, len(f.managers)),
	}
	for id, m := range f.managers {
		ms, err := m.GetStats()
		if err != nil {
			continue
		}
		stats.TotalConnections += ms.ActiveConnections
		stats.TotalMessagesReceived += ms.TotalMessagesReceived
		stats.TotalErrors += ms.TotalErrors
		stats.PerCredential[id] = ms
	}
	return stats
}

// Stop stops every credential's manager concurrently, then closes the
// unified channel once every forwarder has exited.
func (f *Facade) Stop() error {
	var wg sync.WaitGroup
	errs := make([]error, len(f.order))
	wg.Add(len(f.order))
	for i, id := range f.order {
		go func(i int, id CredentialID) {
			defer wg.Done()
			errs[i] = f.managers[id].Stop()
		}(i, id)
	}
	wg.Wait()

	f.forwardersWG.Wait()
	f.unified.Close()

	f.started = false
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
