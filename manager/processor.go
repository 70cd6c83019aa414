package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiteticker-go/kiteticker/session"
	"github.com/kiteticker-go/kiteticker/wire"
)

// ProcessorStats is the EWMA-smoothed throughput snapshot for one
// Processor, flushed at roughly 1Hz to bound lock contention.
type ProcessorStats struct {
	MessagesProcessed    uint64
	MessagesPerSecond    float64
	ProcessingLatencyAvg time.Duration
	QueueSize            int
	ErrorsCount          uint64
}

// Processor is the per-connection pump that owns a managed connection's
// parsed-message channel and re-broadcasts it to a bounded output
// channel, recording throughput stats.
type Processor struct {
	ChannelID ChannelId

	in  *tickerQueue
	out *session.Broadcast[wire.TickerMessage]

	statsMu sync.RWMutex
	stats   ProcessorStats

	logger *zerolog.Logger

	startMu sync.Mutex
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewProcessor creates a processor reading from in and fanning out on a
// broadcast of the given buffer size.
func NewProcessor(id ChannelId, in *tickerQueue, bufferSize int, logger *zerolog.Logger) *Processor {
	return &Processor{
		ChannelID: id,
		in:        in,
		out:       session.NewBroadcast[wire.TickerMessage](bufferSize),
		logger:    logger,
	}
}

// Start launches the dedicated processing task. A processor may be
// started only once; a second call is a no-op with a warning.
func (p *Processor) Start() {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.done != nil {
		p.logger.Warn().Int("channel", p.ChannelID.ToIndex()).Msg("processor already started")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx)
}

// loop is the high-performance processing loop: receive, pass through
// unchanged, broadcast, and periodically flush EWMA stats.
func (p *Processor) loop(ctx context.Context) {
	defer close(p.done)

	lastFlush := time.Now()
	var processedSinceFlush uint64

	for {
		msg, ok := p.in.pop(ctx)
		if !ok {
			return
		}
		start := time.Now()
		p.out.Send(msg)
		latency := time.Since(start)
		processedSinceFlush++

		if time.Since(lastFlush) >= time.Second {
			p.flush(processedSinceFlush, latency, lastFlush)
			processedSinceFlush = 0
			lastFlush = time.Now()
		}
	}
}

func (p *Processor) flush(processed uint64, latestLatency time.Duration, since time.Time) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	p.stats.MessagesProcessed += processed
	p.stats.QueueSize = p.in.len()

	elapsed := time.Since(since).Seconds()
	if elapsed > 0 {
		p.stats.MessagesPerSecond = float64(processed) / elapsed
	}

	if p.stats.ProcessingLatencyAvg == 0 {
		p.stats.ProcessingLatencyAvg = latestLatency
	} else {
		// 90% old, 10% new exponentially-weighted average.
		p.stats.ProcessingLatencyAvg = time.Duration(
			float64(p.stats.ProcessingLatencyAvg)*0.9 + float64(latestLatency)*0.1,
		)
	}
}

// Subscribe returns a fresh broadcast receiver over the processor's
// parsed-message output.
func (p *Processor) Subscribe() *session.Receiver[wire.TickerMessage] {
	return p.out.Subscribe()
}

// Stats returns a snapshot of the processor's throughput stats.
func (p *Processor) Stats() ProcessorStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.stats
}

// Stop cancels the processing task and waits for it to exit.
func (p *Processor) Stop() {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.done == nil {
		return
	}
	p.cancel()
	<-p.done
	p.out.Close()
}
