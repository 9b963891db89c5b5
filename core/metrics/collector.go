package metrics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultBufferSize    = 256
	DefaultFlushInterval = 10 * time.Second
)

var ErrCollectorClosed = errors.New("metrics collector closed")

// Collector accepts samples from the pipeline without ever blocking it,
// aggregates them into a usage summary and periodically exports them to
// its sinks.
type Collector struct {
	samples       chan Sample
	flushRequests chan chan struct{}
	quit          chan struct{}
	done          chan struct{}

	sinks         []Sink
	flushInterval time.Duration

	closeMu sync.RWMutex
	closed  bool
	dropped atomic.Int64

	summaryMu sync.Mutex
	summary   UsageSummary

	// pending is owned by the run loop.
	pending []Sample
}

type CollectorOption func(*Collector)

func WithSinks(sinks ...Sink) CollectorOption {
	return func(c *Collector) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// WithFlushInterval sets how often pending samples are exported. Zero or
// negative disables periodic flushing.
func WithFlushInterval(interval time.Duration) CollectorOption {
	return func(c *Collector) {
		c.flushInterval = interval
	}
}

func WithBufferSize(size int) CollectorOption {
	return func(c *Collector) {
		if size > 0 {
			c.samples = make(chan Sample, size)
		}
	}
}

func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		samples:       make(chan Sample, DefaultBufferSize),
		flushRequests: make(chan chan struct{}),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		flushInterval: DefaultFlushInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.run()
	return c
}

// Collect records a sample. It never blocks: when the buffer is full or the
// collector is closed the sample is dropped and counted.
func (c *Collector) Collect(sample Sample) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()

	if c.closed {
		c.dropped.Add(1)
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	select {
	case c.samples <- sample:
	default:
		c.dropped.Add(1)
	}
}

// Dropped reports how many samples were discarded.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Collector) Summary() UsageSummary {
	c.summaryMu.Lock()
	defer c.summaryMu.Unlock()

	summary := c.summary.clone()
	summary.Dropped = c.dropped.Load()
	return summary
}

// Flush exports every sample collected so far and waits for the export to
// finish or ctx to end.
func (c *Collector) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case c.flushRequests <- reply:
	case <-c.done:
		return ErrCollectorClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting samples, exports what is pending and stops the
// background loop.
func (c *Collector) Close(ctx context.Context) error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	close(c.quit)
	c.closeMu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) run() {
	defer close(c.done)

	var tick <-chan time.Time
	if c.flushInterval > 0 {
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case sample := <-c.samples:
			c.record(sample)

		case <-tick:
			c.export(context.Background())

		case reply := <-c.flushRequests:
			c.drain()
			c.export(context.Background())
			close(reply)

		case <-c.quit:
			c.drain()
			c.export(context.Background())
			return
		}
	}
}

func (c *Collector) record(sample Sample) {
	c.summaryMu.Lock()
	c.summary.add(sample)
	c.summaryMu.Unlock()

	c.pending = append(c.pending, sample)
}

func (c *Collector) drain() {
	for {
		select {
		case sample := <-c.samples:
			c.record(sample)
		default:
			return
		}
	}
}

func (c *Collector) export(ctx context.Context) {
	if len(c.pending) == 0 {
		return
	}
	batch := c.pending
	c.pending = nil

	for _, sink := range c.sinks {
		if err := sink.Export(ctx, batch); err != nil {
			logger.WarnContext(ctx, "failed to export metrics", "samples", len(batch), "error", err)
		}
	}
}
