// Package collector keeps the latest value of every mapped sensor field and
// writes a snapshot row on a fixed period.
//
// Sources push readings into a bounded channel; a single aggregator goroutine
// owns the latest-value state and is the only writer to the sinks.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"room_occupancy/logger"
)

// DefaultBuffer is the capacity of the reading channel
const DefaultBuffer = 1024

// Snapshot is one flushed row
type Snapshot struct {
	At      time.Time
	Columns []string
	Values  []string
}

// Source delivers readings until ctx is cancelled
type Source interface {
	Run(ctx context.Context, out chan<- Reading) error
}

// Sink receives snapshots from the aggregator
type Sink interface {
	Write(ctx context.Context, s Snapshot) error
	Close() error
}

// Options configures a collector
type Options struct {
	Columns       []string
	FlushInterval time.Duration
	Buffer        int
	// Now is the clock used for snapshot timestamps
	Now func() time.Time
}

// Collector wires a source to the sinks through the aggregator
type Collector struct {
	opts   Options
	mapper *FieldMapper
	source Source
	sinks  []Sink

	readings chan Reading
	received atomic.Int64
	unmapped atomic.Int64
	flushes  atomic.Int64
}

// New creates a collector. Columns fixes the snapshot layout; fields not in
// Columns are kept in state but never written.
func New(opts Options, mapper *FieldMapper, source Source, sinks ...Sink) (*Collector, error) {
	if len(opts.Columns) == 0 {
		return nil, errors.New("collector needs at least one column")
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 10 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Collector{
		opts:     opts,
		mapper:   mapper,
		source:   source,
		sinks:    sinks,
		readings: make(chan Reading, opts.Buffer),
	}, nil
}

// Stats reports counters since start
func (c *Collector) Stats() (received, unmapped, flushes int64) {
	return c.received.Load(), c.unmapped.Load(), c.flushes.Load()
}

// Run starts the source and the aggregator and blocks until ctx is done.
// A final snapshot is written before returning.
func (c *Collector) Run(ctx context.Context) error {
	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	srcErr := make(chan error, 1)
	go func() {
		srcErr <- c.source.Run(srcCtx, c.readings)
	}()

	err := c.aggregate(ctx, srcErr)
	cancel()

	for _, s := range c.sinks {
		if cerr := s.Close(); cerr != nil {
			logger.Errorf("failed to close sink: %v", cerr)
		}
	}
	return err
}

func (c *Collector) aggregate(ctx context.Context, srcErr <-chan error) error {
	latest := make(map[string]string)
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case r := <-c.readings:
			c.apply(latest, r)
		case <-ticker.C:
			c.flush(ctx, latest)
		case err := <-srcErr:
			c.drain(latest)
			c.flush(context.Background(), latest)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("source stopped: %w", err)
			}
			return nil
		case <-ctx.Done():
			c.drain(latest)
			c.flush(context.Background(), latest)
			return nil
		}
	}
}

func (c *Collector) apply(latest map[string]string, r Reading) {
	c.received.Add(1)
	field, ok := c.mapper.Map(r.Topic, r.Key)
	if !ok {
		c.unmapped.Add(1)
		logger.Debugf("unmapped reading %s/%s", r.Topic, r.Key)
		return
	}
	latest[field] = r.Value
}

func (c *Collector) drain(latest map[string]string) {
	for {
		select {
		case r := <-c.readings:
			c.apply(latest, r)
		default:
			return
		}
	}
}

func (c *Collector) flush(ctx context.Context, latest map[string]string) {
	snap := Snapshot{
		At:      c.opts.Now().UTC(),
		Columns: c.opts.Columns,
		Values:  make([]string, len(c.opts.Columns)),
	}
	for i, col := range c.opts.Columns {
		snap.Values[i] = latest[col]
	}
	for _, s := range c.sinks {
		if err := s.Write(ctx, snap); err != nil {
			logger.Errorf("snapshot write failed: %v", err)
		}
	}
	c.flushes.Add(1)
}
