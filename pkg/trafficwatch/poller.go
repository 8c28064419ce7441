package trafficwatch

import (
	"context"
	"sync"
	"time"
)

// Options tunes the poller's two streams.
type Options struct {
	// FeedInterval and ChartInterval are the fixed tick periods of the
	// recent-events stream and the chart stream.
	FeedInterval  time.Duration
	ChartInterval time.Duration

	// FeedLimit caps each incremental fetch; BufferSize caps the
	// client-side event buffer.
	FeedLimit  int
	BufferSize int

	// Chart query shape.
	WindowMinutes   int
	IntervalSeconds int

	// OnError, when set, surfaces a stream's fetch failure. The stream
	// keeps its cursor and retries on the next tick regardless.
	OnError func(stream string, err error)
}

func (o *Options) withDefaults() {
	if o.FeedInterval <= 0 {
		o.FeedInterval = 3 * time.Second
	}
	if o.ChartInterval <= 0 {
		o.ChartInterval = 5 * time.Second
	}
	if o.FeedLimit <= 0 {
		o.FeedLimit = 50
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 200
	}
	if o.WindowMinutes <= 0 {
		o.WindowMinutes = 5
	}
	if o.IntervalSeconds <= 0 {
		o.IntervalSeconds = 10
	}
}

// Poller runs the two dashboard polling streams: an incremental feed
// of recent events and a bucketed counter series for the chart. The
// streams are independent consumers of the same backing stores; each
// tracks its own cursor and needs no coordination with the other.
//
// Each stream is a single sequential loop, so a slow fetch delays the
// next tick instead of overlapping it; cursor updates therefore can
// never arrive out of order.
type Poller struct {
	client *Client
	opts   Options

	mu     sync.RWMutex
	events []Event // front-loaded: newest at index 0
	series []SeriesPoint
	cursor int64
}

// NewPoller creates a Poller. Call Run to start its streams.
func NewPoller(client *Client, opts Options) *Poller {
	opts.withDefaults()
	return &Poller{client: client, opts: opts}
}

// Run starts both streams and blocks until ctx is cancelled. All
// polling stops with the context; no timers outlive it.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		p.loop(ctx, "feed", p.opts.FeedInterval, p.tickFeed)
	}()
	go func() {
		defer wg.Done()
		p.loop(ctx, "chart", p.opts.ChartInterval, p.tickChart)
	}()

	wg.Wait()
}

func (p *Poller) loop(ctx context.Context, stream string, interval time.Duration, tick func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				if p.opts.OnError != nil {
					p.opts.OnError(stream, err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// tickFeed fetches events newer than the cursor and merges them into
// the front of the buffer. The cursor only advances on success.
func (p *Poller) tickFeed(ctx context.Context) error {
	p.mu.RLock()
	cursor := p.cursor
	p.mu.RUnlock()

	result, err := p.client.FetchIncremental(ctx, cursor, p.opts.FeedLimit)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(result.Logs) > 0 {
		// Logs arrive newest-first; prepend and truncate.
		merged := make([]Event, 0, len(result.Logs)+len(p.events))
		merged = append(merged, result.Logs...)
		merged = append(merged, p.events...)
		if len(merged) > p.opts.BufferSize {
			merged = merged[:p.opts.BufferSize]
		}
		p.events = merged
	}
	p.cursor = result.LatestTimestamp
	return nil
}

// tickChart replaces the series wholesale; buckets are cheap and the
// chart always wants the full window.
func (p *Poller) tickChart(ctx context.Context) error {
	series, err := p.client.FetchSeries(ctx, p.opts.WindowMinutes, p.opts.IntervalSeconds)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.series = series
	p.mu.Unlock()
	return nil
}

// Events returns a copy of the buffered recent events, newest first.
func (p *Poller) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Series returns the last fetched chart series.
func (p *Poller) Series() []SeriesPoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]SeriesPoint, len(p.series))
	copy(out, p.series)
	return out
}

// Cursor returns the feed stream's current cursor.
func (p *Poller) Cursor() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}
