// Package status aggregates the live dashboard figures. Each poll runs every
// query concurrently, substitutes a query's fallback when it fails, and
// publishes one immutable Snapshot that replaces the previous one as a whole.
// Readers never see a half-updated view.
package status

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stadtwache/opsclient/observability"
)

// Snapshot is one published aggregation result. Seq increases with every
// poll started; a published snapshot is never replaced by an older one.
type Snapshot struct {
	OpenIncidents  int
	ActiveOfficers int
	Messages       int
	CapturedAt     time.Time
	Seq            uint64
	// Degraded is set when every query failed and the AllFailed figures
	// were published instead.
	Degraded bool
	// Failed names the queries whose fallback was used.
	Failed []string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver sets the event observer.
func WithObserver(o observability.Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// WithQueries replaces the default query set.
func WithQueries(queries ...Query) Option {
	return func(a *Aggregator) { a.queries = slices.Clone(queries) }
}

// Aggregator polls the queries on a fixed interval and on demand.
type Aggregator struct {
	requester Requester
	queries   []Query
	cfg       Config
	observer  observability.Observer

	seq     atomic.Uint64
	current atomic.Pointer[Snapshot]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Aggregator over requester. Without WithQueries it runs
// DefaultQueries(cfg).
func New(requester Requester, cfg *Config, opts ...Option) *Aggregator {
	merged := DefaultConfig()
	if cfg != nil {
		merged.Merge(cfg)
	}

	a := &Aggregator{
		requester: requester,
		cfg:       merged,
		observer:  observability.NoOpObserver{},
	}
	a.queries = DefaultQueries(&a.cfg)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot returns the latest published snapshot, or the zero Snapshot
// before the first poll.
func (a *Aggregator) Snapshot() Snapshot {
	if s := a.current.Load(); s != nil {
		out := *s
		out.Failed = slices.Clone(s.Failed)
		return out
	}
	return Snapshot{}
}

type queryResult struct {
	value int
	err   error
}

// Poll runs one aggregation cycle and returns its snapshot. The snapshot is
// published unless ctx was cancelled or a newer poll already published.
func (a *Aggregator) Poll(ctx context.Context) Snapshot {
	seq := a.seq.Add(1)
	start := time.Now()

	a.emit(ctx, EventPollStart, observability.LevelVerbose, map[string]any{
		"seq":     seq,
		"queries": len(a.queries),
	})

	pollCtx := ctx
	if timeout := a.cfg.PollTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make([]queryResult, len(a.queries))
	var wg sync.WaitGroup
	for i, q := range a.queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := q.Fetch(pollCtx, a.requester)
			results[i] = queryResult{value: v, err: err}
		}()
	}
	wg.Wait()

	snap := a.merge(ctx, results)
	snap.Seq = seq
	snap.CapturedAt = time.Now()

	a.emit(ctx, EventPollComplete, observability.LevelInfo, map[string]any{
		"seq":             seq,
		"open_incidents":  snap.OpenIncidents,
		"active_officers": snap.ActiveOfficers,
		"messages":        snap.Messages,
		"failed":          len(snap.Failed),
		"degraded":        snap.Degraded,
		"duration_ms":     time.Since(start).Milliseconds(),
	})

	if ctx.Err() == nil {
		published := snap
		a.publish(&published)
	}
	snap.Failed = slices.Clone(snap.Failed)
	return snap
}

// Refresh polls out of band. It is safe alongside the interval loop.
func (a *Aggregator) Refresh(ctx context.Context) Snapshot {
	return a.Poll(ctx)
}

func (a *Aggregator) merge(ctx context.Context, results []queryResult) Snapshot {
	var snap Snapshot

	for i, r := range results {
		q := a.queries[i]
		if r.err != nil {
			snap.Failed = append(snap.Failed, q.Name)
			a.emit(ctx, EventQueryFailed, observability.LevelWarning, map[string]any{
				"query":    q.Name,
				"error":    r.err.Error(),
				"fallback": q.Fallback,
			})
			q.Assign(&snap, q.Fallback)
			continue
		}
		q.Assign(&snap, r.value)
	}

	if len(results) > 0 && len(snap.Failed) == len(results) {
		failed := snap.Failed
		snap = Snapshot{
			OpenIncidents:  a.cfg.AllFailed.OpenIncidents,
			ActiveOfficers: a.cfg.AllFailed.ActiveOfficers,
			Messages:       a.cfg.AllFailed.Messages,
			Degraded:       true,
			Failed:         failed,
		}
		a.emit(ctx, EventDegraded, observability.LevelWarning, map[string]any{"failed": failed})
	}

	return snap
}

// publish installs snap unless a newer-started poll is already published.
func (a *Aggregator) publish(snap *Snapshot) {
	for {
		cur := a.current.Load()
		if cur != nil && cur.Seq > snap.Seq {
			return
		}
		if a.current.CompareAndSwap(cur, snap) {
			return
		}
	}
}

// Start begins polling: once immediately, then every Interval, until Stop
// is called or ctx is done. Starting a running Aggregator does nothing.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done

	go a.loop(loopCtx, done)
}

// Stop ends polling and waits for the loop to exit. It is idempotent, and
// Start may be called again afterwards.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the polling loop is active.
func (a *Aggregator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

func (a *Aggregator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer a.detach(done)

	interval := a.cfg.Interval.Std()
	a.emit(ctx, EventLoopStart, observability.LevelInfo, map[string]any{"interval": interval.String()})
	defer a.emit(context.Background(), EventLoopStop, observability.LevelInfo, nil)

	a.Poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Poll(ctx)
		}
	}
}

// detach forgets a loop that ended on its own, so Start can run again.
func (a *Aggregator) detach(done chan struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done == done {
		a.cancel()
		a.cancel, a.done = nil, nil
	}
}

func (a *Aggregator) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(ctx, a.observer, typ, level, "status", data)
}
