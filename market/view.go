package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/energymarket/marketclient/libs/log"
	"github.com/energymarket/marketclient/libs/service"
	"github.com/energymarket/marketclient/types"
)

// DefaultPollInterval is how often a started View refreshes.
const DefaultPollInterval = 30 * time.Second

// ErrViewStopped is returned by a refresh that finished after the view was
// stopped. Its result is discarded.
var ErrViewStopped = errors.New("market view stopped")

// Source provides the reads a View refreshes from. *Client implements it.
type Source interface {
	MarketStatus(ctx context.Context) (types.MarketStatus, error)
	ActiveOffers(ctx context.Context) ([]types.Offer, error)
}

// Snapshot is one consistent state of the market: the status and the
// offers come from the same refresh.
type Snapshot struct {
	Status    types.MarketStatus
	Offers    []types.Offer
	UpdatedAt time.Time

	// Generation increases with every published refresh. Zero means the
	// view has never been refreshed.
	Generation uint64
}

// Sorted returns the snapshot's offers in the given order.
func (s Snapshot) Sorted(st SortState) []types.Offer {
	return Sort(s.Offers, st.Key, st.Direction)
}

func (s Snapshot) copy() Snapshot {
	s.Offers = append([]types.Offer(nil), s.Offers...)
	return s
}

// View caches the market status and the active offers and keeps them fresh
// by polling. A refresh replaces the whole cache or nothing: when any read
// fails the previous snapshot stays in place.
type View struct {
	service.BaseService

	source   Source
	logger   log.Logger
	metrics  *Metrics
	interval time.Duration
	now      func() time.Time

	mtx         sync.RWMutex
	snapshot    Snapshot
	lastErr     error
	subscribers map[chan Snapshot]struct{}

	// seq numbers refreshes in the order they start; only a refresh newer
	// than the published one may publish.
	seq       uint64 // atomic
	published uint64
	started   uint32 // atomic

	cancel context.CancelFunc
	done   chan struct{}
}

type ViewOption func(*View)

func WithViewMetrics(metrics *Metrics) ViewOption { return func(v *View) { v.metrics = metrics } }

func WithPollInterval(d time.Duration) ViewOption { return func(v *View) { v.interval = d } }

func WithViewClock(now func() time.Time) ViewOption { return func(v *View) { v.now = now } }

// NewView returns a View reading from source. Call Refresh for a one-off
// load or Start to poll.
func NewView(source Source, logger log.Logger, options ...ViewOption) *View {
	v := &View{
		source:      source,
		logger:      logger.With("module", "market"),
		metrics:     NopMetrics(),
		interval:    DefaultPollInterval,
		now:         time.Now,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, option := range options {
		option(v)
	}
	v.BaseService = *service.NewBaseService(v.logger, "MarketView", v)
	return v
}

// OnStart refreshes once and then every poll interval until stopped.
func (v *View) OnStart(ctx context.Context) error {
	atomic.StoreUint32(&v.started, 1)
	ctx, v.cancel = context.WithCancel(ctx)
	v.done = make(chan struct{})
	go v.pollRoutine(ctx)
	return nil
}

// OnStop cancels the poll timer and waits for the poll routine to exit. A
// refresh still in flight returns ErrViewStopped and publishes nothing.
func (v *View) OnStop() {
	if v.cancel != nil {
		v.cancel()
		<-v.done
	}

	v.mtx.Lock()
	for ch := range v.subscribers {
		delete(v.subscribers, ch)
		close(ch)
	}
	v.mtx.Unlock()
}

func (v *View) pollRoutine(ctx context.Context) {
	defer close(v.done)

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
			v.logger.Error("market refresh failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh reads the market status and the active offers and publishes them
// as one snapshot. Offers that have expired by now are dropped. If either
// read fails the cache is left untouched and the error is returned.
func (v *View) Refresh(ctx context.Context) error {
	seq := atomic.AddUint64(&v.seq, 1)
	start := v.now()

	var (
		status types.MarketStatus
		offers []types.Offer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		status, err = v.source.MarketStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		offers, err = v.source.ActiveOffers(gctx)
		return err
	})
	err := g.Wait()
	v.metrics.RefreshDurationSeconds.Observe(v.now().Sub(start).Seconds())

	if v.stopped() {
		v.metrics.Refreshes.With("result", "discarded").Add(1)
		return ErrViewStopped
	}
	if err != nil {
		v.metrics.Refreshes.With("result", "error").Add(1)
		v.mtx.Lock()
		v.lastErr = err
		v.mtx.Unlock()
		return err
	}

	now := v.now()
	active := make([]types.Offer, 0, len(offers))
	for _, o := range offers {
		if o.StatusAt(now) == types.OfferStatusActive {
			active = append(active, o)
		}
	}
	if dropped := len(offers) - len(active); dropped > 0 {
		v.metrics.ExpiredOffers.Add(float64(dropped))
		v.logger.Debug("dropped expired offers", "count", dropped)
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()
	if v.stopped() {
		// Stopped while the offers were filtered; OnStop may have closed
		// the subscribers already.
		v.metrics.Refreshes.With("result", "discarded").Add(1)
		return ErrViewStopped
	}
	if seq < v.published {
		// A newer refresh has already published.
		v.metrics.Refreshes.With("result", "discarded").Add(1)
		return nil
	}
	v.published = seq
	v.lastErr = nil
	v.snapshot = Snapshot{
		Status:     status,
		Offers:     active,
		UpdatedAt:  now,
		Generation: v.snapshot.Generation + 1,
	}
	v.metrics.Refreshes.With("result", "ok").Add(1)
	v.metrics.ActiveOffers.Set(float64(len(active)))
	v.logger.Debug("market refreshed", "offers", len(active), "generation", v.snapshot.Generation)

	for ch := range v.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- v.snapshot.copy()
	}
	return nil
}

// stopped reports whether the view was started and has since been stopped.
func (v *View) stopped() bool {
	return atomic.LoadUint32(&v.started) == 1 && !v.IsRunning()
}

// Snapshot returns a copy of the current cache.
func (v *View) Snapshot() Snapshot {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	return v.snapshot.copy()
}

// LastError returns the error of the last failed refresh, or nil if the
// latest refresh succeeded.
func (v *View) LastError() error {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	return v.lastErr
}

// Subscribe returns a channel that receives every published snapshot. Slow
// readers only see the latest one. The channel is closed by unsubscribe or
// when the view stops; after Stop it is returned closed.
func (v *View) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	v.mtx.Lock()
	if v.stopped() {
		v.mtx.Unlock()
		close(ch)
		return ch, func() {}
	}
	v.subscribers[ch] = struct{}{}
	v.mtx.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mtx.Lock()
			defer v.mtx.Unlock()
			if _, ok := v.subscribers[ch]; ok {
				delete(v.subscribers, ch)
				close(ch)
			}
		})
	}
}

// OnOfferCreated refreshes the view after the local user published an
// offer so it shows up without waiting for the next poll.
func (v *View) OnOfferCreated(ctx context.Context) error {
	return v.Refresh(ctx)
}
