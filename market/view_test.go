package market

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energymarket/marketclient/libs/log"
	"github.com/energymarket/marketclient/types"
)

type sourceFuncs struct {
	status func(ctx context.Context) (types.MarketStatus, error)
	offers func(ctx context.Context) ([]types.Offer, error)
}

func (s sourceFuncs) MarketStatus(ctx context.Context) (types.MarketStatus, error) {
	return s.status(ctx)
}

func (s sourceFuncs) ActiveOffers(ctx context.Context) ([]types.Offer, error) {
	return s.offers(ctx)
}

var testNow = time.Unix(1700000000, 0).UTC()

func activeOffer(id uint64, expiry time.Time) types.Offer {
	return types.Offer{
		ID:           id,
		Seller:       testSeller,
		EnergyAmount: 10,
		PricePerUnit: id,
		Source:       types.EnergySourceSolar,
		Expiry:       expiry,
		Status:       types.OfferStatusActive,
	}
}

func staticSource(status types.MarketStatus, offers []types.Offer) sourceFuncs {
	return sourceFuncs{
		status: func(context.Context) (types.MarketStatus, error) { return status, nil },
		offers: func(context.Context) ([]types.Offer, error) { return offers, nil },
	}
}

func newTestView(src Source, options ...ViewOption) *View {
	options = append([]ViewOption{WithViewClock(func() time.Time { return testNow })}, options...)
	return NewView(src, log.TestingLogger(), options...)
}

func TestRefreshDropsExpiredOffers(t *testing.T) {
	status := types.MarketStatus{ActiveOfferCount: 2, TotalOffersCreated: 2}
	live := activeOffer(1, testNow.Add(time.Hour))
	expired := activeOffer(2, testNow.Add(-time.Second))
	v := newTestView(staticSource(status, []types.Offer{live, expired}))

	require.NoError(t, v.Refresh(context.Background()))

	snap := v.Snapshot()
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, status, snap.Status)
	assert.Equal(t, []types.Offer{live}, snap.Offers)
	assert.Equal(t, testNow, snap.UpdatedAt)
	assert.NoError(t, v.LastError())
}

type flakySource struct {
	mtx       sync.Mutex
	statusErr error
	offersErr error
}

func (f *flakySource) setErrs(status, offers error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.statusErr, f.offersErr = status, offers
}

func (f *flakySource) MarketStatus(context.Context) (types.MarketStatus, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.statusErr != nil {
		return types.MarketStatus{}, f.statusErr
	}
	return types.MarketStatus{ActiveOfferCount: 1}, nil
}

func (f *flakySource) ActiveOffers(context.Context) ([]types.Offer, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.offersErr != nil {
		return nil, f.offersErr
	}
	return []types.Offer{activeOffer(1, testNow.Add(time.Hour))}, nil
}

func TestRefreshIsAllOrNothing(t *testing.T) {
	src := &flakySource{}
	v := newTestView(src)
	require.NoError(t, v.Refresh(context.Background()))
	before := v.Snapshot()

	src.setErrs(errLedgerDown, nil)
	require.ErrorIs(t, v.Refresh(context.Background()), errLedgerDown)
	if diff := cmp.Diff(before, v.Snapshot()); diff != "" {
		t.Errorf("snapshot changed after failed status read (-before +after):\n%s", diff)
	}
	assert.ErrorIs(t, v.LastError(), errLedgerDown)

	src.setErrs(nil, errLedgerDown)
	require.ErrorIs(t, v.Refresh(context.Background()), errLedgerDown)
	if diff := cmp.Diff(before, v.Snapshot()); diff != "" {
		t.Errorf("snapshot changed after failed offers read (-before +after):\n%s", diff)
	}

	src.setErrs(nil, nil)
	require.NoError(t, v.Refresh(context.Background()))
	assert.Equal(t, uint64(2), v.Snapshot().Generation)
	assert.NoError(t, v.LastError())
}

func TestOlderRefreshDoesNotOverwriteNewer(t *testing.T) {
	var (
		calls   int32
		release = make(chan struct{})
		entered = make(chan struct{})
	)
	src := sourceFuncs{
		status: func(context.Context) (types.MarketStatus, error) {
			return types.MarketStatus{}, nil
		},
		offers: func(context.Context) ([]types.Offer, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(entered)
				<-release
				return []types.Offer{activeOffer(1, testNow.Add(time.Hour))}, nil
			}
			return []types.Offer{activeOffer(2, testNow.Add(time.Hour))}, nil
		},
	}
	v := newTestView(src)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, v.Refresh(context.Background()))
	}()
	<-entered

	require.NoError(t, v.Refresh(context.Background()))
	close(release)
	wg.Wait()

	snap := v.Snapshot()
	require.Len(t, snap.Offers, 1)
	assert.Equal(t, uint64(2), snap.Offers[0].ID)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestSnapshotIsACopy(t *testing.T) {
	v := newTestView(staticSource(types.MarketStatus{}, []types.Offer{activeOffer(1, testNow.Add(time.Hour))}))
	require.NoError(t, v.Refresh(context.Background()))

	snap := v.Snapshot()
	snap.Offers[0].PricePerUnit = 999
	assert.Equal(t, uint64(1), v.Snapshot().Offers[0].PricePerUnit)
}

func TestPollingPublishesToSubscribers(t *testing.T) {
	defer leaktest.Check(t)()

	v := newTestView(
		staticSource(types.MarketStatus{ActiveOfferCount: 1}, []types.Offer{activeOffer(1, testNow.Add(time.Hour))}),
		WithPollInterval(10*time.Millisecond),
	)
	updates, unsubscribe := v.Subscribe()
	defer unsubscribe()

	require.NoError(t, v.Start(context.Background()))

	var last uint64
	for i := 0; i < 2; i++ {
		select {
		case snap := <-updates:
			assert.Greater(t, snap.Generation, last)
			last = snap.Generation
		case <-time.After(5 * time.Second):
			t.Fatal("no snapshot published")
		}
	}

	require.NoError(t, v.Stop())
	_, open := <-drain(updates)
	assert.False(t, open)
}

// drain discards buffered snapshots and returns the channel once closed.
func drain(ch <-chan Snapshot) <-chan Snapshot {
	for range ch {
	}
	return ch
}

func TestStopDiscardsInFlightRefresh(t *testing.T) {
	defer leaktest.Check(t)()

	entered := make(chan struct{})
	release := make(chan struct{})
	src := sourceFuncs{
		status: func(context.Context) (types.MarketStatus, error) {
			return types.MarketStatus{ActiveOfferCount: 1}, nil
		},
		offers: func(context.Context) ([]types.Offer, error) {
			close(entered)
			<-release
			return []types.Offer{activeOffer(1, testNow.Add(time.Hour))}, nil
		},
	}
	v := newTestView(src, WithPollInterval(time.Hour))
	require.NoError(t, v.Start(context.Background()))
	<-entered

	stopped := make(chan error)
	go func() { stopped <- v.Stop() }()
	require.Eventually(t, func() bool { return !v.IsRunning() }, 5*time.Second, time.Millisecond)
	close(release)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.Zero(t, v.Snapshot().Generation)
	assert.ErrorIs(t, v.Refresh(context.Background()), ErrViewStopped)
}

func TestStopBeforePublishDiscardsRefresh(t *testing.T) {
	defer leaktest.Check(t)()

	var (
		v     *View
		armed int32
		calls int32
	)
	clock := func() time.Time {
		// the third clock read of a refresh happens after its reads finished
		// and before it publishes
		if atomic.LoadInt32(&armed) == 1 && atomic.AddInt32(&calls, 1) == 3 {
			require.NoError(t, v.Stop())
		}
		return testNow
	}
	v = NewView(
		staticSource(types.MarketStatus{ActiveOfferCount: 1}, []types.Offer{activeOffer(1, testNow.Add(time.Hour))}),
		log.TestingLogger(),
		WithViewClock(clock),
		WithPollInterval(time.Hour),
	)
	updates, unsubscribe := v.Subscribe()
	defer unsubscribe()
	require.NoError(t, v.Start(context.Background()))

	select {
	case snap := <-updates:
		require.EqualValues(t, 1, snap.Generation)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot published")
	}

	atomic.StoreInt32(&armed, 1)
	require.ErrorIs(t, v.Refresh(context.Background()), ErrViewStopped)
	assert.EqualValues(t, 1, v.Snapshot().Generation)
	_, open := <-drain(updates)
	assert.False(t, open)
}

func TestSubscribeAfterStop(t *testing.T) {
	v := newTestView(staticSource(types.MarketStatus{}, nil), WithPollInterval(time.Hour))
	require.NoError(t, v.Start(context.Background()))
	require.NoError(t, v.Stop())

	ch, unsubscribe := v.Subscribe()
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription after stop is not closed")
	}
	unsubscribe()
	unsubscribe()
}

func TestStartStopWithCancelledContext(t *testing.T) {
	defer leaktest.Check(t)()

	v := newTestView(staticSource(types.MarketStatus{}, nil), WithPollInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, v.Start(ctx))
	cancel()
	v.Wait()
	assert.False(t, v.IsRunning())
}

func TestOnOfferCreatedRefreshes(t *testing.T) {
	var calls int32
	src := sourceFuncs{
		status: func(context.Context) (types.MarketStatus, error) {
			return types.MarketStatus{}, nil
		},
		offers: func(context.Context) ([]types.Offer, error) {
			n := atomic.AddInt32(&calls, 1)
			offers := make([]types.Offer, n)
			for i := range offers {
				offers[i] = activeOffer(uint64(i+1), testNow.Add(time.Hour))
			}
			return offers, nil
		},
	}
	v := newTestView(src)
	require.NoError(t, v.Refresh(context.Background()))
	require.Len(t, v.Snapshot().Offers, 1)

	require.NoError(t, v.OnOfferCreated(context.Background()))
	require.Len(t, v.Snapshot().Offers, 2)
}

func TestSnapshotSorted(t *testing.T) {
	offers := []types.Offer{
		activeOffer(3, testNow.Add(time.Hour)),
		activeOffer(1, testNow.Add(time.Hour)),
		activeOffer(2, testNow.Add(time.Hour)),
	}
	v := newTestView(staticSource(types.MarketStatus{}, offers))
	require.NoError(t, v.Refresh(context.Background()))

	snap := v.Snapshot()
	assert.Equal(t, []uint64{1, 2, 3}, ids(snap.Sorted(DefaultSortState())))
	assert.Equal(t, []uint64{3, 1, 2}, ids(snap.Offers))
}
