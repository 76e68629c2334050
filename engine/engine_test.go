package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/fog"
	"wuyrush.io/serendipity/geo"
	md "wuyrush.io/serendipity/models"
	"wuyrush.io/serendipity/policy"
	"wuyrush.io/serendipity/stores"
)

const waitFor = 3 * time.Second

var home = md.Location{Latitude: 35.6595, Longitude: 139.7005}

func fix(north float64) md.Sample {
	a := 5.0
	return md.Sample{Location: geo.Offset(home, north, 0), AccuracyMeters: &a, Timestamp: time.Now()}
}

func pinAt(id string, north float64) md.Pin {
	l := geo.Offset(home, north, 0)
	return md.Pin{ID: id, Latitude: l.Latitude, Longitude: l.Longitude, LikeCount: 1}
}

type fakeDiscoverer struct {
	mu    sync.Mutex
	pins  []md.Pin
	err   error
	calls int
}

func (d *fakeDiscoverer) NearbyPins(_ context.Context, _, _ float64) ([]md.Pin, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.pins, d.err
}

func (d *fakeDiscoverer) set(pins []md.Pin, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pins, d.err = pins, err
}

func (d *fakeDiscoverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type notified struct {
	pinID string
	first bool
}

type recorder struct {
	NopListener
	mu       sync.Mutex
	accepted int
	passBys  []string
	notifies []notified
	visible  []md.Pin
}

func (r *recorder) OnLocationAccepted(md.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted++
}

func (r *recorder) OnPinsVisible(pins []md.Pin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = pins
}

func (r *recorder) OnPassBy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passBys = append(r.passBys, id)
}

func (r *recorder) OnNotify(p md.Pin, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifies = append(r.notifies, notified{pinID: p.ID, first: first})
}

func (r *recorder) snapshot() (int, []string, []notified, []md.Pin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepted, append([]string(nil), r.passBys...), append([]notified(nil), r.notifies...), r.visible
}

type reporterFunc func(ctx context.Context, pinID string) error

func (f reporterFunc) ReportPassBy(ctx context.Context, pinID string) error {
	return f(ctx, pinID)
}

type geocoderFunc func(ctx context.Context, l md.Location) (string, error)

func (f geocoderFunc) PlaceName(ctx context.Context, l md.Location) (string, error) {
	return f(ctx, l)
}

type nopPresenter struct{}

func (nopPresenter) Notify(string, md.Dispatch) error { return nil }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HeartbeatPeriod = time.Hour
	cfg.Scheduler.MinInterval = 0
	cfg.Scheduler.Stagger = 50 * time.Millisecond
	return cfg
}

func newEngine(cfg Config, d *fakeDiscoverer, opts ...Option) *Engine {
	kv := &stores.KVStore{KV: stores.NewMemoryKV()}
	return New(cfg, d, policy.New(policy.DefaultConfig(), kv), fog.New(cfg.Fog, kv), nopPresenter{}, opts...)
}

func TestEngine_NotifyThenPassBy(t *testing.T) {
	d := &fakeDiscoverer{pins: []md.Pin{pinAt("p", 0)}}
	rec := &recorder{}
	reported := make(chan string, 1)
	e := newEngine(testConfig(), d, WithListener(rec), WithPassByReporter(reporterFunc(func(_ context.Context, id string) error {
		reported <- id
		return nil
	})))
	e.Start(context.Background())
	defer e.Stop()

	require.Nil(t, e.Push(fix(-10)))
	assert.Eventually(t, func() bool {
		_, _, ns, _ := rec.snapshot()
		return len(ns) == 1
	}, waitFor, 10*time.Millisecond)
	accepted, _, ns, visible := rec.snapshot()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, []notified{{pinID: "p", first: true}}, ns)
	require.Len(t, visible, 1)

	require.Nil(t, e.Push(fix(-30)))
	select {
	case id := <-reported:
		assert.Equal(t, "p", id)
	case <-time.After(waitFor):
		t.Fatal("pass-by was not reported")
	}
	_, passBys, ns, _ := rec.snapshot()
	assert.Equal(t, []string{"p"}, passBys)
	assert.Len(t, ns, 1, "no second notification within a session")
}

func TestEngine_InteractionSilencesPassBy(t *testing.T) {
	d := &fakeDiscoverer{pins: []md.Pin{pinAt("p", 0)}}
	rec := &recorder{}
	e := newEngine(testConfig(), d, WithListener(rec))
	e.Start(context.Background())
	defer e.Stop()

	require.Nil(t, e.Push(fix(-10)))
	assert.Eventually(t, func() bool { return d.count() == 1 }, waitFor, 10*time.Millisecond)
	// the call is served after the discovery result, which is already queued or applied
	assert.Eventually(t, func() bool {
		v, err := e.Snapshot()
		return err == nil && len(v.Memberships) == 1
	}, waitFor, 10*time.Millisecond)
	require.Nil(t, e.Interact("p"))

	require.Nil(t, e.Push(fix(-30)))
	assert.Eventually(t, func() bool { return d.count() == 2 }, waitFor, 10*time.Millisecond)
	v, err := e.Snapshot()
	require.Nil(t, err)
	assert.Equal(t, []md.ZoneMembership{{PinID: "p", State: md.ZoneInteracted}}, v.Memberships)
	_, passBys, _, _ := rec.snapshot()
	assert.Empty(t, passBys)
}

func TestEngine_StopDropsPendingNotifications(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Stagger = 300 * time.Millisecond
	d := &fakeDiscoverer{pins: []md.Pin{pinAt("a", 5), pinAt("b", 6), pinAt("c", 7)}}
	rec := &recorder{}
	e := newEngine(cfg, d, WithListener(rec))
	e.Start(context.Background())

	require.Nil(t, e.Push(fix(0)))
	assert.Eventually(t, func() bool {
		_, _, ns, _ := rec.snapshot()
		return len(ns) == 1
	}, waitFor, 5*time.Millisecond)
	e.Stop()
	time.Sleep(700 * time.Millisecond)
	_, _, ns, _ := rec.snapshot()
	assert.Equal(t, []notified{{pinID: "a", first: true}}, ns)

	err := e.Push(fix(0))
	if assert.NotNil(t, err) {
		assert.Equal(t, pe.ErrCodeServiceFailure, err.Code)
	}
	assert.NotNil(t, e.Rate("a", md.RatingGood))
	_, serr := e.Snapshot()
	assert.NotNil(t, serr)
}

func TestEngine_DiscoveryFailureIsRetriedNextCycle(t *testing.T) {
	d := &fakeDiscoverer{err: pe.NewNetworkFailure("offline")}
	rec := &recorder{}
	e := newEngine(testConfig(), d, WithListener(rec))
	e.Start(context.Background())
	defer e.Stop()

	require.Nil(t, e.Push(fix(0)))
	assert.Eventually(t, func() bool { return d.count() == 1 }, waitFor, 10*time.Millisecond)

	d.set([]md.Pin{pinAt("p", 5)}, nil)
	// a fresh accepted sample is the next natural cycle
	north := 0.0
	assert.Eventually(t, func() bool {
		north += 5
		e.Push(fix(north))
		_, _, ns, _ := rec.snapshot()
		return len(ns) == 1
	}, waitFor, 50*time.Millisecond)
}

func TestEngine_RateAndExplored(t *testing.T) {
	d := &fakeDiscoverer{}
	e := newEngine(testConfig(), d, WithGeocoder(geocoderFunc(func(context.Context, md.Location) (string, error) {
		return "Shibuya", nil
	})))
	e.Start(context.Background())
	defer e.Stop()

	v, err := e.Snapshot()
	require.Nil(t, err)
	assert.Nil(t, v.User)
	assert.Nil(t, v.Bounds)

	require.Nil(t, e.Push(fix(0)))
	assert.Eventually(t, func() bool {
		cs, err := e.Explored()
		return err == nil && len(cs) == 1 && cs[0].PlaceName == "Shibuya"
	}, waitFor, 10*time.Millisecond)

	v, err = e.Snapshot()
	require.Nil(t, err)
	require.NotNil(t, v.User)
	assert.NotNil(t, v.Bounds)

	assert.Nil(t, e.Rate("p", md.RatingGood))
	rerr := e.Rate("p", md.RatingNone)
	if assert.NotNil(t, rerr) {
		assert.Equal(t, pe.ErrCodeBadRequest, rerr.Code)
	}
}

func TestEngine_RestartKeepsExploredArea(t *testing.T) {
	d := &fakeDiscoverer{}
	e := newEngine(testConfig(), d)
	e.Start(context.Background())
	require.Nil(t, e.Push(fix(0)))
	assert.Eventually(t, func() bool {
		cs, _ := e.Explored()
		return len(cs) == 1
	}, waitFor, 10*time.Millisecond)
	first, _ := e.Snapshot()
	e.Stop()

	e.Start(context.Background())
	defer e.Stop()
	cs, err := e.Explored()
	require.Nil(t, err)
	assert.Len(t, cs, 1)
	v, _ := e.Snapshot()
	assert.NotEqual(t, first.SessionID, v.SessionID, "a restart starts a fresh session")
	assert.Nil(t, v.User)
}

func TestEngine_Queries(t *testing.T) {
	e := newEngine(testConfig(), &fakeDiscoverer{})
	community := pinAt("c", 500)
	community.IsCommunity = true
	far := pinAt("f", 60)
	assert.True(t, e.IsVisible(&community, home))
	assert.False(t, e.IsVisible(&far, home))

	cs := e.ClusterPins([]md.Pin{pinAt("a", 0), pinAt("b", 2), pinAt("c", 100)})
	require.Len(t, cs, 2)
	assert.Equal(t, 2, cs[0].Count())
}
