package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/filter"
	"wuyrush.io/serendipity/geo"
	md "wuyrush.io/serendipity/models"
	"wuyrush.io/serendipity/policy"
	"wuyrush.io/serendipity/stores"
)

var (
	home = md.Location{Latitude: 48.8566, Longitude: 2.3522}
	t0   = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
)

func fix(l md.Location) md.Sample {
	a := 5.0
	return md.Sample{Location: l, AccuracyMeters: &a, Timestamp: t0}
}

func pinNear(id string, northMeters float64) md.Pin {
	l := geo.Offset(home, northMeters, 0)
	return md.Pin{ID: id, Latitude: l.Latitude, Longitude: l.Longitude, LikeCount: 1}
}

func newScheduler(store stores.NotificationStore) *Scheduler {
	return New(DefaultConfig(), policy.New(policy.DefaultConfig(), store))
}

func TestTryBegin(t *testing.T) {
	s := newScheduler(nil)
	_, ok := s.TryBegin(t0)
	assert.False(t, ok, "nothing accepted yet")

	require.Equal(t, filter.Accepted, s.Accept(fix(home)))
	at, ok := s.TryBegin(t0)
	require.True(t, ok)
	assert.Equal(t, home, at)

	_, ok = s.TryBegin(t0.Add(10 * time.Second))
	assert.False(t, ok, "discovery still in flight")

	s.Complete(nil, nil, t0.Add(time.Second))
	_, ok = s.TryBegin(t0.Add(4 * time.Second))
	assert.False(t, ok, "within the 5s floor")
	_, ok = s.TryBegin(t0.Add(5 * time.Second))
	assert.True(t, ok)
}

func TestComplete_FailureLeavesStateUntouched(t *testing.T) {
	s := newScheduler(nil)
	s.Accept(fix(home))
	_, ok := s.TryBegin(t0)
	require.True(t, ok)
	first := s.Complete([]md.Pin{pinNear("a", 10)}, nil, t0)
	require.NotNil(t, first)
	require.Equal(t, md.ZoneInside, s.Session().Zone.State("a"))

	s.Accept(fix(geo.Offset(home, 100, 0)))
	_, ok = s.TryBegin(t0.Add(5 * time.Second))
	require.True(t, ok)
	assert.Nil(t, s.Complete(nil, pe.NewNetworkFailure("offline"), t0.Add(5*time.Second)))
	assert.Equal(t, md.ZoneInside, s.Session().Zone.State("a"))
	assert.Len(t, s.Pins(), 1)

	_, ok = s.TryBegin(t0.Add(10 * time.Second))
	assert.True(t, ok, "in-flight guard released after failure")
}

func TestComplete_Filtering(t *testing.T) {
	s := newScheduler(nil)
	s.Accept(fix(home))
	s.TryBegin(t0)

	suppressed := pinNear("suppressed", 5)
	suppressed.ReportCount = 3
	flagged := pinNear("flagged", 5)
	flagged.IsSuppressed = true
	expired := pinNear("expired", 5)
	expired.ExpiresAt = t0.Add(-time.Minute)
	fresh := pinNear("fresh", 5)
	fresh.ExpiresAt = t0.Add(time.Hour)

	c := s.Complete([]md.Pin{pinNear("b", 30), suppressed, flagged, expired, fresh, pinNear("a", 40)}, nil, t0)
	require.NotNil(t, c)
	var ids []string
	for _, it := range c.Plan.Items {
		ids = append(ids, it.Pin.ID)
	}
	assert.Equal(t, []string{"b", "fresh", "a"}, ids, "returned order is kept")
	assert.Len(t, c.Pins, 5, "expired pins count as not returned")
	assert.Equal(t, md.ZoneInside, s.Session().Zone.State("suppressed"), "suppressed pins are still tracked")
}

func TestComplete_PassBy(t *testing.T) {
	s := newScheduler(nil)
	pins := []md.Pin{pinNear("a", 0)}
	s.Accept(fix(geo.Offset(home, -10, 0)))
	s.TryBegin(t0)
	s.Complete(pins, nil, t0)

	s.Accept(fix(geo.Offset(home, -30, 0)))
	s.TryBegin(t0.Add(5 * time.Second))
	c := s.Complete(pins, nil, t0.Add(5*time.Second))
	require.NotNil(t, c)
	assert.Equal(t, []string{"a"}, c.PassBys)
	assert.True(t, c.Plan.Empty(), "already notified this session")
}

func TestComplete_InteractedNeverPassesBy(t *testing.T) {
	s := newScheduler(nil)
	pins := []md.Pin{pinNear("a", 0)}
	s.Accept(fix(geo.Offset(home, -10, 0)))
	s.TryBegin(t0)
	s.Complete(pins, nil, t0)
	s.Interact("a")

	s.Accept(fix(geo.Offset(home, -30, 0)))
	s.TryBegin(t0.Add(5 * time.Second))
	c := s.Complete(pins, nil, t0.Add(5*time.Second))
	assert.Empty(t, c.PassBys)
}

func TestBuildPlan(t *testing.T) {
	pins := []md.Pin{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	p := BuildPlan(pins, 800*time.Millisecond)
	assert.NotEmpty(t, p.BatchID)
	require.Len(t, p.Items, 3)
	for i, it := range p.Items {
		assert.Equal(t, pins[i].ID, it.Pin.ID)
		assert.Equal(t, time.Duration(i)*800*time.Millisecond, it.Delay)
		assert.Equal(t, i == 0, it.PlaySound)
	}
	assert.True(t, BuildPlan(nil, time.Second).Empty())
}

func TestEndToEnd(t *testing.T) {
	store := &stores.KVStore{KV: stores.NewMemoryKV()}
	d := &MockDiscoverer{}
	d.On("NearbyPins", mock.Anything, mock.Anything, mock.Anything).Return([]md.Pin{pinNear("p", 10)}, nil)
	ctx := context.Background()

	s := newScheduler(store)
	s.Accept(fix(home))
	c, ok := s.Heartbeat(ctx, d, t0)
	require.True(t, ok)
	require.Len(t, c.Plan.Items, 1)
	assert.Equal(t, "p", c.Plan.Items[0].Pin.ID)
	assert.True(t, c.Plan.Items[0].PlaySound)

	c, ok = s.Heartbeat(ctx, d, t0.Add(10*time.Second))
	require.True(t, ok)
	assert.True(t, c.Plan.Empty(), "already notified in this session")

	require.Nil(t, s.Rate("p", md.RatingGood, t0.Add(time.Minute)))

	later := t0.Add(8 * 24 * time.Hour)
	next := newScheduler(store)
	next.Accept(fix(home))
	c, ok = next.Heartbeat(ctx, d, later)
	require.True(t, ok)
	require.Len(t, c.Plan.Items, 1)
	assert.Equal(t, "p", c.Plan.Items[0].Pin.ID)
	assert.True(t, c.Plan.Items[0].PlaySound)
	d.AssertNumberOfCalls(t, "NearbyPins", 3)
}

func TestHeartbeat_Throttled(t *testing.T) {
	d := &MockDiscoverer{}
	s := newScheduler(nil)
	_, ok := s.Heartbeat(context.Background(), d, t0)
	assert.False(t, ok)
	d.AssertNotCalled(t, "NearbyPins", mock.Anything, mock.Anything, mock.Anything)
}

func TestReset(t *testing.T) {
	s := newScheduler(nil)
	old := s.Session()
	s.Accept(fix(home))
	fresh := s.Reset()
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Nil(t, fresh.Filter.LastAccepted())
}

// mocks
type MockDiscoverer struct{ mock.Mock }

func (m *MockDiscoverer) NearbyPins(ctx context.Context, lat, lon float64) ([]md.Pin, error) {
	args := m.Called(ctx, lat, lon)
	pins, _ := args.Get(0).([]md.Pin)
	return pins, args.Error(1)
}
