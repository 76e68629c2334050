// Package engine runs the discovery loop of one device. Location samples, heartbeat ticks and the
// results of network calls are all funneled into a single goroutine which alone touches the session
// state, so none of the components below it need locking.
package engine

import (
	"context"
	"sync"
	"time"

	"wuyrush.io/serendipity/cluster"
	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	"wuyrush.io/serendipity/dispatch"
	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/filter"
	"wuyrush.io/serendipity/fog"
	"wuyrush.io/serendipity/geocode"
	"wuyrush.io/serendipity/metrics"
	md "wuyrush.io/serendipity/models"
	"wuyrush.io/serendipity/policy"
	"wuyrush.io/serendipity/scheduler"
)

type Config struct {
	Scheduler scheduler.Config
	Fog       fog.Config
	// HeartbeatPeriod drives heartbeats while the user stands still
	HeartbeatPeriod time.Duration
	// DiscoveryTimeout bounds one nearby pin query
	DiscoveryTimeout time.Duration
	// ClusterThresholdMeters is the seed distance of map clusters
	ClusterThresholdMeters float64
}

func DefaultConfig() Config {
	return Config{
		Scheduler:              scheduler.DefaultConfig(),
		Fog:                    fog.DefaultConfig(),
		HeartbeatPeriod:        cst.DefaultHeartbeatPeriod,
		DiscoveryTimeout:       10 * time.Second,
		ClusterThresholdMeters: cst.DefaultClusterThresholdMeters,
	}
}

// Listener observes the engine. OnNotify is called from the dispatch timers, every other method from
// the engine goroutine; implementations must return quickly.
type Listener interface {
	OnLocationAccepted(s md.Sample)
	OnPinsVisible(pins []md.Pin)
	OnPassBy(pinID string)
	OnNotify(pin md.Pin, isFirstInBatch bool)
}

// NopListener ignores every event. Embed it to observe a subset of events.
type NopListener struct{}

func (NopListener) OnLocationAccepted(md.Sample) {}
func (NopListener) OnPinsVisible([]md.Pin)       {}
func (NopListener) OnPassBy(string)              {}
func (NopListener) OnNotify(md.Pin, bool)        {}

// Listeners hands every event to each of its listeners, in order.
type Listeners []Listener

func (ls Listeners) OnLocationAccepted(s md.Sample) {
	for _, l := range ls {
		l.OnLocationAccepted(s)
	}
}

func (ls Listeners) OnPinsVisible(pins []md.Pin) {
	for _, l := range ls {
		l.OnPinsVisible(pins)
	}
}

func (ls Listeners) OnPassBy(pinID string) {
	for _, l := range ls {
		l.OnPassBy(pinID)
	}
}

func (ls Listeners) OnNotify(pin md.Pin, isFirstInBatch bool) {
	for _, l := range ls {
		l.OnNotify(pin, isFirstInBatch)
	}
}

// PassByReporter records pass-bys remotely.
type PassByReporter interface {
	ReportPassBy(ctx context.Context, pinID string) error
}

type Option func(*Engine)

func WithListener(l Listener) Option {
	return func(e *Engine) {
		e.listener = l
	}
}

func WithPassByReporter(r PassByReporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

func WithGeocoder(g geocode.Geocoder) Option {
	return func(e *Engine) {
		e.geocoder = g
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

type Engine struct {
	cfg        Config
	sched      *scheduler.Scheduler
	fog        *fog.Model
	discoverer scheduler.Discoverer
	exec       *dispatch.Executor
	listener   Listener
	reporter   PassByReporter
	geocoder   geocode.Geocoder
	now        func() time.Time

	// work for the engine goroutine
	events chan func()

	mu sync.Mutex
	// ctx is cancelled while the engine is stopped
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, d scheduler.Discoverer, p *policy.Policy, fm *fog.Model, presenter dispatch.Presenter,
	opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		sched:      scheduler.New(cfg.Scheduler, p),
		fog:        fm,
		discoverer: d,
		listener:   NopListener{},
		now:        time.Now,
		events:     make(chan func()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.exec = dispatch.NewExecutor(dispatch.PresenterFunc(func(batchID string, it md.Dispatch) error {
		metrics.NotificationsTotal.Inc()
		e.listener.OnNotify(it.Pin, it.PlaySound)
		return presenter.Notify(batchID, it)
	}), cfg.Scheduler.Stagger)
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.cancel()
	return e
}

func errNotRunning() *pe.Err {
	return pe.NewServiceFailure("engine is not running")
}

// Start restores the explored area and starts tracking with a fresh session. Starting a running engine
// is a no-op.
func (e *Engine) Start(ctx context.Context) {
	clog := logging.WithFuncName()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx.Err() == nil {
		return
	}
	if err := e.fog.Restore(); err != nil {
		clog.Errorf("error restoring explored circles, starting from scratch: %s", err.Trace())
	}
	metrics.ExploredCircles.Set(float64(len(e.fog.Explored())))
	sess := e.sched.Reset()
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.loop(e.ctx)
	clog.WithField(cst.LogFieldSessionID, sess.ID).Info("tracking started")
}

// Stop stops tracking: the heartbeat ticker and the engine goroutine end, and pending staggered
// notifications are dropped. Persisted state is left as last written.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.cancel()
	e.mu.Unlock()
	e.wg.Wait()
	if n := e.exec.Cancel(); n > 0 {
		logging.WithFuncName().WithField("dropped", n).Info("pending notifications dropped")
	}
}

func (e *Engine) runCtx() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	tkr := time.NewTicker(e.cfg.HeartbeatPeriod)
	defer tkr.Stop()
	for {
		select {
		case f := <-e.events:
			f()
		case <-tkr.C:
			e.heartbeat(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// post hands f to the engine goroutine of the run ctx belongs to. It returns false when that run is over.
func (e *Engine) post(ctx context.Context, f func()) bool {
	select {
	case e.events <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// call runs f on the engine goroutine and waits for it.
func (e *Engine) call(f func()) *pe.Err {
	done := make(chan struct{})
	if !e.post(e.runCtx(), func() {
		f()
		close(done)
	}) {
		return errNotRunning()
	}
	<-done
	return nil
}

// Push feeds a location sample.
func (e *Engine) Push(s md.Sample) *pe.Err {
	ctx := e.runCtx()
	if !e.post(ctx, func() { e.onSample(ctx, s) }) {
		return errNotRunning()
	}
	return nil
}

func (e *Engine) onSample(ctx context.Context, s md.Sample) {
	d := e.sched.Accept(s)
	metrics.SamplesTotal.WithLabelValues(d.String()).Inc()
	if d != filter.Accepted {
		return
	}
	e.listener.OnLocationAccepted(s)
	if idx, ok := e.fog.MaybeAddCircle(s.Location); ok {
		metrics.ExploredCircles.Set(float64(idx + 1))
		e.nameCircle(ctx, idx, s.Location)
	}
	visible := e.fog.Visible(e.sched.Pins(), s.Location)
	metrics.VisiblePins.Set(float64(len(visible)))
	e.listener.OnPinsVisible(visible)
	e.heartbeat(ctx)
}

func (e *Engine) nameCircle(ctx context.Context, idx int, l md.Location) {
	if e.geocoder == nil {
		return
	}
	go func() {
		name, err := e.geocoder.PlaceName(ctx, l)
		if err != nil {
			logging.WithFuncName().WithError(err).Warn("error naming explored circle, leaving it unnamed")
			return
		}
		e.post(ctx, func() { e.fog.SetPlaceName(idx, name) })
	}()
}

// heartbeat starts a discovery cycle unless throttled. The query runs on its own goroutine and its
// result comes back through the event channel.
func (e *Engine) heartbeat(ctx context.Context) {
	at, ok := e.sched.TryBegin(e.now())
	if !ok {
		metrics.HeartbeatsTotal.WithLabelValues("throttled").Inc()
		return
	}
	sess := e.sched.Session()
	go func() {
		qctx, cancel := context.WithTimeout(ctx, e.cfg.DiscoveryTimeout)
		defer cancel()
		start := time.Now()
		pins, err := e.discoverer.NearbyPins(qctx, at.Latitude, at.Longitude)
		metrics.DiscoveryDuration.Observe(time.Since(start).Seconds())
		e.post(ctx, func() { e.onDiscovered(ctx, sess, pins, err) })
	}()
}

func (e *Engine) onDiscovered(ctx context.Context, sess *scheduler.Session, pins []md.Pin, err error) {
	if sess != e.sched.Session() {
		return
	}
	cyc := e.sched.Complete(pins, err, e.now())
	if cyc == nil {
		metrics.HeartbeatsTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()
	if user, ok := sess.Filter.BestEffort(); ok {
		visible := e.fog.Visible(cyc.Pins, user)
		metrics.VisiblePins.Set(float64(len(visible)))
		e.listener.OnPinsVisible(visible)
	}
	for _, id := range cyc.PassBys {
		metrics.PassBysTotal.Inc()
		e.listener.OnPassBy(id)
		e.reportPassBy(ctx, id)
	}
	e.exec.Schedule(cyc.Plan)
}

func (e *Engine) reportPassBy(ctx context.Context, pinID string) {
	if e.reporter == nil {
		return
	}
	go func() {
		rctx, cancel := context.WithTimeout(ctx, e.cfg.DiscoveryTimeout)
		defer cancel()
		if err := e.reporter.ReportPassBy(rctx, pinID); err != nil {
			logging.WithFuncName().WithError(err).WithField(cst.LogFieldPinID, pinID).Warn("error reporting pass-by")
		}
	}()
}

// Interact records that the user opened, liked, disliked or reported the pin.
func (e *Engine) Interact(pinID string) *pe.Err {
	return e.call(func() { e.sched.Interact(pinID) })
}

// Rate stores the user's rating of a pin.
func (e *Engine) Rate(pinID string, r md.Rating) *pe.Err {
	var err *pe.Err
	if cerr := e.call(func() { err = e.sched.Rate(pinID, r, e.now()) }); cerr != nil {
		return cerr
	}
	return err
}

// IsVisible applies the fog visibility rule.
func (e *Engine) IsVisible(pin *md.Pin, user md.Location) bool {
	return fog.IsVisible(pin, user, e.cfg.Fog.VisibleMeters)
}

// ClusterPins groups pins for the map.
func (e *Engine) ClusterPins(pins []md.Pin) []md.Cluster {
	return cluster.Group(pins, e.cfg.ClusterThresholdMeters)
}

// Explored returns the explored circle log.
func (e *Engine) Explored() ([]md.ExploredCircle, *pe.Err) {
	var cs []md.ExploredCircle
	if err := e.call(func() { cs = e.fog.Explored() }); err != nil {
		return nil, err
	}
	return cs, nil
}
