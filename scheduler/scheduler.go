// Package scheduler decides when to ask the backend for nearby pins and which of the returned pins
// deserve a notification. It owns the session-scoped state; the engine drives it.
package scheduler

import (
	"context"
	"time"

	"github.com/segmentio/ksuid"
	log "github.com/sirupsen/logrus"

	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/filter"
	md "wuyrush.io/serendipity/models"
	"wuyrush.io/serendipity/policy"
	"wuyrush.io/serendipity/zone"
)

type Config struct {
	// MinInterval is the floor between two heartbeats, whatever triggers them
	MinInterval time.Duration
	// Stagger separates consecutive notifications of one plan
	Stagger time.Duration
	// SuppressionFactor mutes pins with reports > likes * SuppressionFactor
	SuppressionFactor int
	Filter            filter.Config
	Zone              zone.Config
}

func DefaultConfig() Config {
	return Config{
		MinInterval:       cst.DefaultHeartbeatMinInterval,
		Stagger:           cst.DefaultNotifyStagger,
		SuppressionFactor: cst.DefaultSuppressionReportFactor,
		Filter:            filter.DefaultConfig(),
		Zone:              zone.DefaultConfig(),
	}
}

// Discoverer answers nearby pin queries. Implementations return pins in the order they want them
// notified and a NetworkFailure error when the backend cannot be reached.
type Discoverer interface {
	NearbyPins(ctx context.Context, lat, lon float64) ([]md.Pin, error)
}

// Session is everything one tracking run remembers. Starting tracking again means a fresh Session;
// notification records live in the Policy and survive it.
type Session struct {
	ID     string
	Filter *filter.Filter
	Zone   *zone.Tracker
	// notified keeps pins already notified in this session from being notified on every heartbeat
	notified      map[string]struct{}
	lastHeartbeat time.Time
	inFlight      bool
	pins          []md.Pin
}

func NewSession(cfg Config) *Session {
	return &Session{
		ID:       ksuid.New().String(),
		Filter:   filter.New(cfg.Filter),
		Zone:     zone.New(cfg.Zone),
		notified: make(map[string]struct{}),
	}
}

// Notified checks whether the pin was notified in this session.
func (s *Session) Notified(pinID string) bool {
	_, ok := s.notified[pinID]
	return ok
}

// Cycle is the outcome of one successful heartbeat.
type Cycle struct {
	// Pins are the live pins returned by discovery, in returned order
	Pins    []md.Pin
	PassBys []string
	// Stale are pins dropped from the zone because discovery stopped returning them
	Stale []string
	Plan  *md.Plan
}

// Scheduler is not safe for concurrent use. The engine serializes every call through its actor.
type Scheduler struct {
	cfg     Config
	policy  *policy.Policy
	session *Session
}

func New(cfg Config, p *policy.Policy) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		policy:  p,
		session: NewSession(cfg),
	}
}

func (s *Scheduler) Session() *Session {
	return s.session
}

// Reset drops the current session and starts a new one.
func (s *Scheduler) Reset() *Session {
	s.session = NewSession(s.cfg)
	return s.session
}

// Accept runs a location sample through the session filter.
func (s *Scheduler) Accept(sample md.Sample) filter.Decision {
	d := s.session.Filter.Accept(sample)
	if d != filter.Accepted {
		logging.WithFuncName().WithFields(log.Fields{
			cst.LogFieldSessionID: s.session.ID,
			"decision":            d.String(),
		}).Debug("location sample rejected")
	}
	return d
}

// TryBegin reserves the next heartbeat. It returns the position to query at, and false when nothing
// was accepted yet, a heartbeat is in flight or the previous one started less than MinInterval ago.
// Every true return must be followed by exactly one Complete.
func (s *Scheduler) TryBegin(now time.Time) (md.Location, bool) {
	clog := logging.WithFuncName().WithField(cst.LogFieldSessionID, s.session.ID)
	last := s.session.Filter.LastAccepted()
	if last == nil {
		return md.Location{}, false
	}
	if s.session.inFlight {
		clog.Debug("heartbeat skipped: discovery in flight")
		return md.Location{}, false
	}
	if !s.session.lastHeartbeat.IsZero() && now.Sub(s.session.lastHeartbeat) < s.cfg.MinInterval {
		clog.Debug("heartbeat skipped: too soon")
		return md.Location{}, false
	}
	s.session.inFlight = true
	s.session.lastHeartbeat = now
	return last.Location, true
}

// Complete applies the discovery result of the heartbeat reserved by TryBegin. A failed discovery
// leaves the session untouched and returns nil; the next heartbeat simply tries again.
func (s *Scheduler) Complete(pins []md.Pin, err error, now time.Time) *Cycle {
	clog := logging.WithFuncName().WithField(cst.LogFieldSessionID, s.session.ID)
	s.session.inFlight = false
	if err != nil {
		clog.WithError(err).Warn("discovery failed, retrying on next heartbeat")
		return nil
	}

	live := make([]md.Pin, 0, len(pins))
	for i := range pins {
		if pins[i].Expired(now) {
			continue
		}
		live = append(live, pins[i])
	}
	s.session.pins = live

	user, _ := s.session.Filter.BestEffort()
	res := s.session.Zone.Sync(user, live)
	for _, id := range res.Stale {
		clog.WithField(cst.LogFieldPinID, id).Debug(pe.NewStaleZoneEntry("pin left discovery while in zone").Error())
	}

	var notifiable []md.Pin
	for i := range live {
		p := &live[i]
		if s.session.Notified(p.ID) {
			continue
		}
		if p.Suppressed(s.cfg.SuppressionFactor) {
			clog.WithField(cst.LogFieldPinID, p.ID).Debug("pin suppressed, not notifying")
			continue
		}
		if !s.policy.ShouldNotify(p.ID, now) {
			continue
		}
		s.session.notified[p.ID] = struct{}{}
		s.policy.UpdateLastSeen(p.ID, now)
		notifiable = append(notifiable, *p)
	}

	return &Cycle{
		Pins:    live,
		PassBys: res.PassBys,
		Stale:   res.Stale,
		Plan:    BuildPlan(notifiable, s.cfg.Stagger),
	}
}

// Heartbeat runs one full cycle synchronously. It returns false when the heartbeat was throttled.
func (s *Scheduler) Heartbeat(ctx context.Context, d Discoverer, now time.Time) (*Cycle, bool) {
	at, ok := s.TryBegin(now)
	if !ok {
		return nil, false
	}
	pins, err := d.NearbyPins(ctx, at.Latitude, at.Longitude)
	return s.Complete(pins, err, now), true
}

// Interact records that the user opened, liked, disliked or reported the pin.
func (s *Scheduler) Interact(pinID string) {
	s.session.Zone.MarkInteracted(pinID)
}

// Rate stores the user's rating of a notified pin.
func (s *Scheduler) Rate(pinID string, r md.Rating, now time.Time) *pe.Err {
	return s.policy.Rate(pinID, r, now)
}

// Pins returns the pins of the last successful heartbeat.
func (s *Scheduler) Pins() []md.Pin {
	return s.session.pins
}

// BuildPlan lays pins out one stagger apart, in the given order. Only the first one plays a sound.
func BuildPlan(pins []md.Pin, stagger time.Duration) *md.Plan {
	plan := &md.Plan{BatchID: ksuid.New().String()}
	for i := range pins {
		plan.Items = append(plan.Items, md.Dispatch{
			Pin:       pins[i],
			Delay:     time.Duration(i) * stagger,
			PlaySound: i == 0,
		})
	}
	return plan
}
