// Package zone tracks which pins the user is standing next to and detects silent pass-bys.
package zone

import (
	"sort"

	cst "wuyrush.io/serendipity/constants"
	"wuyrush.io/serendipity/geo"
	md "wuyrush.io/serendipity/models"
)

type Config struct {
	// EnterMeters is the interaction radius; a pin enters the zone at or below it
	EnterMeters float64
	// ExitMeters is the hysteresis bound; a visit is over only beyond it
	ExitMeters float64
}

func DefaultConfig() Config {
	return Config{
		EnterMeters: cst.DefaultZoneEnterMeters,
		ExitMeters:  cst.DefaultZoneExitMeters,
	}
}

// Result reports what one Sync call observed, in the order pins were given.
type Result struct {
	// PassBys holds ids of pins the user walked away from without engaging
	PassBys []string
	// Stale holds ids of pins that vanished from discovery while inside the zone. They are
	// dropped silently
	Stale []string
}

// Tracker holds per-pin zone membership for one session. Entries are created the first time a pin
// enters the interaction radius. Tracker is not safe for concurrent use.
type Tracker struct {
	cfg     Config
	entries map[string]md.ZoneState
	// interacted outlives entries so that a pin opened once never counts as a pass-by in this session
	interacted map[string]struct{}
}

func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:        cfg,
		entries:    make(map[string]md.ZoneState),
		interacted: make(map[string]struct{}),
	}
}

// Sync evaluates the user position against the pins currently returned by discovery. Entries of pins
// no longer returned are discarded without a pass-by.
func (t *Tracker) Sync(user md.Location, pins []md.Pin) Result {
	var res Result
	returned := make(map[string]struct{}, len(pins))
	for i := range pins {
		returned[pins[i].ID] = struct{}{}
	}
	for id, st := range t.entries {
		if _, ok := returned[id]; ok {
			continue
		}
		if st == md.ZoneInside {
			res.Stale = append(res.Stale, id)
		}
		delete(t.entries, id)
	}
	sort.Strings(res.Stale)

	for i := range pins {
		p := &pins[i]
		d := geo.DistanceMeters(user, p.Location())
		switch t.entries[p.ID] {
		case md.ZoneOutside:
			if d <= t.cfg.EnterMeters {
				t.enter(p.ID)
			}
		case md.ZoneInside:
			if d > t.cfg.ExitMeters {
				t.entries[p.ID] = md.ZoneOutside
				res.PassBys = append(res.PassBys, p.ID)
			}
		case md.ZoneInteracted:
			// terminal for the session
		}
	}
	return res
}

func (t *Tracker) enter(pinID string) {
	if _, ok := t.interacted[pinID]; ok {
		t.entries[pinID] = md.ZoneInteracted
		return
	}
	t.entries[pinID] = md.ZoneInside
}

// MarkInteracted records that the user opened, liked, disliked or reported the pin. A pin currently in
// the zone turns Interacted right away; any other pin turns Interacted when it enters.
func (t *Tracker) MarkInteracted(pinID string) {
	t.interacted[pinID] = struct{}{}
	if t.entries[pinID] == md.ZoneInside {
		t.entries[pinID] = md.ZoneInteracted
	}
}

// State returns the membership state of a pin; pins never seen in the zone are Outside.
func (t *Tracker) State(pinID string) md.ZoneState {
	return t.entries[pinID]
}

// Memberships lists all tracked pins ordered by pin id.
func (t *Tracker) Memberships() []md.ZoneMembership {
	ms := make([]md.ZoneMembership, 0, len(t.entries))
	for id, st := range t.entries {
		ms = append(ms, md.ZoneMembership{PinID: id, State: st})
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].PinID < ms[j].PinID })
	return ms
}
