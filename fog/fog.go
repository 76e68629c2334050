// Package fog implements the fog of war of the map: which pins the user may see, which area the user
// has explored and which place labels to draw over it.
package fog

import (
	"github.com/paulmach/orb"

	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/geo"
	md "wuyrush.io/serendipity/models"
	"wuyrush.io/serendipity/stores"
)

type Config struct {
	// VisibleMeters is the radius within which standard pins are revealed
	VisibleMeters float64
	// StrideMeters is the distance to walk from the last explored circle before a new one is logged
	StrideMeters float64
	// CircleRadiusMeters is the radius of every explored circle
	CircleRadiusMeters float64
	// HexRadiusMeters is the circumradius of the cells deduplicating place labels
	HexRadiusMeters float64
	// labels are transparent within FadeNearMeters of the user and opaque beyond FadeFarMeters
	FadeNearMeters float64
	FadeFarMeters  float64
	// MinOpacity is the opacity under which a label is not worth rendering
	MinOpacity float64
}

func DefaultConfig() Config {
	return Config{
		VisibleMeters:      cst.DefaultDiscoveryRadiusMeters,
		StrideMeters:       cst.DefaultExploredStrideMeters,
		CircleRadiusMeters: cst.DefaultExploredRadiusMeters,
		HexRadiusMeters:    cst.DefaultHexRadiusMeters,
		FadeNearMeters:     cst.DefaultLabelFadeNearMeters,
		FadeFarMeters:      cst.DefaultLabelFadeFarMeters,
		MinOpacity:         cst.DefaultLabelMinOpacity,
	}
}

// IsVisible checks whether pin shows on the map for a user standing at user. Community pins are always
// visible; standard pins only within radiusMeters, boundary included.
func IsVisible(pin *md.Pin, user md.Location, radiusMeters float64) bool {
	if pin.IsCommunity {
		return true
	}
	return geo.DistanceMeters(user, pin.Location()) <= radiusMeters
}

// Model holds the explored circle log of the device. It is not safe for concurrent use.
type Model struct {
	cfg     Config
	store   stores.CircleStore
	circles []md.ExploredCircle
}

// New creates an empty Model persisting to store. A nil store keeps the log in memory only.
func New(cfg Config, store stores.CircleStore) *Model {
	return &Model{cfg: cfg, store: store}
}

// Restore replaces the in-memory log with the persisted one.
func (m *Model) Restore() *pe.Err {
	if m.store == nil {
		return nil
	}
	cs, err := m.store.LoadCircles()
	if err != nil {
		return err
	}
	m.circles = cs
	return nil
}

func (m *Model) save() {
	if m.store == nil {
		return
	}
	if err := m.store.SaveCircles(m.circles); err != nil {
		logging.WithFuncName().Errorf("error saving explored circles: %s", err.Trace())
	}
}

// IsVisible applies the visibility rule with the configured radius.
func (m *Model) IsVisible(pin *md.Pin, user md.Location) bool {
	return IsVisible(pin, user, m.cfg.VisibleMeters)
}

// Visible keeps the pins visible from user, in the given order.
func (m *Model) Visible(pins []md.Pin, user md.Location) []md.Pin {
	vs := make([]md.Pin, 0, len(pins))
	for i := range pins {
		if m.IsVisible(&pins[i], user) {
			vs = append(vs, pins[i])
		}
	}
	return vs
}

// MaybeAddCircle logs a circle at pos when it is more than one stride away from the last logged circle.
// It returns the index of the new circle.
func (m *Model) MaybeAddCircle(pos md.Location) (int, bool) {
	if n := len(m.circles); n > 0 {
		last := m.circles[n-1].Location()
		if geo.DistanceMeters(last, pos) <= m.cfg.StrideMeters {
			return 0, false
		}
	}
	m.circles = append(m.circles, md.ExploredCircle{
		Latitude:     pos.Latitude,
		Longitude:    pos.Longitude,
		RadiusMeters: m.cfg.CircleRadiusMeters,
	})
	m.save()
	return len(m.circles) - 1, true
}

// SetPlaceName names the circle at idx unless it is already named.
func (m *Model) SetPlaceName(idx int, name string) bool {
	if idx < 0 || idx >= len(m.circles) || name == "" || m.circles[idx].PlaceName != "" {
		return false
	}
	m.circles[idx].PlaceName = name
	m.save()
	return true
}

// Explored returns a copy of the explored circle log, oldest first.
func (m *Model) Explored() []md.ExploredCircle {
	cs := make([]md.ExploredCircle, len(m.circles))
	copy(cs, m.circles)
	return cs
}

// Labels returns one label per hex cell holding a named circle, anchored at the cell center. The first
// named circle of a cell wins. Labels too close to user to be worth rendering are left out.
func (m *Model) Labels(user md.Location) []md.Label {
	seen := make(map[string]struct{})
	var ls []md.Label
	for i := range m.circles {
		c := &m.circles[i]
		if c.PlaceName == "" {
			continue
		}
		cell := geo.HexCellOf(c.Location(), m.cfg.HexRadiusMeters)
		id := cell.ID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		anchor := cell.Center()
		opacity := m.Opacity(geo.DistanceMeters(user, anchor))
		if opacity < m.cfg.MinOpacity {
			continue
		}
		ls = append(ls, md.Label{Location: anchor, Cell: id, Name: c.PlaceName, Opacity: opacity})
	}
	return ls
}

// Opacity fades a label linearly from transparent at FadeNearMeters to opaque at FadeFarMeters.
func (m *Model) Opacity(distanceMeters float64) float64 {
	switch {
	case distanceMeters <= m.cfg.FadeNearMeters:
		return 0
	case distanceMeters >= m.cfg.FadeFarMeters:
		return 1
	default:
		return (distanceMeters - m.cfg.FadeNearMeters) / (m.cfg.FadeFarMeters - m.cfg.FadeNearMeters)
	}
}

// Bounds returns the bounding box of all explored circles, false when nothing was explored.
func (m *Model) Bounds() (orb.Bound, bool) {
	if len(m.circles) == 0 {
		return orb.Bound{}, false
	}
	b := geo.Bound(m.circles[0].Location(), m.circles[0].RadiusMeters)
	for i := 1; i < len(m.circles); i++ {
		b = b.Union(geo.Bound(m.circles[i].Location(), m.circles[i].RadiusMeters))
	}
	return b, true
}
