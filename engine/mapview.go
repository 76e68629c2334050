package engine

import (
	"github.com/paulmach/orb"

	pe "wuyrush.io/serendipity/errors"
	md "wuyrush.io/serendipity/models"
)

// MapView is everything a map presenter draws, computed at one instant. User is nil until a location
// was seen.
type MapView struct {
	SessionID   string              `json:"sessionId"`
	User        *md.Location        `json:"user,omitempty"`
	Visible     []md.Pin            `json:"visible"`
	Clusters    []md.Cluster        `json:"clusters"`
	Labels      []md.Label          `json:"labels"`
	Explored    []md.ExploredCircle `json:"explored"`
	Bounds      *orb.Bound          `json:"bounds,omitempty"`
	Memberships []md.ZoneMembership `json:"memberships"`
}

// Snapshot builds the MapView of the current state.
func (e *Engine) Snapshot() (*MapView, *pe.Err) {
	v := &MapView{}
	err := e.call(func() {
		sess := e.sched.Session()
		v.SessionID = sess.ID
		v.Explored = e.fog.Explored()
		v.Memberships = sess.Zone.Memberships()
		if b, ok := e.fog.Bounds(); ok {
			v.Bounds = &b
		}
		user, ok := sess.Filter.BestEffort()
		if !ok {
			return
		}
		v.User = &user
		v.Visible = e.fog.Visible(e.sched.Pins(), user)
		v.Clusters = e.ClusterPins(v.Visible)
		v.Labels = e.fog.Labels(user)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
