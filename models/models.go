package models

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
)

/*
 Data models shared by the discovery engine components.
*/

// Location is a WGS84 position in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point converts the location into an orb.Point, which is ordered lon, lat.
func (l Location) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

func LocationOf(p orb.Point) Location {
	return Location{Latitude: p.Lat(), Longitude: p.Lon()}
}

// Sample is a raw location fix reported by the GPS source.
type Sample struct {
	Location
	// AccuracyMeters is nil when the source does not report accuracy
	AccuracyMeters *float64  `json:"accuracyMeters,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Pin is a read-only snapshot of a message anchored to a point, as returned by discovery.
type Pin struct {
	ID             string    `json:"id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Content        string    `json:"content"`
	DistanceMeters float64   `json:"distanceMeters"`
	LikeCount      int       `json:"likes"`
	DislikeCount   int       `json:"dislikes"`
	ReportCount    int       `json:"reports"`
	PassByCount    int       `json:"passesBy"`
	IsCommunity    bool      `json:"isCommunity"`
	IsSuppressed   bool      `json:"isSuppressed"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

func (p *Pin) Location() Location {
	return Location{Latitude: p.Latitude, Longitude: p.Longitude}
}

// Suppressed reports whether the pin is suppressed by the backend flag or by the report formula
// reports > likes * factor.
func (p *Pin) Suppressed(factor int) bool {
	return p.IsSuppressed || p.ReportCount > p.LikeCount*factor
}

// Expired checks whether the pin had expired at the given time. A zero expiry never expires.
func (p *Pin) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

type ZoneState int

const (
	ZoneOutside ZoneState = iota
	ZoneInside
	ZoneInteracted
)

func (s ZoneState) String() string {
	switch s {
	case ZoneInside:
		return "Inside"
	case ZoneInteracted:
		return "Interacted"
	default:
		return "Outside"
	}
}

// ZoneMembership records where the user stands relative to one pin's interaction zone.
type ZoneMembership struct {
	PinID string
	State ZoneState
}

type Rating int

const (
	RatingNone Rating = iota
	RatingGood
	RatingBad
)

var RatingVals = map[string]Rating{
	"none": RatingNone,
	"good": RatingGood,
	"bad":  RatingBad,
}

func (r Rating) String() string {
	switch r {
	case RatingGood:
		return "good"
	case RatingBad:
		return "bad"
	default:
		return "none"
	}
}

// NotificationRecord is the persisted spaced-repetition state of one pin.
type NotificationRecord struct {
	PinID          string    `json:"pinId"`
	LastNotifiedAt time.Time `json:"lastNotifiedAt"`
	LastRating     Rating    `json:"lastRating"`
	NextEligibleAt time.Time `json:"nextEligibleAt"`
}

// ExploredCircle is one entry of the append-only explored-area log.
type ExploredCircle struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
	PlaceName    string  `json:"placeName,omitempty"`
}

func (c *ExploredCircle) Location() Location {
	return Location{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Cluster groups visually coincident pins. It is recomputed on every render pass.
type Cluster struct {
	Location
	Members []Pin `json:"members"`
}

// Count is the badge count shown on the map.
func (c *Cluster) Count() int {
	return len(c.Members)
}

// MarshalJSON adds the badge count to the wire shape.
func (c Cluster) MarshalJSON() ([]byte, error) {
	type cluster Cluster
	return json.Marshal(struct {
		cluster
		Count int `json:"count"`
	}{cluster(c), c.Count()})
}

// Label is a deduplicated place name anchored at a hex cell center.
type Label struct {
	Location
	Cell    string  `json:"cell"`
	Name    string  `json:"name"`
	Opacity float64 `json:"opacity"`
}

// Dispatch is one step of a notification plan. Delay is relative to the start of the plan.
type Dispatch struct {
	Pin       Pin
	Delay     time.Duration
	PlaySound bool
}

// Plan is the ordered list of notifications produced by one discovery cycle.
type Plan struct {
	BatchID string
	Items   []Dispatch
}

func (p *Plan) Empty() bool {
	return p == nil || len(p.Items) == 0
}
