// Package geocode names places for the explored area labels.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bluele/gcache"

	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/geo"
	md "wuyrush.io/serendipity/models"
)

// Geocoder resolves a position into a human readable place name. An empty name means the place has no
// name worth showing.
type Geocoder interface {
	PlaceName(ctx context.Context, l md.Location) (string, error)
}

type Config struct {
	// Addr is the base address of a Nominatim compatible reverse geocoding service
	Addr      string
	UserAgent string
	// CacheSize bounds the number of cells whose name is kept in memory
	CacheSize int
	// CellMeters is the circumradius of the cells sharing one cached name
	CellMeters float64
	RT         http.RoundTripper
	// fields below are optional
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		UserAgent:      "serendipity",
		CacheSize:      256,
		CellMeters:     cst.DefaultHexRadiusMeters,
		RequestTimeout: 5 * time.Second,
	}
}

// Nominatim implements Geocoder over the Nominatim reverse API. Names are cached per hex cell, which
// is the granularity labels are deduplicated at anyway.
type Nominatim struct {
	C         *http.Client
	addr      string
	userAgent string
	cellM     float64
	cache     gcache.Cache
}

func NewNominatim(cfg Config) *Nominatim {
	return &Nominatim{
		C:         &http.Client{Transport: cfg.RT, Timeout: cfg.RequestTimeout},
		addr:      cfg.Addr,
		userAgent: cfg.UserAgent,
		cellM:     cfg.CellMeters,
		cache:     gcache.New(cfg.CacheSize).LRU().Build(),
	}
}

type reverseResp struct {
	Name    string            `json:"name"`
	Address map[string]string `json:"address"`
	Error   string            `json:"error"`
}

// address parts from the most to the least specific one worth a map label
var addressKeys = []string{"neighbourhood", "quarter", "suburb", "city_district", "village", "town", "city"}

func (r *reverseResp) placeName() string {
	for _, k := range addressKeys {
		if v := r.Address[k]; v != "" {
			return v
		}
	}
	return r.Name
}

func (g *Nominatim) PlaceName(ctx context.Context, l md.Location) (string, error) {
	key := geo.HexCellOf(l, g.cellM).ID()
	clog := logging.WithFuncName().WithField("cell", key)
	if v, err := g.cache.Get(key); err == nil {
		return v.(string), nil
	} else if err != gcache.KeyNotFoundError {
		clog.WithError(err).Warn("error reading place name cache")
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("zoom", "16")
	q.Set("lat", strconv.FormatFloat(l.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(l.Longitude, 'f', -1, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/reverse?%s", g.addr, q.Encode()), nil)
	if err != nil {
		return "", pe.NewServiceFailure("error creating reverse geocode request").WithCause(err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	resp, err := g.C.Do(req)
	if err != nil {
		clog.WithError(err).Warn("error getting response from geocoder")
		return "", pe.NewNetworkFailure("error getting response from geocoder").WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", pe.NewNetworkFailure(fmt.Sprintf("geocoder answered with status %d", resp.StatusCode))
	}
	rr := &reverseResp{}
	if err := json.NewDecoder(resp.Body).Decode(rr); err != nil {
		return "", pe.NewNetworkFailure("error unmarshalling geocoder response").WithCause(err)
	}
	// nominatim answers unknown places with 200 and an error message; such places stay unnamed
	name := ""
	if rr.Error == "" {
		name = rr.placeName()
	}
	if err := g.cache.Set(key, name); err != nil {
		clog.WithError(err).Warn("error caching place name")
	}
	return name, nil
}
