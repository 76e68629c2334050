// Package client talks to the pin backend: it discovers nearby pins and reports pass-bys.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	md "wuyrush.io/serendipity/models"
)

const (
	headerDeviceID = "X-Device-ID"
	headerAuthType = "X-Auth-Type"
	authTypeDevice = "device"
)

type Config struct {
	// Addr is the backend base address, e.g. http://localhost:8000
	Addr     string
	DeviceID string
	// RadiusMeters is sent along with discovery queries; zero leaves the backend default
	RadiusMeters float64
	RT           http.RoundTripper
	// fields below are optional
	RequestTimeout time.Duration
}

// Client implements scheduler.Discoverer over the backend HTTP API.
type Client struct {
	C        *http.Client
	addr     string
	deviceID string
	radius   float64
}

func New(cfg *Config) *Client {
	c := &http.Client{
		Transport: cfg.RT,
		Timeout:   cfg.RequestTimeout,
	}
	return &Client{
		C:        c,
		addr:     cfg.Addr,
		deviceID: cfg.DeviceID,
		radius:   cfg.RadiusMeters,
	}
}

// wire shape of a discovered pin
type pinResp struct {
	ID             json.Number `json:"id"`
	Content        string      `json:"content"`
	Latitude       float64     `json:"latitude"`
	Longitude      float64     `json:"longitude"`
	DistanceMeters float64     `json:"distance_meters"`
	Likes          int         `json:"likes"`
	Dislikes       int         `json:"dislikes"`
	Reports        int         `json:"reports"`
	PassesBy       int         `json:"passes_by"`
	IsSuppressed   bool        `json:"is_suppressed"`
	IsCommunity    bool        `json:"is_community"`
	ExpiresAt      wireTime    `json:"expires_at"`
}

// the backend sends naive timestamps with no zone suffix, in UTC
const naiveTimeLayout = "2006-01-02T15:04:05.999999999"

// wireTime decodes RFC 3339 timestamps as well as the zoneless ones the backend emits.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}
	s, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("timestamp %s is not a JSON string", b)
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = ts
		return nil
	}
	ts, err := time.ParseInLocation(naiveTimeLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("error parsing timestamp %q: %w", s, err)
	}
	t.Time = ts
	return nil
}

func (p *pinResp) toPin() md.Pin {
	return md.Pin{
		ID:             p.ID.String(),
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		Content:        p.Content,
		DistanceMeters: p.DistanceMeters,
		LikeCount:      p.Likes,
		DislikeCount:   p.Dislikes,
		ReportCount:    p.Reports,
		PassByCount:    p.PassesBy,
		IsCommunity:    p.IsCommunity,
		IsSuppressed:   p.IsSuppressed,
		ExpiresAt:      p.ExpiresAt.Time,
	}
}

type discoverResp struct {
	Pins    []pinResp `json:"pins"`
	Count   int       `json:"count"`
	Message string    `json:"message"`
}

// NearbyPins asks the backend for the pins around (lat, lon), in the order the backend returns them.
// Any failure to get a usable answer is a NetworkFailure.
func (c *Client) NearbyPins(ctx context.Context, lat, lon float64) ([]md.Pin, error) {
	clog := logging.WithFuncName()
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	if c.radius > 0 {
		q.Set("radius", strconv.Itoa(int(c.radius)))
	}
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/discover?%s", c.addr, q.Encode()))
	if err != nil {
		return nil, err
	}
	resp, rerr := c.C.Do(req)
	if rerr != nil {
		clog.WithError(rerr).Warn("error getting response from backend")
		return nil, pe.NewNetworkFailure("error getting response from backend when discovering pins").WithCause(rerr)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		berr := toBackendErr(resp)
		clog.WithError(berr).Warn("failed discovering pins")
		return nil, pe.NewNetworkFailure("failed to discover pins").WithCause(berr)
	}
	dr := &discoverResp{}
	if derr := unmarshalJSON(resp.Body, dr); derr != nil {
		return nil, pe.NewNetworkFailure("error unmarshalling discovery response").WithCause(derr)
	}
	pins := make([]md.Pin, 0, len(dr.Pins))
	for i := range dr.Pins {
		pins = append(pins, dr.Pins[i].toPin())
	}
	clog.WithField("count", len(pins)).Debug("discovered pins")
	return pins, nil
}

// ReportPassBy records a silent pass-by of the pin on the backend.
func (c *Client) ReportPassBy(ctx context.Context, pinID string) error {
	clog := logging.WithFuncName().WithField(cst.LogFieldPinID, pinID)
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("%s/pin/%s/passby", c.addr, url.PathEscape(pinID)))
	if err != nil {
		return err
	}
	resp, rerr := c.C.Do(req)
	if rerr != nil {
		clog.WithError(rerr).Warn("error getting response from backend")
		return pe.NewNetworkFailure("error getting response from backend when reporting pass-by").WithCause(rerr)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		berr := toBackendErr(resp)
		clog.WithError(berr).Warn("failed reporting pass-by")
		return pe.NewNetworkFailure("failed to report pass-by").WithCause(berr)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, u string) (*http.Request, *pe.Err) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, pe.NewServiceFailure("error creating request to backend").WithCause(err)
	}
	req.Header.Set(headerDeviceID, c.deviceID)
	req.Header.Set(headerAuthType, authTypeDevice)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) Close() *pe.Err {
	// release the connections held by C
	c.C.CloseIdleConnections()
	return nil
}

// BackendErr is the error body the backend answers failed requests with.
type BackendErr struct {
	Status int    `json:"-"`
	Detail string `json:"detail,omitempty"`
}

func (e *BackendErr) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("status: %d", e.Status)
	}
	return fmt.Sprintf("status: %d detail: %s", e.Status, e.Detail)
}

func toBackendErr(resp *http.Response) *BackendErr {
	e := &BackendErr{}
	if err := unmarshalJSON(resp.Body, e); err != nil {
		log.WithError(err).Debug("backend error body is not JSON")
	}
	e.Status = resp.StatusCode
	return e
}

// helper to unmarshal stream data from r into value pointed by ptr
func unmarshalJSON(r io.Reader, ptr interface{}) error {
	d := json.NewDecoder(r)
	return d.Decode(ptr)
}
