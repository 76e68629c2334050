package presenter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	md "wuyrush.io/serendipity/models"
)

type locationReq struct {
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	AccuracyMeters *float64  `json:"accuracyMeters"`
	Timestamp      time.Time `json:"timestamp"`
}

func (r *locationReq) sample() (md.Sample, *pe.Err) {
	if r.Latitude == nil || r.Longitude == nil {
		return md.Sample{}, pe.NewBadInput("latitude and longitude are required")
	}
	if *r.Latitude < -90 || *r.Latitude > 90 {
		return md.Sample{}, pe.NewBadInput(fmt.Sprintf("latitude %f out of range [-90, 90]", *r.Latitude))
	}
	if *r.Longitude < -180 || *r.Longitude > 180 {
		return md.Sample{}, pe.NewBadInput(fmt.Sprintf("longitude %f out of range [-180, 180]", *r.Longitude))
	}
	if r.AccuracyMeters != nil && *r.AccuracyMeters < 0 {
		return md.Sample{}, pe.NewBadInput("accuracy must not be negative")
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return md.Sample{
		Location:       md.Location{Latitude: *r.Latitude, Longitude: *r.Longitude},
		AccuracyMeters: r.AccuracyMeters,
		Timestamp:      ts,
	}, nil
}

type ratingReq struct {
	Rating string `json:"rating"`
}

func abortWithErr(c *gin.Context, err *pe.Err) {
	c.AbortWithStatusJSON(err.StatusCode(), gin.H{"error": err.Error(), "code": err.Code})
}

func (s *Server) HandleTaskPushLocation() gin.HandlerFunc {
	clog := logging.WithFuncName().WithField("httpMethod", http.MethodPost)
	return func(c *gin.Context) {
		req := &locationReq{}
		if err := c.ShouldBindJSON(req); err != nil {
			clog.WithError(err).Debug("error parsing location")
			abortWithErr(c, pe.NewBadInput("error parsing location").WithCause(err))
			return
		}
		smp, err := req.sample()
		if err != nil {
			abortWithErr(c, err)
			return
		}
		if err := s.E.Push(smp); err != nil {
			clog.Errorf("error pushing location: %s", err.Trace())
			abortWithErr(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func (s *Server) HandleTaskInteract() gin.HandlerFunc {
	clog := logging.WithFuncName().WithField("httpMethod", http.MethodPost)
	return func(c *gin.Context) {
		pinID := c.Param("id")
		if err := s.E.Interact(pinID); err != nil {
			clog.WithField(cst.LogFieldPinID, pinID).Errorf("error recording interaction: %s", err.Trace())
			abortWithErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) HandleTaskRate() gin.HandlerFunc {
	clog := logging.WithFuncName().WithField("httpMethod", http.MethodPost)
	return func(c *gin.Context) {
		pinID := c.Param("id")
		req := &ratingReq{}
		if err := c.ShouldBindJSON(req); err != nil {
			abortWithErr(c, pe.NewBadInput("error parsing rating").WithCause(err))
			return
		}
		r, ok := md.RatingVals[req.Rating]
		if !ok || r == md.RatingNone {
			abortWithErr(c, pe.NewBadInput(fmt.Sprintf("rating must be good or bad, got %q", req.Rating)))
			return
		}
		if err := s.E.Rate(pinID, r); err != nil {
			clog.WithField(cst.LogFieldPinID, pinID).Errorf("error rating pin: %s", err.Trace())
			abortWithErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) HandleTaskGetMap() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := s.E.Snapshot()
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func (s *Server) HandleTaskGetExplored() gin.HandlerFunc {
	return func(c *gin.Context) {
		cs, err := s.E.Explored()
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"circles": cs, "count": len(cs)})
	}
}

// HandleTaskListEvents lists feed events newer than the optional RFC 3339 "since" query parameter.
func (s *Server) HandleTaskListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		var since time.Time
		if q := c.Query("since"); q != "" {
			t, err := time.Parse(time.RFC3339Nano, q)
			if err != nil {
				abortWithErr(c, pe.NewBadInput("since must be an RFC 3339 timestamp").WithCause(err))
				return
			}
			since = t
		}
		c.JSON(http.StatusOK, gin.H{"events": s.Feed.Since(since)})
	}
}

func (s *Server) HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
