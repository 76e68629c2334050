// Package presenter serves the engine over HTTP for a local map and notification UI.
package presenter

import (
	"github.com/gin-gonic/gin"

	mw "wuyrush.io/serendipity/common/middleware"
	"wuyrush.io/serendipity/engine"
	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/metrics"
	md "wuyrush.io/serendipity/models"
)

const maxReqBodyBytes = 1 << 16

// Engine is the part of *engine.Engine the presenter drives.
type Engine interface {
	Push(s md.Sample) *pe.Err
	Interact(pinID string) *pe.Err
	Rate(pinID string, r md.Rating) *pe.Err
	Snapshot() (*engine.MapView, *pe.Err)
	Explored() ([]md.ExploredCircle, *pe.Err)
}

type Server struct {
	E      Engine
	Feed   *Feed
	Router *gin.Engine
}

func New(e Engine, f *Feed) *Server {
	s := &Server{E: e, Feed: f}
	s.SetupRoutes()
	return s
}

func (s *Server) SetupRoutes() {
	rt := gin.New()
	rt.Use(mw.PanicRecoverer(), mw.RequestLogger(), mw.BodyLimiter(maxReqBodyBytes))

	rt.POST("/location", s.HandleTaskPushLocation())
	rt.POST("/pins/:id/interaction", s.HandleTaskInteract())
	rt.POST("/pins/:id/rating", s.HandleTaskRate())
	rt.GET("/map", s.HandleTaskGetMap())
	rt.GET("/explored", s.HandleTaskGetExplored())
	rt.GET("/events", s.HandleTaskListEvents())
	rt.GET("/metrics", gin.WrapH(metrics.Handler()))
	rt.GET("/healthz", s.HandleHealth())
	s.Router = rt
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router.Run(addr)
}
