// Package api exposes the trace simulator over HTTP for the topology frontend.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tracesim/pkg/api/middleware"
	"tracesim/pkg/metrics"
)

// Server owns the gin engine and its handlers.
type Server struct {
	deps   Deps
	stream *StreamHub
	router *gin.Engine
}

func NewServer(deps Deps) *Server {
	deps.defaults()
	s := &Server{deps: deps}
	s.stream = NewStreamHub(s.deps.Tracer, s.deps.Logger, s.deps.Metrics, s.deps.StreamPacing, s.deps.Sleep, s.deps.CORS.AllowOrigins)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(s.deps.Logger))
	if s.deps.Metrics != nil {
		router.Use(metrics.Middleware(s.deps.Metrics))
	}
	router.Use(middleware.CORS(s.deps.CORS))
	if s.deps.RateLimit != nil {
		router.Use(middleware.RateLimit(*s.deps.RateLimit))
	}
	s.router = router
	s.RegisterRoutes(router)
	return s
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

// RegisterRoutes wires the handlers on r.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/", s.handleRoot)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	r.POST("/verify-device-auth", s.handleLogin)
	r.GET("/get-default-gateway", s.handleGateway)

	authed := r.Group("/", s.AuthMiddleware())
	authed.GET("/get-mac-trace", s.handleMACTrace)
	authed.GET("/get-route-trace", s.handleRouteTrace)
	authed.POST("/get-user-routes", s.handleUserRoutes)
	authed.POST("/get-all-routes", s.handleAllRoutes)
	authed.GET("/routes/:id/dot", s.handleRouteDOT)
	authed.GET("/audit", s.handleAudit)
	authed.GET("/ws/trace", s.stream.HandleTrace)
}
