package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
	"tracesim/pkg/render"
	"tracesim/pkg/tracer"
	"tracesim/pkg/version"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, banner{Message: "tracesim backend is running", Version: version.Build})
}

func (s *Server) handleGateway(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		abortWithError(c, faults.Missing("ip"))
		return
	}
	c.JSON(http.StatusOK, s.deps.Tracer.ResolveGateway(ip))
}

func (s *Server) handleMACTrace(c *gin.Context) {
	hops, err := s.deps.Tracer.TraceLinkLayer(c.Request.Context(), c.Query("ip"), c.Query("dg"), identity(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, hops)
}

func (s *Server) handleRouteTrace(c *gin.Context) {
	var params tracer.PathParams
	if err := c.ShouldBindQuery(&params); err != nil {
		abortWithError(c, faults.InvalidRequest("query", err.Error()))
		return
	}
	hops, err := s.deps.Tracer.TracePath(c.Request.Context(), params, identity(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, hops)
}

func (s *Server) handleUserRoutes(c *gin.Context) {
	entries, err := s.deps.Tracer.ListMine(identity(c))
	s.writeHistory(c, entries, err)
}

func (s *Server) handleAllRoutes(c *gin.Context) {
	entries, err := s.deps.Tracer.ListAll(identity(c))
	s.writeHistory(c, entries, err)
}

// writeHistory applies the optional filter query parameter before responding.
func (s *Server) writeHistory(c *gin.Context, entries []model.HistoryEntry, err error) {
	if err != nil {
		abortWithError(c, err)
		return
	}
	filter, err := s.deps.Filters.Compile(c.Query("filter"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	entries, err = filter.Apply(entries)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleRouteDOT(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, faults.InvalidRequest("id", "must be an integer"))
		return
	}
	_, hops, err := s.deps.Tracer.Lookup(identity(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	dot, err := render.DOT("route_"+c.Param("id"), hops)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(dot))
}

func (s *Server) handleAudit(c *gin.Context) {
	if !identity(c).Admin() {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorBody{Detail: "admin only"})
		return
	}
	if s.deps.Audit == nil {
		c.JSON(http.StatusOK, auditResponse{Entries: []model.AuditEntry{}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		abortWithError(c, faults.InvalidRequest("limit", "must be an integer"))
		return
	}
	entries, err := s.deps.Audit.List(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, auditResponse{Entries: entries})
}
