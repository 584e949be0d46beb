package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewInstancesDoNotCollide(t *testing.T) {
	a := New()
	b := New()
	a.ObserveTrace("combined", "ok", 7)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.TracesTotal.WithLabelValues("combined", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TracesTotal.WithLabelValues("combined", "ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveTrace("mac", "ok", 2) })
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/routes/:id/dot", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes/12/dot", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/routes/:id/dot", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "tracesim_http_requests_total")
}

func TestLedgerHook(t *testing.T) {
	m := New()
	hook := m.LedgerHook()
	hook(3, false)
	hook(3, true)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LedgerSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evictions))
}
