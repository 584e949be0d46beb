package api

import (
	"time"

	"go.uber.org/zap"

	"tracesim/pkg/api/middleware"
	"tracesim/pkg/auth"
	"tracesim/pkg/metrics"
	"tracesim/pkg/query"
	"tracesim/pkg/store"
	"tracesim/pkg/tracer"
)

// Deps are the collaborators the HTTP surface is built from. Tracer, Issuer
// and Directory are required.
type Deps struct {
	Tracer    *tracer.Service
	Issuer    *auth.Issuer
	Directory auth.Directory
	Audit     store.AuditLog
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Filters   *query.Compiler

	CORS middleware.CORSConfig
	// RateLimit is disabled when nil.
	RateLimit *middleware.RateLimitConfig

	// LoginDelay simulates the credential check round trip.
	LoginDelay time.Duration
	// StreamPacing spaces hops sent over /ws/trace.
	StreamPacing time.Duration
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Filters == nil {
		d.Filters = query.NewCompiler(64)
	}
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
	if len(d.CORS.AllowOrigins) == 0 {
		d.CORS = middleware.DefaultCORSConfig()
	}
}
