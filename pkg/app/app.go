// Package app assembles the simulator's collaborators from configuration so
// the HTTP server, the lambda entrypoint and the CLI share one wiring.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tracesim/pkg/api"
	"tracesim/pkg/api/middleware"
	"tracesim/pkg/auth"
	"tracesim/pkg/config"
	"tracesim/pkg/db"
	"tracesim/pkg/logging"
	"tracesim/pkg/metrics"
	"tracesim/pkg/store"
	"tracesim/pkg/topology"
	"tracesim/pkg/tracer"
)

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Ledger    *store.Ledger
	Audit     store.AuditLog
	Directory auth.Directory
	Issuer    *auth.Issuer
	Tracer    *tracer.Service
	// DB is the user table pool when Auth.Backend is mysql.
	DB *gorm.DB
}

// Logger builds the process logger from cfg.
func Logger(cfg config.LogConfig) (*zap.Logger, error) {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Level
	lc.Development = cfg.Development
	return logging.New(lc)
}

// Build wires every collaborator. Close releases what it opened.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	a.Ledger = store.NewLedger(cfg.Ledger.Capacity,
		store.WithLogger(logger.Named("ledger")),
		store.WithSizeHook(a.Metrics.LedgerHook()),
	)

	if cfg.Audit.SQLitePath != "" {
		sqlite, err := store.OpenSQLiteAudit(ctx, cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open audit journal: %w", err)
		}
		a.Audit = sqlite
		logger.Info("audit journal on sqlite", zap.String("path", cfg.Audit.SQLitePath))
	} else {
		a.Audit = store.NewMemoryAudit(cfg.Audit.Capacity)
	}

	dir, gdb, err := directory(ctx, cfg, logger)
	if err != nil {
		_ = a.Audit.Close()
		return nil, err
	}
	a.Directory, a.DB = dir, gdb
	a.Issuer = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	tables := topology.DefaultTables()
	tables.Failure = cfg.Trace.FailureRate
	a.Tracer = tracer.New(topology.NewGenerator(tables), a.Ledger,
		tracer.WithAudit(a.Audit),
		tracer.WithMetrics(a.Metrics),
		tracer.WithLogger(logger.Named("tracer")),
		tracer.WithDelays(tracer.DelaysFrom(cfg.Trace)),
	)
	return a, nil
}

// directory returns the user directory and, for mysql, the pool behind it.
func directory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.Directory, *gorm.DB, error) {
	switch cfg.Auth.Backend {
	case "mysql":
		gdb, err := db.Init(cfg.MySQL)
		if err != nil {
			return nil, nil, fmt.Errorf("init mysql: %w", err)
		}
		dir := &auth.GormDirectory{DB: gdb}
		if err := dir.EnsureUser(ctx, cfg.Auth.Username, cfg.Auth.Password); err != nil {
			_ = db.Close(gdb)
			return nil, nil, fmt.Errorf("seed user: %w", err)
		}
		logger.Info("user directory on mysql", zap.String("db", cfg.MySQL.DB))
		return dir, gdb, nil
	default:
		dir := auth.NewMemoryDirectory()
		if _, err := dir.Add(cfg.Auth.Username, cfg.Auth.Password, true); err != nil {
			return nil, nil, fmt.Errorf("seed user: %w", err)
		}
		return dir, nil, nil
	}
}

// Deps returns the HTTP surface's collaborators.
func (a *App) Deps() api.Deps {
	d := api.Deps{
		Tracer:       a.Tracer,
		Issuer:       a.Issuer,
		Directory:    a.Directory,
		Audit:        a.Audit,
		Metrics:      a.Metrics,
		Logger:       a.Logger.Named("api"),
		CORS:         middleware.DefaultCORSConfig(),
		LoginDelay:   a.Config.Auth.LoginDelay,
		StreamPacing: a.Config.Trace.StreamHopPacing,
	}
	if len(a.Config.CORS.AllowOrigins) > 0 {
		d.CORS.AllowOrigins = a.Config.CORS.AllowOrigins
	}
	if rl := a.Config.RateLimit; rl.Enabled {
		d.RateLimit = &middleware.RateLimitConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
			IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
		}
	}
	return d
}

// Close releases the audit journal and the mysql pool.
func (a *App) Close() error {
	var errs []error
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	errs = append(errs, db.Close(a.DB))
	return errors.Join(errs...)
}
