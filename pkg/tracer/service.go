// Package tracer runs trace requests end to end: classification, simulated
// latency, path synthesis and history recording.
package tracer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"tracesim/pkg/config"
	"tracesim/pkg/faults"
	"tracesim/pkg/gateway"
	"tracesim/pkg/metrics"
	"tracesim/pkg/model"
	"tracesim/pkg/store"
	"tracesim/pkg/topology"
)

// Delays are the simulated durations of each operation: base plus a uniform
// jitter in [0, jitter).
type Delays struct {
	Route, RouteJitter     time.Duration
	MAC, MACJitter         time.Duration
	Gateway, GatewayJitter time.Duration
}

// DelaysFrom copies the latency settings out of cfg.
func DelaysFrom(cfg config.TraceConfig) Delays {
	return Delays{
		Route: cfg.RouteDelay, RouteJitter: cfg.RouteJitter,
		MAC: cfg.MACDelay, MACJitter: cfg.MACJitter,
		Gateway: cfg.GatewayDelay, GatewayJitter: cfg.GatewayJitter,
	}
}

// Service is safe for concurrent use. The only shared state is the ledger.
type Service struct {
	gen     *topology.Generator
	ledger  *store.Ledger
	audit   store.AuditLog
	metrics *metrics.Metrics
	logger  *zap.Logger

	delays    Delays
	sleep     func(time.Duration)
	newSource func() topology.Source
}

type Option func(*Service)

func WithAudit(a store.AuditLog) Option { return func(s *Service) { s.audit = a } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

func WithDelays(d Delays) Option { return func(s *Service) { s.delays = d } }

// WithSleeper replaces time.Sleep for the simulated latency.
func WithSleeper(fn func(time.Duration)) Option { return func(s *Service) { s.sleep = fn } }

// WithSourceFactory supplies the per-request randomness.
func WithSourceFactory(fn func() topology.Source) Option {
	return func(s *Service) { s.newSource = fn }
}

func New(gen *topology.Generator, ledger *store.Ledger, opts ...Option) *Service {
	s := &Service{
		gen:       gen,
		ledger:    ledger,
		logger:    zap.NewNop(),
		sleep:     time.Sleep,
		newSource: topology.NewSource,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ledger exposes the history ledger backing the service.
func (s *Service) Ledger() *store.Ledger { return s.ledger }

// TracePath classifies params, synthesizes the path and records it. Once the
// simulated latency starts the trace runs to completion regardless of ctx.
func (s *Service) TracePath(ctx context.Context, params PathParams, caller model.Identity) ([]model.Hop, error) {
	if caller.Anonymous() {
		return nil, faults.AuthFailure("missing caller identity")
	}
	params = params.normalized()
	kind, err := params.Classify()
	if err != nil {
		s.fail(ctx, caller, "route", params.SourceIP+" -> "+params.DestinationIP, err)
		return nil, err
	}

	src := s.newSource()
	s.pause(src, s.delays.Route, s.delays.RouteJitter)

	hops, err := s.gen.Synthesize(src, params.request(kind))
	if err != nil {
		s.fail(ctx, caller, string(kind), params.SourceDG+" -> "+params.DestinationDG, err)
		return nil, fmt.Errorf("route trace: %w", err)
	}

	source, destination := params.endpoints(kind)
	id := s.ledger.Record(store.RecordRequest{
		Type:         kind,
		Source:       source,
		Destination:  destination,
		InputContext: params.context(kind),
		Owner:        caller,
		Hops:         hops,
	})
	s.succeed(ctx, caller, kind, source, destination, id, len(hops))
	return hops, nil
}

// TraceLinkLayer synthesizes the link-layer path between an endpoint and its
// gateway and records it as a mac trace.
func (s *Service) TraceLinkLayer(ctx context.Context, address, gw string, caller model.Identity) ([]model.Hop, error) {
	if caller.Anonymous() {
		return nil, faults.AuthFailure("missing caller identity")
	}
	address, gw = strings.TrimSpace(address), strings.TrimSpace(gw)
	if address == "" {
		return nil, faults.Missing("ip")
	}
	if gw == "" {
		return nil, faults.Missing("dg")
	}

	src := s.newSource()
	s.pause(src, s.delays.MAC, s.delays.MACJitter)

	hops, err := s.gen.Synthesize(src, topology.PathRequest{Type: model.TraceMAC, Entry: address, Exit: gw})
	if err != nil {
		s.fail(ctx, caller, string(model.TraceMAC), address+" -> "+gw, err)
		return nil, fmt.Errorf("mac trace: %w", err)
	}

	id := s.ledger.Record(store.RecordRequest{
		Type:         model.TraceMAC,
		Source:       address,
		Destination:  gw,
		InputContext: linkLayerContext(address, gw),
		Owner:        caller,
		Hops:         hops,
	})
	s.succeed(ctx, caller, model.TraceMAC, address, gw, id, len(hops))
	return hops, nil
}

// ResolveGateway returns the guessed default gateway for address.
func (s *Service) ResolveGateway(address string) string {
	s.pause(s.newSource(), s.delays.Gateway, s.delays.GatewayJitter)
	return gateway.Resolve(address)
}

// ListMine returns the caller's own history, newest first.
func (s *Service) ListMine(caller model.Identity) ([]model.HistoryEntry, error) {
	if caller.Anonymous() {
		return nil, faults.AuthFailure("missing caller identity")
	}
	return s.ledger.ListForOwner(caller.Username()), nil
}

// ListAll returns every retained entry. Access control is the caller's concern.
func (s *Service) ListAll(caller model.Identity) ([]model.HistoryEntry, error) {
	if caller.Anonymous() {
		return nil, faults.AuthFailure("missing caller identity")
	}
	return s.ledger.ListAll(), nil
}

// Lookup returns one of the caller's entries together with its decoded hops.
func (s *Service) Lookup(caller model.Identity, id int64) (model.HistoryEntry, []model.Hop, error) {
	entries, err := s.ListMine(caller)
	if err != nil {
		return model.HistoryEntry{}, nil, err
	}
	for _, e := range entries {
		if e.ID != id {
			continue
		}
		hops, err := DecodeRoute(e)
		return e, hops, err
	}
	return model.HistoryEntry{}, nil, faults.NotFound(fmt.Sprintf("route %d", id))
}

// DecodeRoute parses the serialized hop list of e.
func DecodeRoute(e model.HistoryEntry) ([]model.Hop, error) {
	if e.Route == "" {
		return nil, fmt.Errorf("route %d has no stored hops", e.ID)
	}
	var hops []model.Hop
	if err := sonic.UnmarshalString(e.Route, &hops); err != nil {
		return nil, fmt.Errorf("decode route %d: %w", e.ID, err)
	}
	return hops, nil
}

func (s *Service) pause(src topology.Source, base, jitter time.Duration) {
	d := base
	if jitter > 0 {
		d += time.Duration(src.Float64() * float64(jitter))
	}
	if d > 0 {
		s.sleep(d)
	}
}

func (s *Service) succeed(ctx context.Context, caller model.Identity, kind model.TraceType, source, destination string, id int64, hops int) {
	s.metrics.ObserveTrace(string(kind), "ok", hops)
	s.logger.Info("trace completed",
		zap.Int64("id", id),
		zap.String("trace_type", string(kind)),
		zap.String("user", caller.Username()),
		zap.Int("hops", hops),
	)
	s.appendAudit(ctx, model.AuditEntry{
		Actor:  caller.Username(),
		Action: model.AuditTrace,
		Target: source + " -> " + destination,
		Detail: fmt.Sprintf("%s id=%d hops=%d", kind, id, hops),
	})
}

func (s *Service) fail(ctx context.Context, caller model.Identity, kind, target string, err error) {
	outcome := "error"
	switch {
	case faults.IsInvalid(err):
		outcome = "invalid"
	case faults.Retryable(err):
		outcome = "simulated_failure"
	}
	s.metrics.ObserveTrace(kind, outcome, 0)
	s.logger.Warn("trace failed",
		zap.String("trace_type", kind),
		zap.String("user", caller.Username()),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
	s.appendAudit(ctx, model.AuditEntry{
		Actor:  caller.Username(),
		Action: model.AuditTraceFailed,
		Target: target,
		Detail: err.Error(),
	})
}

func (s *Service) appendAudit(ctx context.Context, entry model.AuditEntry) {
	if s.audit == nil {
		return
	}
	entry.Timestamp = time.Now().UTC()
	if err := s.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("audit append failed", zap.Error(err))
	}
}
