package tracer

import (
	"strings"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
	"tracesim/pkg/topology"
	"tracesim/pkg/version"
)

// PathParams are the caller-supplied identifiers of a route trace. Field
// errors are reported with the query parameter names.
type PathParams struct {
	SourceIP      string `json:"source_ip" form:"source_ip"`
	DestinationIP string `json:"destination_ip" form:"destination_ip"`
	SourceDG      string `json:"source_dg" form:"source_dg"`
	DestinationDG string `json:"destination_dg" form:"destination_dg"`
	VRF           string `json:"vrf" form:"vrf"`
}

func (p PathParams) normalized() PathParams {
	return PathParams{
		SourceIP:      strings.TrimSpace(p.SourceIP),
		DestinationIP: strings.TrimSpace(p.DestinationIP),
		SourceDG:      strings.TrimSpace(p.SourceDG),
		DestinationDG: strings.TrimSpace(p.DestinationDG),
		VRF:           strings.TrimSpace(p.VRF),
	}
}

// gatewayPairs reports whether both endpoints were given as their own gateways.
func (p PathParams) gatewayPairs() bool {
	return p.SourceIP != "" && p.DestinationIP != "" &&
		p.SourceIP == p.SourceDG && p.DestinationIP == p.DestinationDG
}

// Classify derives the trace type. Gateway pairs with a VRF are a direct
// trace; gateway pairs without one are rejected. Everything else is a combined
// trace and needs all four identifiers.
func (p PathParams) Classify() (model.TraceType, error) {
	p = p.normalized()
	if p.gatewayPairs() {
		if p.VRF == "" {
			return "", faults.InvalidRequest("vrf", "field required for direct trace")
		}
		return model.TraceDirect, nil
	}
	for _, f := range []struct{ name, value string }{
		{"source_ip", p.SourceIP},
		{"destination_ip", p.DestinationIP},
		{"source_dg", p.SourceDG},
		{"destination_dg", p.DestinationDG},
	} {
		if f.value == "" {
			return "", faults.Missing(f.name)
		}
	}
	return model.TraceCombined, nil
}

// request maps classified params onto the generator's boundaries. Both kinds
// run gateway to gateway; combined traces annotate toward the endpoint.
func (p PathParams) request(kind model.TraceType) topology.PathRequest {
	req := topology.PathRequest{
		Type:        kind,
		Entry:       p.SourceDG,
		Exit:        p.DestinationDG,
		VRF:         p.VRF,
		Destination: p.DestinationDG,
	}
	if kind == model.TraceCombined {
		req.Destination = p.DestinationIP
	}
	return req
}

// endpoints returns the logical source and destination stored in history.
func (p PathParams) endpoints(kind model.TraceType) (string, string) {
	if kind == model.TraceDirect {
		return p.SourceDG, p.DestinationDG
	}
	return p.SourceIP, p.DestinationIP
}

// inputContext is the request snapshot serialized into a history entry.
type inputContext struct {
	TraceEngine        string `json:"trace_engine"`
	TraceType          string `json:"trace_type"`
	SourceIP           string `json:"input_source_ip,omitempty"`
	DestinationIP      string `json:"input_destination_ip,omitempty"`
	SourceDG           string `json:"input_source_dg,omitempty"`
	DestinationDG      string `json:"input_destination_dg,omitempty"`
	SourceGateway      string `json:"input_source_gateway,omitempty"`
	DestinationGateway string `json:"input_destination_gateway,omitempty"`
	IP                 string `json:"input_ip,omitempty"`
	Gateway            string `json:"input_dg,omitempty"`
	VRF                string `json:"input_vrf,omitempty"`
}

func (p PathParams) context(kind model.TraceType) inputContext {
	ctx := inputContext{TraceEngine: version.Engine(), TraceType: string(kind), VRF: p.VRF}
	if kind == model.TraceDirect {
		ctx.SourceGateway = p.SourceDG
		ctx.DestinationGateway = p.DestinationDG
		return ctx
	}
	ctx.SourceIP = p.SourceIP
	ctx.DestinationIP = p.DestinationIP
	ctx.SourceDG = p.SourceDG
	ctx.DestinationDG = p.DestinationDG
	return ctx
}

func linkLayerContext(address, gateway string) inputContext {
	return inputContext{
		TraceEngine: version.Engine(),
		TraceType:   string(model.TraceMAC),
		IP:          address,
		Gateway:     gateway,
	}
}
