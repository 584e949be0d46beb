package topology

import (
	"fmt"
	"strconv"
	"strings"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
)

// PathRequest describes one path to synthesize.
type PathRequest struct {
	Type  model.TraceType
	Entry string // address pinned to hop 1
	Exit  string // address pinned to the terminal hop
	VRF   string
	// Destination is the logical destination used for annotations. Defaults to Exit.
	Destination string
}

// Generator synthesizes hop sequences. It holds no mutable state and is safe
// for concurrent use; all randomness comes from the Source passed per call.
type Generator struct {
	tables Tables
}

func NewGenerator(t Tables) *Generator {
	return &Generator{tables: t}
}

// Synthesize produces the ordered hop sequence for req.
func (g *Generator) Synthesize(src Source, req PathRequest) ([]model.Hop, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if src.Float64() < g.tables.Failure {
		return nil, faults.ErrSimulated
	}
	if req.Type == model.TraceMAC {
		return g.linkLayer(src, req), nil
	}
	return g.ipPath(src, req), nil
}

func validate(req PathRequest) error {
	if !req.Type.Valid() {
		return faults.InvalidRequest("trace_type", fmt.Sprintf("unknown trace type %q", req.Type))
	}
	if req.Entry == "" {
		return faults.Missing("entry")
	}
	if req.Exit == "" {
		return faults.Missing("exit")
	}
	if req.Type == model.TraceDirect && req.VRF == "" {
		return faults.InvalidRequest("vrf", "field required for direct trace")
	}
	return nil
}

func (g *Generator) ipPath(src Source, req PathRequest) []model.Hop {
	n := g.tables.IPHops.draw(src)
	if n < 2 {
		n = 2
	}
	dest := req.Destination
	if dest == "" {
		dest = req.Exit
	}

	addrs := make([]string, n)
	roles := make([]model.Role, n)
	addrs[0], roles[0] = req.Entry, model.RoleGateway
	addrs[n-1] = req.Exit
	roles[n-1] = model.RoleDestination
	if req.Type == model.TraceDirect {
		roles[n-1] = model.RoleGateway
	}
	prefix := randomPrefix(src)
	for i := 1; i < n-1; i++ {
		if src.Float64() < g.tables.SubnetRotation {
			prefix = randomPrefix(src)
		}
		addrs[i] = fmt.Sprintf("%s.%d.%d", prefix, 1+src.IntN(5), 2+src.IntN(253))
		roles[i] = g.tables.pickRole(src)
	}

	hops := make([]model.Hop, n)
	passedFW := false
	vrf := req.VRF
	for i := 0; i < n; i++ {
		terminal := i == n-1
		if req.Type == model.TraceCombined && i > 0 && !terminal && src.Float64() < g.tables.VRFChange {
			if src.Float64() < g.tables.VRFClear {
				vrf = ""
			} else {
				vrf = "VRF-" + string(rune('A'+src.IntN(5)))
			}
		}
		h := model.Hop{
			Sequence:       i + 1,
			Address:        addrs[i],
			Role:           roles[i],
			VRF:            vrf,
			PassedFirewall: passedFW,
		}
		switch {
		case i == 0:
			h.Hostname = fmt.Sprintf("start-gw-router-%c.core.net", 'A'+src.IntN(4))
		case terminal && req.Type == model.TraceDirect:
			h.Hostname = fmt.Sprintf("dest-gw-router-%d", 1+src.IntN(5))
		case terminal:
			h.Hostname = "gw-" + strings.ReplaceAll(dest, ".", "-") + ".domain.local"
		default:
			h.Hostname = fmt.Sprintf("%s-%c%d.infra.net", roles[i], 'A'+i%26, 1+src.IntN(10))
		}
		if !terminal {
			next := addrs[i+1]
			h.NextHopAddress = &next
			h.DestinationNetwork = dest + "/32"
		}
		if terminal && req.Type == model.TraceCombined {
			h.DeviceID = "ENDPOINT_DEVICE"
		} else {
			h.DeviceID = "NODE" + strconv.Itoa(10000+src.IntN(90000))
		}
		if src.Float64() < g.tables.MPLSLabel {
			h.MPLSLabel = strconv.Itoa(10000 + src.IntN(40001))
		}
		if h.Role.Switching() {
			h.LinkLayerAddress = randomMAC(src)
		}
		hops[i] = h
		if h.Role == model.RoleFirewall {
			passedFW = true
		}
	}
	return hops
}

func (g *Generator) linkLayer(src Source, req PathRequest) []model.Hop {
	devices := g.tables.MACHops.draw(src)
	if devices < 1 {
		devices = 1
	}
	n := devices + 1

	addrs := make([]string, n)
	roles := make([]model.Role, n)
	addrs[0], roles[0] = req.Entry, model.RoleSourceEdge
	addrs[n-1], roles[n-1] = req.Exit, model.RoleGateway
	for i := 1; i < n-1; i++ {
		if i%2 == 1 {
			addrs[i], roles[i] = randomMAC(src), model.RoleSwitchL2
			continue
		}
		roles[i] = model.RoleSwitchL3
		if src.IntN(2) == 1 {
			roles[i] = model.RoleTransit
		}
		addrs[i] = randomIP(src, "10")
	}

	hops := make([]model.Hop, n)
	for i := 0; i < n; i++ {
		h := model.Hop{
			Sequence: i + 1,
			Address:  addrs[i],
			Role:     roles[i],
			DeviceID: "DEV" + strconv.Itoa(1000+src.IntN(9000)),
		}
		switch {
		case i == 0:
			h.Hostname = fmt.Sprintf("source-dev-%d", 1+src.IntN(100))
			h.LinkLayerAddress = randomMAC(src)
			h.NextHopInterface = fmt.Sprintf("Gi0/%d", src.IntN(3))
		case i == n-1:
			h.Hostname = "default-gateway-router"
			h.NextHopInterface = fmt.Sprintf("Vlan%d", 10+src.IntN(90))
			h.VRF = randomVRF(src)
		default:
			h.Hostname = fmt.Sprintf("%s-%c%d", roles[i], 'A'+i, 1+src.IntN(5))
			h.LinkLayerAddress = randomMAC(src)
			h.NextHopInterface = fmt.Sprintf("Gi%d/%d", 1+src.IntN(4), src.IntN(48))
			if roles[i] != model.RoleSwitchL2 {
				h.VRF = randomVRF(src)
			}
		}
		if i < n-1 {
			next := addrs[i+1]
			h.NextHopAddress = &next
		}
		hops[i] = h
	}
	return hops
}

func randomPrefix(src Source) string {
	return "10." + strconv.Itoa(1+src.IntN(254))
}

func randomIP(src Source, prefix string) string {
	return fmt.Sprintf("%s.%d.%d.%d", prefix, src.IntN(255), src.IntN(255), 1+src.IntN(254))
}

func randomMAC(src Source) string {
	parts := make([]string, 6)
	for i := range parts {
		parts[i] = fmt.Sprintf("%02X", src.IntN(256))
	}
	return strings.Join(parts, ":")
}

func randomVRF(src Source) string {
	return "VRF-" + string(rune('A'+src.IntN(3)))
}
