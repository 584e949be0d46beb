// Package render draws synthesized paths as Graphviz digraphs.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"

	"tracesim/pkg/model"
)

var shapes = map[model.Role]string{
	model.RoleSourceEdge:  "house",
	model.RoleTransit:     "ellipse",
	model.RoleFirewall:    "octagon",
	model.RoleSwitchL2:    "box3d",
	model.RoleSwitchL3:    "box3d",
	model.RoleGateway:     "doubleoctagon",
	model.RoleDestination: "doublecircle",
}

// NodeID is the DOT node name of a hop.
func NodeID(h model.Hop) string {
	return "hop" + strconv.Itoa(h.Sequence)
}

// DOT renders hops as a digraph named name. Nodes past a firewall are drawn
// red; edges follow the next-hop addresses.
func DOT(name string, hops []model.Hop) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName(name)); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	if err := g.AddAttr(g.Name, "rankdir", "LR"); err != nil {
		return "", err
	}

	byAddress := make(map[string]string, len(hops))
	for _, h := range hops {
		byAddress[h.Address] = NodeID(h)
		if err := g.AddNode(g.Name, NodeID(h), nodeAttrs(h)); err != nil {
			return "", fmt.Errorf("hop %d: %w", h.Sequence, err)
		}
	}
	for i, h := range hops {
		if h.Terminal() {
			continue
		}
		var to string
		if i+1 < len(hops) && hops[i+1].Address == *h.NextHopAddress {
			to = NodeID(hops[i+1])
		} else if id, ok := byAddress[*h.NextHopAddress]; ok {
			to = id
		} else {
			continue
		}
		attrs := map[string]string{}
		if h.MPLSLabel != "" {
			attrs["label"] = strconv.Quote("mpls " + h.MPLSLabel)
		}
		if err := g.AddEdge(NodeID(h), to, true, attrs); err != nil {
			return "", fmt.Errorf("edge from hop %d: %w", h.Sequence, err)
		}
	}
	return g.String(), nil
}

func nodeAttrs(h model.Hop) map[string]string {
	label := h.Address
	if h.Hostname != "" {
		label = h.Hostname + `\n` + h.Address
	}
	if h.VRF != "" {
		label += `\n` + h.VRF
	}
	shape, ok := shapes[h.Role]
	if !ok {
		shape = "ellipse"
	}
	attrs := map[string]string{
		"label":   `"` + strings.ReplaceAll(label, `"`, `'`) + `"`,
		"shape":   shape,
		"tooltip": strconv.Quote(string(h.Role)),
	}
	if h.PassedFirewall {
		attrs["color"] = "red"
	}
	return attrs
}

func graphName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 || (name[0] >= '0' && name[0] <= '9') {
		return "trace_" + b.String()
	}
	return b.String()
}
