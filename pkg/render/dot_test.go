package render

import (
	"testing"

	"github.com/awalterschulze/gographviz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracesim/pkg/model"
	"tracesim/pkg/topology"
)

func TestDOTParsesBack(t *testing.T) {
	tables := topology.DefaultTables()
	tables.Failure = 0
	hops, err := topology.NewGenerator(tables).Synthesize(topology.Seeded(3), topology.PathRequest{
		Type: model.TraceCombined, Entry: "10.1.1.1", Exit: "10.2.2.1", Destination: "10.2.2.9",
	})
	require.NoError(t, err)

	out, err := DOT("route 12", hops)
	require.NoError(t, err)

	ast, err := gographviz.ParseString(out)
	require.NoError(t, err)
	g := gographviz.NewGraph()
	require.NoError(t, gographviz.Analyse(ast, g))

	assert.Equal(t, "route_12", g.Name)
	assert.True(t, g.Directed)
	assert.Len(t, g.Nodes.Nodes, len(hops))
	assert.Len(t, g.Edges.Edges, len(hops)-1)
	for i := 0; i+1 < len(hops); i++ {
		assert.NotEmpty(t, g.Edges.SrcToDsts[NodeID(hops[i])][NodeID(hops[i+1])])
	}
	assert.Equal(t, "doubleoctagon", g.Nodes.Lookup["hop1"].Attrs[gographviz.Shape])
}

func TestDOTMarksFirewallLatch(t *testing.T) {
	next := "10.9.9.9"
	hops := []model.Hop{
		{Sequence: 1, Address: "10.1.1.1", Role: model.RoleFirewall, NextHopAddress: &next},
		{Sequence: 2, Address: next, Role: model.RoleDestination, PassedFirewall: true},
	}
	out, err := DOT("7", hops)
	require.NoError(t, err)
	assert.Contains(t, out, "trace_7")

	ast, err := gographviz.ParseString(out)
	require.NoError(t, err)
	g := gographviz.NewGraph()
	require.NoError(t, gographviz.Analyse(ast, g))
	assert.Equal(t, "red", g.Nodes.Lookup["hop2"].Attrs[gographviz.Color])
	assert.Empty(t, g.Nodes.Lookup["hop1"].Attrs[gographviz.Color])
}
