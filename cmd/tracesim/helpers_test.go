package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tracesim/pkg/model"
)

func sampleHops() []model.Hop {
	next := "10.2.2.1"
	return []model.Hop{
		{Sequence: 1, Address: "10.1.1.1", Role: model.RoleSourceEdge, NextHopAddress: &next},
		{Sequence: 2, Address: "10.2.2.1", Role: model.RoleGateway},
	}
}

func TestWriteHopsFormats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHops(&buf, "json", "r", sampleHops()))
	var decoded []model.Hop
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sampleHops(), decoded)

	buf.Reset()
	require.NoError(t, writeHops(&buf, "yaml", "r", sampleHops()))
	var generic []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &generic))
	require.Len(t, generic, 2)
	assert.Equal(t, "10.1.1.1", generic[0]["ip"])
	assert.Nil(t, generic[1]["nexthop_int_ip"])

	buf.Reset()
	require.NoError(t, writeHops(&buf, "dot", "r", sampleHops()))
	assert.Contains(t, buf.String(), "digraph")

	assert.Error(t, writeHops(&buf, "xml", "r", sampleHops()))
}

func TestTraceRouteCommand(t *testing.T) {
	cmd := newTraceCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"route", "-o", "json", "--seed", "7",
		"--source-ip", "10.1.1.5", "--destination-ip", "10.2.2.9",
		"--source-dg", "10.1.1.1", "--destination-dg", "10.2.2.1"})
	require.NoError(t, cmd.Execute())

	var hops []model.Hop
	require.NoError(t, json.Unmarshal(out.Bytes(), &hops))
	require.NotEmpty(t, hops)
	assert.Equal(t, "10.1.1.1", hops[0].Address)
	assert.Equal(t, "10.2.2.1", hops[len(hops)-1].Address)
}

func TestTraceRouteRequiresVRF(t *testing.T) {
	cmd := newTraceCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"route",
		"--source-ip", "10.1.1.1", "--source-dg", "10.1.1.1",
		"--destination-ip", "10.2.2.1", "--destination-dg", "10.2.2.1"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vrf")
}

func TestTraceGatewayCommand(t *testing.T) {
	cmd := newTraceCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"gateway", "192.168.4.20"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "192.168.4.1", strings.TrimSpace(out.String()))
}
