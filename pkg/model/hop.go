package model

// Role is the part a device plays on a synthesized path.
type Role string

const (
	RoleSourceEdge  Role = "source-edge"
	RoleTransit     Role = "transit-router"
	RoleFirewall    Role = "firewall"
	RoleSwitchL2    Role = "switch-l2"
	RoleSwitchL3    Role = "switch-l3"
	RoleGateway     Role = "gateway"
	RoleDestination Role = "destination-endpoint"
)

// Switching reports whether the role is a switching device and therefore
// carries a link-layer address.
func (r Role) Switching() bool {
	return r == RoleSwitchL2 || r == RoleSwitchL3
}

// Hop is one node on a simulated path. JSON names follow the frontend contract.
type Hop struct {
	Sequence           int     `json:"hop"`
	Address            string  `json:"ip"`
	Role               Role    `json:"type"`
	Hostname           string  `json:"hostname,omitempty"`
	DestinationNetwork string  `json:"destination_network,omitempty"`
	VRF                string  `json:"vrf,omitempty"`
	MPLSLabel          string  `json:"mpls_label,omitempty"`
	PassedFirewall     bool    `json:"passed_firewall"`
	DeviceID           string  `json:"device_id,omitempty"`
	NextHopInterface   string  `json:"next_hop_interface,omitempty"`
	NextHopAddress     *string `json:"nexthop_int_ip"` // nil only on the terminal hop
	LinkLayerAddress   string  `json:"destination_mac,omitempty"`
}

// Terminal reports whether h ends its path.
func (h Hop) Terminal() bool { return h.NextHopAddress == nil }
