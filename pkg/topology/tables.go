package topology

import "tracesim/pkg/model"

// Range is an inclusive [Min, Max] bound for a pseudo-random draw.
type Range struct {
	Min int
	Max int
}

func (r Range) draw(src Source) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + src.IntN(r.Max-r.Min+1)
}

// WeightedRole is one entry of the interior role table.
type WeightedRole struct {
	Role   model.Role
	Weight int
}

// Tables holds every length range and probability the generator uses.
type Tables struct {
	// IPHops bounds the total hop count of an IP-layer path.
	IPHops Range
	// MACHops bounds the device hops of a link-layer path; the gateway
	// interface hop is appended after them.
	MACHops Range

	InteriorRoles []WeightedRole

	Failure        float64 // SimulatedFailure per request
	SubnetRotation float64 // interior hop moves to a new 10.x prefix
	VRFChange      float64 // combined traces only, interior hops only
	VRFClear       float64 // share of VRF changes that drop the tag
	MPLSLabel      float64
}

// DefaultTables mirrors the behaviour the frontend was built against.
func DefaultTables() Tables {
	return Tables{
		IPHops:  Range{Min: 5, Max: 15},
		MACHops: Range{Min: 1, Max: 3},
		InteriorRoles: []WeightedRole{
			{Role: model.RoleTransit, Weight: 6},
			{Role: model.RoleFirewall, Weight: 2},
			{Role: model.RoleSwitchL3, Weight: 1},
			{Role: model.RoleSwitchL2, Weight: 1},
		},
		Failure:        0.05,
		SubnetRotation: 0.2,
		VRFChange:      0.15,
		VRFClear:       0.3,
		MPLSLabel:      0.4,
	}
}

func (t Tables) pickRole(src Source) model.Role {
	total := 0
	for _, w := range t.InteriorRoles {
		total += w.Weight
	}
	if total <= 0 {
		return model.RoleTransit
	}
	n := src.IntN(total)
	for _, w := range t.InteriorRoles {
		if n < w.Weight {
			return w.Role
		}
		n -= w.Weight
	}
	return model.RoleTransit
}
