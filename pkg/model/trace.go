package model

// TraceType classifies a recorded trace.
type TraceType string

const (
	TraceDirect   TraceType = "direct"
	TraceCombined TraceType = "combined"
	TraceMAC      TraceType = "mac"
)

// Valid reports whether t is one of the known trace types.
func (t TraceType) Valid() bool {
	switch t {
	case TraceDirect, TraceCombined, TraceMAC:
		return true
	}
	return false
}
