// Package gateway guesses the default gateway of an endpoint address.
package gateway

import (
	"strconv"
	"strings"
)

// Fallback is returned for addresses that are not dotted quads.
const Fallback = "10.0.0.1"

// Resolve returns the .1 address of addr's /24, or .254 when addr is itself
// the .1 address.
func Resolve(addr string) string {
	parts := strings.Split(strings.TrimSpace(addr), ".")
	if len(parts) != 4 {
		return Fallback
	}
	last, err := strconv.Atoi(parts[3])
	if err != nil {
		return Fallback
	}
	gw := 1
	if last == 1 {
		gw = 254
	}
	return strings.Join(parts[:3], ".") + "." + strconv.Itoa(gw)
}
