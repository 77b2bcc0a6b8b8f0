package compositor

import "strings"

// Capability is a bitmask of independently-togglable protocol features a
// backend discovered at init time. Configuration logic consults it to decide
// what is safe to request.
type Capability uint32

const (
	// CapLayerPlacement: surfaces can request a stacking layer.
	CapLayerPlacement Capability = 1 << iota
	// CapExclusiveZone: surfaces can reserve (or decline to reserve) space.
	CapExclusiveZone
	// CapKeyboardInteractivity: surfaces can control keyboard focus behavior.
	CapKeyboardInteractivity
	// CapMultiOutput: one surface per physical output.
	CapMultiOutput
	// CapSubsurfaces: child surfaces are supported.
	CapSubsurfaces
)

var capNames = []struct {
	bit  Capability
	name string
}{
	{CapLayerPlacement, "layer-placement"},
	{CapExclusiveZone, "exclusive-zone"},
	{CapKeyboardInteractivity, "keyboard-interactivity"},
	{CapMultiOutput, "multi-output"},
	{CapSubsurfaces, "subsurfaces"},
}

// Has reports whether all bits in c2 are set.
func (c Capability) Has(c2 Capability) bool {
	return c&c2 == c2
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, n := range capNames {
		if c.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
