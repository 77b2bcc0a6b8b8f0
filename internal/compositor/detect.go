package compositor

import (
	"context"
	"os"
	"strings"
)

// Family classifies the running compositor. Detection is best-effort and
// purely informational: backends are attempted regardless of the result.
type Family string

const (
	FamilySway     Family = "sway"
	FamilyHyprland Family = "hyprland"
	FamilyKDE      Family = "kde"
	FamilyGNOME    Family = "gnome"
	FamilyWlroots  Family = "wlroots"
	FamilyX11      Family = "x11"
	FamilyUnknown  Family = "unknown"
)

// ProtocolFlags records which protocol extensions the windowing connection
// advertises.
type ProtocolFlags uint32

const (
	FlagWayland ProtocolFlags = 1 << iota
	FlagX11
	FlagLayerShell
	FlagXDGShell
	FlagXDGOutput
)

// EnvironmentInfo is the detector's classification of the running session.
type EnvironmentInfo struct {
	Family      Family
	SessionType string
	Flags       ProtocolFlags
	Version     string
}

// Prober enumerates advertised protocol extensions with one blocking
// round-trip against the windowing connection. Implementations live next to
// the protocol client; a nil prober skips the round-trip.
type Prober interface {
	Probe(ctx context.Context) (ProtocolFlags, string, error)
}

// Detect classifies the compositor from process environment hints, optionally
// refined by one protocol round-trip. It never fails: an unreachable or
// unclassifiable session yields FamilyUnknown, which does not block backend
// selection.
func Detect(ctx context.Context, prober Prober) EnvironmentInfo {
	info := EnvironmentInfo{
		Family:      FamilyUnknown,
		SessionType: os.Getenv("XDG_SESSION_TYPE"),
	}

	if os.Getenv("WAYLAND_DISPLAY") != "" {
		info.Flags |= FlagWayland
	}
	if os.Getenv("DISPLAY") != "" {
		info.Flags |= FlagX11
	}

	info.Family = classify(info.Flags)

	if prober != nil {
		if flags, version, err := prober.Probe(ctx); err == nil {
			info.Flags |= flags
			info.Version = version
		}
	}

	return info
}

func classify(flags ProtocolFlags) Family {
	switch {
	case os.Getenv("SWAYSOCK") != "":
		return FamilySway
	case os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "":
		return FamilyHyprland
	}

	desktop := strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP"))
	for _, entry := range strings.Split(desktop, ":") {
		switch entry {
		case "sway":
			return FamilySway
		case "hyprland":
			return FamilyHyprland
		case "kde", "plasma":
			return FamilyKDE
		case "gnome", "ubuntu":
			return FamilyGNOME
		case "wlroots", "river", "wayfire", "labwc", "niri":
			return FamilyWlroots
		}
	}

	if flags&FlagWayland == 0 && flags&FlagX11 != 0 {
		return FamilyX11
	}
	return FamilyUnknown
}
