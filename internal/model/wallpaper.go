// Package model holds the domain types shared across the daemon: scaling and
// easing modes, transition parameters, and the persisted wallpaper record.
package model

import (
	"fmt"
	"time"
)

// ScaleMode controls how a wallpaper image is mapped onto an output.
type ScaleMode string

const (
	ScaleStretch ScaleMode = "stretch"
	ScaleFit     ScaleMode = "fit"
	ScaleFill    ScaleMode = "fill"
	ScaleCenter  ScaleMode = "center"
)

// EasingMode controls the interpolation curve of a crossfade transition.
type EasingMode string

const (
	EasingLinear    EasingMode = "linear"
	EasingEaseIn    EasingMode = "ease-in"
	EasingEaseOut   EasingMode = "ease-out"
	EasingEaseInOut EasingMode = "ease-in-out"
)

// ParseScaleMode validates and returns a ScaleMode, defaulting to fill.
func ParseScaleMode(s string) (ScaleMode, error) {
	switch ScaleMode(s) {
	case ScaleStretch, ScaleFit, ScaleFill, ScaleCenter:
		return ScaleMode(s), nil
	case "":
		return ScaleFill, nil
	}
	return "", fmt.Errorf("unknown scale mode %q", s)
}

// ParseEasingMode validates and returns an EasingMode, defaulting to linear.
func ParseEasingMode(s string) (EasingMode, error) {
	switch EasingMode(s) {
	case EasingLinear, EasingEaseIn, EasingEaseOut, EasingEaseInOut:
		return EasingMode(s), nil
	case "":
		return EasingLinear, nil
	}
	return "", fmt.Errorf("unknown easing mode %q", s)
}

// Ease applies the easing curve to a normalized progress value in [0, 1].
func Ease(mode EasingMode, t float64) float64 {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	switch mode {
	case EasingEaseIn:
		return t * t
	case EasingEaseOut:
		return t * (2 - t)
	case EasingEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	default:
		return t
	}
}

// WallpaperRecord is the last-applied wallpaper for one output, persisted so
// a restart comes back up showing the previous image.
type WallpaperRecord struct {
	ID     string    `json:"id"`
	Output string    `json:"output"`
	Path   string    `json:"path"`
	SetAt  time.Time `json:"set_at"`
}
