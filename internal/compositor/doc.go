// Package compositor defines the common contract that all windowing backends
// (wlr-layer-shell, xdg-shell fallback, X11 root window) must implement, the
// fixed-capacity backend registry, the priority-order selector, and the
// runtime environment detector that classifies the running compositor family.
package compositor
