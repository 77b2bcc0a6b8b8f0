// Package wlclient is a minimal pure-Go Wayland client: a unix-socket wire
// codec with SCM_RIGHTS file-descriptor passing, the core globals needed to
// paint wallpaper surfaces (wl_compositor, wl_shm, wl_output), and the shell
// extensions (zwlr_layer_shell_v1, xdg_wm_base).
//
// A background goroutine reads raw messages off the socket into a queue and
// signals readiness; all protocol handlers run on the goroutine that calls
// DispatchPending, so callers keep single-threaded dispatch semantics.
package wlclient
