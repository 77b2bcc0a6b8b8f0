// Package engine runs the single-threaded event loop at the heart of the
// daemon. One goroutine owns all backend protocol state and surface
// lifecycles; every other goroutine (HTTP handlers, signal delivery, the
// config watcher) communicates with it through atomic flags and the wake
// channel. The loop multiplexes backend events, cycle timers, wakes and
// signals, and presents frames only after releasing the output directory
// lock.
package engine
