package model

import "github.com/oklog/ulid/v2"

// NewID returns a fresh ULID string. Wallpaper history rows use it as their
// primary key; the timestamp prefix keeps same-second rows sortable.
func NewID() string {
	return ulid.Make().String()
}
