package registry

import "time"

// LaterOf returns the more recent of two optional timestamps. A user who
// just played their global sound in one guild must not immediately trigger
// their local sound in another, so cooldown checks compare against this.
func LaterOf(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.After(*b):
		return a
	default:
		return b
	}
}
