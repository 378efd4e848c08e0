// Package rtc is a stub real-time clock, an external collaborator spec.md
// lists out of scope for the core. It exists so code that wants a wall
// clock (boot logging timestamps, stat-device snapshots) has something to
// call without depending on actual hardware.
package rtc

import "time"

/// Clock_t reports the current time. The production build could back
/// this with a real RTC device; the hosted build uses the host clock.
type Clock_t struct{}

/// New returns a Clock_t backed by the host's wall clock.
func New() Clock_t { return Clock_t{} }

/// Now returns the current time.
func (Clock_t) Now() time.Time { return time.Now() }
