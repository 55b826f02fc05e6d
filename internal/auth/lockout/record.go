package lockout

import "time"

// Record tracks consecutive failures for one identifier inside the window
// that started at FirstFailedAt.
type Record struct {
	Identifier    string     `json:"identifier"`
	FailureCount  int        `json:"failure_count"`
	FirstFailedAt time.Time  `json:"first_failed_at"`
	LastFailureAt time.Time  `json:"last_failure_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
}

// IsLockedAt reports whether the identifier is locked at now.
func (r *Record) IsLockedAt(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// windowExpired reports whether failures recorded so far no longer count.
func (r *Record) windowExpired(now time.Time, window time.Duration) bool {
	return r.FirstFailedAt.Before(now.Add(-window))
}

// VoterKey and MachineKey namespace identifiers so a voter id can never
// collide with a machine id.
func VoterKey(voterID string) string     { return "voter:" + voterID }
func MachineKey(machineID string) string { return "machine:" + machineID }
