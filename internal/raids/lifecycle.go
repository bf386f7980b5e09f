package raids

import "time"

// Phase is the derived state of a window at a given instant. It is
// never stored; only the clock moves a window between phases, and
// Expired is terminal (the row is deleted once observed).
type Phase int

const (
	Pending Phase = iota // now < Start
	Active               // Start <= now < End
	Expired              // now >= End
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Classify derives the phase of w at now.
func Classify(w Window, now time.Time) Phase {
	switch {
	case now.Before(w.Start):
		return Pending
	case now.Before(w.End):
		return Active
	default:
		return Expired
	}
}

// Remaining returns the time left in the current phase: until open
// while pending, until close while active, zero once expired.
func Remaining(w Window, now time.Time) time.Duration {
	switch Classify(w, now) {
	case Pending:
		return w.Start.Sub(now)
	case Active:
		return w.End.Sub(now)
	default:
		return 0
	}
}

// Due is the set of notifications owed for one window on one pass.
// Several can be owed at once after scheduler downtime; Close always
// implies the row is deleted afterwards.
type Due struct {
	Warning bool
	Open    bool
	Close   bool
}

func (d Due) Any() bool { return d.Warning || d.Open || d.Close }

// Decide evaluates the three milestone predicates for w at now.
//
// The warning has an upper bound of Start: once the window has opened
// there is no point announcing that it is about to, so a pass that
// first sees the window during [Start,End) skips straight to Open.
// Close is unconditional on the flags so that a window whose whole
// [Start,End) fell between two passes still closes exactly once.
func Decide(w Window, now time.Time, lead time.Duration) Due {
	var d Due
	if !w.WarningSent && !now.Before(w.Start.Add(-lead)) && now.Before(w.Start) {
		d.Warning = true
	}
	if !w.OpenSent && !now.Before(w.Start) && now.Before(w.End) {
		d.Open = true
	}
	if !now.Before(w.End) {
		d.Close = true
	}
	return d
}
