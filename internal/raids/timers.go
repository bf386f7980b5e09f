package raids

import (
	"strings"
	"time"
	"unicode"
)

// Profile is the respawn timing of one boss type: the window opens
// Fixed after the recorded kill and stays open for Jitter.
type Profile struct {
	Fixed  time.Duration
	Jitter time.Duration
}

// Timers maps a normalized boss name to its respawn profile.
// Unknown names fall back to Default; registration never rejects a
// name just because it has no dedicated entry.
type Timers struct {
	Default  Profile
	Profiles map[string]Profile
}

// DefaultTimers is the stock timer table. Hours are fixed respawn +
// random window span.
func DefaultTimers() Timers {
	h := func(n float64) time.Duration { return time.Duration(n * float64(time.Hour)) }
	return Timers{
		Default: Profile{Fixed: h(0.6), Jitter: h(1)},
		Profiles: map[string]Profile{
			"barakiel": {Fixed: h(12), Jitter: h(9)},

			// Field epics
			"queenant": {Fixed: h(24), Jitter: h(4)},
			"core":     {Fixed: h(48), Jitter: h(4)},
			"orfen":    {Fixed: h(33), Jitter: h(4)},
			"zaken":    {Fixed: h(45), Jitter: h(4)},

			// Grand epics
			"baium":    {Fixed: h(125), Jitter: h(4)},
			"antharas": {Fixed: h(192), Jitter: h(4)},
			"valakas":  {Fixed: h(264), Jitter: h(4)},
		},
	}
}

// Normalize canonicalizes a user-supplied boss name: lowercase with
// all whitespace removed, so "Queen Ant" and "queenant" hit the same
// row and the same profile.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Profile returns the timing profile for a normalized name.
// Unknown names get the default profile.
func (t Timers) Profile(name string) Profile {
	if p, ok := t.Profiles[name]; ok {
		return p
	}
	return t.Default
}

// ComputeWindow derives the spawn window for a kill observed at now.
// Pure: same (name, now) always yields the same window. The name is
// normalized before lookup.
func (t Timers) ComputeWindow(guildID, name string, now time.Time) Window {
	key := Normalize(name)
	p := t.Profile(key)
	start := now.UTC().Add(p.Fixed)
	return Window{
		GuildID: guildID,
		Name:    key,
		Start:   start,
		End:     start.Add(p.Jitter),
	}
}
