package raids

import (
	"context"
	"errors"
	"time"
)

// Window is one tracked spawn window. At most one exists per
// (guild, boss name); a fresh registration fully replaces the old row
// including its sent flags.
//
// Start and End are UTC instants with End strictly after Start.
// WarningSent and OpenSent only ever go false -> true; the row is
// deleted once the window closes.
type Window struct {
	GuildID string
	Name    string
	Start   time.Time
	End     time.Time

	WarningSent bool
	OpenSent    bool
}

// Validate checks the row invariants stores rely on. A zero-span or
// inverted window is rejected rather than stored; a valid timing
// profile never produces one.
func (w Window) Validate() error {
	if w.GuildID == "" {
		return errors.New("window: empty guild id")
	}
	if w.Name == "" {
		return errors.New("window: empty boss name")
	}
	if !w.End.After(w.Start) {
		return errors.New("window: end must be after start")
	}
	return nil
}

// Flag names one of the monotonic sent markers on a window row.
type Flag string

const (
	FlagWarning Flag = "warning_sent"
	FlagOpen    Flag = "open_sent"
)

// Kind is the notification class emitted for a window milestone.
type Kind string

const (
	KindWarning Kind = "warning"
	KindOpen    Kind = "open"
	KindClose   Kind = "close"
)

// Store is the durable window table. All operations are scoped to one
// guild; implementations must serialize conflicting writes on the same
// (guild, name) key.
type Store interface {
	// Upsert replaces or inserts the full row (REPLACE semantics).
	Upsert(ctx context.Context, w Window) error

	// Get looks up one window. ok=false when absent; that is not an error.
	Get(ctx context.Context, guildID, name string) (Window, bool, error)

	// List returns all windows of a guild, soonest-expiring first.
	List(ctx context.Context, guildID string) ([]Window, error)

	// Guilds returns the distinct guild ids that currently have rows.
	Guilds(ctx context.Context) ([]string, error)

	// MarkSent sets one flag to true, only while the row's window
	// bounds still match w. Idempotent; a no-op when the row was
	// deleted or replaced in the meantime, so a dispatch racing a
	// re-registration cannot taint the fresh window's flags.
	MarkSent(ctx context.Context, w Window, flag Flag) error

	// Delete removes the row. Idempotent.
	Delete(ctx context.Context, guildID, name string) error

	// DeleteVersion removes the row only while its window bounds still
	// match w, so a close sweep cannot delete a window that was
	// re-registered after it was classified.
	DeleteVersion(ctx context.Context, w Window) error

	Close() error
}
