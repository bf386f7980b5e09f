package raids

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	logx "raidwatch/pkg/logx"
)

var (
	// ErrInvalidName means the boss name was empty after normalization.
	ErrInvalidName = errors.New("invalid boss name")

	// ErrNotFound means no active window exists for the requested boss.
	// It is a normal outcome, not a failure.
	ErrNotFound = errors.New("no active window")
)

// Status is a classified window as reported to users.
type Status struct {
	Window    Window
	Phase     Phase
	Remaining time.Duration
}

// Service is the registration/query surface over the window store.
// It never mutates sent flags; only the watch sweep does that.
type Service struct {
	store Store
	log   logx.Logger

	mu     sync.RWMutex
	timers Timers
}

func NewService(store Store, timers Timers, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, timers: timers, log: log}
}

// SetTimers swaps the timer table. Safe during config hot-reload;
// already-registered windows keep their computed bounds.
func (s *Service) SetTimers(t Timers) {
	s.mu.Lock()
	s.timers = t
	s.mu.Unlock()
}

func (s *Service) timersSnapshot() Timers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timers
}

// Register records a kill at now and replaces any previous window for
// the same boss, flags reset. Unknown boss names are accepted with the
// default profile.
func (s *Service) Register(ctx context.Context, guildID, rawName string, now time.Time) (Window, error) {
	if Normalize(rawName) == "" {
		return Window{}, ErrInvalidName
	}
	w := s.timersSnapshot().ComputeWindow(guildID, rawName, now)
	if err := s.store.Upsert(ctx, w); err != nil {
		return Window{}, fmt.Errorf("store window: %w", err)
	}
	s.log.Info("kill registered",
		logx.String("guild_id", guildID),
		logx.String("boss", w.Name),
		logx.Time("start", w.Start),
		logx.Time("end", w.End),
	)
	return w, nil
}

// Lookup classifies one boss window at now. Read-only.
func (s *Service) Lookup(ctx context.Context, guildID, rawName string, now time.Time) (Status, error) {
	key := Normalize(rawName)
	if key == "" {
		return Status{}, ErrInvalidName
	}
	w, ok, err := s.store.Get(ctx, guildID, key)
	if err != nil {
		return Status{}, fmt.Errorf("load window: %w", err)
	}
	if !ok {
		return Status{}, ErrNotFound
	}
	now = now.UTC()
	return Status{Window: w, Phase: Classify(w, now), Remaining: Remaining(w, now)}, nil
}

// Overview lists all non-expired windows of a guild, soonest first.
// Read-only; expired rows are left for the sweep to close and delete.
func (s *Service) Overview(ctx context.Context, guildID string, now time.Time) ([]Status, error) {
	ws, err := s.store.List(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	now = now.UTC()
	out := make([]Status, 0, len(ws))
	for _, w := range ws {
		ph := Classify(w, now)
		if ph == Expired {
			continue
		}
		out = append(out, Status{Window: w, Phase: ph, Remaining: Remaining(w, now)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Remaining < out[j].Remaining })
	return out, nil
}

// Forget drops a tracked window without any notification.
func (s *Service) Forget(ctx context.Context, guildID, rawName string) error {
	key := Normalize(rawName)
	if key == "" {
		return ErrInvalidName
	}
	_, ok, err := s.store.Get(ctx, guildID, key)
	if err != nil {
		return fmt.Errorf("load window: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, guildID, key); err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	s.log.Info("window forgotten", logx.String("guild_id", guildID), logx.String("boss", key))
	return nil
}
