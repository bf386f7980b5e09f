package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"raidwatch/internal/raids"
)

// Memory is a map-backed store with the same per-key write
// serialization guarantees as the sqlite driver. State is lost on
// restart, so it is only suitable for tests and throwaway runs.
type Memory struct {
	mu      sync.Mutex
	windows map[string]map[string]raids.Window // guild -> name -> window
}

func NewMemory() *Memory {
	return &Memory{windows: map[string]map[string]raids.Window{}}
}

func (m *Memory) Upsert(_ context.Context, w raids.Window) error {
	if err := w.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.windows[w.GuildID]
	if g == nil {
		g = map[string]raids.Window{}
		m.windows[w.GuildID] = g
	}
	g[w.Name] = w
	return nil
}

func (m *Memory) Get(_ context.Context, guildID, name string) (raids.Window, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[guildID][name]
	return w, ok, nil
}

func (m *Memory) List(_ context.Context, guildID string) ([]raids.Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.windows[guildID]
	out := make([]raids.Window, 0, len(g))
	for _, w := range g {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].End.Equal(out[j].End) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) Guilds(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.windows))
	for id, g := range m.windows {
		if len(g) == 0 {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) MarkSent(_ context.Context, w raids.Window, flag raids.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.windows[w.GuildID][w.Name]
	if !ok {
		// Row already gone; same contract as the sqlite driver.
		return nil
	}
	if !cur.Start.Equal(w.Start) || !cur.End.Equal(w.End) {
		// The row was replaced after classification; its fresh flags
		// must stay unset.
		return nil
	}
	switch flag {
	case raids.FlagWarning:
		cur.WarningSent = true
	case raids.FlagOpen:
		cur.OpenSent = true
	default:
		return fmt.Errorf("unknown window flag %q", flag)
	}
	m.windows[w.GuildID][w.Name] = cur
	return nil
}

func (m *Memory) Delete(_ context.Context, guildID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows[guildID], name)
	return nil
}

func (m *Memory) DeleteVersion(_ context.Context, w raids.Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.windows[w.GuildID][w.Name]
	if !ok {
		return nil
	}
	if !cur.Start.Equal(w.Start) || !cur.End.Equal(w.End) {
		// The row was replaced after classification; leave it alone.
		return nil
	}
	delete(m.windows[w.GuildID], w.Name)
	return nil
}

func (m *Memory) Close() error { return nil }
