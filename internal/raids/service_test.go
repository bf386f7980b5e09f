package raids

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	logx "raidwatch/pkg/logx"
)

// fakeStore is a minimal in-memory Store for service tests.
type fakeStore struct {
	rows map[string]Window
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[string]Window{}} }

func key(guildID, name string) string { return guildID + "/" + name }

func (f *fakeStore) Upsert(_ context.Context, w Window) error {
	if err := w.Validate(); err != nil {
		return err
	}
	f.rows[key(w.GuildID, w.Name)] = w
	return nil
}

func (f *fakeStore) Get(_ context.Context, guildID, name string) (Window, bool, error) {
	w, ok := f.rows[key(guildID, name)]
	return w, ok, nil
}

func (f *fakeStore) List(_ context.Context, guildID string) ([]Window, error) {
	var out []Window
	for _, w := range f.rows {
		if w.GuildID == guildID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].End.Before(out[j].End) })
	return out, nil
}

func (f *fakeStore) Guilds(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, w := range f.rows {
		if !seen[w.GuildID] {
			seen[w.GuildID] = true
			out = append(out, w.GuildID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) MarkSent(_ context.Context, w Window, flag Flag) error {
	cur, ok := f.rows[key(w.GuildID, w.Name)]
	if !ok || !cur.Start.Equal(w.Start) || !cur.End.Equal(w.End) {
		return nil
	}
	switch flag {
	case FlagWarning:
		cur.WarningSent = true
	case FlagOpen:
		cur.OpenSent = true
	}
	f.rows[key(w.GuildID, w.Name)] = cur
	return nil
}

func (f *fakeStore) Delete(_ context.Context, guildID, name string) error {
	delete(f.rows, key(guildID, name))
	return nil
}

func (f *fakeStore) DeleteVersion(_ context.Context, w Window) error {
	cur, ok := f.rows[key(w.GuildID, w.Name)]
	if !ok {
		return nil
	}
	if cur.Start.Equal(w.Start) && cur.End.Equal(w.End) {
		delete(f.rows, key(w.GuildID, w.Name))
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	return NewService(st, DefaultTimers(), logx.Nop()), st
}

func TestRegisterComputesWindow(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	kill := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	w, err := svc.Register(context.Background(), "g1", "Queen Ant", kill)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if w.Name != "queenant" {
		t.Fatalf("Name = %q", w.Name)
	}
	if want := kill.Add(24 * time.Hour); !w.Start.Equal(want) {
		t.Fatalf("Start = %v, want %v", w.Start, want)
	}
	if want := kill.Add(28 * time.Hour); !w.End.Equal(want) {
		t.Fatalf("End = %v, want %v", w.End, want)
	}
}

func TestRegisterReplacesAndResetsFlags(t *testing.T) {
	t.Parallel()
	svc, st := newTestService(t)
	ctx := context.Background()
	kill := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := svc.Register(ctx, "g1", "orfen", kill)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := st.MarkSent(ctx, first, FlagWarning); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if err := st.MarkSent(ctx, first, FlagOpen); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	later := kill.Add(40 * time.Hour)
	w, err := svc.Register(ctx, "g1", "orfen", later)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if w.WarningSent || w.OpenSent {
		t.Fatal("re-registration must reset sent flags")
	}
	got, ok, _ := st.Get(ctx, "g1", "orfen")
	if !ok || got.WarningSent || got.OpenSent {
		t.Fatalf("stored window = %+v, ok=%v", got, ok)
	}
	if want := later.Add(33 * time.Hour); !got.Start.Equal(want) {
		t.Fatalf("replaced Start = %v, want %v", got.Start, want)
	}
}

func TestRegisterInvalidName(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Register(context.Background(), "g1", raw, time.Now()); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Register(%q) err = %v, want ErrInvalidName", raw, err)
		}
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	kill := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := svc.Register(ctx, "g1", "core", kill); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// 48h fixed: 5h before open the window is pending.
	st, err := svc.Lookup(ctx, "g1", "Core", kill.Add(43*time.Hour))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if st.Phase != Pending || st.Remaining != 5*time.Hour {
		t.Fatalf("pending status = %v/%v", st.Phase, st.Remaining)
	}

	// 1h into the 4h window: active, 3h left.
	st, err = svc.Lookup(ctx, "g1", "core", kill.Add(49*time.Hour))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if st.Phase != Active || st.Remaining != 3*time.Hour {
		t.Fatalf("active status = %v/%v", st.Phase, st.Remaining)
	}

	if _, err := svc.Lookup(ctx, "g1", "zaken", kill); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing boss err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Lookup(ctx, "g2", "core", kill); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other guild err = %v, want ErrNotFound", err)
	}
}

func TestOverviewSortsAndExcludesExpired(t *testing.T) {
	t.Parallel()
	svc, st := newTestService(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mk := func(name string, startIn, span time.Duration) {
		t.Helper()
		w := Window{GuildID: "g1", Name: name, Start: now.Add(startIn), End: now.Add(startIn + span)}
		if err := st.Upsert(ctx, w); err != nil {
			t.Fatalf("Upsert(%s): %v", name, err)
		}
	}
	mk("baium", 10*time.Hour, 4*time.Hour)
	mk("orfen", -time.Hour, 3*time.Hour) // active, 2h left
	mk("core", 2*time.Hour, 4*time.Hour)
	mk("zaken", -6*time.Hour, time.Hour) // expired

	got, err := svc.Overview(ctx, "g1", now)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	var names []string
	for _, s := range got {
		names = append(names, s.Window.Name)
	}
	want := []string{"orfen", "core", "baium"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestForget(t *testing.T) {
	t.Parallel()
	svc, st := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "g1", "orfen", time.Now()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Forget(ctx, "g1", "Orfen"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "g1", "orfen"); ok {
		t.Fatal("window still present after Forget")
	}
	if err := svc.Forget(ctx, "g1", "orfen"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Forget err = %v, want ErrNotFound", err)
	}
}
