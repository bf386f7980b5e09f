package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"raidwatch/internal/raids"
	"raidwatch/internal/storage"
	kit "raidwatch/internal/transport"
	"raidwatch/internal/transport/telegram/router"
	logx "raidwatch/pkg/logx"
)

type replyAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (a *replyAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (a *replyAdapter) Stop(context.Context) error                     { return nil }

func (a *replyAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	a.sent = append(a.sent, text)
	a.mu.Unlock()
	return kit.MessageRef{}, nil
}

func (a *replyAdapter) last(t *testing.T) string {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sent) == 0 {
		t.Fatal("no reply sent")
	}
	return a.sent[len(a.sent)-1]
}

func setup(t *testing.T) (*raids.Service, *replyAdapter, func(string, ...string) *router.Request) {
	t.Helper()
	svc := raids.NewService(storage.NewMemory(), raids.DefaultTimers(), logx.Nop())
	ad := &replyAdapter{}
	req := func(cmd string, args ...string) *router.Request {
		return &router.Request{
			Chat:    kit.ChatTarget{ChatID: -100500},
			FromID:  42,
			Command: cmd,
			Args:    args,
			Adapter: ad,
			Logger:  logx.Nop(),
		}
	}
	return svc, ad, req
}

func findCommand(t *testing.T, svc *raids.Service, name string) router.Command {
	t.Helper()
	for _, c := range Commands(svc) {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("command %q not registered", name)
	return router.Command{}
}

func TestKillRegistersWindow(t *testing.T) {
	t.Parallel()
	svc, ad, req := setup(t)
	ctx := context.Background()

	if err := findCommand(t, svc, "kill").Handle(ctx, req("kill", "queen", "ant")); err != nil {
		t.Fatalf("kill: %v", err)
	}
	reply := ad.last(t)
	if !strings.Contains(reply, "Queenant") || !strings.Contains(reply, "Start:") || !strings.Contains(reply, "End:") {
		t.Fatalf("kill reply = %q", reply)
	}

	st, err := svc.Lookup(ctx, GuildID(kit.ChatTarget{ChatID: -100500}), "queenant", time.Now())
	if err != nil {
		t.Fatalf("Lookup after kill: %v", err)
	}
	if st.Phase != raids.Pending {
		t.Fatalf("phase = %v", st.Phase)
	}
}

func TestKillWithoutName(t *testing.T) {
	t.Parallel()
	svc, ad, req := setup(t)

	if err := findCommand(t, svc, "kill").Handle(context.Background(), req("kill")); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if reply := ad.last(t); !strings.Contains(reply, "/kill") {
		t.Fatalf("usage reply = %q", reply)
	}
}

func TestNextPhases(t *testing.T) {
	t.Parallel()
	svc, ad, req := setup(t)
	ctx := context.Background()
	gid := GuildID(kit.ChatTarget{ChatID: -100500})

	next := findCommand(t, svc, "next")

	if err := next.Handle(ctx, req("next", "orfen")); err != nil {
		t.Fatalf("next: %v", err)
	}
	if reply := ad.last(t); !strings.Contains(reply, "No active timer for Orfen") {
		t.Fatalf("missing reply = %q", reply)
	}

	if _, err := svc.Register(ctx, gid, "orfen", time.Now()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := next.Handle(ctx, req("next", "Orfen")); err != nil {
		t.Fatalf("next: %v", err)
	}
	if reply := ad.last(t); !strings.Contains(reply, "Window opens in") {
		t.Fatalf("pending reply = %q", reply)
	}
}

func TestRaidsOverview(t *testing.T) {
	t.Parallel()
	svc, ad, req := setup(t)
	ctx := context.Background()
	gid := GuildID(kit.ChatTarget{ChatID: -100500})

	cmd := findCommand(t, svc, "raids")

	if err := cmd.Handle(ctx, req("raids")); err != nil {
		t.Fatalf("raids: %v", err)
	}
	if reply := ad.last(t); !strings.Contains(reply, "No active raid timers") {
		t.Fatalf("empty reply = %q", reply)
	}

	for _, boss := range []string{"orfen", "core"} {
		if _, err := svc.Register(ctx, gid, boss, time.Now()); err != nil {
			t.Fatalf("Register(%s): %v", boss, err)
		}
	}
	if err := cmd.Handle(ctx, req("raids")); err != nil {
		t.Fatalf("raids: %v", err)
	}
	reply := ad.last(t)
	if !strings.Contains(reply, "Orfen") || !strings.Contains(reply, "Core") {
		t.Fatalf("overview reply = %q", reply)
	}
}

func TestForget(t *testing.T) {
	t.Parallel()
	svc, ad, req := setup(t)
	ctx := context.Background()
	gid := GuildID(kit.ChatTarget{ChatID: -100500})

	cmd := findCommand(t, svc, "forget")

	if _, err := svc.Register(ctx, gid, "orfen", time.Now()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := cmd.Handle(ctx, req("forget", "orfen")); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if reply := ad.last(t); !strings.Contains(reply, "Dropped") {
		t.Fatalf("forget reply = %q", reply)
	}
	if _, err := svc.Lookup(ctx, gid, "orfen", time.Now()); err == nil {
		t.Fatal("window still present after forget")
	}

	if err := cmd.Handle(ctx, req("forget", "orfen")); err != nil {
		t.Fatalf("second forget: %v", err)
	}
	if reply := ad.last(t); !strings.Contains(reply, "No active timer") {
		t.Fatalf("second forget reply = %q", reply)
	}
}

func TestOwnerOnlyCommands(t *testing.T) {
	t.Parallel()
	svc, _, _ := setup(t)
	access := map[string]router.Access{}
	for _, c := range Commands(svc) {
		access[c.Name] = c.Access
	}
	if access["kill"] != router.AccessOwnerOnly || access["forget"] != router.AccessOwnerOnly {
		t.Fatalf("kill/forget access = %v/%v", access["kill"], access["forget"])
	}
	if access["next"] != router.AccessEveryone || access["raids"] != router.AccessEveryone {
		t.Fatalf("next/raids access = %v/%v", access["next"], access["raids"])
	}
}
